package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"family_tree/internal/common"
	"family_tree/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type MemberRepository interface {
	List(ctx context.Context) ([]model.Member, error)
	FindByID(ctx context.Context, id string) (*model.Member, error)
	FindBySlug(ctx context.Context, slug string) (*model.Member, error)
	Create(ctx context.Context, member *model.Member) error
	Update(ctx context.Context, member *model.Member) error
	Delete(ctx context.Context, id string) error
}

type pgMemberRepository struct {
	db *sql.DB
}

func NewPgMemberRepository(db *sql.DB) MemberRepository {
	return &pgMemberRepository{db: db}
}

const memberColumns = `id, slug, name, birth_date, death_date, gender, bio, photo,
	          parent_ids, spouse_id, children_ids, created_at, updated_at`

func (r *pgMemberRepository) List(ctx context.Context) ([]model.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("pgMemberRepository.List: %w", err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("pgMemberRepository.List: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgMemberRepository.List: %w", err)
	}
	return members, nil
}

func (r *pgMemberRepository) FindByID(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgMemberRepository.FindByID: %w", err)
	}
	return m, nil
}

func (r *pgMemberRepository) FindBySlug(ctx context.Context, slug string) (*model.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgMemberRepository.FindBySlug: %w", err)
	}
	return m, nil
}

func (r *pgMemberRepository) Create(ctx context.Context, m *model.Member) error {
	parents, children, err := encodeRelations(m)
	if err != nil {
		return fmt.Errorf("pgMemberRepository.Create: %w", err)
	}
	query := `INSERT INTO members (id, slug, name, birth_date, death_date, gender, bio, photo,
	          parent_ids, spouse_id, children_ids, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.Slug, m.Name, m.BirthDate, m.DeathDate, string(m.Gender), m.Bio, m.Photo,
		parents, m.SpouseID, children, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("member with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgMemberRepository.Create: %w", err)
	}
	return nil
}

func (r *pgMemberRepository) Update(ctx context.Context, m *model.Member) error {
	parents, children, err := encodeRelations(m)
	if err != nil {
		return fmt.Errorf("pgMemberRepository.Update: %w", err)
	}
	query := `UPDATE members SET
	            slug = $1, name = $2, birth_date = $3, death_date = $4, gender = $5, bio = $6,
	            photo = $7, parent_ids = $8, spouse_id = $9, children_ids = $10, updated_at = $11
	          WHERE id = $12`
	res, err := r.db.ExecContext(ctx, query,
		m.Slug, m.Name, m.BirthDate, m.DeathDate, string(m.Gender), m.Bio,
		m.Photo, parents, m.SpouseID, children, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("pgMemberRepository.Update: %w", err)
	}
	return expectOneRow(res, "pgMemberRepository.Update")
}

func (r *pgMemberRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgMemberRepository.Delete: %w", err)
	}
	return expectOneRow(res, "pgMemberRepository.Delete")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*model.Member, error) {
	m := &model.Member{}
	var (
		deathDate, bio, photo, spouseID sql.NullString
		gender                          string
		parents, children               []byte
	)
	err := row.Scan(&m.ID, &m.Slug, &m.Name, &m.BirthDate, &deathDate, &gender, &bio, &photo,
		&parents, &spouseID, &children, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Gender = model.Gender(gender)
	m.DeathDate = nullableString(deathDate)
	m.Bio = nullableString(bio)
	m.Photo = nullableString(photo)
	m.SpouseID = nullableString(spouseID)
	if m.ParentIDs, err = decodeIDs(parents); err != nil {
		return nil, fmt.Errorf("decode parent_ids: %w", err)
	}
	if m.ChildrenIDs, err = decodeIDs(children); err != nil {
		return nil, fmt.Errorf("decode children_ids: %w", err)
	}
	return m, nil
}

func encodeRelations(m *model.Member) (string, string, error) {
	parents, err := encodeIDs(m.ParentIDs)
	if err != nil {
		return "", "", err
	}
	children, err := encodeIDs(m.ChildrenIDs)
	if err != nil {
		return "", "", err
	}
	return parents, children, nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIDs(raw []byte) ([]string, error) {
	ids := []string{}
	if len(raw) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
