package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"family_tree/internal/common"
	"family_tree/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var memberCols = []string{
	"id", "slug", "name", "birth_date", "death_date", "gender", "bio", "photo",
	"parent_ids", "spouse_id", "children_ids", "created_at", "updated_at",
}

func TestPgMemberRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPgMemberRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(memberCols).
		AddRow("m-1", "anna", "Anna", "1950-01-01", nil, "female", nil, nil, []byte(`[]`), "m-2", []byte(`["m-3"]`), now, now).
		AddRow("m-3", "carl", "Carl", "1980-05-05", "2020-01-01", "male", "bio", nil, []byte(`["m-1","m-2"]`), nil, nil, now, now)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*slug.*FROM\s+members\s+ORDER\s+BY\s+created_at`).WillReturnRows(rows)

	members, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, model.GenderFemale, members[0].Gender)
	require.NotNil(t, members[0].SpouseID)
	assert.Equal(t, "m-2", *members[0].SpouseID)
	assert.Equal(t, []string{"m-3"}, members[0].ChildrenIDs)
	assert.Empty(t, members[0].ParentIDs)
	assert.Nil(t, members[0].DeathDate)

	assert.Equal(t, []string{"m-1", "m-2"}, members[1].ParentIDs)
	assert.Equal(t, []string{}, members[1].ChildrenIDs)
	require.NotNil(t, members[1].DeathDate)
	assert.Equal(t, "2020-01-01", *members[1].DeathDate)
}

func TestPgMemberRepository_ListEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPgMemberRepository(db)

	mock.ExpectQuery(`FROM\s+members`).WillReturnRows(sqlmock.NewRows(memberCols))

	members, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)
}

func TestPgMemberRepository_FindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPgMemberRepository(db)

	mock.ExpectQuery(`FROM\s+members\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPgMemberRepository_FindBySlug(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPgMemberRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM\s+members\s+WHERE\s+slug\s*=\s*\$1`).
		WithArgs("anna").
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow("m-1", "anna", "Anna", "1950-01-01", nil, "", nil, nil, nil, nil, nil, now, now))

	m, err := repo.FindBySlug(context.Background(), "anna")
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.ID)
	assert.Equal(t, []string{}, m.ParentIDs)
}

func TestPgMemberRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPgMemberRepository(db)
	now := time.Now()
	spouse := "m-2"

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+members`).
		WithArgs("m-1", "anna", "Anna", "1950-01-01", nil, "female", nil, nil,
			`["p-1"]`, "m-2", `[]`, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &model.Member{
		ID: "m-1", Slug: "anna", Name: "Anna", BirthDate: "1950-01-01", Gender: model.GenderFemale,
		ParentIDs: []string{"p-1"}, SpouseID: &spouse, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

func TestPgMemberRepository_UpdateMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPgMemberRepository(db)

	mock.ExpectExec(`(?s)^UPDATE\s+members\s+SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Member{ID: "ghost", UpdatedAt: time.Now()})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPgMemberRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPgMemberRepository(db)

	mock.ExpectExec(`DELETE\s+FROM\s+members\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("m-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "m-1"))
}
