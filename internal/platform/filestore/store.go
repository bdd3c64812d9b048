// Package filestore keeps users and family members in flat JSON files.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"family_tree/internal/common"
	"family_tree/internal/domain/model"
	"family_tree/internal/domain/repository"
)

const (
	usersFile   = "users.json"
	membersFile = "members.json"
)

// Store serializes every read-modify-write cycle on its files. Writes go to
// a temp file that replaces the original, so readers never see half a file.
type Store struct {
	dir string
	mu  sync.Mutex
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Users() repository.UserRepository { return &userStore{s: s} }

func (s *Store) Members() repository.MemberRepository { return &memberStore{s: s} }

func (s *Store) read(name string, v any) error {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("filestore: read %s: %w", name, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("filestore: decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) write(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("filestore: write %s: %w", name, err)
	}
	return nil
}

// userRecord is the on-disk user; it keeps the hash that model.User hides
// from JSON.
type userRecord struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Password  string     `json:"password"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func (r userRecord) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.Password,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		LastLogin:    r.LastLogin,
	}
}

type userStore struct {
	s *Store
}

func (u *userStore) load() ([]userRecord, error) {
	var users []userRecord
	if err := u.s.read(usersFile, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *userStore) Create(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	users, err := u.load()
	if err != nil {
		return err
	}
	for _, existing := range users {
		if existing.Username == user.Username {
			return fmt.Errorf("user with given username already exists: %w", common.ErrConflict)
		}
	}
	users = append(users, userRecord{
		ID:        user.ID,
		Username:  user.Username,
		Password:  user.PasswordHash,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	})
	return u.s.write(usersFile, users)
}

func (u *userStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.find(ctx, func(r userRecord) bool { return r.Username == username })
}

func (u *userStore) find(ctx context.Context, match func(userRecord) bool) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	users, err := u.load()
	if err != nil {
		return nil, err
	}
	for _, r := range users {
		if match(r) {
			return r.toModel(), nil
		}
	}
	return nil, common.ErrNotFound
}

func (u *userStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	users, err := u.load()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == id {
			t := at
			users[i].LastLogin = &t
			return u.s.write(usersFile, users)
		}
	}
	return common.ErrNotFound
}

type memberStore struct {
	s *Store
}

func (m *memberStore) load() ([]model.Member, error) {
	members := []model.Member{}
	if err := m.s.read(membersFile, &members); err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ParentIDs == nil {
			members[i].ParentIDs = []string{}
		}
		if members[i].ChildrenIDs == nil {
			members[i].ChildrenIDs = []string{}
		}
	}
	return members, nil
}

func (m *memberStore) List(ctx context.Context) ([]model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.load()
}

func (m *memberStore) FindByID(ctx context.Context, id string) (*model.Member, error) {
	return m.find(ctx, func(mem model.Member) bool { return mem.ID == id })
}

func (m *memberStore) FindBySlug(ctx context.Context, slug string) (*model.Member, error) {
	return m.find(ctx, func(mem model.Member) bool { return mem.Slug == slug })
}

func (m *memberStore) find(ctx context.Context, match func(model.Member) bool) (*model.Member, error) {
	members, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if match(members[i]) {
			return &members[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memberStore) Create(ctx context.Context, member *model.Member) error {
	return m.mutate(ctx, func(members []model.Member) ([]model.Member, error) {
		for _, existing := range members {
			if existing.ID == member.ID || existing.Slug == member.Slug {
				return nil, fmt.Errorf("member with this id or slug already exists: %w", common.ErrConflict)
			}
		}
		return append(members, *member), nil
	})
}

func (m *memberStore) Update(ctx context.Context, member *model.Member) error {
	return m.mutate(ctx, func(members []model.Member) ([]model.Member, error) {
		for i := range members {
			if members[i].ID == member.ID {
				members[i] = *member
				return members, nil
			}
		}
		return nil, common.ErrNotFound
	})
}

func (m *memberStore) Delete(ctx context.Context, id string) error {
	return m.mutate(ctx, func(members []model.Member) ([]model.Member, error) {
		for i := range members {
			if members[i].ID == id {
				return append(members[:i], members[i+1:]...), nil
			}
		}
		return nil, common.ErrNotFound
	})
}

func (m *memberStore) mutate(ctx context.Context, fn func([]model.Member) ([]model.Member, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	members, err := m.load()
	if err != nil {
		return err
	}
	updated, err := fn(members)
	if err != nil {
		return err
	}
	return m.s.write(membersFile, updated)
}
