package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"family_tree/internal/common"
	"family_tree/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	return s, dir
}

func TestUsers_CreateFindAndPersistHash(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()
	users := s.Users()

	u := &model.User{ID: "u-1", Username: "admin", PasswordHash: "$2a$hash", Role: model.RoleAdmin, CreatedAt: time.Now().UTC()}
	require.NoError(t, users.Create(ctx, u))

	got, err := users.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, "$2a$hash", got.PasswordHash)

	got, err = users.FindByUsername(ctx, "Admin")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Nil(t, got)

	raw, err := os.ReadFile(filepath.Join(dir, usersFile))
	require.NoError(t, err)
	var onDisk []map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, "$2a$hash", onDisk[0]["password"])
}

func TestUsers_DuplicateUsername(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users().Create(ctx, &model.User{ID: "u-1", Username: "admin"}))
	err := s.Users().Create(ctx, &model.User{ID: "u-2", Username: "admin"})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestUsers_NotFoundOnEmptyStore(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Users().FindByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUsers_UpdateLastLogin(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Users().Create(ctx, &model.User{ID: "u-1", Username: "admin"}))

	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, s.Users().UpdateLastLogin(ctx, "u-1", at))

	got, err := s.Users().FindByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))

	require.ErrorIs(t, s.Users().UpdateLastLogin(ctx, "ghost", at), common.ErrNotFound)
}

func TestUsers_ReadsSeededFile(t *testing.T) {
	dir := t.TempDir()
	seed := `[{"id":"1","username":"admin","password":"$2a$10$abc","role":"admin","createdAt":"2024-01-01T00:00:00Z"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, usersFile), []byte(seed), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)

	got, err := s.Users().FindByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$abc", got.PasswordHash)
	assert.Nil(t, got.LastLogin)
}

func TestUsers_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, usersFile), []byte("{not json"), 0o644))
	s, err := Open(dir)
	require.NoError(t, err)

	_, err = s.Users().FindByUsername(context.Background(), "admin")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestMembers_CRUD(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	members := s.Members()

	list, err := members.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	anna := &model.Member{ID: "m-1", Slug: "anna", Name: "Anna", BirthDate: "1950-01-01"}
	require.NoError(t, members.Create(ctx, anna))
	require.ErrorIs(t, members.Create(ctx, &model.Member{ID: "m-2", Slug: "anna"}), common.ErrConflict)

	got, err := members.FindBySlug(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, []string{}, got.ParentIDs)

	got.Name = "Anna Maria"
	require.NoError(t, members.Update(ctx, got))
	got, err = members.FindByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Anna Maria", got.Name)

	require.ErrorIs(t, members.Update(ctx, &model.Member{ID: "ghost"}), common.ErrNotFound)

	require.NoError(t, members.Delete(ctx, "m-1"))
	require.ErrorIs(t, members.Delete(ctx, "m-1"), common.ErrNotFound)
	_, err = members.FindByID(ctx, "m-1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestStore_CanceledContext(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Members().List(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.Users().Create(ctx, &model.User{ID: "u"}), context.Canceled)
}
