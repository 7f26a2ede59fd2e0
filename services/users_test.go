package services

import (
	"context"
	"strings"
	"testing"

	"rpmt/internal/testutil"
	"rpmt/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	s := NewUserService(testutil.OpenDB(t), zap.NewNop())
	s.Cost = bcrypt.MinCost
	return s
}

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	s := newUserService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterInput{Username: " jdoe ", Email: "jdoe@example.org", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "jdoe", u.Username)
	assert.Equal(t, models.RoleFaculty, u.Role)
	assert.NotEqual(t, "correct horse", u.Password)

	got, err := s.Authenticate(ctx, "jdoe", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "jdoe", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_CreateValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		role     models.Role
		field    string
	}{
		{name: "empty username", username: "", email: "a@example.org", password: "longenough", role: models.RoleFaculty, field: "username"},
		{name: "bad email", username: "a", email: "not-an-email", password: "longenough", role: models.RoleFaculty, field: "email"},
		{name: "short password", username: "a", email: "a@example.org", password: "short", role: models.RoleFaculty, field: "password"},
		{name: "unknown role", username: "a", email: "a@example.org", password: "longenough", role: "Root", field: "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newUserService(t)
			_, err := s.Create(context.Background(), tt.username, tt.email, tt.password, tt.role)
			verr, ok := IsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestUserService_CreateCountsCharacters(t *testing.T) {
	s := newUserService(t)
	ctx := context.Background()

	u, err := s.Create(ctx, strings.Repeat("ø", 128), "jose@example.org", "pässwörd", models.RoleFaculty)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ø", 128), u.Username)

	_, err = s.Create(ctx, strings.Repeat("ø", 129), "other@example.org", "longenough", models.RoleFaculty)
	verr, ok := IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, verr.Fields, "username")

	_, err = s.Create(ctx, "bytes", "bytes@example.org", strings.Repeat("€", 30), models.RoleFaculty)
	verr, ok = IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Password is too long.", verr.Fields["password"])
}

func TestUserService_Duplicates(t *testing.T) {
	s := newUserService(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "jdoe", "jdoe@example.org", "longenough", models.RoleFaculty)
	require.NoError(t, err)

	_, err = s.Create(ctx, "jdoe", "other@example.org", "longenough", models.RoleFaculty)
	verr, ok := IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, verr.Fields, "username")

	_, err = s.Create(ctx, "other", "jdoe@example.org", "longenough", models.RoleFaculty)
	verr, ok = IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, verr.Fields, "email")
}

func TestUserService_DeleteByUsername(t *testing.T) {
	s := newUserService(t)
	ctx := context.Background()
	owner, err := s.Create(ctx, "owner", "owner@example.org", "longenough", models.RoleFaculty)
	require.NoError(t, err)
	_, err = s.Create(ctx, "idle", "idle@example.org", "longenough", models.RoleFaculty)
	require.NoError(t, err)
	insertProject(t, s.DB, owner, "10.1000/a")

	assert.ErrorIs(t, s.DeleteByUsername(ctx, "owner"), ErrInUse)
	assert.ErrorIs(t, s.DeleteByUsername(ctx, "ghost"), ErrNotFound)
	require.NoError(t, s.DeleteByUsername(ctx, "idle"))

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "owner", users[0].Username)
}

func TestUserService_EnsureBootstrapAdmin(t *testing.T) {
	s := newUserService(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureBootstrapAdmin(ctx, "root", "root@example.org", "changeme123"))
	require.NoError(t, s.EnsureBootstrapAdmin(ctx, "second", "second@example.org", "changeme123"))

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)

	got, err := s.Get(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "root", got.Username)
}
