package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/arnavshah/readiness-api-go/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testManager() *Manager {
	return NewManager("jwt-secret", "master-secret", bcrypt.MinCost)
}

func TestPasswordHash(t *testing.T) {
	m := testManager()
	hash, err := m.HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("battery staple", hash))
}

func TestToken_RoundTrip(t *testing.T) {
	m := testManager()
	token, err := m.CreateToken(&database.User{ID: "u1", Username: "ana", Role: models.RoleTeamLeader, Team: "alpha"})
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "u1", Role: models.RoleTeamLeader, Team: "alpha"}, claims.Actor())
	assert.Equal(t, "ana", claims.Username)
}

func TestToken_Rejected(t *testing.T) {
	m := testManager()
	token, err := m.CreateToken(&database.User{ID: "u1", Role: models.RoleWorker})
	require.NoError(t, err)

	other := NewManager("different", "", bcrypt.MinCost)
	_, err = other.VerifyToken(token)
	assert.Error(t, err)

	_, err = m.VerifyToken(token + "x")
	assert.Error(t, err)

	m.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
	expired, err := m.CreateToken(&database.User{ID: "u1", Role: models.RoleWorker})
	require.NoError(t, err)
	_, err = testManager().VerifyToken(expired)
	assert.Error(t, err)
}

func TestHMACKey(t *testing.T) {
	m := testManager()
	key := m.GenerateHMACKey("nightly-cron")
	assert.Equal(t, GenerateHMACKey([]byte("master-secret"), "nightly-cron"), key)

	id, err := m.VerifyHMACKey(key)
	require.NoError(t, err)
	assert.Equal(t, "nightly-cron", id)

	_, err = m.VerifyHMACKey("other-cron" + key[len("nightly-cron"):])
	assert.Error(t, err)

	_, err = m.VerifyHMACKey("no-signature")
	assert.Error(t, err)

	_, err = m.VerifyHMACKey("a.b.c")
	assert.Error(t, err)

	disabled := NewManager("jwt-secret", "", bcrypt.MinCost)
	_, err = disabled.VerifyHMACKey(GenerateHMACKey(nil, "nightly-cron"))
	assert.Error(t, err)
}

func TestEnsureAdminExists(t *testing.T) {
	db, err := database.Open(database.Options{DataPath: ":memory:", Silent: true})
	require.NoError(t, err)
	st := store.New(db)
	m := testManager()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, m.EnsureAdminExists(ctx, st, "", "", logger))
	admin, err := st.UserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, CheckPasswordHash("admin123", admin.PasswordHash))

	// a second call leaves the table alone
	require.NoError(t, m.EnsureAdminExists(ctx, st, "boss", "secret", logger))
	n, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
