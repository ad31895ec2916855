package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository"
	"github.com/talkincode/storefront/internal/repository/repotest"
)

func newService(t *testing.T) *Service {
	db := repotest.NewDB(t)
	return NewService(repository.NewGormStore(db).Users(), NewTokenMaker("test-secret", time.Hour))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Ann@Example.com ", Password: "correct horse", FirstName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.True(t, u.HasRole(domain.RoleUser))
	assert.False(t, u.HasRole(domain.RoleAdmin))
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{Email: "ann@example.com", Password: "another one"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	res, err := svc.Login(ctx, "ANN@example.com", "correct horse")
	require.NoError(t, err)
	require.NotNil(t, res.User.LastLoginAt)
	assert.NotEmpty(t, res.Token)

	claims, err := svc.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, []string{domain.RoleUser}, claims.Roles)

	stored, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)

	_, err = svc.Login(ctx, "ann@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "whatever1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "short"})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
}

func TestEnsureAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "admin@shop.test", "supersecret")
	require.NoError(t, err)
	assert.True(t, admin.HasRole(domain.RoleAdmin))

	again, err := svc.EnsureAdmin(ctx, "admin@shop.test", "ignored-password")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	_, err = svc.Login(ctx, "admin@shop.test", "supersecret")
	require.NoError(t, err)

	u, err := svc.Register(ctx, RegisterInput{Email: "ops@shop.test", Password: "password1"})
	require.NoError(t, err)
	promoted, err := svc.EnsureAdmin(ctx, "ops@shop.test", "unused-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, promoted.ID)
	assert.True(t, promoted.HasRole(domain.RoleAdmin))
	assert.True(t, promoted.HasRole(domain.RoleUser))
}

func TestTokenMaker(t *testing.T) {
	m := NewTokenMaker("k1", time.Minute)
	u := &domain.User{ID: 42, Email: "a@b.c"}
	u.SetRoles(domain.RoleAdmin)

	token, exp, err := m.Issue(u)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(domain.RoleAdmin))

	_, err = NewTokenMaker("k2", time.Minute).Parse(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "wrong secret")

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	expired := NewTokenMaker("k1", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(u)
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 42})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// staleLookup misses every email, as a concurrent registration would see it.
type staleLookup struct {
	repository.UserRepository
}

func (staleLookup) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func TestRegisterRaceReportsConflict(t *testing.T) {
	users := repository.NewGormStore(repotest.NewDB(t)).Users()
	svc := NewService(staleLookup{users}, NewTokenMaker("test-secret", time.Hour))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "race@example.com", Password: "first-password"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "race@example.com", Password: "second-password"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}
