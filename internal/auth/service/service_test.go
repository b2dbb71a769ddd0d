package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v4"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	"github.com/smallbiznis/seqdesk/internal/auth/domain"
	"github.com/smallbiznis/seqdesk/internal/auth/password"
	"github.com/smallbiznis/seqdesk/internal/auth/repository"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, cfg config.Config) (*Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AdminUser{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	if cfg.AuthJWTSecret == "" {
		cfg.AuthJWTSecret = "test-secret-value"
	}
	svc := New(Params{Log: zap.NewNop(), Cfg: cfg, Repo: repository.New(db), GenID: node, Clock: fake}).(*Service)
	svc.hashing = password.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	return svc, fake
}

func TestLoginIssuesTokenThatAuthenticates(t *testing.T) {
	svc, fake := newTestService(t, config.Config{})
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "Alice@Core.org", Name: "Alice", Password: "correct-password"})
	require.NoError(t, err)
	assert.Equal(t, "alice@core.org", user.Email)
	assert.Equal(t, domain.RoleStaff, user.Role)

	res, err := svc.Login(ctx, domain.LoginRequest{Email: "alice@core.org", Password: "correct-password"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, fake.Now().Add(12*time.Hour), res.ExpiresAt)
	require.NotNil(t, res.User.LastLoginAt)

	principal, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, domain.RoleStaff, principal.Role)

	fake.Advance(12*time.Hour + time.Second)
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t, config.Config{})
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "bob@core.org", Password: "strong-password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "bob@core.org", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "nobody@core.org", Password: "strong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t, config.Config{})
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "carol@core.org", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "carol@core.org", Password: "long-enough", Role: "owner"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "carol@core.org", Password: "long-enough", Role: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.Equal(t, "carol", user.Name)

	_, err = svc.CreateUser(ctx, domain.CreateUserRequest{Email: "carol@core.org", Password: "long-enough"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	svc, fake := newTestService(t, config.Config{})
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "dan@core.org", Password: "strong-password"})
	require.NoError(t, err)

	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(fake.Now().Add(time.Hour)),
		},
		Role: domain.RoleAdmin,
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, unsigned)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	svc, _ := newTestService(t, config.Config{
		BootstrapAdminEmail:    "root@core.org",
		BootstrapAdminName:     "Core Admin",
		BootstrapAdminPassword: "bootstrap-pass",
	})
	ctx := context.Background()

	require.NoError(t, svc.EnsureBootstrapAdmin(ctx))
	require.NoError(t, svc.EnsureBootstrapAdmin(ctx))

	count, err := svc.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	res, err := svc.Login(ctx, domain.LoginRequest{Email: "root@core.org", Password: "bootstrap-pass"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, res.User.Role)
}

func TestCurrentUserAndChangePassword(t *testing.T) {
	svc, _ := newTestService(t, config.Config{})
	ctx := context.Background()

	_, err := svc.CurrentUser(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	user, err := svc.CreateUser(ctx, domain.CreateUserRequest{Email: "erin@core.org", Password: "first-password"})
	require.NoError(t, err)

	actorCtx := obscontext.WithActor(ctx, string(auditdomain.ActorTypeAdmin), user.ID.String())
	me, err := svc.CurrentUser(actorCtx)
	require.NoError(t, err)
	assert.Equal(t, "erin@core.org", me.Email)

	assert.ErrorIs(t, svc.ChangePassword(actorCtx, "wrong", "second-password"), domain.ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(actorCtx, "first-password", "second-password"))

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "erin@core.org", Password: "first-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, domain.LoginRequest{Email: "erin@core.org", Password: "second-password"})
	require.NoError(t, err)
}
