package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	"github.com/smallbiznis/seqdesk/internal/auth/domain"
	"github.com/smallbiznis/seqdesk/internal/auth/password"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	tokenIssuer       = "seqdesk"
	tokenType         = "Bearer"
	minPasswordLength = 8
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock
	Audit auditdomain.Service `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	cfg      config.Config
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	audit    auditdomain.Service
	secret   []byte
	tokenTTL time.Duration
	hashing  password.Params
}

func New(p Params) domain.Service {
	ttl := p.Cfg.AuthTokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		log:      p.Log.Named("auth.service"),
		cfg:      p.Cfg,
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		audit:    p.Audit,
		secret:   []byte(p.Cfg.AuthJWTSecret),
		tokenTTL: ttl,
		hashing:  password.DefaultParams,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.AdminUser, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}
	role := domain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = domain.RoleStaff
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.HashWith(req.Password, s.hashing)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultDisplayName(email)
	}
	now := s.clock.Now()
	user := &domain.AdminUser{
		ID:           s.genID.Generate(),
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hashed,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.record(ctx, "admin_user.create", user.ID.String(), map[string]any{"email": email, "role": string(role)})
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	if len(s.secret) == 0 {
		return nil, domain.ErrSecretNotSet
	}
	email, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrUserDisabled
	}

	ok, err := password.Verify(req.Password, user.PasswordHash)
	if err != nil {
		s.log.Warn("stored password hash is unreadable", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.clock.Now()
	if password.NeedsRehash(user.PasswordHash, s.hashing) {
		if hashed, err := password.HashWith(req.Password, s.hashing); err == nil {
			if err := s.repo.UpdatePassword(ctx, user.ID, hashed, now); err != nil {
				s.log.Warn("failed to upgrade password hash", zap.Error(err))
			}
		}
	}
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("failed to record login", zap.Error(err))
	}
	user.LastLoginAt = &now

	expiresAt := now.Add(s.tokenTTL)
	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
		Role:  user.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	s.log.Info("admin logged in", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return &domain.LoginResult{Token: signed, TokenType: tokenType, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate checks signature and issuer with the jwt parser, then expiry
// against the service clock.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" || len(s.secret) == 0 {
		return nil, domain.ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &domain.Claims{}
	_, err := parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	if !claims.VerifyIssuer(tokenIssuer, true) {
		return nil, domain.ErrInvalidToken
	}
	if !claims.VerifyExpiresAt(s.clock.Now(), true) {
		return nil, domain.ErrTokenExpired
	}

	id, err := snowflake.ParseString(claims.Subject)
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrUserDisabled
	}

	// role changes take effect without waiting for the token to expire
	return &domain.Principal{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func (s *Service) CurrentUser(ctx context.Context) (*domain.AdminUser, error) {
	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType != string(auditdomain.ActorTypeAdmin) || actorID == "" {
		return nil, domain.ErrUnauthenticated
	}
	id, err := snowflake.ParseString(actorID)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ChangePassword(ctx context.Context, current string, next string) error {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	ok, err := password.Verify(current, user.PasswordHash)
	if err != nil || !ok {
		return domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(next)) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	hashed, err := password.HashWith(next, s.hashing)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hashed, s.clock.Now()); err != nil {
		return err
	}
	s.record(ctx, "admin_user.change_password", user.ID.String(), nil)
	return nil
}

func (s *Service) EnsureBootstrapAdmin(ctx context.Context) error {
	email := strings.TrimSpace(s.cfg.BootstrapAdminEmail)
	if email == "" || s.cfg.BootstrapAdminPassword == "" {
		return nil
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	user, err := s.CreateUser(ctx, domain.CreateUserRequest{
		Email:    email,
		Name:     s.cfg.BootstrapAdminName,
		Password: s.cfg.BootstrapAdminPassword,
		Role:     string(domain.RoleAdmin),
	})
	if err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", zap.String("email", user.Email))
	return nil
}

func (s *Service) record(ctx context.Context, action, targetID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.AuditLog(ctx, "", nil, action, "admin_user", &targetID, metadata); err != nil {
		s.log.Warn("failed to audit auth event", zap.String("action", action), zap.Error(err))
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidCredentials
	}
	return email, nil
}

func defaultDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
