package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/pkg/db"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (domain.Client, error) {
	client, err := s.newClient(req)
	if err != nil {
		return domain.Client{}, err
	}

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Client{}, domain.ErrDuplicateEmail
		}
		s.log.Error("failed to create client", zap.Error(err))
		return domain.Client{}, err
	}
	return client, nil
}

func (s *Service) FindOrCreate(ctx context.Context, req domain.IntakeRequest) (domain.Client, bool, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Client{}, false, err
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return domain.Client{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	create := domain.CreateClientRequest{
		Name:        req.Name,
		Email:       req.Email,
		Institution: req.Institution,
		Department:  req.Department,
		Phone:       req.Phone,
	}
	if req.ClaimsInternal {
		create.Metadata = map[string]any{domain.MetadataClaimsInternal: true}
	}

	client, err := s.Create(ctx, create)
	if errors.Is(err, domain.ErrDuplicateEmail) {
		// lost a race with another registration using the same email
		existing, err = s.repo.FindByEmail(ctx, s.db, email)
		if err != nil {
			return domain.Client{}, false, err
		}
		if existing != nil {
			return *existing, false, nil
		}
		return domain.Client{}, false, domain.ErrDuplicateEmail
	}
	if err != nil {
		return domain.Client{}, false, err
	}
	return client, true, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateClientRequest) (domain.Client, error) {
	client, err := s.GetByID(ctx, req.ID)
	if err != nil {
		return domain.Client{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Client{}, domain.ErrInvalidName
		}
		client.Name = name
	}
	if req.Institution != nil {
		client.Institution = strings.TrimSpace(*req.Institution)
	}
	if req.Department != nil {
		client.Department = strings.TrimSpace(*req.Department)
	}
	if req.Phone != nil {
		client.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IsInternal != nil {
		client.IsInternal = *req.IsInternal
	}
	if req.Metadata != nil {
		client.Metadata = datatypes.JSONMap(req.Metadata)
	}
	client.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, &client); err != nil {
		s.log.Error("failed to update client", zap.String("client_id", client.ID.String()), zap.Error(err))
		return domain.Client{}, err
	}
	return client, nil
}

func (s *Service) GetByID(ctx context.Context, raw string) (domain.Client, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.Client{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Client{}, err
	}
	if item == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClientRequest) (domain.ListClientResponse, error) {
	filter := domain.ListClientFilter{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		IsInternal: req.IsInternal,
	}
	pageSize := pagination.PageSize(req.PageSize)

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListClientResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(client *domain.Client) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        client.ID.String(),
			CreatedAt: client.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clients = append(clients, *item)
	}

	return domain.ListClientResponse{PageInfo: *pageInfo, Clients: clients}, nil
}

func (s *Service) newClient(req domain.CreateClientRequest) (domain.Client, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Client{}, domain.ErrInvalidName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Client{}, err
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := s.clock.Now()
	return domain.Client{
		ID:          s.genID.Generate(),
		Name:        name,
		Email:       email,
		Institution: strings.TrimSpace(req.Institution),
		Department:  strings.TrimSpace(req.Department),
		Phone:       strings.TrimSpace(req.Phone),
		IsInternal:  req.IsInternal,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
