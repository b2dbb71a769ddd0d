package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/project/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Clients clientdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	clients clientdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("project.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		clients: p.Clients,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error) {
	client, created, err := s.clients.FindOrCreate(ctx, req.Client)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	project, err := s.create(ctx, client.ID, domain.CreateProjectRequest{
		Title:       req.Title,
		Description: req.Description,
		Organism:    req.Organism,
		SampleCount: req.SampleCount,
		Team:        req.Team,
	})
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	s.log.Info("project registered",
		zap.String("project_id", project.ID.String()),
		zap.String("client_id", client.ID.String()),
		zap.Bool("client_created", created),
	)
	return domain.RegisterResponse{Project: project, Client: client, ClientCreated: created}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateProjectRequest) (domain.Project, error) {
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		return domain.Project{}, err
	}
	return s.create(ctx, client.ID, req)
}

func (s *Service) create(ctx context.Context, clientID snowflake.ID, req domain.CreateProjectRequest) (domain.Project, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Project{}, domain.ErrInvalidTitle
	}
	if req.SampleCount < 0 {
		return domain.Project{}, domain.ErrInvalidSampleCount
	}

	now := s.clock.Now()
	project := domain.Project{
		ID:          s.genID.Generate(),
		ClientID:    clientID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Organism:    strings.TrimSpace(req.Organism),
		SampleCount: req.SampleCount,
		Status:      domain.StatusRegistered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	members := make([]domain.TeamMember, 0, len(req.Team))
	for _, input := range req.Team {
		member, err := s.newMember(project.ID, input, now)
		if err != nil {
			return domain.Project{}, err
		}
		members = append(members, member)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &project); err != nil {
			return err
		}
		return s.repo.InsertMembers(ctx, tx, members)
	})
	if err != nil {
		s.log.Error("failed to create project", zap.Error(err))
		return domain.Project{}, err
	}

	project.Team = members
	return project, nil
}

func (s *Service) Get(ctx context.Context, raw string) (domain.Project, error) {
	project, err := s.find(ctx, raw)
	if err != nil {
		return domain.Project{}, err
	}
	members, err := s.repo.ListMembers(ctx, s.db, project.ID)
	if err != nil {
		return domain.Project{}, err
	}
	project.Team = members
	return project, nil
}

func (s *Service) List(ctx context.Context, req domain.ListProjectRequest) (domain.ListProjectResponse, error) {
	filter := domain.ListProjectFilter{}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListProjectResponse{}, domain.ErrInvalidID
		}
		filter.ClientID = id.Int64()
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return domain.ListProjectResponse{}, err
		}
		filter.Status = status
	}

	pageSize := pagination.PageSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListProjectResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(p *domain.Project) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        p.ID.String(),
			CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	projects := make([]domain.Project, 0, len(items))
	for _, item := range items {
		if item != nil {
			projects = append(projects, *item)
		}
	}
	return domain.ListProjectResponse{PageInfo: *pageInfo, Projects: projects}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, raw string, rawStatus string) (domain.Project, error) {
	status, err := parseStatus(rawStatus)
	if err != nil {
		return domain.Project{}, err
	}
	project, err := s.find(ctx, raw)
	if err != nil {
		return domain.Project{}, err
	}
	if project.Status == status {
		return project, nil
	}
	if !project.Status.CanTransition(status) {
		return domain.Project{}, domain.ErrInvalidTransition
	}

	project.Status = status
	project.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, s.db, &project); err != nil {
		s.log.Error("failed to update project status",
			zap.String("project_id", project.ID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return domain.Project{}, err
	}
	return project, nil
}

func (s *Service) AddMember(ctx context.Context, raw string, input domain.MemberInput) (domain.TeamMember, error) {
	project, err := s.find(ctx, raw)
	if err != nil {
		return domain.TeamMember{}, err
	}
	member, err := s.newMember(project.ID, input, s.clock.Now())
	if err != nil {
		return domain.TeamMember{}, err
	}
	if err := s.repo.InsertMembers(ctx, s.db, []domain.TeamMember{member}); err != nil {
		return domain.TeamMember{}, err
	}
	return member, nil
}

func (s *Service) find(ctx context.Context, raw string) (domain.Project, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.Project{}, domain.ErrInvalidID
	}
	project, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Project{}, err
	}
	if project == nil {
		return domain.Project{}, domain.ErrNotFound
	}
	return *project, nil
}

func (s *Service) newMember(projectID snowflake.ID, input domain.MemberInput, now time.Time) (domain.TeamMember, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.TeamMember{}, domain.ErrInvalidMember
	}
	return domain.TeamMember{
		ID:        s.genID.Generate(),
		ProjectID: projectID,
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Role:      strings.TrimSpace(input.Role),
		CreatedAt: now,
	}, nil
}

func parseStatus(raw string) (domain.Status, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case domain.StatusRegistered, domain.StatusActive, domain.StatusCompleted, domain.StatusArchived:
		return status, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}
