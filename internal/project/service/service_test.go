package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	clientrepo "github.com/smallbiznis/seqdesk/internal/client/repository"
	clientservice "github.com/smallbiznis/seqdesk/internal/client/service"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/project/domain"
	"github.com/smallbiznis/seqdesk/internal/project/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&clientdomain.Client{}, &domain.Project{}, &domain.TeamMember{}))

	node, _ := snowflake.NewNode(1)
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	clients := clientservice.New(clientservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: clientrepo.Provide()})
	return New(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: repository.Provide(), Clients: clients})
}

func TestRegisterReusesClient(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, domain.RegisterRequest{
		Client: clientdomain.IntakeRequest{Name: "Dr. Reyes", Email: "reyes@uni.edu"},
		Title:       "Rice drought tolerance",
		SampleCount: 24,
		Team: []domain.MemberInput{
			{Name: "Lea", Email: "Lea@uni.edu", Role: "RA"},
			{Name: "Migs"},
		},
	})
	require.NoError(t, err)
	assert.True(t, first.ClientCreated)
	assert.Equal(t, domain.StatusRegistered, first.Project.Status)
	assert.Len(t, first.Project.Team, 2)

	second, err := svc.Register(ctx, domain.RegisterRequest{
		Client: clientdomain.IntakeRequest{Name: "Reyes", Email: "REYES@uni.edu"},
		Title:  "Mangrove metagenome",
	})
	require.NoError(t, err)
	assert.False(t, second.ClientCreated)
	assert.Equal(t, first.Client.ID, second.Client.ID)

	got, err := svc.Get(ctx, first.Project.ID.String())
	require.NoError(t, err)
	require.Len(t, got.Team, 2)
	assert.Equal(t, "lea@uni.edu", got.Team[0].Email)

	list, err := svc.List(ctx, domain.ListProjectRequest{ClientID: first.Client.ID.String()})
	require.NoError(t, err)
	assert.Len(t, list.Projects, 2)
	assert.False(t, list.HasMore)
}

func TestRegisterIgnoresSelfDeclaredInternal(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	var req domain.RegisterRequest
	require.NoError(t, json.Unmarshal([]byte(`{"client":{"name":"Outsider","email":"x@corp.example","is_internal":true,"claims_internal":true},"title":"WGS run"}`), &req))

	res, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.ClientCreated)
	assert.False(t, res.Client.IsInternal)
	assert.Equal(t, true, res.Client.Metadata[clientdomain.MetadataClaimsInternal])
}

func TestRegisterValidation(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{
		Client: clientdomain.IntakeRequest{Name: "X", Email: "x@y.org"},
		Title:  "  ",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	_, err = svc.Register(ctx, domain.RegisterRequest{
		Client: clientdomain.IntakeRequest{Name: "X", Email: "x@y.org"},
		Title:  "Ok",
		Team:   []domain.MemberInput{{Name: ""}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMember)
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, domain.RegisterRequest{
		Client: clientdomain.IntakeRequest{Name: "Kim", Email: "kim@lab.org"},
		Title:  "Exome panel",
	})
	require.NoError(t, err)
	id := res.Project.ID.String()

	_, err = svc.UpdateStatus(ctx, id, "completed")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	p, err := svc.UpdateStatus(ctx, id, "ACTIVE")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, p.Status)

	p, err = svc.UpdateStatus(ctx, id, "completed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)

	_, err = svc.UpdateStatus(ctx, id, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	member, err := svc.AddMember(ctx, id, domain.MemberInput{Name: "Jo", Role: "PI"})
	require.NoError(t, err)
	assert.Equal(t, res.Project.ID, member.ProjectID)

	_, err = svc.Get(ctx, "123")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
