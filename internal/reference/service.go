package reference

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEmptyTemplate      = errors.New("empty_reference_template")
	ErrSequenceContention = errors.New("reference_sequence_contention")
)

type Params struct {
	fx.In

	Repo  domain.Repository
	Clock clock.Clock
	Log   *zap.Logger
}

// Generator issues human-readable document references.
type Generator struct {
	repo  domain.Repository
	clock clock.Clock
	log   *zap.Logger
}

func NewGenerator(p Params) *Generator {
	return &Generator{
		repo:  p.Repo,
		clock: p.Clock,
		log:   p.Log.Named("reference.generator"),
	}
}

// Next allocates the next reference for kind inside tx. Rolling back tx
// returns the number, so issued references stay gap free.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, kind domain.Kind, template string) (string, time.Time, error) {
	if template == "" {
		return "", time.Time{}, ErrEmptyTemplate
	}

	now := g.clock.Now()
	period := Period(template, now)
	seq, err := g.repo.Increment(ctx, tx, string(kind), period, now)
	if err != nil {
		g.log.Error("failed to allocate reference", zap.String("kind", string(kind)), zap.Error(err))
		return "", time.Time{}, err
	}

	ref, err := Format(template, now, seq)
	if err != nil {
		return "", time.Time{}, err
	}
	return ref, now, nil
}
