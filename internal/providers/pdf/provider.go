package pdf

import (
	"context"
	"fmt"

	"github.com/smallbiznis/seqdesk/internal/document"
)

type Provider interface {
	GenerateQuotation(ctx context.Context, view document.View) ([]byte, error)
	GenerateChargeSlip(ctx context.Context, view document.View) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateQuotation(ctx context.Context, view document.View) ([]byte, error) {
	return nil, nil
}

func (p *NoOpProvider) GenerateChargeSlip(ctx context.Context, view document.View) ([]byte, error) {
	return nil, nil
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateQuotation(ctx context.Context, view document.View) ([]byte, error) {
	if view.Title == "" {
		view.Title = string(document.KindQuotation)
	}
	return p.generate(ctx, view)
}

func (p *PDFProvider) GenerateChargeSlip(ctx context.Context, view document.View) ([]byte, error) {
	if view.Title == "" {
		view.Title = string(document.KindChargeSlip)
	}
	return p.generate(ctx, view)
}

func (p *PDFProvider) generate(ctx context.Context, view document.View) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := build(view).Generate()
	if err != nil {
		return nil, fmt.Errorf("generate %s pdf: %w", view.Title, err)
	}
	return doc.GetBytes(), nil
}
