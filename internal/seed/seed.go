// Package seed loads a starter service catalog into an empty database so a
// fresh install can price quotations right away.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"go.uber.org/zap"
)

func tier(minIncluded int64, rate int64) (*int64, *decimal.Decimal) {
	additional := decimal.NewFromInt(rate)
	return &minIncluded, &additional
}

// StarterCatalog returns the services created by EnsureStarterCatalog.
func StarterCatalog() []catalogdomain.CreateRequest {
	wgsMin, wgsRate := tier(9, 600)
	rnaMin, rnaRate := tier(9, 450)
	workshopMin, workshopRate := tier(10, 300)

	return []catalogdomain.CreateRequest{
		{
			Name:        "Illumina Whole Genome Sequencing",
			Description: "30x coverage, 150bp paired end",
			Category:    "Sequencing",
			ServiceType: "Sequencing",
			Unit:        "sample",
			Price:       decimal.NewFromInt(1200),
		},
		{
			Name:        "16S Amplicon Sequencing",
			Description: "V3-V4 region",
			Category:    "Sequencing",
			ServiceType: "Sequencing",
			Unit:        "sample",
			Price:       decimal.NewFromInt(85),
		},
		{
			Name:        "DNA Extraction",
			Category:    "Sample Preparation",
			ServiceType: "Sample Preparation",
			Unit:        "sample",
			Price:       decimal.NewFromInt(25),
		},
		{
			Name:               "WGS Variant Calling",
			Description:        "Alignment, variant calling and annotation",
			Category:           "Bioinformatics",
			ServiceType:        "Bioinformatics",
			Unit:               "project",
			Price:              decimal.NewFromInt(4000),
			TierMinIncluded:    wgsMin,
			TierAdditionalRate: wgsRate,
		},
		{
			Name:               "RNA-seq Differential Expression",
			Category:           "Bioinformatics",
			ServiceType:        "Bioinformatics",
			Unit:               "project",
			Price:              decimal.NewFromInt(3000),
			TierMinIncluded:    rnaMin,
			TierAdditionalRate: rnaRate,
		},
		{
			Name:               "NGS Data Analysis Workshop",
			Category:           "Training",
			ServiceType:        "Training",
			Unit:               "session",
			Price:              decimal.NewFromInt(5000),
			TierMinIncluded:    workshopMin,
			TierAdditionalRate: workshopRate,
		},
	}
}

// EnsureStarterCatalog creates the starter services when the catalog has
// no entries at all, archived ones included. It returns how many it created.
func EnsureStarterCatalog(ctx context.Context, svc catalogdomain.Service, log *zap.Logger) (int, error) {
	existing, err := svc.List(ctx, catalogdomain.ListFilter{})
	if err != nil {
		return 0, fmt.Errorf("list catalog: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, req := range StarterCatalog() {
		def, err := svc.Create(ctx, req)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", req.Name, err)
		}
		log.Info("seeded catalog service", zap.String("code", def.Code), zap.String("pricing_model", string(def.PricingModel)))
		created++
	}
	return created, nil
}
