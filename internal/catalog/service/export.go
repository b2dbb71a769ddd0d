package service

import (
	"context"
	"io"
	"strconv"

	"github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const catalogSheet = "Catalog"

var exportHeader = []any{
	"Code", "Name", "Category", "Type", "Unit", "Price", "Pricing Model",
	"Tier Min Included", "Tier Additional Rate", "Active",
}

// ExportXLSX writes the whole catalog, archived entries included, as a
// single-sheet workbook.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer) error {
	defs, err := s.List(ctx, domain.ListFilter{})
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn("failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", catalogSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(catalogSheet, "A1", &exportHeader); err != nil {
		return err
	}

	for i, def := range defs {
		minIncluded, rate := "", ""
		if tier := def.Tier(); tier != nil {
			minIncluded = strconv.FormatInt(tier.MinIncluded, 10)
			rate = tier.AdditionalRate.StringFixed(2)
		}
		price, _ := def.Price.Float64()
		row := []any{
			def.Code,
			def.Name,
			def.Category,
			def.ServiceType,
			def.Unit,
			price,
			string(def.PricingModel),
			minIncluded,
			rate,
			def.Active,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(catalogSheet, cell, &row); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
