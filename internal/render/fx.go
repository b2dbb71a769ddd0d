package render

import "go.uber.org/fx"

var Module = fx.Module("render.summary",
	fx.Provide(NewSummaryRenderer),
)
