package chargeslip

import (
	"github.com/smallbiznis/seqdesk/internal/chargeslip/repository"
	"github.com/smallbiznis/seqdesk/internal/chargeslip/service"
	"go.uber.org/fx"
)

var Module = fx.Module("chargeslip.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
