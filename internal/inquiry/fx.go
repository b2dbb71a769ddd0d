package inquiry

import (
	"github.com/smallbiznis/seqdesk/internal/inquiry/repository"
	"github.com/smallbiznis/seqdesk/internal/inquiry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inquiry.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
