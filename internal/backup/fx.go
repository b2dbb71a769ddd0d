package backup

import (
	"github.com/smallbiznis/seqdesk/internal/backup/repository"
	"github.com/smallbiznis/seqdesk/internal/backup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("backup.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
