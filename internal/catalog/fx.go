package catalog

import (
	"github.com/smallbiznis/seqdesk/internal/catalog/cache"
	"github.com/smallbiznis/seqdesk/internal/catalog/domain"
	"github.com/smallbiznis/seqdesk/internal/catalog/repository"
	"github.com/smallbiznis/seqdesk/internal/catalog/service"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) lineitem.Catalog { return svc }),
)
