package providers

import (
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	"github.com/smallbiznis/seqdesk/internal/providers/pdf"
	"github.com/smallbiznis/seqdesk/internal/providers/redisclient"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	redisclient.Module,
	storage.Module,
)
