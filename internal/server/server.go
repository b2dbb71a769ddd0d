package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/seqdesk/internal/auth/domain"
	"github.com/smallbiznis/seqdesk/internal/authorization"
	backupdomain "github.com/smallbiznis/seqdesk/internal/backup/domain"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	chargeslipdomain "github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/internal/config"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/seqdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/seqdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/seqdesk/internal/observability/tracing"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	validate *validator.Validate

	authSvc       authdomain.Service
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	catalogSvc    catalogdomain.Service
	clientSvc     clientdomain.Service
	projectSvc    projectdomain.Service
	inquirySvc    inquirydomain.Service
	quotationSvc  quotationdomain.Service
	chargeSlipSvc chargeslipdomain.Service
	backupSvc     backupdomain.Service

	limiter ratelimit.Limiter
	metrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	AuthSvc       authdomain.Service
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	CatalogSvc    catalogdomain.Service
	ClientSvc     clientdomain.Service
	ProjectSvc    projectdomain.Service
	InquirySvc    inquirydomain.Service
	QuotationSvc  quotationdomain.Service
	ChargeSlipSvc chargeslipdomain.Service
	BackupSvc     backupdomain.Service
	Limiter       ratelimit.Limiter   `optional:"true"`
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		validate:      newValidator(),
		authSvc:       p.AuthSvc,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		catalogSvc:    p.CatalogSvc,
		clientSvc:     p.ClientSvc,
		projectSvc:    p.ProjectSvc,
		inquirySvc:    p.InquirySvc,
		quotationSvc:  p.QuotationSvc,
		chargeSlipSvc: p.ChargeSlipSvc,
		backupSvc:     p.BackupSvc,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
	}

	s.registerPortalRoutes()
	s.registerAuthRoutes()
	s.registerAdminRoutes()
	s.registerFallback()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPortalRoutes() {
	portal := s.engine.Group("/portal", PortalActor())

	portal.GET("/services", s.ListPortalServices)
	portal.POST("/inquiries", s.RateLimit("portal.inquiry"), s.SubmitInquiry)
	portal.GET("/inquiries/:code", s.RateLimit("portal.track"), s.TrackInquiry)
	portal.POST("/projects", s.RateLimit("portal.project"), s.RegisterProject)
	portal.POST("/quotations/preview", s.RateLimit("portal.preview"), s.PreviewQuotation)
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.RateLimit("auth.login"), s.Login)
	auth.GET("/me", s.AdminAuthRequired(), s.Me)
	auth.POST("/change-password", s.AdminAuthRequired(), s.ChangePassword)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminAuthRequired())

	services := admin.Group("/services")
	{
		services.GET("", s.authorize(authorization.ObjectService, authorization.ActionServiceView), s.ListServices)
		services.POST("", s.authorize(authorization.ObjectService, authorization.ActionServiceManage), s.CreateService)
		services.GET("/export", s.authorize(authorization.ObjectService, authorization.ActionServiceExport), s.ExportServices)
		services.GET("/:id", s.authorize(authorization.ObjectService, authorization.ActionServiceView), s.GetService)
		services.PATCH("/:id", s.authorize(authorization.ObjectService, authorization.ActionServiceManage), s.UpdateService)
		services.POST("/:id/archive", s.authorize(authorization.ObjectService, authorization.ActionServiceManage), s.ArchiveService)
	}

	clients := admin.Group("/clients")
	{
		clients.GET("", s.authorize(authorization.ObjectClient, authorization.ActionClientView), s.ListClients)
		clients.POST("", s.authorize(authorization.ObjectClient, authorization.ActionClientManage), s.CreateClient)
		clients.GET("/:id", s.authorize(authorization.ObjectClient, authorization.ActionClientView), s.GetClient)
		clients.PATCH("/:id", s.authorize(authorization.ObjectClient, authorization.ActionClientManage), s.UpdateClient)
	}

	projects := admin.Group("/projects")
	{
		projects.GET("", s.authorize(authorization.ObjectProject, authorization.ActionProjectView), s.ListProjects)
		projects.POST("", s.authorize(authorization.ObjectProject, authorization.ActionProjectManage), s.CreateProject)
		projects.GET("/:id", s.authorize(authorization.ObjectProject, authorization.ActionProjectView), s.GetProject)
		projects.PATCH("/:id/status", s.authorize(authorization.ObjectProject, authorization.ActionProjectManage), s.UpdateProjectStatus)
		projects.POST("/:id/members", s.authorize(authorization.ObjectProject, authorization.ActionProjectManage), s.AddProjectMember)
	}

	inquiries := admin.Group("/inquiries", DocumentScope("inquiry"))
	{
		inquiries.GET("", s.authorize(authorization.ObjectInquiry, authorization.ActionInquiryView), s.ListInquiries)
		inquiries.GET("/:id", s.authorize(authorization.ObjectInquiry, authorization.ActionInquiryView), s.GetInquiry)
		inquiries.POST("/:id/review", s.authorize(authorization.ObjectInquiry, authorization.ActionInquiryReview), s.ReviewInquiry)
		inquiries.POST("/:id/convert", s.authorize(authorization.ObjectInquiry, authorization.ActionInquiryConvert), s.ConvertInquiry)
	}

	quotations := admin.Group("/quotations", DocumentScope("quotation"))
	{
		quotations.POST("/preview", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationDraft), s.PreviewQuotation)
		quotations.GET("", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationView), s.ListQuotations)
		quotations.POST("", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationDraft), s.CreateQuotation)
		quotations.GET("/:id", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationView), s.GetQuotation)
		quotations.PUT("/:id/lines", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationDraft), s.ReplaceQuotationLines)
		quotations.POST("/:id/submit", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationSubmit), s.SubmitQuotation)
		quotations.POST("/:id/approve", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationApprove), s.ApproveQuotation)
		quotations.POST("/:id/reject", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationReject), s.RejectQuotation)
		quotations.GET("/:id/summary", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationView), s.GetQuotationSummary)
		quotations.POST("/:id/pdf", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationRender), s.RenderQuotationPDF)
		quotations.POST("/:id/send", s.authorize(authorization.ObjectQuotation, authorization.ActionQuotationSend), s.SendQuotation)
	}

	slips := admin.Group("/charge-slips", DocumentScope("charge_slip"))
	{
		slips.GET("", s.authorize(authorization.ObjectChargeSlip, authorization.ActionChargeSlipView), s.ListChargeSlips)
		slips.POST("", s.authorize(authorization.ObjectChargeSlip, authorization.ActionChargeSlipCreate), s.CreateChargeSlip)
		slips.POST("/from-quotation", s.authorize(authorization.ObjectChargeSlip, authorization.ActionChargeSlipCreate), s.CreateChargeSlipFromQuotation)
		slips.GET("/:id", s.authorize(authorization.ObjectChargeSlip, authorization.ActionChargeSlipView), s.GetChargeSlip)
		slips.POST("/:id/paid", s.authorize(authorization.ObjectChargeSlip, authorization.ActionChargeSlipMarkPaid), s.MarkChargeSlipPaid)
		slips.POST("/:id/void", s.authorize(authorization.ObjectChargeSlip, authorization.ActionChargeSlipVoid), s.VoidChargeSlip)
		slips.POST("/:id/pdf", s.authorize(authorization.ObjectChargeSlip, authorization.ActionChargeSlipRender), s.RenderChargeSlipPDF)
	}

	backups := admin.Group("/backups")
	{
		backups.GET("", s.authorize(authorization.ObjectBackup, authorization.ActionBackupView), s.ListBackups)
		backups.POST("", s.authorize(authorization.ObjectBackup, authorization.ActionBackupRun), s.RunBackup)
	}

	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	admin.POST("/users", s.authorize(authorization.ObjectAdminUser, authorization.ActionAdminUserCreate), s.CreateAdminUser)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
