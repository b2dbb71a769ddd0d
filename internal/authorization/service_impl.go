package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectService    = "service"
	ObjectClient     = "client"
	ObjectProject    = "project"
	ObjectInquiry    = "inquiry"
	ObjectQuotation  = "quotation"
	ObjectChargeSlip = "charge_slip"
	ObjectBackup     = "backup"
	ObjectAuditLog   = "audit_log"
	ObjectAdminUser  = "admin_user"
)

const (
	ActionServiceView    = "service.view"
	ActionServiceManage  = "service.manage"
	ActionServiceExport  = "service.export"
	ActionClientView     = "client.view"
	ActionClientManage   = "client.manage"
	ActionProjectView    = "project.view"
	ActionProjectManage  = "project.manage"
	ActionInquiryView    = "inquiry.view"
	ActionInquiryReview  = "inquiry.review"
	ActionInquiryConvert = "inquiry.convert"

	ActionQuotationView    = "quotation.view"
	ActionQuotationDraft   = "quotation.draft"
	ActionQuotationSubmit  = "quotation.submit"
	ActionQuotationRender  = "quotation.render"
	ActionQuotationSend    = "quotation.send"
	ActionQuotationApprove = "quotation.approve"
	ActionQuotationReject  = "quotation.reject"

	ActionChargeSlipView     = "charge_slip.view"
	ActionChargeSlipCreate   = "charge_slip.create"
	ActionChargeSlipMarkPaid = "charge_slip.mark_paid"
	ActionChargeSlipRender   = "charge_slip.render"
	ActionChargeSlipVoid     = "charge_slip.void"

	ActionBackupRun  = "backup.run"
	ActionBackupView = "backup.view"

	ActionAuditLogView = "audit_log.view"

	ActionAdminUserCreate = "admin_user.create"
)

const (
	roleStaff = "role:staff"
	roleAdmin = "role:admin"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads policies from the casbin_rule table and seeds the
// built-in role policies.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, subject Subject, object string, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	actor, roleName, err := resolveSubject(subject)
	if err != nil {
		s.auditDenied(ctx, subject, object, action, err.Error())
		return err
	}
	if err := s.ensureGrouping(actor, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(actor, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, subject, object, action, "policy")
		return ErrForbidden
	}
	return nil
}

func resolveSubject(subject Subject) (string, string, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(subject.UserID))
	if err != nil || id == 0 {
		return "", "", ErrInvalidActor
	}
	role := strings.ToLower(strings.TrimSpace(subject.Role))
	switch role {
	case "admin", "staff":
	default:
		return "", "", ErrInvalidActor
	}
	return fmt.Sprintf("user:%s", id.String()), fmt.Sprintf("role:%s", role), nil
}

// ensureGrouping keeps exactly one role link per user so a role change
// applies on the next request.
func (s *ServiceImpl) ensureGrouping(actor string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, actor)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(actor, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(actor, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, subject Subject, object string, action string, reason string) {
	if s.auditSvc == nil {
		return
	}
	var actorID *string
	if id := strings.TrimSpace(subject.UserID); id != "" {
		actorID = &id
	}
	targetID := object
	err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeAdmin), actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   subject.Role,
		"reason": reason,
	})
	if err != nil {
		s.log.Warn("failed to audit denied request", zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Staff run day-to-day intake and drafting
		{roleStaff, ObjectService, ActionServiceView},
		{roleStaff, ObjectService, ActionServiceManage},
		{roleStaff, ObjectService, ActionServiceExport},
		{roleStaff, ObjectClient, ActionClientView},
		{roleStaff, ObjectClient, ActionClientManage},
		{roleStaff, ObjectProject, ActionProjectView},
		{roleStaff, ObjectProject, ActionProjectManage},
		{roleStaff, ObjectInquiry, ActionInquiryView},
		{roleStaff, ObjectInquiry, ActionInquiryReview},
		{roleStaff, ObjectInquiry, ActionInquiryConvert},
		{roleStaff, ObjectQuotation, ActionQuotationView},
		{roleStaff, ObjectQuotation, ActionQuotationDraft},
		{roleStaff, ObjectQuotation, ActionQuotationSubmit},
		{roleStaff, ObjectQuotation, ActionQuotationRender},
		{roleStaff, ObjectQuotation, ActionQuotationSend},
		{roleStaff, ObjectChargeSlip, ActionChargeSlipView},
		{roleStaff, ObjectChargeSlip, ActionChargeSlipCreate},
		{roleStaff, ObjectChargeSlip, ActionChargeSlipMarkPaid},
		{roleStaff, ObjectChargeSlip, ActionChargeSlipRender},

		// Admin approvals and operations
		{roleAdmin, ObjectQuotation, ActionQuotationApprove},
		{roleAdmin, ObjectQuotation, ActionQuotationReject},
		{roleAdmin, ObjectChargeSlip, ActionChargeSlipVoid},
		{roleAdmin, ObjectBackup, ActionBackupRun},
		{roleAdmin, ObjectBackup, ActionBackupView},
		{roleAdmin, ObjectAuditLog, ActionAuditLogView},
		{roleAdmin, ObjectAdminUser, ActionAdminUserCreate},
	}

	for _, policy := range policies {
		if has, err := enforcer.HasPolicy(policy); err != nil {
			return err
		} else if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// admins can do everything staff can
	if has, err := enforcer.HasGroupingPolicy(roleAdmin, roleStaff); err != nil {
		return err
	} else if !has {
		if _, err := enforcer.AddGroupingPolicy(roleAdmin, roleStaff); err != nil {
			return err
		}
	}
	return nil
}
