package email

import (
	"context"

	"go.uber.org/zap"
)

// Template names match files under templates/ without the .html suffix.
const (
	TemplateInquiryReceived = "inquiry_received"
	TemplateInquiryReminder = "inquiry_reminder"
	TemplateQuotationSent   = "quotation_sent"
	TemplateBackupReport    = "backup_report"
)

// subjects builds the default subject line per template. A "subject" key
// in the template data wins over these.
var subjects = map[string]func(data map[string]any) string{
	TemplateInquiryReceived: func(data map[string]any) string {
		if code, ok := data["tracking_code"].(string); ok && code != "" {
			return "We received your inquiry (" + code + ")"
		}
		return "We received your inquiry"
	},
	TemplateInquiryReminder: func(map[string]any) string { return "Inquiries awaiting review" },
	TemplateQuotationSent: func(data map[string]any) string {
		if ref, ok := data["reference"].(string); ok && ref != "" {
			return "Quotation " + ref
		}
		return "Your quotation"
	},
	TemplateBackupReport: func(map[string]any) string { return "Backup report" },
}

func defaultSubject(templateName string, data map[string]any) string {
	if build, ok := subjects[templateName]; ok {
		return build(data)
	}
	return "Notification from the sequencing center"
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// NoOpProvider drops mail when SMTP is not configured. It still renders
// templates so a broken template fails the same way in every environment.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoOpProvider{log: log}
}

func (p *NoOpProvider) Send(_ context.Context, to []string, subject string, _ string) error {
	p.logger().Debug("email dropped", zap.Int("recipients", len(to)), zap.String("subject", subject))
	return nil
}

func (p *NoOpProvider) SendTemplate(_ context.Context, to []string, templateName string, data map[string]any) error {
	if _, _, err := Render(templateName, data); err != nil {
		return err
	}
	p.logger().Debug("email dropped", zap.Int("recipients", len(to)), zap.String("template", templateName))
	return nil
}

func (p *NoOpProvider) logger() *zap.Logger {
	if p == nil || p.log == nil {
		return zap.NewNop()
	}
	return p.log
}
