package config

import (
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DocumentProfile is the letterhead printed on quotations and charge slips.
type DocumentProfile struct {
	CenterName          string      `mapstructure:"centerName"`
	Department          string      `mapstructure:"department"`
	Address             []string    `mapstructure:"address"`
	Email               string      `mapstructure:"email"`
	Phone               string      `mapstructure:"phone"`
	Currency            string      `mapstructure:"currency"`
	QuotationValidDays  int         `mapstructure:"quotationValidDays"`
	QuotationRefFormat  string      `mapstructure:"quotationRefFormat"`
	ChargeSlipRefFormat string      `mapstructure:"chargeSlipRefFormat"`
	Bank                BankDetails `mapstructure:"bank"`
	Signatories         []Signatory `mapstructure:"signatories"`
	Terms               []string    `mapstructure:"terms"`
}

type BankDetails struct {
	Name          string `mapstructure:"name"`
	AccountName   string `mapstructure:"accountName"`
	AccountNumber string `mapstructure:"accountNumber"`
}

type Signatory struct {
	Name  string `mapstructure:"name"`
	Title string `mapstructure:"title"`
}

func DefaultDocumentProfile() DocumentProfile {
	return DocumentProfile{
		CenterName:          "Genome Sequencing Core",
		Department:          "Research Services",
		Currency:            "PHP",
		QuotationValidDays:  30,
		QuotationRefFormat:  "Q-{YYYY}{MM}-{SEQ4}",
		ChargeSlipRefFormat: "CS-{YYYY}{MM}-{SEQ4}",
		Terms: []string{
			"Prices are valid for the period stated on this quotation.",
			"Turnaround time starts upon receipt of samples that pass QC.",
		},
	}
}

type DocumentProfileHolder struct {
	current atomic.Value // holds DocumentProfile
}

// NewStaticDocumentProfileHolder wraps a fixed profile. Tests and tools use it.
func NewStaticDocumentProfileHolder(profile DocumentProfile) *DocumentProfileHolder {
	holder := &DocumentProfileHolder{}
	holder.current.Store(profile)
	return holder
}

func NewDocumentProfileHolder(cfg Config) (*DocumentProfileHolder, error) {
	v := viper.New()

	if cfg.DocumentProfilePath != "" {
		v.SetConfigFile(cfg.DocumentProfilePath)
	} else {
		v.SetConfigName("document")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/seqdesk")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SEQDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDocumentProfile()
	v.SetDefault("document.centerName", defaults.CenterName)
	v.SetDefault("document.department", defaults.Department)
	v.SetDefault("document.currency", defaults.Currency)
	v.SetDefault("document.quotationValidDays", defaults.QuotationValidDays)
	v.SetDefault("document.quotationRefFormat", defaults.QuotationRefFormat)
	v.SetDefault("document.chargeSlipRefFormat", defaults.ChargeSlipRefFormat)
	v.SetDefault("document.terms", defaults.Terms)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	profile, err := decodeDocumentProfile(v)
	if err != nil {
		return nil, err
	}
	if err := validateDocumentProfile(profile); err != nil {
		return nil, err
	}

	holder := NewStaticDocumentProfileHolder(profile)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeDocumentProfile(v)
		if err != nil {
			log.Printf("[document-profile] reload failed: %v", err)
			return
		}
		if err := validateDocumentProfile(updated); err != nil {
			log.Printf("[document-profile] invalid profile ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[document-profile] reloaded from %s", filepath.Base(e.Name))
	})

	return holder, nil
}

func (h *DocumentProfileHolder) Get() DocumentProfile {
	return h.current.Load().(DocumentProfile)
}

// decodeDocumentProfile goes through Unmarshal so defaults merge with
// partially filled files.
func decodeDocumentProfile(v *viper.Viper) (DocumentProfile, error) {
	var root struct {
		Document DocumentProfile `mapstructure:"document"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return DocumentProfile{}, err
	}
	return root.Document, nil
}

func validateDocumentProfile(p DocumentProfile) error {
	if strings.TrimSpace(p.CenterName) == "" {
		return errors.New("document.centerName cannot be empty")
	}
	if p.QuotationValidDays <= 0 {
		return errors.New("document.quotationValidDays must be positive")
	}
	if !strings.Contains(p.QuotationRefFormat, "{SEQ") {
		return errors.New("document.quotationRefFormat must contain a {SEQ} token")
	}
	if !strings.Contains(p.ChargeSlipRefFormat, "{SEQ") {
		return errors.New("document.chargeSlipRefFormat must contain a {SEQ} token")
	}
	return nil
}
