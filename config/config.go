package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"chargecal/timecharge"
)

const (
	KeyAPIURL           = "api.url"
	KeyAPIToken         = "api.token"
	KeyAPITimeout       = "api.timeout"
	KeyBusinessTimezone = "business.timezone"
	KeyStoragePath      = "storage.path"
	KeyHolidaysFile     = "holidays.file"
	KeyLogLevel         = "log.level"
	KeyRules            = "rules"

	DefaultAPIURL      = "http://localhost:8080"
	DefaultStoragePath = "./chargecal.db"
)

type Config struct {
	API      APIConfig      `mapstructure:"api" validate:"required"`
	Business BusinessConfig `mapstructure:"business" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Holidays HolidaysConfig `mapstructure:"holidays"`
	Log      LogConfig      `mapstructure:"log"`
	Rules    []Rule         `mapstructure:"rules"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type BusinessConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type HolidaysConfig struct {
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Rule supplies reference fields for imported rows whose file name matches
// FileTemplate. Values present in a row win over the rule.
type Rule struct {
	Name         string `mapstructure:"name"`
	FileTemplate string `mapstructure:"file_template"`
	Kind         string `mapstructure:"kind"`
	ProjectID    string `mapstructure:"project_id"`
	ProjectCode  string `mapstructure:"project_code"`
	StageID      string `mapstructure:"stage_id"`
	Activity     string `mapstructure:"activity"`
	TaskID       string `mapstructure:"task_id"`
}

// Location resolves the business timezone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Business.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("business timezone %q: %w", name, err)
	}
	return loc, nil
}

// SetDefaults sets default values if not provided
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# chargecal configuration
api:
  url: "http://localhost:8080"
  token: ""
  timeout: 30s

business:
  timezone: "UTC"

storage:
  path: "./chargecal.db"

holidays:
  file: ""

log:
  level: "info"

rules: []
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := validateRules(cfg.Rules); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, DefaultAPIURL)
	v.SetDefault(KeyAPIToken, "")
	v.SetDefault(KeyAPITimeout, "30s")
	v.SetDefault(KeyBusinessTimezone, "UTC")
	v.SetDefault(KeyStoragePath, DefaultStoragePath)
	v.SetDefault(KeyHolidaysFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyRules, []map[string]any{})
}

func validateRules(rules []Rule) error {
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return fmt.Errorf("validation failed: rules[%d].name is required", i)
		}
		key := strings.ToLower(name)
		if _, exists := seen[key]; exists {
			return fmt.Errorf("validation failed: duplicate rule name %q", name)
		}
		seen[key] = struct{}{}

		if strings.TrimSpace(rule.FileTemplate) == "" {
			return fmt.Errorf("validation failed: rules[%d].file_template is required", i)
		}
		if strings.TrimSpace(rule.Kind) == "" {
			continue
		}
		kind, err := timecharge.ParseKind(rule.Kind)
		if err != nil || !kind.IsCharge() {
			return fmt.Errorf(
				"validation failed: rules[%d].kind %q is not supported (valid: external, internal, departmental)",
				i,
				rule.Kind,
			)
		}
	}
	return nil
}
