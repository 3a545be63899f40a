// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Mailbox() MailboxConfig
	OTP() OTPConfig
	Form() FormConfig
	Flow() FlowConfig
	Profile() ProfileConfig
	Engine() EngineConfig
	Metrics() MetricsConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Flow Setters
	SetFlowTargetURL(string)
	SetFlowMaxAttempts(int)

	// Engine Setters
	SetEngineInstances(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
	MailboxCfg MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	OTPCfg     OTPConfig     `mapstructure:"otp" yaml:"otp"`
	FormCfg    FormConfig    `mapstructure:"form" yaml:"form"`
	FlowCfg    FlowConfig    `mapstructure:"flow" yaml:"flow"`
	ProfileCfg ProfileConfig `mapstructure:"profile" yaml:"profile"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }
func (c *Config) Mailbox() MailboxConfig { return c.MailboxCfg }
func (c *Config) OTP() OTPConfig         { return c.OTPCfg }
func (c *Config) Form() FormConfig       { return c.FormCfg }
func (c *Config) Flow() FlowConfig       { return c.FlowCfg }
func (c *Config) Profile() ProfileConfig { return c.ProfileCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetFlowTargetURL(u string) { c.FlowCfg.TargetURL = u }
func (c *Config) SetFlowMaxAttempts(n int)  { c.FlowCfg.MaxAttempts = n }
func (c *Config) SetEngineInstances(n int)  { c.EngineCfg.Instances = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance each engine instance launches.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU      bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args            []string `mapstructure:"args" yaml:"args"`
	WindowWidth     int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int      `mapstructure:"window_height" yaml:"window_height"`
}

// NetworkConfig holds page-load and HTTP client timing.
type NetworkConfig struct {
	Timeout           time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration     `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	IgnoreTLSErrors   bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
}

// MailboxConfig describes the disposable mailbox provider.
type MailboxConfig struct {
	BaseURL   string           `mapstructure:"base_url" yaml:"base_url"`
	APIKey    string           `mapstructure:"api_key" yaml:"-"`
	ExpiresIn time.Duration    `mapstructure:"expires_in" yaml:"expires_in"`
	RateLimit float64          `mapstructure:"rate_limit" yaml:"rate_limit"`
	Endpoints MailboxEndpoints `mapstructure:"endpoints" yaml:"endpoints"`
}

// MailboxEndpoints are path templates relative to BaseURL. "{ref}" and "{id}" are
// substituted per call. An empty retrieval endpoint means the capability is absent.
type MailboxEndpoints struct {
	Create string `mapstructure:"create" yaml:"create"`
	Wait   string `mapstructure:"wait" yaml:"wait"`
	List   string `mapstructure:"list" yaml:"list"`
	Get    string `mapstructure:"get" yaml:"get"`
}

// OTPConfig holds the polling windows used while waiting for a code.
type OTPConfig struct {
	FirstWindow  time.Duration `mapstructure:"first_window" yaml:"first_window"`
	SecondWindow time.Duration `mapstructure:"second_window" yaml:"second_window"`
	ResendWindow time.Duration `mapstructure:"resend_window" yaml:"resend_window"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Patterns     []string      `mapstructure:"patterns" yaml:"patterns"`
}

// FormConfig tunes the field committer.
type FormConfig struct {
	Attempts           int           `mapstructure:"attempts" yaml:"attempts"`
	LocatorTimeout     time.Duration `mapstructure:"locator_timeout" yaml:"locator_timeout"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	DialogTimeout      time.Duration `mapstructure:"dialog_timeout" yaml:"dialog_timeout"`
	CalendarContainers string        `mapstructure:"calendar_containers" yaml:"calendar_containers"`
}

// FormStep is one configured action on the registration page.
type FormStep struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Action   string   `mapstructure:"action" yaml:"action"` // fill, date or click
	Locators []string `mapstructure:"locators" yaml:"locators"`
	Value    string   `mapstructure:"value" yaml:"value"`
	Required bool     `mapstructure:"required" yaml:"required"`
}

// FlowConfig describes the sign-up flow the orchestrator walks through.
type FlowConfig struct {
	TargetURL         string        `mapstructure:"target_url" yaml:"target_url"`
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	ProvisionBackoff  time.Duration `mapstructure:"provision_backoff" yaml:"provision_backoff"`
	PostVerifyTimeout time.Duration `mapstructure:"post_verify_timeout" yaml:"post_verify_timeout"`
	ResendDelay       time.Duration `mapstructure:"resend_delay" yaml:"resend_delay"`

	StartButton      []string   `mapstructure:"start_button" yaml:"start_button"`
	EmailField       []string   `mapstructure:"email_field" yaml:"email_field"`
	SendOTPButton    []string   `mapstructure:"send_otp_button" yaml:"send_otp_button"`
	OTPField         []string   `mapstructure:"otp_field" yaml:"otp_field"`
	VerifyButton     []string   `mapstructure:"verify_button" yaml:"verify_button"`
	ResendButton     []string   `mapstructure:"resend_button" yaml:"resend_button"`
	PostVerifyMarker []string   `mapstructure:"post_verify_marker" yaml:"post_verify_marker"`
	Steps            []FormStep `mapstructure:"steps" yaml:"steps"`
}

// ProfileConfig points at optional reference tables. Empty paths use the embedded tables.
type ProfileConfig struct {
	NamesFile   string `mapstructure:"names_file" yaml:"names_file"`
	GendersFile string `mapstructure:"genders_file" yaml:"genders_file"`
	DatesFile   string `mapstructure:"dates_file" yaml:"dates_file"`
	PhonesFile  string `mapstructure:"phones_file" yaml:"phones_file"`
	Seed        int64  `mapstructure:"seed" yaml:"seed"`
}

// EngineConfig controls how many independent instances run side by side.
type EngineConfig struct {
	Instances      int           `mapstructure:"instances" yaml:"instances"`
	StartupStagger time.Duration `mapstructure:"startup_stagger" yaml:"startup_stagger"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// SetDefaults registers every default value on the provided viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "enroll-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 900)

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "2s")

	// -- Mailbox --
	v.SetDefault("mailbox.base_url", "https://gettestmail.com")
	v.SetDefault("mailbox.expires_in", "1h")
	v.SetDefault("mailbox.rate_limit", 2.0)
	v.SetDefault("mailbox.endpoints.create", "/api/gettestmail")
	v.SetDefault("mailbox.endpoints.wait", "/api/gettestmail/{id}")
	v.SetDefault("mailbox.endpoints.list", "")
	v.SetDefault("mailbox.endpoints.get", "")

	// -- OTP --
	v.SetDefault("otp.first_window", "120s")
	v.SetDefault("otp.second_window", "60s")
	v.SetDefault("otp.resend_window", "120s")
	v.SetDefault("otp.poll_interval", "3s")

	// -- Form --
	v.SetDefault("form.attempts", 3)
	v.SetDefault("form.locator_timeout", "6s")
	v.SetDefault("form.settle_delay", "1s")
	v.SetDefault("form.dialog_timeout", "5s")
	v.SetDefault("form.calendar_containers", DefaultCalendarContainers)

	// -- Flow --
	v.SetDefault("flow.target_url", "")
	v.SetDefault("flow.max_attempts", 0)
	v.SetDefault("flow.provision_backoff", "2s")
	v.SetDefault("flow.post_verify_timeout", "6s")
	v.SetDefault("flow.resend_delay", "40s")
	v.SetDefault("flow.start_button", []string{
		"//button[contains(normalize-space(.), 'Email OTP')]",
		"//a[contains(normalize-space(.), 'Email OTP')]",
	})
	v.SetDefault("flow.email_field", []string{
		"//input[@type='email']",
		"//input[contains(@placeholder, 'mail')]",
		"//input[contains(@name, 'email')]",
	})
	v.SetDefault("flow.send_otp_button", []string{
		"//button[contains(normalize-space(.), 'Send OTP')]",
		"//input[@type='button' and contains(@value, 'Send OTP')]",
	})
	v.SetDefault("flow.otp_field", []string{
		"//input[contains(@placeholder, 'OTP')]",
		"//input[contains(@name, 'otp')]",
		"//input[@autocomplete='one-time-code']",
	})
	v.SetDefault("flow.verify_button", []string{
		"//button[contains(normalize-space(.), 'Verify')]",
	})
	v.SetDefault("flow.resend_button", []string{
		"//button[contains(normalize-space(.), 'Resend')]",
		"//a[contains(normalize-space(.), 'Resend')]",
	})
	v.SetDefault("flow.post_verify_marker", []string{
		"//input[contains(@placeholder, 'Full Name')]",
		"//input[contains(@name, 'name')]",
	})
	v.SetDefault("flow.steps", DefaultSteps())

	// -- Profile --
	v.SetDefault("profile.seed", 0)

	// -- Engine --
	v.SetDefault("engine.instances", 2)
	v.SetDefault("engine.startup_stagger", "1s")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9464")
}

// DefaultCalendarContainers matches the popup containers rendered by the common
// datepicker widgets.
const DefaultCalendarContainers = "//div[contains(@class,'datepicker') or contains(@class,'calendar')]"

// DefaultSteps returns the profile steps used when none are configured.
func DefaultSteps() []FormStep {
	return []FormStep{
		{Name: "Full Name", Action: "fill", Value: "{name}", Locators: []string{
			"//input[contains(@placeholder, 'Full Name')]",
			"//input[contains(@name, 'name')]",
		}},
		{Name: "Date of Birth", Action: "date", Value: "{dob}", Locators: []string{
			"//input[contains(@placeholder, 'Date')]",
			"//input[contains(@name, 'dob')]",
			"//input[@type='date']",
		}},
		{Name: "Phone", Action: "fill", Value: "{phone}", Locators: []string{
			"//input[@type='tel']",
			"//input[contains(@name, 'phone')]",
		}},
		{Name: "Gender", Action: "click", Value: "{gender}", Locators: []string{
			"//label[normalize-space(.)='{gender}']",
			"//input[@type='radio' and @value='{gender}']",
		}},
		{Name: "Submit", Action: "click", Required: true, Locators: []string{
			"//button[@type='submit']",
			"//button[contains(normalize-space(.), 'Submit')]",
		}},
	}
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of defaults into a fresh struct cannot fail on well-formed defaults.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// NewConfigFromViper unmarshals and validates a configuration from a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("mailbox.api_key", "ENROLL_MAILBOX_API_KEY", "GETTESTMAIL_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.MailboxCfg.APIKey == "" {
		cfg.MailboxCfg.APIKey = os.Getenv("GETTESTMAIL_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.Instances <= 0 {
		return fmt.Errorf("engine.instances must be a positive integer")
	}
	if c.FlowCfg.MaxAttempts < 0 {
		return fmt.Errorf("flow.max_attempts must not be negative")
	}
	if c.FormCfg.Attempts <= 0 {
		return fmt.Errorf("form.attempts must be a positive integer")
	}
	if c.OTPCfg.PollInterval <= 0 {
		return fmt.Errorf("otp.poll_interval must be a positive duration")
	}
	if c.MailboxCfg.RateLimit <= 0 {
		return fmt.Errorf("mailbox.rate_limit must be positive")
	}
	if err := c.MailboxCfg.Endpoints.Validate(); err != nil {
		return fmt.Errorf("mailbox.endpoints invalid: %w", err)
	}
	for i, step := range c.FlowCfg.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("flow.steps[%d] invalid: %w", i, err)
		}
	}
	return nil
}

// Validate checks that the provider can be provisioned and read from.
func (e *MailboxEndpoints) Validate() error {
	if e.Create == "" {
		return fmt.Errorf("create endpoint is required")
	}
	if e.Wait == "" && e.List == "" && e.Get == "" {
		return fmt.Errorf("at least one of wait, list or get must be configured")
	}
	return nil
}

// Validate checks a single form step.
func (s *FormStep) Validate() error {
	switch strings.ToLower(s.Action) {
	case "fill", "date", "click":
	default:
		return fmt.Errorf("unknown action %q for step %q", s.Action, s.Name)
	}
	if len(s.Locators) == 0 {
		return fmt.Errorf("step %q has no locators", s.Name)
	}
	return nil
}

// RequireTarget reports an error when no target URL has been configured.
func (f FlowConfig) RequireTarget() error {
	if f.TargetURL == "" {
		return fmt.Errorf("flow.target_url is required (set it in the config file, ENROLL_FLOW_TARGET_URL or --target)")
	}
	return nil
}
