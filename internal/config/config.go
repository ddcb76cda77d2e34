package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"visawatch/pkg/types"
)

// Config captures everything needed to run the appointment monitor.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Booking   BookingConfig   `yaml:"booking"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Site      SiteConfig      `yaml:"site"`
	Browser   BrowserConfig   `yaml:"browser"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	State     StateConfig     `yaml:"state"`
	History   HistoryConfig   `yaml:"history"`
	Sitecheck SitecheckConfig `yaml:"sitecheck"`
	Pacing    PacingConfig    `yaml:"pacing"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AccountConfig holds the scheduling site credentials.
type AccountConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// BookingConfig bounds which discovered dates are worth booking.
type BookingConfig struct {
	Facility       string     `yaml:"facility"`
	Earliest       types.Date `yaml:"earliest_date"`
	Latest         types.Date `yaml:"latest_date"`
	CurrentBooking types.Date `yaml:"current_booking_date"`
	PreferredTime  string     `yaml:"preferred_time"`
	AskTime        bool       `yaml:"ask_time"`
	ConfirmFirst   bool       `yaml:"confirm_before_booking"`
}

// ScheduleConfig controls the polling cadence and session-restart policy.
type ScheduleConfig struct {
	PollInterval         Duration `yaml:"poll_interval"`
	RestartAfterCycles   int      `yaml:"restart_after_cycles"`
	RestartAfterFailures int      `yaml:"restart_after_failures"`
	RestartDelay         Duration `yaml:"restart_delay"`
}

// SiteConfig identifies the scheduling site endpoints.
type SiteConfig struct {
	BaseURL    string `yaml:"base_url"`
	ScheduleID string `yaml:"schedule_id"`
}

// SignInURL returns the login page address.
func (s SiteConfig) SignInURL() string {
	return strings.TrimRight(s.BaseURL, "/") + "/users/sign_in"
}

// HomeURL returns the account landing page address.
func (s SiteConfig) HomeURL() string {
	return strings.TrimRight(s.BaseURL, "/")
}

// AppointmentURL returns the direct reschedule address, or "" when no
// schedule id is configured.
func (s SiteConfig) AppointmentURL() string {
	if strings.TrimSpace(s.ScheduleID) == "" {
		return ""
	}
	return strings.TrimRight(s.BaseURL, "/") + "/schedule/" + s.ScheduleID + "/appointment"
}

// BrowserConfig controls the automated browser session.
type BrowserConfig struct {
	Headless    bool     `yaml:"headless"`
	Binary      string   `yaml:"binary"`
	UserAgent   string   `yaml:"user_agent"`
	FindTimeout Duration `yaml:"find_timeout"`
	NavTimeout  Duration `yaml:"nav_timeout"`
}

// TelegramConfig configures the chat notification channel. An empty token
// disables Telegram and falls back to log-only notifications.
type TelegramConfig struct {
	Token          string   `yaml:"token"`
	ChatID         int64    `yaml:"chat_id"`
	ConfirmTimeout Duration `yaml:"confirm_timeout"`
	ValueTimeout   Duration `yaml:"value_timeout"`
}

// Enabled reports whether the Telegram channel is configured.
func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.Token) != ""
}

// StateConfig locates the durable preference store.
type StateConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig describes the optional Postgres audit trail.
type HistoryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	CreateIfMissing bool     `yaml:"create_if_missing"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// SitecheckConfig controls the pre-flight HTTP probe run before a browser
// session is launched.
type SitecheckConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Timeout      Duration `yaml:"timeout"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
}

// PacingConfig throttles page actions against the scheduling site.
type PacingConfig struct {
	MinDelay  Duration        `yaml:"min_delay"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig applies a token bucket on top of the minimum delay.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// Enabled reports whether token-bucket limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// ArtifactsConfig controls diagnostic captures of failing pages.
type ArtifactsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with the stock defaults for the
// en-ca non-immigrant visa flow.
func Default() Config {
	return Config{
		Booking: BookingConfig{
			Earliest:       types.Date{Year: 2026, Month: time.January, Day: 31},
			Latest:         types.Date{Year: 2026, Month: time.December, Day: 31},
			CurrentBooking: types.Date{Year: 2027, Month: time.June, Day: 30},
		},
		Schedule: ScheduleConfig{
			PollInterval:         DurationFrom(30 * time.Second),
			RestartAfterCycles:   50,
			RestartAfterFailures: 5,
			RestartDelay:         DurationFrom(60 * time.Second),
		},
		Site: SiteConfig{
			BaseURL: "https://ais.usvisa-info.com/en-ca/niv",
		},
		Browser: BrowserConfig{
			Headless:    true,
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			FindTimeout: DurationFrom(10 * time.Second),
			NavTimeout:  DurationFrom(30 * time.Second),
		},
		Telegram: TelegramConfig{
			ConfirmTimeout: DurationFrom(5 * time.Minute),
			ValueTimeout:   DurationFrom(2 * time.Minute),
		},
		State: StateConfig{
			Path: "visawatch_state.json",
		},
		History: HistoryConfig{
			Driver:      "postgres",
			AutoMigrate: true,
		},
		Sitecheck: SitecheckConfig{
			Enabled:      true,
			Timeout:      DurationFrom(10 * time.Second),
			MaxBodyBytes: 2 * 1024 * 1024,
		},
		Pacing: PacingConfig{
			MinDelay: DurationFrom(500 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadOrDefault behaves like Load, except a missing file falls back to the
// built-in defaults plus the environment overlay. The bot can then start
// with no config file at all and collect the rest interactively.
func LoadOrDefault(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("open config: %w", err)
		}
		cfg := Default()
		cfg.applyEnv()
		cfg.normalise()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// applyEnv overlays secrets and a few operational knobs from the
// environment so they can stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("VISAWATCH_EMAIL"); v != "" {
		c.Account.Email = v
	}
	if v := os.Getenv("VISAWATCH_PASSWORD"); v != "" {
		c.Account.Password = v
	}
	if v := os.Getenv("VISAWATCH_TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("VISAWATCH_TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("VISAWATCH_DB_DSN"); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv("VISAWATCH_CHECK_INTERVAL"); v != "" {
		var d Duration
		if err := d.UnmarshalText([]byte(v)); err == nil && !d.IsZero() {
			c.Schedule.PollInterval = d
		}
	}
	if v := os.Getenv("VISAWATCH_STATE_FILE"); v != "" {
		c.State.Path = v
	}
}

func (c *Config) normalise() {
	c.Account.Email = strings.TrimSpace(c.Account.Email)
	c.Booking.Facility = strings.TrimSpace(c.Booking.Facility)
	c.Booking.PreferredTime = strings.TrimSpace(c.Booking.PreferredTime)
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	c.Site.ScheduleID = strings.TrimSpace(c.Site.ScheduleID)
	c.Browser.Binary = strings.TrimSpace(c.Browser.Binary)
	c.Browser.UserAgent = strings.TrimSpace(c.Browser.UserAgent)
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.State.Path = strings.TrimSpace(c.State.Path)
	c.History.Driver = strings.TrimSpace(c.History.Driver)
	c.Artifacts.Directory = strings.TrimSpace(c.Artifacts.Directory)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// Validate enforces structural invariants. Credentials and facility may
// still be empty here; RequireComplete covers those once interactive
// completion has had its chance.
func (c Config) Validate() error {
	if c.Booking.Facility != "" {
		if _, ok := types.FacilityByName(c.Booking.Facility); !ok {
			return fmt.Errorf("booking.facility %q is not a known consulate (one of %s)",
				c.Booking.Facility, strings.Join(types.FacilityNames(), ", "))
		}
	}
	if c.Booking.Earliest.IsZero() || c.Booking.Latest.IsZero() {
		return errors.New("booking.earliest_date and booking.latest_date must be set")
	}
	if c.Booking.Latest.Before(c.Booking.Earliest) {
		return fmt.Errorf("booking.earliest_date %s must not be after booking.latest_date %s",
			c.Booking.Earliest, c.Booking.Latest)
	}
	if c.Booking.CurrentBooking.IsZero() {
		return errors.New("booking.current_booking_date must be set")
	}
	if c.Schedule.PollInterval.Duration < time.Second {
		return fmt.Errorf("schedule.poll_interval must be at least 1s (got %s)", c.Schedule.PollInterval)
	}
	if c.Schedule.RestartAfterCycles <= 0 {
		return fmt.Errorf("schedule.restart_after_cycles must be > 0 (got %d)", c.Schedule.RestartAfterCycles)
	}
	if c.Schedule.RestartAfterFailures < 0 {
		return fmt.Errorf("schedule.restart_after_failures must be >= 0 (got %d)", c.Schedule.RestartAfterFailures)
	}
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return errors.New("site.base_url must be set")
	}
	if c.Browser.FindTimeout.IsZero() {
		return errors.New("browser.find_timeout must be set")
	}
	if c.History.Enabled {
		if c.History.Driver == "" || strings.TrimSpace(c.History.DSN) == "" {
			return errors.New("history.driver and history.dsn must be set when history.enabled is true")
		}
	}
	if c.Artifacts.Enabled && c.Artifacts.Directory == "" {
		return errors.New("artifacts.directory must be set when artifacts.enabled is true")
	}
	if c.Sitecheck.Enabled && c.Sitecheck.MaxBodyBytes <= 0 {
		return fmt.Errorf("sitecheck.max_body_bytes must be > 0 (got %d)", c.Sitecheck.MaxBodyBytes)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// MissingRequired lists the required fields interactive completion still
// has to supply, in prompt order.
func (c Config) MissingRequired() []string {
	var missing []string
	if c.Account.Email == "" {
		missing = append(missing, FieldEmail)
	}
	if c.Account.Password == "" {
		missing = append(missing, FieldPassword)
	}
	if c.Booking.Facility == "" {
		missing = append(missing, FieldFacility)
	}
	return missing
}

// RequireComplete reports an error when required fields are still unset
// after interactive completion.
func (c Config) RequireComplete() error {
	if missing := c.MissingRequired(); len(missing) > 0 {
		return fmt.Errorf("configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
