package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for serpgrab
type Config struct {
	// Browser session settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Search surface selectors and labels
	Search SearchConfig `yaml:"search" json:"search"`

	// Settle delays and readiness polling
	Timing TimingConfig `yaml:"timing" json:"timing"`

	// Traversal bounds
	Traversal TraversalConfig `yaml:"traversal" json:"traversal"`

	// Image download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Push relay settings
	Relay RelayConfig `yaml:"relay" json:"relay"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BrowserConfig holds Chrome launch options
type BrowserConfig struct {
	Headless      bool          `yaml:"headless" json:"headless"`
	ExecPath      string        `yaml:"exec_path" json:"exec_path"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	WindowWidth   int           `yaml:"window_width" json:"window_width"`
	WindowHeight  int           `yaml:"window_height" json:"window_height"`
	ActionTimeout time.Duration `yaml:"action_timeout" json:"action_timeout"`
}

// SearchConfig describes the search surface. Labels are locale specific.
type SearchConfig struct {
	BaseURL         string `yaml:"base_url" json:"base_url"`
	QuerySelector   string `yaml:"query_selector" json:"query_selector"`
	NextSelector    string `yaml:"next_selector" json:"next_selector"`
	ConsentSelector string `yaml:"consent_selector" json:"consent_selector"`
	ConsentLabel    string `yaml:"consent_label" json:"consent_label"`
	ImagesSelector  string `yaml:"images_selector" json:"images_selector"`
	ImagesLabel     string `yaml:"images_label" json:"images_label"`
}

// TimingConfig holds the waits used between interactions. When Readiness is
// enabled each wait polls the page for readiness instead of sleeping blindly.
type TimingConfig struct {
	QuerySettle    time.Duration `yaml:"query_settle" json:"query_settle"`
	PageSettle     time.Duration `yaml:"page_settle" json:"page_settle"`
	ScrollSettle   time.Duration `yaml:"scroll_settle" json:"scroll_settle"`
	ImageSettle    time.Duration `yaml:"image_settle" json:"image_settle"`
	ConsentTimeout time.Duration `yaml:"consent_timeout" json:"consent_timeout"`
	Readiness      bool          `yaml:"readiness" json:"readiness"`
	MaxWait        time.Duration `yaml:"max_wait" json:"max_wait"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// TraversalConfig bounds the extract/advance loops
type TraversalConfig struct {
	MaxCycles       int   `yaml:"max_cycles" json:"max_cycles"`
	ImageScrollStep int64 `yaml:"image_scroll_step" json:"image_scroll_step"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	OutputDirectory   string        `yaml:"output_directory" json:"output_directory"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RelayConfig holds push relay listener configuration
type RelayConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	WSAddr          string        `yaml:"ws_addr" json:"ws_addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"` // host patterns, empty accepts any origin
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:      true,
			UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			WindowWidth:   1366,
			WindowHeight:  900,
			ActionTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			BaseURL:         "https://www.google.com/",
			QuerySelector:   `textarea[name="q"]`,
			NextSelector:    "a#pnnext",
			ConsentSelector: "button",
			ConsentLabel:    "Alle ablehnen",
			ImagesSelector:  "a",
			ImagesLabel:     "Bilder",
		},
		Timing: TimingConfig{
			QuerySettle:    2 * time.Second,
			PageSettle:     3 * time.Second,
			ScrollSettle:   1 * time.Second,
			ImageSettle:    3 * time.Second,
			ConsentTimeout: 5 * time.Second,
			Readiness:      true,
			MaxWait:        10 * time.Second,
			PollInterval:   250 * time.Millisecond,
		},
		Traversal: TraversalConfig{
			MaxCycles:       500,
			ImageScrollStep: 10000,
		},
		Download: DownloadConfig{
			OutputDirectory:   "./downloads",
			Timeout:           30 * time.Second,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			RequestsPerMinute: 0, // per host, 0 means no limit
		},
		Relay: RelayConfig{
			Addr:            ":4000",
			WSAddr:          ":4001",
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Browser
	if headless := os.Getenv("SERPGRAB_HEADLESS"); headless != "" {
		v, err := strconv.ParseBool(headless)
		if err != nil {
			errs = append(errs, fmt.Errorf("SERPGRAB_HEADLESS: %w", err))
		} else {
			c.Browser.Headless = v
		}
	}
	if execPath := os.Getenv("SERPGRAB_CHROME_PATH"); execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if userAgent := os.Getenv("SERPGRAB_USER_AGENT"); userAgent != "" {
		c.Browser.UserAgent = userAgent
		c.Download.UserAgent = userAgent
	}

	// Search
	if baseURL := os.Getenv("SERPGRAB_SEARCH_URL"); baseURL != "" {
		c.Search.BaseURL = baseURL
	}
	if label := os.Getenv("SERPGRAB_CONSENT_LABEL"); label != "" {
		c.Search.ConsentLabel = label
	}
	if label := os.Getenv("SERPGRAB_IMAGES_LABEL"); label != "" {
		c.Search.ImagesLabel = label
	}

	// Timing
	if readiness := os.Getenv("SERPGRAB_READINESS"); readiness != "" {
		v, err := strconv.ParseBool(readiness)
		if err != nil {
			errs = append(errs, fmt.Errorf("SERPGRAB_READINESS: %w", err))
		} else {
			c.Timing.Readiness = v
		}
	}
	if maxWait := os.Getenv("SERPGRAB_MAX_WAIT"); maxWait != "" {
		d, err := time.ParseDuration(maxWait)
		if err != nil {
			errs = append(errs, fmt.Errorf("SERPGRAB_MAX_WAIT: %w", err))
		} else {
			c.Timing.MaxWait = d
		}
	}

	// Download
	if outputDir := os.Getenv("SERPGRAB_OUTPUT_DIR"); outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if rpm := os.Getenv("SERPGRAB_REQUESTS_PER_MINUTE"); rpm != "" {
		v, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("SERPGRAB_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Download.RequestsPerMinute = v
		}
	}

	// Relay
	if addr := os.Getenv("SERPGRAB_RELAY_ADDR"); addr != "" {
		c.Relay.Addr = addr
	}
	if wsAddr, ok := os.LookupEnv("SERPGRAB_RELAY_WS_ADDR"); ok {
		c.Relay.WSAddr = wsAddr
	}

	// Logging level
	if logLevel := os.Getenv("SERPGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("SERPGRAB_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"serpgrab.yaml",
		".serpgrab.yaml",
		".serpgrab.yml",
		filepath.Join(home, ".config", "serpgrab", "config.yaml"),
		filepath.Join(home, ".config", "serpgrab", "config.yml"),
		filepath.Join(home, ".serpgrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Browser.ActionTimeout <= 0 {
		errs = append(errs, errors.New("browser action timeout must be positive"))
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		errs = append(errs, errors.New("browser window size must be positive"))
	}

	if c.Search.BaseURL == "" {
		errs = append(errs, errors.New("search base URL is required"))
	}
	if c.Search.QuerySelector == "" {
		errs = append(errs, errors.New("search query selector is required"))
	}
	if c.Search.NextSelector == "" {
		errs = append(errs, errors.New("search next selector is required"))
	}

	if c.Timing.Readiness {
		if c.Timing.PollInterval <= 0 {
			errs = append(errs, errors.New("poll interval must be positive when readiness is enabled"))
		}
		if c.Timing.MaxWait < c.Timing.PollInterval {
			errs = append(errs, errors.New("max wait must not be shorter than the poll interval"))
		}
	}
	for name, d := range map[string]time.Duration{
		"query settle":    c.Timing.QuerySettle,
		"page settle":     c.Timing.PageSettle,
		"scroll settle":   c.Timing.ScrollSettle,
		"image settle":    c.Timing.ImageSettle,
		"consent timeout": c.Timing.ConsentTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative", name))
		}
	}

	if c.Traversal.MaxCycles < 0 {
		errs = append(errs, errors.New("max cycles cannot be negative"))
	}
	if c.Traversal.ImageScrollStep < 0 {
		errs = append(errs, errors.New("image scroll step cannot be negative"))
	}

	if c.Download.OutputDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Relay.Addr == "" {
		errs = append(errs, errors.New("relay address is required"))
	}
	if c.Relay.WSAddr != "" && c.Relay.WSAddr == c.Relay.Addr {
		errs = append(errs, errors.New("relay websocket address must differ from the HTTP address"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Download.OutputDirectory = outputDir
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm >= 0 {
		c.Download.RequestsPerMinute = rpm
	}
	if maxCycles, ok := flags["max-cycles"].(int); ok && maxCycles > 0 {
		c.Traversal.MaxCycles = maxCycles
	}
	if readiness, ok := flags["readiness"].(bool); ok {
		c.Timing.Readiness = readiness
	}
	if addr, ok := flags["relay-addr"].(string); ok && addr != "" {
		c.Relay.Addr = addr
	}
	if wsAddr, ok := flags["relay-ws-addr"].(string); ok {
		c.Relay.WSAddr = wsAddr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".serpgrab.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
