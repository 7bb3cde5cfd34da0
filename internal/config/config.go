// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/historic-sites-crawler/internal/crawler"
	"github.com/JakeFAU/historic-sites-crawler/internal/extract"
	"github.com/JakeFAU/historic-sites-crawler/internal/policy/pacing"
)

// EnvPrefix namespaces environment overrides, e.g. SITECRAWLER_CRAWLER_INDEX_URL.
const EnvPrefix = "SITECRAWLER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Extract    ExtractConfig    `mapstructure:"extract"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the crawl pipeline.
type CrawlerConfig struct {
	IndexURL           string        `mapstructure:"index_url"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	DelayMin           time.Duration `mapstructure:"delay_min"`
	DelayMax           time.Duration `mapstructure:"delay_max"`
	MaxRPS             float64       `mapstructure:"max_rps"`
	MissingFieldPolicy string        `mapstructure:"missing_field_policy"`
	CaptchaMarkers     []string      `mapstructure:"captcha_markers"`
	CaptchaSettleDelay time.Duration `mapstructure:"captcha_settle_delay"`
	DumpDir            string        `mapstructure:"dump_dir"`
}

// BrowserConfig selects and tunes the browsing capability.
type BrowserConfig struct {
	Driver            string        `mapstructure:"driver"`
	Headless          bool          `mapstructure:"headless"`
	ExecPath          string        `mapstructure:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent"`
	WaitCondition     string        `mapstructure:"wait_condition"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// ExtractConfig lists the selectors used on index and detail pages.
type ExtractConfig struct {
	LinkSelector         string   `mapstructure:"link_selector"`
	TitleSelectors       []string `mapstructure:"title_selectors"`
	DescriptionSelectors []string `mapstructure:"description_selectors"`
	CoordinatesSelector  string   `mapstructure:"coordinates_selector"`
	ImageSelector        string   `mapstructure:"image_selector"`
	MaxImages            int      `mapstructure:"max_images"`
}

// SummarizerConfig points at the summarization endpoint.
type SummarizerConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailurePolicy string        `mapstructure:"failure_policy"`
}

// StorageConfig selects the record store and the optional snapshot bucket.
type StorageConfig struct {
	Driver              string `mapstructure:"driver"`
	CSVPath             string `mapstructure:"csv_path"`
	PostgresDSN         string `mapstructure:"postgres_dsn"`
	PostgresTable       string `mapstructure:"postgres_table"`
	PostgresCreateTable bool   `mapstructure:"postgres_create_table"`
	GCSBucket           string `mapstructure:"gcs_bucket"`
	GCSPrefix           string `mapstructure:"gcs_prefix"`
	SnapshotName        string `mapstructure:"snapshot_name"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from .env, disk and environment, in increasing
// precedence for the last two.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv exports variables from the given files without overriding
// ones already set. Missing files are ignored.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("crawler.index_url", "")
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.retry_backoff", 2*time.Second)
	v.SetDefault("crawler.delay_min", time.Second)
	v.SetDefault("crawler.delay_max", 3*time.Second)
	v.SetDefault("crawler.max_rps", 0)
	v.SetDefault("crawler.missing_field_policy", string(crawler.PolicySkip))
	v.SetDefault("crawler.captcha_markers", []string{"captcha", "verify you are human"})
	v.SetDefault("crawler.captcha_settle_delay", 3*time.Second)
	v.SetDefault("crawler.dump_dir", "dumps")

	v.SetDefault("browser.driver", "chromedp")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.wait_condition", string(crawler.WaitNetworkIdle))
	v.SetDefault("browser.navigation_timeout", 60*time.Second)

	v.SetDefault("extract.link_selector", "main a[href]")
	v.SetDefault("extract.title_selectors", []string{"h1", ".page-title", "title"})
	v.SetDefault("extract.description_selectors", []string{".description p", "article p", "main p"})
	v.SetDefault("extract.coordinates_selector", ".coordinates")
	v.SetDefault("extract.image_selector", ".gallery img")
	v.SetDefault("extract.max_images", 6)

	v.SetDefault("summarizer.endpoint", "")
	v.SetDefault("summarizer.api_key", "")
	v.SetDefault("summarizer.timeout", 30*time.Second)
	v.SetDefault("summarizer.failure_policy", string(crawler.PolicyFallback))

	v.SetDefault("storage.driver", "csv")
	v.SetDefault("storage.csv_path", "historic_sites.csv")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.postgres_table", "historic_sites")
	v.SetDefault("storage.postgres_create_table", false)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "")
	v.SetDefault("storage.snapshot_name", "historic_sites.csv")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. The crawler and
// extract sections are checked again by their own Validate methods when the
// orchestrator is built; the checks here cover the wiring-level knobs.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := c.CrawlerSettings().Validate(); err != nil {
		return err
	}
	if err := c.ExtractRules().Validate(); err != nil {
		return err
	}
	if err := c.PacingSettings().Validate(); err != nil {
		return err
	}
	switch c.Browser.Driver {
	case "chromedp", "static":
	default:
		return fmt.Errorf("browser.driver must be \"chromedp\" or \"static\"")
	}
	switch crawler.Policy(c.Summarizer.FailurePolicy) {
	case crawler.PolicyFallback, crawler.PolicyAbort:
	default:
		return fmt.Errorf("summarizer.failure_policy must be %q or %q", crawler.PolicyFallback, crawler.PolicyAbort)
	}
	switch c.Storage.Driver {
	case "csv":
		if strings.TrimSpace(c.Storage.CSVPath) == "" {
			return fmt.Errorf("storage.csv_path must be set when storage.driver is csv")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn must be set when storage.driver is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be one of csv, postgres, memory")
	}
	if c.Storage.GCSBucket != "" && c.Storage.Driver != "csv" {
		return fmt.Errorf("storage.gcs_bucket requires storage.driver csv")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// CrawlerSettings converts the loaded values into the orchestrator config.
func (c Config) CrawlerSettings() crawler.Config {
	cfg := crawler.DefaultConfig()
	cfg.IndexURL = c.Crawler.IndexURL
	cfg.Navigation = crawler.NavigateOptions{
		WaitCondition: crawler.WaitCondition(c.Browser.WaitCondition),
		Timeout:       c.Browser.NavigationTimeout,
	}
	cfg.MaxAttempts = c.Crawler.MaxAttempts
	cfg.RetryBackoff = c.Crawler.RetryBackoff
	cfg.MissingFieldPolicy = crawler.Policy(c.Crawler.MissingFieldPolicy)
	cfg.ChallengeMarkers = c.Crawler.CaptchaMarkers
	cfg.ChallengeSettle = c.Crawler.CaptchaSettleDelay
	cfg.Topic = c.PubSub.TopicName
	if c.Storage.GCSBucket != "" {
		cfg.SnapshotSource = c.Storage.CSVPath
		cfg.SnapshotPath = c.Storage.SnapshotName
	}
	return cfg
}

// ExtractRules converts the selector section into extraction rules.
func (c Config) ExtractRules() extract.Rules {
	return extract.Rules{
		LinkSelector:         c.Extract.LinkSelector,
		TitleSelectors:       c.Extract.TitleSelectors,
		DescriptionSelectors: c.Extract.DescriptionSelectors,
		CoordinatesSelector:  c.Extract.CoordinatesSelector,
		ImageSelector:        c.Extract.ImageSelector,
		MaxImages:            c.Extract.MaxImages,
	}
}

// PacingSettings converts the delay window into a pacing config.
func (c Config) PacingSettings() pacing.Config {
	return pacing.Config{
		DelayMin: c.Crawler.DelayMin,
		DelayMax: c.Crawler.DelayMax,
		RPS:      c.Crawler.MaxRPS,
	}
}
