// Package config holds the wikicrawl configuration, loaded from YAML and
// overridden by command-line flags.
package config

import (
	"time"

	"github.com/go-scripts/wikicrawl/internal/embed"
	"github.com/go-scripts/wikicrawl/internal/sidebar"
)

// Default configuration values.
const (
	DefaultConfigFile   = "wikicrawl.yaml"
	DefaultOutputDir    = "output"
	DefaultPagesFile    = "collected_pages.json"
	DefaultDBPath       = "wikicrawl.db"
	DefaultEndIndex     = 1000
	DefaultMaxRestarts  = 5
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultDimension    = 768
	DefaultBatchSize    = 32
	DefaultConcurrency  = 4
	DefaultRequestRate  = 10
	DefaultTopK         = 5
	DefaultMinTextLen   = 10

	// PasswordEnv supplies the login password when the file leaves it empty.
	PasswordEnv = "WIKICRAWL_PASSWORD"
)

// Config is the whole configuration file.
type Config struct {
	Crawl     CrawlConfig   `yaml:"crawl"`
	Browser   BrowserConfig `yaml:"browser"`
	Login     LoginConfig   `yaml:"login"`
	Extract   ExtractConfig `yaml:"extract"`
	Output    OutputConfig  `yaml:"output"`
	Index     IndexConfig   `yaml:"index"`
	Embedding embed.Config  `yaml:"embedding"`
}

// CrawlConfig controls the traversal.
type CrawlConfig struct {
	StartURL string `yaml:"start_url"`
	// StartIndex and EndIndex select the slice of the initial sidebar links
	// that is crawled; the rest are excluded.
	StartIndex     int           `yaml:"start_index"`
	EndIndex       int           `yaml:"end_index"`
	MaxRestarts    int           `yaml:"max_restarts"`
	Locators       []string      `yaml:"sidebar_locators"`
	ExpandSelector string        `yaml:"expand_selector"`
	LinkSelector   string        `yaml:"link_selector"`
	LocateTimeout  time.Duration `yaml:"locate_timeout"`
	Settle         time.Duration `yaml:"settle"`
}

// BrowserConfig configures the Chrome session.
type BrowserConfig struct {
	Headless        bool          `yaml:"headless"`
	UserAgent       string        `yaml:"user_agent"`
	ExecPath        string        `yaml:"exec_path"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
	Settle          time.Duration `yaml:"settle"`
}

// LoginConfig describes the login form. Login is skipped without a username.
type LoginConfig struct {
	URL              string        `yaml:"url"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	UsernameSelector string        `yaml:"username_selector"`
	PasswordSelector string        `yaml:"password_selector"`
	SubmitSelector   string        `yaml:"submit_selector"`
	OTPSelector      string        `yaml:"otp_selector"`
	OTPMarker        string        `yaml:"otp_marker"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Enabled reports whether a login should be attempted.
func (l LoginConfig) Enabled() bool {
	return l.Username != ""
}

// ExtractConfig controls page extraction.
type ExtractConfig struct {
	TitleTimeout  time.Duration `yaml:"title_timeout"`
	StaleRetries  int           `yaml:"stale_retries"`
	ImageDenylist []string      `yaml:"image_denylist"`
}

// OutputConfig controls where crawl results are written.
type OutputConfig struct {
	Dir       string `yaml:"dir"`
	PagesFile string `yaml:"pages_file"`
}

// IndexConfig controls flattening, chunking and the vector store.
type IndexConfig struct {
	DBPath        string   `yaml:"db_path"`
	Dimension     int      `yaml:"dimension"`
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	BatchSize     int      `yaml:"batch_size"`
	Concurrency   int      `yaml:"concurrency"`
	RequestRate   int      `yaml:"requests_per_second"`
	TopK          int      `yaml:"top_k"`
	MinTextLength int      `yaml:"min_text_length"`
	AltFilters    []string `yaml:"alt_filters"`
}

// NewConfig returns a Config with every default filled in.
func NewConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			StartIndex:     1,
			EndIndex:       DefaultEndIndex,
			MaxRestarts:    DefaultMaxRestarts,
			Locators:       append([]string(nil), sidebar.DefaultLocators...),
			ExpandSelector: sidebar.DefaultExpandSelector,
			LinkSelector:   sidebar.DefaultLinkSelector,
			LocateTimeout:  5 * time.Second,
			Settle:         2 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:        true,
			NavigateTimeout: 60 * time.Second,
			Settle:          2 * time.Second,
		},
		Login: LoginConfig{
			UsernameSelector: "#username",
			PasswordSelector: "#password",
			SubmitSelector:   "#kc-login",
			OTPSelector:      "#otp",
			OTPMarker:        "otp",
			Timeout:          30 * time.Second,
		},
		Extract: ExtractConfig{
			TitleTimeout: 5 * time.Second,
			StaleRetries: 3,
			ImageDenylist: []string{
				"DESY_logo_white_web.png",
				"noavatar.png",
				"Wiki Logo",
			},
		},
		Output: OutputConfig{
			Dir:       DefaultOutputDir,
			PagesFile: DefaultPagesFile,
		},
		Index: IndexConfig{
			DBPath:        DefaultDBPath,
			Dimension:     DefaultDimension,
			ChunkSize:     DefaultChunkSize,
			ChunkOverlap:  DefaultChunkOverlap,
			BatchSize:     DefaultBatchSize,
			Concurrency:   DefaultConcurrency,
			RequestRate:   DefaultRequestRate,
			TopK:          DefaultTopK,
			MinTextLength: DefaultMinTextLen,
			AltFilters:    []string{"farzad", "wiki"},
		},
		Embedding: embed.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			Timeout:  60 * time.Second,
		},
	}
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if c.Browser.NavigateTimeout <= 0 || c.Browser.Settle <= 0 ||
		c.Crawl.LocateTimeout <= 0 || c.Extract.TitleTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Crawl.MaxRestarts < 0 || c.Extract.StaleRetries < 0 {
		return ErrInvalidRestarts
	}
	if c.Login.Enabled() && c.Login.Password == "" {
		return ErrMissingPassword
	}
	if c.Index.ChunkSize <= 0 || c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return ErrInvalidChunking
	}
	if c.Index.Dimension <= 0 {
		return ErrInvalidDimension
	}
	return nil
}

// ValidateCrawl additionally requires a start URL.
func (c *Config) ValidateCrawl() error {
	if c.Crawl.StartURL == "" {
		return ErrNoStartURL
	}
	return c.Validate()
}

// ValidateIndex additionally requires an embedding model.
func (c *Config) ValidateIndex() error {
	if c.Embedding.Model == "" {
		return ErrNoEmbeddingModel
	}
	return c.Validate()
}
