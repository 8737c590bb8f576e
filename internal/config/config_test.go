package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig documents the defaults.
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Crawl.StartIndex)
	assert.Equal(t, 1000, cfg.Crawl.EndIndex)
	assert.Equal(t, 5, cfg.Crawl.MaxRestarts)
	assert.NotEmpty(t, cfg.Crawl.Locators)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "#kc-login", cfg.Login.SubmitSelector)
	assert.False(t, cfg.Login.Enabled())
	assert.Contains(t, cfg.Extract.ImageDenylist, "Wiki Logo")
	assert.Equal(t, 500, cfg.Index.ChunkSize)
	assert.Equal(t, 50, cfg.Index.ChunkOverlap)
	assert.Equal(t, []string{"farzad", "wiki"}, cfg.Index.AltFilters)
	assert.Equal(t, "collected_pages.json", cfg.Output.PagesFile)
	assert.NoError(t, cfg.Validate())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wikicrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
crawl:
  start_url: https://wiki.example/display/DOC
  start_index: 0
  end_index: 20
  settle: 500ms
browser:
  headless: false
embedding:
  provider: openai
  model: text-embedding-3-small
index:
  dimension: 1536
  alt_filters: []
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://wiki.example/display/DOC", cfg.Crawl.StartURL)
	assert.Equal(t, 0, cfg.Crawl.StartIndex)
	assert.Equal(t, 20, cfg.Crawl.EndIndex)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawl.Settle)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Index.Dimension)
	assert.Empty(t, cfg.Index.AltFilters)

	// untouched keys keep their defaults
	assert.Equal(t, 5, cfg.Crawl.MaxRestarts)
	assert.Equal(t, 500, cfg.Index.ChunkSize)
	assert.NoError(t, cfg.ValidateCrawl())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Index, cfg.Index)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), true)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "crawl: [unclosed"))
	assert.Error(t, err)
}

func TestPasswordFromEnvironment(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	cfg, err := Load(writeConfig(t, "login:\n  username: alice\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Login.Password)
	assert.True(t, cfg.Login.Enabled())

	cfg, err = Load(writeConfig(t, "login:\n  username: alice\n  password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Login.Password)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"negative restarts", func(c *Config) { c.Crawl.MaxRestarts = -1 }, ErrInvalidRestarts},
		{"zero navigate timeout", func(c *Config) { c.Browser.NavigateTimeout = 0 }, ErrInvalidTimeout},
		{"zero title timeout", func(c *Config) { c.Extract.TitleTimeout = 0 }, ErrInvalidTimeout},
		{"username without password", func(c *Config) { c.Login.Username = "alice" }, ErrMissingPassword},
		{"overlap not smaller than size", func(c *Config) { c.Index.ChunkOverlap = 500 }, ErrInvalidChunking},
		{"zero chunk size", func(c *Config) { c.Index.ChunkSize = 0 }, ErrInvalidChunking},
		{"zero dimension", func(c *Config) { c.Index.Dimension = 0 }, ErrInvalidDimension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateCommands(t *testing.T) {
	cfg := NewConfig()
	assert.ErrorIs(t, cfg.ValidateCrawl(), ErrNoStartURL)

	cfg.Crawl.StartURL = "https://wiki.example/"
	assert.NoError(t, cfg.ValidateCrawl())

	cfg.Embedding.Model = ""
	assert.ErrorIs(t, cfg.ValidateIndex(), ErrNoEmbeddingModel)
}
