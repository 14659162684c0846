package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()
		if config.Catalog.BaseURL == "" {
			t.Error("expected default catalog base URL")
		}
		if config.Playback.PageSize <= 0 {
			t.Errorf("expected positive default page size, got %d", config.Playback.PageSize)
		}
		if config.Catalog.RateLimit <= 0 {
			t.Errorf("expected positive default rate limit, got %f", config.Catalog.RateLimit)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		content := `
[catalog]
base_url = "http://localhost:9999"
client_id = "abc"

[playback]
page_size = 5
first_page_delay_ms = 100
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.Catalog.BaseURL != "http://localhost:9999" {
			t.Errorf("unexpected base URL %q", config.Catalog.BaseURL)
		}
		if config.Playback.PageSize != 5 || config.Playback.FirstPageDelayMS != 100 {
			t.Errorf("unexpected playback config: %+v", config.Playback)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("LoadConfig malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		os.WriteFile(path, []byte("[catalog\nbase_url"), 0644)
		if _, err := LoadConfig(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Error("expected config file to exist")
		}
		if err := CreateConfigFile(path); err == nil {
			t.Error("expected error when file already exists")
		}
	})
}
