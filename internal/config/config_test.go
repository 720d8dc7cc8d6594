package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Backend != BackendMongo {
		t.Fatalf("expected mongo backend, got %q", cfg.Storage.Backend)
	}
	if cfg.App.APIPrefix != "/api" {
		t.Fatalf("expected /api prefix, got %q", cfg.App.APIPrefix)
	}
	if !reflect.DeepEqual(cfg.CORS.Origins, []string{"*"}) {
		t.Fatalf("unexpected origins %v", cfg.CORS.Origins)
	}
}

func TestLoadFileThenEnvOverlay(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
[app]
port = 9000

[mongo]
url = "mongodb://file:27017"
db = "from_file"

[llm]
provider = "openai"
model = "gpt-4o-mini"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DB_NAME", "from_env")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("EMERGENT_LLM_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Port != 9000 {
		t.Fatalf("expected port from file, got %d", cfg.App.Port)
	}
	if cfg.Mongo.URL != "mongodb://file:27017" {
		t.Fatalf("expected url from file, got %q", cfg.Mongo.URL)
	}
	if cfg.Mongo.DB != "from_env" {
		t.Fatalf("expected env to win, got %q", cfg.Mongo.DB)
	}
	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("expected key from EMERGENT_LLM_KEY, got %q", cfg.LLM.APIKey)
	}
	want := []string{"http://a.test", "http://b.test"}
	if !reflect.DeepEqual(cfg.CORS.Origins, want) {
		t.Fatalf("origins = %v, want %v", cfg.CORS.Origins, want)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.Backend = "cassandra"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg = defaultConfig()
	cfg.LLM.Provider = "unknown"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
