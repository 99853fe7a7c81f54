package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("nlqgate-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Gateway.QueryTimeout != 30*time.Second {
		t.Fatalf("Gateway.QueryTimeout = %s", cfg.Gateway.QueryTimeout)
	}
	if !cfg.Gateway.ReadOnlyTx {
		t.Fatal("Gateway.ReadOnlyTx should default to true")
	}
	if !cfg.Gateway.DryRun {
		t.Fatal("Gateway.DryRun should default to true")
	}
	if cfg.Database.MaxOpenConns != 20 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Sessions.Shards != 16 {
		t.Fatalf("Sessions.Shards = %d", cfg.Sessions.Shards)
	}
	if cfg.Sessions.Archive {
		t.Fatal("Sessions.Archive should default to false in dev")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("nlqgate-api", mapLookup(map[string]string{"NLQGATE_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Sessions.Archive {
		t.Fatal("Sessions.Archive should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"NLQGATE_PROFILE":                 "test",
		"NLQGATE_HTTP_ADDR":               ":9999",
		"NLQGATE_HTTP_READ_TIMEOUT":       "2s",
		"NLQGATE_LOG_LEVEL":               "error",
		"NLQGATE_AUTH_REQUIRED":           "true",
		"NLQGATE_AUTH_STATIC_KEYS":        "k1:alice:chat_user",
		"NLQGATE_DB_DSN":                  "postgres://example",
		"NLQGATE_DB_SCHEMA":               "inventory",
		"NLQGATE_DB_MAX_OPEN_CONNS":       "42",
		"NLQGATE_QUERY_TIMEOUT":           "5s",
		"NLQGATE_QUERY_READ_ONLY_TX":      "false",
		"NLQGATE_QUERY_MAX_ROWS":          "77",
		"NLQGATE_SCHEMA_CACHE_TTL":        "1m",
		"NLQGATE_SESSION_TTL":             "15m",
		"NLQGATE_SESSION_SHARDS":          "4",
		"NLQGATE_SESSION_MAX_PER_SHARD":   "9",
		"NLQGATE_OBJECTSTORE_BUCKET":      "nlq-prod",
		"NLQGATE_OBJECTSTORE_USE_SSL":     "true",
		"NLQGATE_OBJECTSTORE_PREFIX":      "archive",
		"NLQGATE_SERVICE_NAME":            "nlqgate-custom",
		"NLQGATE_SCHEMA_CHECK_ALLOWLIST":  "true",
		"NLQGATE_SESSION_ARCHIVE_FORMATS": " JSON, parquet ,",
	})
	cfg, err := Load("nlqgate-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "nlqgate-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.StaticKeys != "k1:alice:chat_user" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Database.DSN != "postgres://example" || cfg.Database.SchemaName != "inventory" {
		t.Fatalf("Database = %#v", cfg.Database)
	}
	if cfg.Database.MaxOpenConns != 42 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Gateway.QueryTimeout != 5*time.Second {
		t.Fatalf("Gateway.QueryTimeout = %s", cfg.Gateway.QueryTimeout)
	}
	if cfg.Gateway.ReadOnlyTx {
		t.Fatal("Gateway.ReadOnlyTx = true, want false")
	}
	if cfg.Gateway.MaxResultRows != 77 {
		t.Fatalf("Gateway.MaxResultRows = %d", cfg.Gateway.MaxResultRows)
	}
	if cfg.Schema.CacheTTL != time.Minute || !cfg.Schema.CheckAllowlist {
		t.Fatalf("Schema = %#v", cfg.Schema)
	}
	if cfg.Sessions.TTL != 15*time.Minute || cfg.Sessions.Shards != 4 || cfg.Sessions.MaxPerShard != 9 {
		t.Fatalf("Sessions = %#v", cfg.Sessions)
	}
	if cfg.ObjectStore.Bucket != "nlq-prod" || !cfg.ObjectStore.UseSSL || cfg.ObjectStore.Prefix != "archive" {
		t.Fatalf("ObjectStore = %#v", cfg.ObjectStore)
	}
	if len(cfg.Sessions.ArchiveFormats) != 2 || cfg.Sessions.ArchiveFormats[0] != "json" || cfg.Sessions.ArchiveFormats[1] != "parquet" {
		t.Fatalf("Sessions.ArchiveFormats = %#v", cfg.Sessions.ArchiveFormats)
	}
}

func TestLoadReadsYAMLFileBeforeEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nlqgate.yaml")
	body := "http:\n  addr: \":7070\"\nquery:\n  timeout: 12s\nsession:\n  shards: 8\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("nlqgate-api", mapLookup(map[string]string{
		"NLQGATE_CONFIG_FILE":    path,
		"NLQGATE_SESSION_SHARDS": "2",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":7070" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Gateway.QueryTimeout != 12*time.Second {
		t.Fatalf("Gateway.QueryTimeout = %s", cfg.Gateway.QueryTimeout)
	}
	if cfg.Sessions.Shards != 2 {
		t.Fatalf("Sessions.Shards = %d, env should win over file", cfg.Sessions.Shards)
	}
}

func TestLoadErrorsOnMissingConfigFile(t *testing.T) {
	_, err := Load("nlqgate-api", mapLookup(map[string]string{
		"NLQGATE_CONFIG_FILE": filepath.Join(t.TempDir(), "missing.yaml"),
	}))
	if err == nil {
		t.Fatal("Load() expected error for missing config file")
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"NLQGATE_PROFILE": "oops"},
		{"NLQGATE_HTTP_READ_TIMEOUT": "NaN"},
		{"NLQGATE_DB_MAX_OPEN_CONNS": "oops"},
		{"NLQGATE_QUERY_TIMEOUT": "0s"},
		{"NLQGATE_QUERY_READ_ONLY_TX": "maybe"},
		{"NLQGATE_SESSION_SHARDS": "0"},
		{"NLQGATE_AUTH_REQUIRED": "not-bool"},
		{"NLQGATE_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("nlqgate-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
