package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("TRACKLET_TEST_STR", "custom")
	os.Setenv("TRACKLET_TEST_BOOL", "true")
	os.Setenv("TRACKLET_TEST_INT", "42")
	os.Setenv("TRACKLET_TEST_DUR", "90s")
	os.Setenv("TRACKLET_TEST_LIST", "openid, email ,profile")
	defer func() {
		for _, k := range []string{"TRACKLET_TEST_STR", "TRACKLET_TEST_BOOL",
			"TRACKLET_TEST_INT", "TRACKLET_TEST_DUR", "TRACKLET_TEST_LIST"} {
			os.Unsetenv(k)
		}
	}()

	if got := getEnv("TRACKLET_TEST_STR", "default"); got != "custom" {
		t.Errorf("getEnv = %q, want custom", got)
	}
	if got := getEnv("TRACKLET_TEST_MISSING", "default"); got != "default" {
		t.Errorf("getEnv = %q, want default", got)
	}
	if !getEnvBool("TRACKLET_TEST_BOOL", false) {
		t.Error("getEnvBool should parse true")
	}
	if getEnvBool("TRACKLET_TEST_MISSING", false) {
		t.Error("getEnvBool should fall back to default")
	}
	if got := getEnvInt("TRACKLET_TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}
	if got := getEnvDuration("TRACKLET_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want 90s", got)
	}
	got := getEnvList("TRACKLET_TEST_LIST", nil)
	if len(got) != 3 || got[0] != "openid" || got[1] != "email" || got[2] != "profile" {
		t.Errorf("getEnvList = %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// The default provider type is rest, which requires endpoint settings.
	os.Setenv("TRACKLET_PROVIDER_BASE_URL", "https://identity.example.com")
	os.Setenv("TRACKLET_PROVIDER_API_KEY", "test-key")
	defer func() {
		os.Unsetenv("TRACKLET_PROVIDER_BASE_URL")
		os.Unsetenv("TRACKLET_PROVIDER_API_KEY")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("default health port = %s, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Stores.KVBackend != StoreSQLite {
		t.Errorf("default kv backend = %s, want sqlite", cfg.Stores.KVBackend)
	}
	if cfg.Audit.Retention != 90*24*time.Hour {
		t.Errorf("default retention = %v, want 2160h", cfg.Audit.Retention)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default log level = %s, want info", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Stores: StoresConfig{KVBackend: StoreMemory, UserBackend: StoreMemory},
			Provider: ProviderConfig{
				Type: ProviderFake,
			},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config must validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"same ports", func(c *Config) { c.Server.HealthPort = "8080" }},
		{"missing port", func(c *Config) { c.Server.Port = "" }},
		{"bad kv backend", func(c *Config) { c.Stores.KVBackend = "etcd" }},
		{"redis kv without url", func(c *Config) { c.Stores.KVBackend = StoreRedis }},
		{"postgres users without url", func(c *Config) { c.Stores.UserBackend = StorePostgres }},
		{"redis user backend invalid", func(c *Config) { c.Stores.UserBackend = StoreRedis }},
		{"rest provider without key", func(c *Config) {
			c.Provider.Type = ProviderREST
			c.Provider.RESTBaseURL = "https://x"
		}},
		{"oidc provider without issuer", func(c *Config) { c.Provider.Type = ProviderOIDC }},
		{"unknown provider", func(c *Config) { c.Provider.Type = "saml" }},
		{"restore enabled without url", func(c *Config) { c.Restore.Enabled = true }},
		{"archive without bucket", func(c *Config) {
			c.Audit.DBEnabled = true
			c.Audit.ArchiveEnabled = true
		}},
		{"archive without db sink", func(c *Config) {
			c.Audit.ArchiveEnabled = true
			c.Audit.ArchiveBucket = "b"
			c.Audit.DBEnabled = false
		}},
		{"otel without endpoint", func(c *Config) { c.Observability.OTelEnabled = true }},
	}
	for _, tc := range tests {
		cfg := base()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
