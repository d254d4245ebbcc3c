package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Word2Vec: Word2VecConfig{ModelFile: "vectors.bin"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_AdminPortClash(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.AdminPort = cfg.HTTP.Port

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "admin_port") {
		t.Fatalf("expected admin_port error, got %v", err)
	}
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Word2Vec.Provider = "fasttext"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}

	expected := `word2vec.provider must be "binary" or "openai", got "fasttext"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ProviderRequirements(t *testing.T) {
	tests := []struct {
		name string
		w2v  Word2VecConfig
		ok   bool
	}{
		{"binary without file", Word2VecConfig{Provider: ProviderBinary}, false},
		{"binary with file", Word2VecConfig{Provider: ProviderBinary, ModelFile: "v.bin"}, true},
		{"openai without model", Word2VecConfig{Provider: ProviderOpenAI}, false},
		{"openai with model", Word2VecConfig{Provider: ProviderOpenAI, OpenAI: OpenAIConfig{Model: "m"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Word2Vec = tt.w2v

			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidate_CacheWithoutAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing cache addrs")
	}
}

func TestValidate_NegativeTraining(t *testing.T) {
	cfg := validConfig()
	cfg.Training.MaxRank = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative max_rank")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 300 {
		t.Errorf("expected WriteTimeoutSec=300, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.HTTP.MaxBodyBytes != 64<<20 {
		t.Errorf("expected MaxBodyBytes=64MiB, got %d", cfg.HTTP.MaxBodyBytes)
	}
	if cfg.Storage.Root != "models" {
		t.Errorf("expected Root='models', got %q", cfg.Storage.Root)
	}
	if cfg.Storage.NameAttempts != 5 {
		t.Errorf("expected NameAttempts=5, got %d", cfg.Storage.NameAttempts)
	}
	if cfg.Word2Vec.Provider != ProviderBinary {
		t.Errorf("expected Provider=%q, got %q", ProviderBinary, cfg.Word2Vec.Provider)
	}
	if cfg.Word2Vec.MaxWordLength != 50 {
		t.Errorf("expected MaxWordLength=50, got %d", cfg.Word2Vec.MaxWordLength)
	}
	if cfg.Cache.TTLSec != 3600 {
		t.Errorf("expected TTLSec=3600, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Cache.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Cache.ReadinessTimeout)
	}
	if cfg.Cache.KeyPrefix != "modeld:" {
		t.Errorf("expected KeyPrefix='modeld:', got %q", cfg.Cache.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 5, WriteTimeoutSec: 60, ShutdownSec: 3, MaxBodyBytes: 1024},
		Storage:  StorageConfig{Root: "/var/lib/modeld", NameAttempts: 2},
		Word2Vec: Word2VecConfig{Provider: ProviderOpenAI, MaxWordLength: 100},
		Cache:    CacheConfig{KeyPrefix: "custom:", TTLSec: 60},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 {
		t.Errorf("expected ReadTimeoutSec=5, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxBodyBytes != 1024 {
		t.Errorf("expected MaxBodyBytes=1024, got %d", cfg.HTTP.MaxBodyBytes)
	}
	if cfg.Storage.Root != "/var/lib/modeld" || cfg.Storage.NameAttempts != 2 {
		t.Errorf("storage overridden: %+v", cfg.Storage)
	}
	if cfg.Word2Vec.Provider != ProviderOpenAI || cfg.Word2Vec.MaxWordLength != 100 {
		t.Errorf("word2vec overridden: %+v", cfg.Word2Vec)
	}
	if cfg.Cache.KeyPrefix != "custom:" || cfg.Cache.TTLSec != 60 {
		t.Errorf("cache overridden: %+v", cfg.Cache)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("MODELD_TEST_PORT", "9090")
	t.Setenv("MODELD_TEST_KEY", "sk-test")

	data := []byte(`
http:
  port: ${MODELD_TEST_PORT}
  admin_port: ${MODELD_TEST_ADMIN:-9091}
word2vec:
  provider: openai
  openai:
    api_key: ${MODELD_TEST_KEY}
    model: text-embedding-3-small
cache:
  enabled: true
  addrs: ["${MODELD_TEST_REDIS:-localhost:6379}"]
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 || cfg.HTTP.AdminPort != 9091 {
		t.Errorf("ports = %d/%d", cfg.HTTP.Port, cfg.HTTP.AdminPort)
	}
	if cfg.Word2Vec.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Word2Vec.OpenAI.APIKey)
	}
	if len(cfg.Cache.Addrs) != 1 || cfg.Cache.Addrs[0] != "localhost:6379" {
		t.Errorf("addrs = %v", cfg.Cache.Addrs)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("http:\n  port: 8080\n")); err == nil {
		t.Error("expected validation error for missing model_file")
	}
}

func TestLoad_Local(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.HTTP.Port == 0 {
		t.Error("port not set")
	}
}
