package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/careloop/careloop/internal/infrastructure/llm"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults: %v", err)
	}

	if cfg.Database.Type != "memory" {
		t.Fatalf("default database type should be memory, got %q", cfg.Database.Type)
	}
	if cfg.LLM.MaxRetries != 2 {
		t.Fatalf("default max retries should be 2, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.Approval.ConfidenceThreshold != 0.80 {
		t.Fatalf("default threshold should be 0.80, got %v", cfg.Approval.ConfidenceThreshold)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.MinScore != 0.7 {
		t.Fatalf("default retrieval knobs wrong: %+v", cfg.Retrieval)
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" {
		t.Fatal("empty stays empty")
	}
	if mask("short") != "****" {
		t.Fatalf("short secrets fully masked, got %q", mask("short"))
	}
	if got := mask("sk-abcdefghijklmnop"); got != "sk-a****mnop" {
		t.Fatalf("unexpected mask: %q", got)
	}
}

func TestDump_MasksSecrets(t *testing.T) {
	cfg := &Config{
		Notify: NotifyConfig{TelegramBotToken: "123456:telegram-secret-token"},
		Retrieval: RetrievalConfig{
			EmbedKey: "sk-embedding-key-value",
		},
		LLM: LLMConfig{
			Providers: []llm.ProviderConfig{
				{Name: "openai", APIKey: "sk-provider-key-value"},
			},
		},
	}

	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	for _, secret := range []string{"telegram-secret-token", "sk-embedding-key-value", "sk-provider-key-value"} {
		if strings.Contains(out, secret) {
			t.Fatalf("dump leaked a secret: %q", secret)
		}
	}
	if !strings.Contains(out, "openai") {
		t.Fatal("non-secret fields should survive the dump")
	}

	// The original config is untouched.
	if cfg.LLM.Providers[0].APIKey != "sk-provider-key-value" {
		t.Fatal("dump must not mutate the source config")
	}
}
