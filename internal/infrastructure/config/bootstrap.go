package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "careloop"

// HomeDir returns the user's configuration home: ~/.careloop
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures ~/.careloop exists with a default config.yaml.
// Safe to call multiple times; existing files are never overwritten.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	dirs := []string{
		root,
		filepath.Join(root, "data"),
		filepath.Join(root, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		logger.Debug("Careloop home directory OK", zap.String("home", root))
		return nil
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	logger.Info("Careloop bootstrap complete",
		zap.String("home", root),
		zap.String("config", configPath),
	)
	return nil
}

const defaultConfig = `# Careloop configuration
# Auto-generated on first launch — feel free to edit.

server:
  host: 0.0.0.0
  port: 8080
  mode: release                # debug | release

log:
  level: info                  # debug | info | warn | error
  format: json                 # json | console

database:
  type: memory                 # memory | sqlite | postgres
  dsn: careloop.db             # file path (sqlite) or connection string (postgres)

llm:
  primary: openai
  max_retries: 2
  retry_delay: 500ms
  temperature: 0.3
  top_p: 0.9
  max_tokens: 600
  providers:
    - name: openai
      type: openai
      base_url: https://api.openai.com/v1
      api_key: ""              # empty = provider skipped
      model: gpt-4o-mini
    - name: anthropic
      type: anthropic
      base_url: https://api.anthropic.com
      api_key: ""
      model: claude-3-5-haiku-20241022

retrieval:
  top_k: 3
  min_score: 0.7
  store_type: memory           # memory | lancedb
  store_path: data/knowledge.lance
  embed_url: https://api.openai.com/v1
  embed_key: ""                # empty = retrieval disabled
  embed_model: text-embedding-3-small
  embed_dim: 1536

approval:
  confidence_threshold: 0.80

notify:
  telegram_bot_token: ""       # empty = notifications disabled
  telegram_chat_ids: []
`
