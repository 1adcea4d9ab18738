package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# NSE Options Configuration

api:
  # API base URL
  base: "https://www.nseindia.com"
  # Chain type: "index" or "stock"
  type: "index"
  # Full URL override; "{symbol}" is substituted. Leave empty to build
  # the URL from base + the path for the selected type.
  uri: ""
  paths:
    index: "/api/option-chain-indices"
    stock: "/api/option-chain-equities"
  # Extra request headers, merged over the built-in browser headers.
  headers: {}
  # Skip TLS certificate verification
  insecure: false
  # Per-request timeout
  timeout: 10s

poll:
  # Time between poll cycles
  interval: 30s
  # Wait between fetch retries within a cycle
  retry_wait: 20s
  # Fetch attempts per cycle
  max_attempts: 3
  # Consecutive failed cycles before the poller gives up
  max_failures: 5

chain:
  # Strikes kept on each side of the at-the-money strike
  nstrikes: 20
  # Per-symbol strike step overrides; unlisted symbols use the
  # exchange defaults (BANKNIFTY 100, MIDCPNIFTY 25, others 50).
  multiples: {}

output:
  # Directory for session files and snapshots
  dir: "./output"
  # Write transformed JSON snapshots per cycle
  json: true
  # Also keep the raw API response per cycle
  raw_json: true
  # Maintain a session CSV, overwritten each cycle
  csv: true
  # Persist metrics history to SQLite
  sqlite: true

log:
  level: "info"
  console: true
  file: true
`

// createTemplateConfig writes a commented config template so a first
// run leaves something editable behind.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}
