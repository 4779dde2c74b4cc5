package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  instance_id: "indexer-1"
  shutdown_timeout: 10s
logging:
  level: debug
  format: json
alerting:
  enabled: true
  telegram:
    bot_token: "bot-token"
    chat_id: "-1001"
    app_name: clmm-indexer
ingest:
  chain_id: 42161
  subject_prefix: clmm.events
  buffer: 512
dedupe:
  backend: redis
  ttl: 72h
  prefix: "clmm:dedupe:"
  bloom:
    enabled: true
    capacity: 500000
    err_rate: 0.001
stores:
  backend: redis
  redis:
    addr: localhost:6379
    prefix: "clmm:"
  clickhouse:
    enabled: true
    dsn: clickhouse://localhost:9000/default
    migrate_on_start: true
    writer:
      batch_max_rows: 500
      batch_max_interval: 250ms
pricing:
  reference_token: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1"
  reference_pool: "0x17c14d2c404d167802b16c450d3c99f88f2c4f4d"
  whitelist:
    - "0x82af49447d8a07e3bd95bd0d56f35241523fbab1"
    - "0xff970a61a04b1ca14834a43f5de4533ebddb5cc8"
  minimum_eth_locked: "0.01"
  max_eth_price_usd: "100000"
chain:
  rpc_url: https://arb1.example.org
  call_timeout: 3s
indexer:
  factory_address: "0x1f98431c8ad98523631ae4a59f267346ea31f984"
  skip_pools:
    - "0x8fe8d9bb8eeba3ed688069c3d6b556c9ca258248"
`

func TestLoad_ParsesAllSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "indexer-1", cfg.App.InstanceID)
	assert.Equal(t, 10*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, uint32(42161), cfg.Ingest.ChainID)
	assert.Equal(t, "clmm.events", cfg.Ingest.SubjectPrefix)
	assert.Equal(t, 72*time.Hour, cfg.Dedupe.TTL)
	assert.True(t, cfg.Dedupe.Bloom.Enabled)
	assert.Equal(t, int64(500000), cfg.Dedupe.Bloom.Capacity)
	assert.Equal(t, "redis", cfg.Stores.Backend)
	assert.Equal(t, "clmm:", cfg.Stores.Redis.Prefix)
	assert.Equal(t, 250*time.Millisecond, cfg.Stores.ClickHouse.Writer.BatchMaxInterval)
	assert.True(t, cfg.Stores.ClickHouse.MigrateOnStart)
	assert.True(t, cfg.Alerting.Enabled)
	assert.Equal(t, "-1001", cfg.Alerting.Telegram.ChatID)
	assert.Equal(t, "clmm-indexer", cfg.Alerting.Telegram.AppName)
	assert.Len(t, cfg.Pricing.Whitelist, 2)
	assert.Equal(t, "0.01", cfg.Pricing.MinimumEthLocked)
	assert.Equal(t, 3*time.Second, cfg.Chain.CallTimeout)
	assert.Equal(t, []string{"0x8fe8d9bb8eeba3ed688069c3d6b556c9ca258248"}, cfg.Indexer.SkipPools)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
