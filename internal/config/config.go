package config

import (
	"errors"
	"os"
	"time"

	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Dedupe    DedupeConfig    `yaml:"dedupe"`
	Stores    StoresConfig    `yaml:"stores"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Chain     ChainConfig     `yaml:"chain"`
	Indexer   IndexerConfig   `yaml:"indexer"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// AlertingConfig sends operator alerts (dropped analytics batches) to Telegram
type AlertingConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Telegram lgcfg.TelegramCfg `yaml:"telegram"`
}

type JWTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Alg            string        `yaml:"alg"` // RS256
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	Audience       string        `yaml:"audience"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

type RateBucket struct {
	RefillPerSec int           `yaml:"refill_per_sec"`
	Burst        int           `yaml:"burst"`
	TTL          time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	Enabled bool       `yaml:"enabled"`
	ByJWT   RateBucket `yaml:"by_jwt"`
	ByIP    RateBucket `yaml:"by_ip"`
}

// IngestConfig describes where decoded pool events come from
type IngestConfig struct {
	ChainID       uint32 `yaml:"chain_id"`
	SubjectPrefix string `yaml:"subject_prefix"` // events arrive on <prefix>.<kind>
	Buffer        int    `yaml:"buffer"`         // channel size between NATS and the single consumer
}

type BloomConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Key      string  `yaml:"key"`
	Capacity int64   `yaml:"capacity"`
	ErrRate  float64 `yaml:"err_rate"`
}

type DedupeConfig struct {
	Backend      string        `yaml:"backend"` // redis|memory
	TTL          time.Duration `yaml:"ttl"`
	Prefix       string        `yaml:"prefix"`
	JanitorEvery time.Duration `yaml:"janitor_every"`
	Bloom        BloomConfig   `yaml:"bloom"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"` // entity key prefix
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	QueueSize        int           `yaml:"queue_size"`
}

type ClickHouseConfig struct {
	Enabled        bool                   `yaml:"enabled"`
	DSN            string                 `yaml:"dsn"`
	MigrateOnStart bool                   `yaml:"migrate_on_start"` // create tables when missing
	Writer         ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Backend    string           `yaml:"backend"` // redis|memory, entity store
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type NATSConfig struct {
	URL             string `yaml:"url"`
	BroadcastPrefix string `yaml:"broadcast_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool              `yaml:"enabled"`
	AppName    string            `yaml:"app_name"`
	ServerAddr string            `yaml:"server_addr"`
	AuthToken  string            `yaml:"auth_token"`
	Tags       map[string]string `yaml:"tags"`
}

type MetricsConfig struct {
	Namespace string          `yaml:"namespace"`
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

// PricingConfig holds the pricing anchors and sanity bounds; decimal values are strings to keep precision
type PricingConfig struct {
	ReferenceToken     string   `yaml:"reference_token"` // wrapped native token
	ReferencePool      string   `yaml:"reference_pool"`  // stablecoin/reference pool used for the USD price
	Whitelist          []string `yaml:"whitelist"`
	MinimumEthLocked   string   `yaml:"minimum_eth_locked"`
	MaxEthPriceUSD     string   `yaml:"max_eth_price_usd"`
	MaxDerivedETH      string   `yaml:"max_derived_eth"`
	DefaultEthPriceUSD string   `yaml:"default_eth_price_usd"`
}

// ChainConfig is the RPC used for ERC-20 metadata calls; empty URL disables calls
type ChainConfig struct {
	RPCURL      string        `yaml:"rpc_url"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

type IndexerConfig struct {
	FactoryAddress string   `yaml:"factory_address"`
	SkipPools      []string `yaml:"skip_pools"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
