package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apihttp "dexanalytics/internal/api/http"
	"dexanalytics/internal/api/http/handlers"
	"dexanalytics/internal/api/http/mw"
	"dexanalytics/internal/config"
	"dexanalytics/internal/dedupe"
	rdbdedupe "dexanalytics/internal/dedupe/redis"
	"dexanalytics/internal/metrics"
	"dexanalytics/internal/pricing"
	"dexanalytics/internal/pubsub/nats"
	"dexanalytics/internal/security"
	"dexanalytics/internal/service"
	"dexanalytics/internal/store"
	"dexanalytics/internal/stores/clickhouse"
	"dexanalytics/internal/stores/redis"
	"dexanalytics/internal/tokenmeta"
	"dexanalytics/internal/window"

	"github.com/google/uuid"
	"gitlab.com/nevasik7/alerting"
	tgalert "gitlab.com/nevasik7/alerting/alerters"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Container struct {
	log logger.Logger
	app *App
}

// Build wires every component; cleanup releases what was opened, in reverse order
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	if cfg == nil {
		return nil, func() {}, errors.New("config is required")
	}

	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		lg.Info("Successfully cleaned up dependency")
	}
	fail := func(err error) (*Container, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	var alert clickhouse.Alerter
	if cfg.Alerting.Enabled {
		al, err := newAlerting(lg, &cfg.Alerting)
		if err != nil {
			return fail(fmt.Errorf("alerting: %w", err))
		}
		alert = al
		lg.Infof("Successfully initialize telegram alerting, app=%s", cfg.Alerting.Telegram.AppName)
	}

	instanceID := cfg.App.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	profiler, err := metrics.InitPProf(&cfg.Metrics.Pyroscope, instanceID)
	if err != nil {
		return fail(fmt.Errorf("pyroscope: %w", err))
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s", cfg.Metrics.Pyroscope.ServerAddr)
		closers = append(closers, func() {
			if err := profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		})
	}

	m := metrics.New(cfg.Metrics.Namespace, nil)

	storeBackend := backendOrDefault(cfg.Stores.Backend)
	dedupeBackend := backendOrDefault(cfg.Dedupe.Backend)

	var rdb *redis.Client
	if storeBackend == BackendRedis || dedupeBackend == BackendRedis || cfg.RateLimit.Enabled {
		if rdb, err = redis.New(ctx, &cfg.Stores.Redis); err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)
		closers = append(closers, func() {
			if err := rdb.Close(); err != nil {
				lg.Errorf("Failed to close redis client: %v", err)
			}
		})
	}

	// Entity store
	var st store.Store
	switch storeBackend {
	case BackendMemory:
		st = store.NewMemoryStore(lg)
	case BackendRedis:
		// the redis client is closed by its own closer
		if st, err = store.NewRedisStore(lg, rdb, cfg.Stores.Redis.Prefix); err != nil {
			return fail(err)
		}
	default:
		return fail(fmt.Errorf("unknown store backend %q", cfg.Stores.Backend))
	}
	lg.Infof("Successfully initialize %s entity store", storeBackend)

	repo, err := store.NewRepository(st)
	if err != nil {
		return fail(err)
	}

	// Dedupe
	var deduper dedupe.Deduper
	switch dedupeBackend {
	case BackendMemory:
		mem := dedupe.NewInMemoryDedupe(lg, cfg.Dedupe.TTL, cfg.Dedupe.JanitorEvery)
		closers = append(closers, mem.Close)
		deduper = mem
	case BackendRedis:
		var bloom *rdbdedupe.Bloom
		if cfg.Dedupe.Bloom.Enabled {
			if bloom, err = rdbdedupe.NewBloom(&cfg.Dedupe.Bloom, rdb); err != nil {
				return fail(fmt.Errorf("bloom: %w", err))
			}
			lg.Infof("Successfully initialize Bloom by key=%s, cap=%d, errRate=%f", bloom.Key, bloom.Capacity, bloom.ErrRate)
		}
		if deduper, err = rdbdedupe.NewRedisDeduper(lg, &cfg.Dedupe, rdb, bloom); err != nil {
			return fail(fmt.Errorf("redis deduper: %w", err))
		}
	default:
		return fail(fmt.Errorf("unknown dedupe backend %q", cfg.Dedupe.Backend))
	}
	lg.Infof("Successfully initialize %s deduper", dedupeBackend)

	// Pricing and rollups
	pricer, err := pricing.NewPricer(lg, &cfg.Pricing, repo)
	if err != nil {
		return fail(fmt.Errorf("pricer: %w", err))
	}
	rollup, err := window.NewRollup(lg, repo)
	if err != nil {
		return fail(fmt.Errorf("rollup: %w", err))
	}

	// Token metadata, RPC is optional
	var fetcher tokenmeta.Fetcher
	if cfg.Chain.RPCURL != "" {
		erc20, closeRPC, err := tokenmeta.DialERC20Fetcher(ctx, cfg.Chain.RPCURL, cfg.Chain.CallTimeout)
		if err != nil {
			return fail(fmt.Errorf("erc20 fetcher: %w", err))
		}
		closers = append(closers, closeRPC)
		fetcher = erc20
		lg.Info("Successfully initialize ERC-20 metadata fetcher")
	} else {
		lg.Warn("chain.rpc_url is empty, token metadata comes from the static table only")
	}
	resolver := tokenmeta.NewResolver(lg, fetcher)

	// NATS: ingest and patches share one connection
	natsCl, err := nats.New(lg, &cfg.PubSub.NATS)
	if err != nil {
		return fail(fmt.Errorf("nats: %w", err))
	}
	closers = append(closers, func() {
		if err := natsCl.Close(); err != nil {
			lg.Errorf("Failed to close nats client: %v", err)
		}
	})

	deps := service.Deps{
		Repo:        repo,
		Pricer:      pricer,
		Rollup:      rollup,
		Resolver:    resolver,
		Deduper:     deduper,
		Broadcaster: natsCl,
		Metrics:     m,
	}

	// ClickHouse analytics sink, optional
	if cfg.Stores.ClickHouse.Enabled {
		ch, err := clickhouse.New(ctx, &cfg.Stores.ClickHouse)
		if err != nil {
			return fail(fmt.Errorf("clickhouse: %w", err))
		}
		closers = append(closers, func() {
			if err := ch.Close(); err != nil {
				lg.Errorf("Failed to close clickhouse client: %v", err)
			}
		})
		lg.Infof("Successfully initialize clickhouse client, url=%s", strings.Split(cfg.Stores.ClickHouse.DSN, "?")[0])

		writer, err := clickhouse.NewWriter(lg, alert, m, ch.Native, cfg.Stores.ClickHouse.Writer)
		if err != nil {
			return fail(fmt.Errorf("clickhouse writer: %w", err))
		}
		// registered after the conn, so the queue is flushed before the conn closes
		closers = append(closers, func() {
			ctxClose, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := writer.Close(ctxClose); err != nil {
				lg.Errorf("Failed to close clickhouse writer: %v", err)
			}
		})
		deps.Sink = writer
	}

	indexer, err := service.NewIndexerService(lg, service.Options{
		ChainID:         cfg.Ingest.ChainID,
		FactoryAddress:  cfg.Indexer.FactoryAddress,
		SkipPools:       cfg.Indexer.SkipPools,
		BroadcastPrefix: cfg.PubSub.NATS.BroadcastPrefix,
	}, deps)
	if err != nil {
		return fail(fmt.Errorf("indexer: %w", err))
	}

	subscriber, err := nats.NewSubscriber(lg, natsCl, &cfg.Ingest, indexer)
	if err != nil {
		return fail(fmt.Errorf("subscriber: %w", err))
	}

	// HTTP
	var mws apihttp.Middlewares
	mws.CORS = mw.NewCORS(&cfg.API.HTTP.CORS)
	if cfg.Security.JWT.Enabled {
		verifier, err := security.NewRS256Verifier(&cfg.Security.JWT)
		if err != nil {
			return fail(fmt.Errorf("jwt verifier: %w", err))
		}
		if mws.JWT, err = mw.NewJWTMiddleware(verifier); err != nil {
			return fail(err)
		}
		lg.Info("Successfully initialize JWT-Verifier")
	}
	if cfg.RateLimit.Enabled {
		if mws.RateLimit, err = mw.NewRateLimit(lg, rdb, &cfg.RateLimit); err != nil {
			return fail(fmt.Errorf("rate limit: %w", err))
		}
	}

	h, err := handlers.NewHandler(lg, indexer)
	if err != nil {
		return fail(err)
	}
	httpSrv, err := apihttp.NewServer(lg, &cfg.API.HTTP, apihttp.BuildRouter(lg, h, metrics.Handler(), mws))
	if err != nil {
		return fail(err)
	}
	lg.Infof("Successfully initialize HTTP server on %s", httpSrv.Addr())

	lg.Infof("Successfully initialize Wiring, instance=%s", instanceID)
	return &Container{
		log: lg,
		app: New(lg, httpSrv, subscriber),
	}, cleanup, nil
}

func backendOrDefault(b string) string {
	if b == "" {
		return BackendRedis
	}
	return strings.ToLower(b)
}

func newAlerting(lg logger.Logger, cfg *config.AlertingConfig) (*alerting.Alerting, error) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		return nil, errors.New("telegram bot_token and chat_id are required")
	}

	tg := cfg.Telegram
	if tg.AppName == "" {
		tg.AppName = "clmm-indexer"
	}

	al := alerting.NewAlerting(lg, tgalert.NewTelegramAlerter(&tg, lg))
	return &al, nil
}
