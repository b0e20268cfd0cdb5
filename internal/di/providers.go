package di

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"TradePilot/internal/domain/models"
	domrepo "TradePilot/internal/domain/repository"
	domsvc "TradePilot/internal/domain/service"
	"TradePilot/internal/handler/api"
	"TradePilot/internal/handler/ws"
	"TradePilot/internal/registry"
	internalrepo "TradePilot/internal/repository"
	"TradePilot/internal/risk"
	"TradePilot/internal/services/analytics"
	"TradePilot/internal/services/events"
	"TradePilot/internal/services/retrain"
	"TradePilot/internal/usecase"
	"TradePilot/pkg/cache"
	pkgch "TradePilot/pkg/clickhouse"
	"TradePilot/pkg/config"
	xhttp "TradePilot/pkg/http"
	pkgkafka "TradePilot/pkg/kafka"
	applogger "TradePilot/pkg/logger"
	"TradePilot/pkg/metrics"
	"TradePilot/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRegistry creates the model registry rooted at the configured directory.
func ProvideRegistry(cfg *config.Config, l *applogger.Logger) *registry.Registry {
	return registry.New(cfg.Models.Dir, l)
}

// ProvideWatcher creates the filesystem watcher when enabled. A nil watcher
// means hot reload happens only through the explicit reload endpoint.
func ProvideWatcher(cfg *config.Config, reg *registry.Registry, l *applogger.Logger) (*registry.Watcher, error) {
	if !cfg.Models.WatchDir {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.Models.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	return registry.NewWatcher(reg, l, cfg.Models.WatchDebounce)
}

// ProvideRiskManager creates the portfolio risk manager with YAML-overridable
// limits on top of the terminal-side defaults.
func ProvideRiskManager(cfg *config.Config, l *applogger.Logger) *risk.Manager {
	limits := models.DefaultRiskLimits()
	if cfg.Risk.MaxTotalPositions > 0 {
		limits.MaxTotalPositions = cfg.Risk.MaxTotalPositions
	}
	if cfg.Risk.MaxDrawdownPct > 0 {
		limits.MaxDrawdownPct = cfg.Risk.MaxDrawdownPct
	}
	if cfg.Risk.MaxDailyLossPct > 0 {
		limits.MaxDailyLossPct = cfg.Risk.MaxDailyLossPct
	}
	if cfg.Risk.MaxTotalRiskPct > 0 {
		limits.MaxTotalRiskPct = cfg.Risk.MaxTotalRiskPct
	}
	if cfg.Risk.MaxPerSymbol > 0 {
		limits.MaxPerSymbol = cfg.Risk.MaxPerSymbol
	}
	if cfg.Risk.MaxPerSymbolDirection > 0 {
		limits.MaxPerSymbolDirection = cfg.Risk.MaxPerSymbolDirection
	}
	if cfg.Risk.RiskPerTradePct > 0 {
		limits.RiskPerTradePct = cfg.Risk.RiskPerTradePct
	}
	if cfg.Risk.MaxRiskPerTradePct > 0 {
		limits.MaxRiskPerTradePct = cfg.Risk.MaxRiskPerTradePct
	}
	return risk.NewManager(limits, l)
}

// ProvideCache creates the collaborator response cache. Redis-backed layered
// cache when configured, in-process memory cache otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) cache.Service {
	if !cfg.Analytics.Redis.Enabled {
		return cache.NewMemoryCache()
	}
	host, portStr, err := net.SplitHostPort(cfg.Analytics.Redis.Addr)
	if err != nil {
		l.Warn("invalid redis addr, falling back to memory cache",
			applogger.String("addr", cfg.Analytics.Redis.Addr), applogger.Error(err))
		return cache.NewMemoryCache()
	}
	port, _ := strconv.Atoi(portStr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Analytics.Redis.Password),
		cache.WithRedisDB(cfg.Analytics.Redis.DB),
	)
	if err != nil {
		l.Warn("redis unavailable, falling back to memory cache", applogger.Error(err))
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc)
}

// ProvideHealthTelemetry creates the model-health collaborator client.
func ProvideHealthTelemetry(cfg *config.Config, c cache.Service, l *applogger.Logger) domsvc.HealthTelemetry {
	return analytics.NewHTTPHealthTelemetry(cfg, c, l)
}

// ProvidePortfolioProvider creates the portfolio collaborator client.
func ProvidePortfolioProvider(cfg *config.Config, c cache.Service, l *applogger.Logger) domsvc.PortfolioProvider {
	return analytics.NewHTTPPortfolioProvider(cfg, c, l)
}

// ProvideClickHouseClient creates the ClickHouse client, or nil when the
// training store is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideTrainingStore creates the ClickHouse-backed training example store,
// or nil when ClickHouse is disabled.
func ProvideTrainingStore(chClient *pkgch.Client, l *applogger.Logger) (domrepo.TrainingStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewCHTrainingStore(chClient, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("training store schema: %w", err)
	}
	return store, nil
}

// ProvideRunLog creates the SQLite retrain audit log, or nil when unset.
func ProvideRunLog(cfg *config.Config) (domrepo.RunLog, error) {
	if cfg.RunLog.Path == "" {
		return nil, nil
	}
	return internalrepo.NewSQLiteRunLog(cfg.RunLog.Path)
}

// ProvideKafkaProducer creates the decision event producer, or nil when
// Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the portfolio/trade-event consumer with both
// topic handlers registered, or nil when Kafka is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	riskMgr *risk.Manager,
	store domrepo.TrainingStore,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	if cfg.Kafka.Consumer.PortfolioTopic != "" {
		consumer.RegisterHandler(usecase.NewPortfolioSnapshotHandler(cfg.Kafka.Consumer.PortfolioTopic, riskMgr, l))
	}
	if cfg.Kafka.Consumer.TradesClosedTopic != "" && store != nil {
		consumer.RegisterHandler(usecase.NewTradeClosedHandler(cfg.Kafka.Consumer.TradesClosedTopic, store, l))
	}
	return consumer, nil
}

// ProvideHub creates the websocket event hub.
func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideEventSink fans decision and retrain events to Kafka and websockets.
func ProvideEventSink(cfg *config.Config, producer *pkgkafka.Producer, hub *ws.Hub, l *applogger.Logger) domsvc.EventSink {
	return events.NewSink(l, producer, cfg.Kafka.DecisionsTopic, hub)
}

// ProvideRetrainFramework creates the walk-forward retraining framework with
// YAML overrides on top of the framework defaults.
func ProvideRetrainFramework(cfg *config.Config, l *applogger.Logger) *retrain.Framework {
	fc := retrain.DefaultConfig(cfg.Retrain.OutputDir)
	if cfg.Retrain.MinSamples > 0 {
		fc.MinSamples = cfg.Retrain.MinSamples
	}
	if cfg.Retrain.MinSamplesAbsolute > 0 {
		fc.MinSamplesAbsolute = cfg.Retrain.MinSamplesAbsolute
	}
	if cfg.Retrain.MaxFeatures > 0 {
		fc.MaxFeatures = cfg.Retrain.MaxFeatures
	}
	if cfg.Retrain.SelectionMethod != "" {
		fc.SelectionMethod = cfg.Retrain.SelectionMethod
	}
	if cfg.Retrain.AccuracyFloor > 0 {
		fc.AccuracyFloor = cfg.Retrain.AccuracyFloor
	}
	if cfg.Retrain.LenientAccuracyFloor > 0 {
		fc.LenientAccuracyFloor = cfg.Retrain.LenientAccuracyFloor
	}
	if cfg.Retrain.CalibrationMethod != "" {
		fc.CalibrationMethod = cfg.Retrain.CalibrationMethod
	}
	if cfg.Retrain.CalibrationErrorCeiling > 0 {
		fc.CalibrationErrorCeiling = cfg.Retrain.CalibrationErrorCeiling
	}
	if cfg.Retrain.ModelVersion > 0 {
		fc.ModelVersion = cfg.Retrain.ModelVersion
	}
	return retrain.NewFramework(fc, l)
}

// ProvidePredictionService wires the serving pipeline.
func ProvidePredictionService(
	cfg *config.Config,
	l *applogger.Logger,
	reg *registry.Registry,
	riskMgr *risk.Manager,
	telemetry domsvc.HealthTelemetry,
	portfolio domsvc.PortfolioProvider,
	sink domsvc.EventSink,
	m domrepo.Metrics,
) *usecase.PredictionService {
	return usecase.NewPredictionService(cfg, l, reg, riskMgr, telemetry, portfolio, sink, m)
}

// ProvideRetrainService wires the retraining orchestration.
func ProvideRetrainService(
	l *applogger.Logger,
	fw *retrain.Framework,
	store domrepo.TrainingStore,
	runlog domrepo.RunLog,
	reg *registry.Registry,
	sink domsvc.EventSink,
) *usecase.RetrainService {
	return usecase.NewRetrainService(l, fw, store, runlog, reg, sink)
}

// ProvideHandlers builds every HTTP route group.
func ProvideHandlers(
	l *applogger.Logger,
	predSvc *usecase.PredictionService,
	retrainSvc *usecase.RetrainService,
	riskMgr *risk.Manager,
	hub *ws.Hub,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewPredictHandler(l, predSvc),
		api.NewRiskHandler(l, riskMgr),
		api.NewRetrainHandler(l, retrainSvc),
		hub,
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	reg *registry.Registry,
	watcher *registry.Watcher,
	hub *ws.Hub,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	handlers []xhttp.Handler,
	chClient *pkgch.Client,
) *server.App {
	var closers []server.Closer
	if chClient != nil {
		closers = append(closers, chClient)
	}
	return server.New(cfg, l, reg, watcher, hub, consumer, producer, handlers, closers)
}
