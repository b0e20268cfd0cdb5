package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Models struct {
		Dir           string        `yaml:"dir"`
		WatchDir      bool          `yaml:"watch_dir"`
		WatchDebounce time.Duration `yaml:"watch_debounce"`
	} `yaml:"models"`
	Serving struct {
		ThresholdCritical float64 `yaml:"threshold_critical"`
		ThresholdWarning  float64 `yaml:"threshold_warning"`
		ThresholdHealthy  float64 `yaml:"threshold_healthy"`
	} `yaml:"serving"`
	Risk struct {
		MaxTotalPositions     int     `yaml:"max_total_positions"`
		MaxDrawdownPct        float64 `yaml:"max_drawdown_pct"`
		MaxDailyLossPct       float64 `yaml:"max_daily_loss_pct"`
		MaxTotalRiskPct       float64 `yaml:"max_total_risk_pct"`
		MaxPerSymbol          int     `yaml:"max_per_symbol"`
		MaxPerSymbolDirection int     `yaml:"max_per_symbol_direction"`
		RiskPerTradePct       float64 `yaml:"risk_per_trade_pct"`
		MaxRiskPerTradePct    float64 `yaml:"max_risk_per_trade_pct"`
	} `yaml:"risk"`
	Retrain struct {
		OutputDir               string  `yaml:"output_dir"`
		MinSamples              int     `yaml:"min_samples"`
		MinSamplesAbsolute      int     `yaml:"min_samples_absolute"`
		MaxFeatures             int     `yaml:"max_features"`
		SelectionMethod         string  `yaml:"selection_method"`
		AccuracyFloor           float64 `yaml:"accuracy_floor"`
		LenientAccuracyFloor    float64 `yaml:"lenient_accuracy_floor"`
		CalibrationMethod       string  `yaml:"calibration_method"`
		CalibrationErrorCeiling float64 `yaml:"calibration_error_ceiling"`
		ModelVersion            float64 `yaml:"model_version"`
	} `yaml:"retrain"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		DecisionsTopic string   `yaml:"decisions_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID           string        `yaml:"group_id"`
			PortfolioTopic    string        `yaml:"portfolio_topic"`
			TradesClosedTopic string        `yaml:"trades_closed_topic"`
			Workers           int           `yaml:"workers"`
			BufferSize        int           `yaml:"buffer_size"`
			RetryMax          int           `yaml:"retry_max"`
			BackoffMin        time.Duration `yaml:"backoff_min"`
			BackoffMax        time.Duration `yaml:"backoff_max"`
			DLQTopic          string        `yaml:"dlq_topic"`
			MinBytes          int           `yaml:"min_bytes"`
			MaxBytes          int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	RunLog struct {
		Path string `yaml:"path"`
	} `yaml:"runlog"`
	Analytics struct {
		BaseURL  string        `yaml:"base_url"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL struct {
			Health    time.Duration `yaml:"health"`
			Positions time.Duration `yaml:"positions"`
			Summary   time.Duration `yaml:"summary"`
		} `yaml:"cache_ttl"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"analytics"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MODELS_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("ANALYTICS_URL"); v != "" {
		c.Analytics.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Analytics.Redis.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Models.Dir == "" {
		return fmt.Errorf("models.dir is required")
	}
	if c.Retrain.OutputDir == "" {
		c.Retrain.OutputDir = c.Models.Dir
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
