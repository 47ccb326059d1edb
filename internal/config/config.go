package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log               LoggingConfig             `yaml:"log"`
	Exchanges         map[string]ExchangeConfig `yaml:"exchanges"`
	Grid              GridConfig                `yaml:"grid"`
	Risk              RiskConfig                `yaml:"risk"`
	CancelStaleOrders StaleOrdersConfig         `yaml:"cancel_stale_orders"`
	Throttle          ThrottleConfig            `yaml:"throttle"`
	State             StateConfig               `yaml:"state"`
	Timescale         TimescaleConfig           `yaml:"timescale"`
	Metrics           MetricsConfig             `yaml:"metrics"`
	Telegram          TelegramConfig            `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ExchangeConfig struct {
	ExchangeName   string        `yaml:"exchange_name"`
	Symbol         string        `yaml:"symbol"`
	BaseURL        string        `yaml:"base_url"`
	WSURL          string        `yaml:"ws_url"`
	Timeout        time.Duration `yaml:"timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	// APIToken is used directly when set; otherwise WalletKey (hex private
	// key) performs a signature login to obtain a session token. Both may
	// instead come from the environment (<NAME>_API_TOKEN, <NAME>_WALLET_KEY
	// with the exchange name uppercased), which takes precedence.
	APIToken  string `yaml:"api_token"`
	WalletKey string `yaml:"wallet_key"`
}

type GridConfig struct {
	PriceStep     int64   `yaml:"price_step"`
	GridCount     int     `yaml:"grid_count"`
	PriceSpread   float64 `yaml:"price_spread"`
	OrderQuantity float64 `yaml:"order_quantity"`
	SleepSeconds  float64 `yaml:"sleep_interval"`
}

// SleepInterval returns the pause between reconciliation cycles.
func (g GridConfig) SleepInterval() time.Duration {
	return time.Duration(g.SleepSeconds * float64(time.Second))
}

type RiskConfig struct {
	Enable          bool          `yaml:"enable"`
	ADXThreshold    float64       `yaml:"adx_threshold"`
	ADXMax          float64       `yaml:"adx_max"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CandleInterval  string        `yaml:"candle_interval"`
	Period          int           `yaml:"period"`
	SignalBaseURL   string        `yaml:"signal_base_url"`
}

type StaleOrdersConfig struct {
	Enable       bool    `yaml:"enable"`
	StaleSeconds float64 `yaml:"stale_seconds"`
	// Pointer so an omitted probability is distinguishable from zero: the
	// sampling rate must be chosen deliberately, never defaulted.
	CancelProbability *float64 `yaml:"cancel_probability"`
}

func (s StaleOrdersConfig) StaleAfter() time.Duration {
	return time.Duration(s.StaleSeconds * float64(time.Second))
}

func (s StaleOrdersConfig) Probability() float64 {
	if s.CancelProbability == nil {
		return 0
	}
	return *s.CancelProbability
}

type ThrottleConfig struct {
	Cooldown    time.Duration `yaml:"cooldown"`
	IdleHorizon time.Duration `yaml:"idle_horizon"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// SelectExchange resolves the -exchange flag against the exchanges map.
func (c *Config) SelectExchange(name string) (ExchangeConfig, error) {
	if name == "" {
		return ExchangeConfig{}, errors.New("exchange name is required")
	}
	ex, ok := c.Exchanges[name]
	if !ok {
		return ExchangeConfig{}, fmt.Errorf("exchange %q not present in exchanges config", name)
	}
	if ex.ExchangeName == "" {
		ex.ExchangeName = name
	}
	if ex.Symbol == "" {
		return ExchangeConfig{}, fmt.Errorf("exchanges.%s.symbol is required", name)
	}
	return ex, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	for name, ex := range cfg.Exchanges {
		if ex.Timeout == 0 {
			ex.Timeout = 10 * time.Second
		}
		if ex.ReconnectDelay == 0 {
			ex.ReconnectDelay = 3 * time.Second
		}
		if ex.PingInterval == 0 {
			ex.PingInterval = 30 * time.Second
		}
		cfg.Exchanges[name] = ex
	}
	if cfg.Risk.ADXThreshold == 0 {
		cfg.Risk.ADXThreshold = 25
	}
	if cfg.Risk.ADXMax == 0 {
		cfg.Risk.ADXMax = 60
	}
	if cfg.Risk.RefreshInterval == 0 {
		cfg.Risk.RefreshInterval = time.Second
	}
	if cfg.Risk.CandleInterval == "" {
		cfg.Risk.CandleInterval = "5m"
	}
	if cfg.Risk.Period == 0 {
		cfg.Risk.Period = 14
	}
	if cfg.Throttle.Cooldown == 0 {
		cfg.Throttle.Cooldown = time.Second
	}
	if cfg.Throttle.IdleHorizon == 0 {
		cfg.Throttle.IdleHorizon = 10 * time.Minute
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/standx-grid-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9187"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Exchanges) == 0 {
		return errors.New("exchanges config is required")
	}
	if cfg.Grid.PriceStep <= 0 {
		return errors.New("grid.price_step must be > 0")
	}
	if cfg.Grid.GridCount < 0 {
		return errors.New("grid.grid_count must be >= 0")
	}
	if cfg.Grid.PriceSpread < 0 {
		return errors.New("grid.price_spread must be >= 0")
	}
	if cfg.Grid.OrderQuantity <= 0 {
		return errors.New("grid.order_quantity must be > 0")
	}
	if cfg.Grid.SleepSeconds <= 0 {
		return errors.New("grid.sleep_interval must be > 0")
	}
	if cfg.CancelStaleOrders.Enable {
		if cfg.CancelStaleOrders.StaleSeconds <= 0 {
			return errors.New("cancel_stale_orders.stale_seconds must be > 0")
		}
		p := cfg.CancelStaleOrders.CancelProbability
		if p == nil {
			return errors.New("cancel_stale_orders.cancel_probability must be set explicitly")
		}
		if *p < 0 || *p > 1 {
			return errors.New("cancel_stale_orders.cancel_probability must be in [0,1]")
		}
	}
	if cfg.Risk.Enable && cfg.Risk.ADXMax <= cfg.Risk.ADXThreshold {
		return errors.New("risk.adx_max must be > risk.adx_threshold")
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
