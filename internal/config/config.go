package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kirillm/signal-bot/internal/domain"
)

// Config содержит все настройки приложения
type Config struct {
	Telegram TelegramConfig
	Bybit    BybitConfig
	Database DatabaseConfig
	Strategy StrategyConfig
	LogLevel string
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type BybitConfig struct {
	APIKey      string
	APISecret   string
	BaseURL     string
	RequestsSec float64 // лимит запросов к API в секунду
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StrategyConfig описывает торговую стратегию. Загружается один раз
// из YAML-документа и не меняется до конца работы процесса.
type StrategyConfig struct {
	Symbols     []string           `yaml:"symbols"`
	Allocations map[string]float64 `yaml:"allocations"` // вес символа в пуле капитала

	RSIPeriod  int     `yaml:"rsi_period"`
	RSIOB      float64 `yaml:"rsi_ob"`
	RSIOS      float64 `yaml:"rsi_os"`
	MACDFast   int     `yaml:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal"`

	StopLossPct   float64 `yaml:"stop_loss"`   // процент убытка для полного выхода
	TakeProfitPct float64 `yaml:"take_profit"` // процент прибыли для фиксации
	TrailingTPPct float64 `yaml:"trailing_tp"` // отступ trailing stop от максимума прибыли
	DCADropPct    float64 `yaml:"dca_drop"`    // просадка от средней цены входа для докупки
	SafetyMargin  float64 `yaml:"safety_margin"`
	MinNotional   float64 `yaml:"min_notional"` // минимальный размер ордера биржи, USDT
	QuoteAsset    string  `yaml:"quote_asset"`

	ReentryCooldown   Duration `yaml:"reentry_cooldown"`     // пауза после продажи
	ReentryDiscount   float64  `yaml:"reentry_discount_pct"` // минимальная скидка к цене выхода
	MaxTradesPerDay   int      `yaml:"max_trades_per_day"`
	MaxDailyLoss      float64  `yaml:"max_daily_loss"` // USDT
	PollInterval      Duration `yaml:"poll_interval"`
	SummaryIterations int      `yaml:"summary_iterations"` // период записи агрегатов, в итерациях
}

// Duration разбирает длительности вида "30s" и "15m" из YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Std возвращает стандартный time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultStrategy возвращает консервативные значения по умолчанию.
// Используются при отсутствии или ошибке разбора strategy.yaml.
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		Symbols:           []string{"BTCUSDT"},
		Allocations:       map[string]float64{"BTCUSDT": 1.0},
		RSIPeriod:         14,
		RSIOB:             70,
		RSIOS:             30,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		StopLossPct:       2.0,
		TakeProfitPct:     3.0,
		TrailingTPPct:     1.5,
		DCADropPct:        5.0,
		SafetyMargin:      0.01,
		MinNotional:       10,
		QuoteAsset:        "USDT",
		ReentryCooldown:   Duration(30 * time.Minute),
		ReentryDiscount:   0.5,
		MaxTradesPerDay:   5,
		MaxDailyLoss:      50,
		PollInterval:      Duration(15 * time.Second),
		SummaryIterations: 60,
	}
}

// Load загружает конфигурацию из .env файла и strategy.yaml
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	requestsSec, err := strconv.ParseFloat(getEnv("BYBIT_REQUESTS_PER_SEC", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BYBIT_REQUESTS_PER_SEC: %w", err)
	}

	strategy := LoadStrategy(getEnv("STRATEGY_FILE", "strategy.yaml"))

	config := &Config{
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Bybit: BybitConfig{
			APIKey:      getEnv("BYBIT_API_KEY", ""),
			APISecret:   getEnv("BYBIT_API_SECRET", ""),
			BaseURL:     getEnv("BYBIT_BASE_URL", "https://api.bybit.com"),
			RequestsSec: requestsSec,
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "signal_bot"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		Strategy: strategy,
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadStrategy загружает стратегию из YAML. Любая проблема с файлом
// приводит к дефолтам, а не к остановке: нет стратегии — торгуем консервативно.
func LoadStrategy(path string) StrategyConfig {
	strategy := DefaultStrategy()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Warning: strategy file %s not found, using defaults\n", path)
		return strategy
	}

	if err := yaml.Unmarshal(data, &strategy); err != nil {
		fmt.Printf("Warning: failed to parse %s (%v), using defaults\n", path, err)
		return DefaultStrategy()
	}

	return strategy.Normalize()
}

// Normalize заполняет пропущенные поля дефолтами и чинит аллокации
func (s StrategyConfig) Normalize() StrategyConfig {
	def := DefaultStrategy()

	if s.RSIPeriod <= 0 {
		s.RSIPeriod = def.RSIPeriod
	}
	if s.RSIOB <= 0 {
		s.RSIOB = def.RSIOB
	}
	if s.RSIOS <= 0 {
		s.RSIOS = def.RSIOS
	}
	if s.MACDFast <= 0 {
		s.MACDFast = def.MACDFast
	}
	if s.MACDSlow <= 0 {
		s.MACDSlow = def.MACDSlow
	}
	if s.MACDSignal <= 0 {
		s.MACDSignal = def.MACDSignal
	}
	if s.StopLossPct <= 0 {
		s.StopLossPct = def.StopLossPct
	}
	if s.TakeProfitPct <= 0 {
		s.TakeProfitPct = def.TakeProfitPct
	}
	if s.TrailingTPPct <= 0 {
		s.TrailingTPPct = def.TrailingTPPct
	}
	if s.DCADropPct <= 0 {
		s.DCADropPct = def.DCADropPct
	}
	if s.SafetyMargin <= 0 {
		s.SafetyMargin = def.SafetyMargin
	}
	if s.MinNotional <= 0 {
		s.MinNotional = def.MinNotional
	}
	if s.QuoteAsset == "" {
		s.QuoteAsset = def.QuoteAsset
	}
	if s.ReentryCooldown <= 0 {
		s.ReentryCooldown = def.ReentryCooldown
	}
	if s.ReentryDiscount <= 0 {
		s.ReentryDiscount = def.ReentryDiscount
	}
	if s.MaxTradesPerDay <= 0 {
		s.MaxTradesPerDay = def.MaxTradesPerDay
	}
	if s.MaxDailyLoss <= 0 {
		s.MaxDailyLoss = def.MaxDailyLoss
	}
	if s.PollInterval <= 0 {
		s.PollInterval = def.PollInterval
	}
	if s.SummaryIterations <= 0 {
		s.SummaryIterations = def.SummaryIterations
	}

	// Символ без веса получает равную долю от нераспределённого остатка
	if s.Allocations == nil {
		s.Allocations = make(map[string]float64)
	}
	missing := 0
	used := 0.0
	for _, symbol := range s.Symbols {
		if w, ok := s.Allocations[symbol]; ok && w > 0 {
			used += w
		} else {
			missing++
		}
	}
	if missing > 0 && used < 1.0 {
		share := (1.0 - used) / float64(missing)
		for _, symbol := range s.Symbols {
			if w, ok := s.Allocations[symbol]; !ok || w <= 0 {
				s.Allocations[symbol] = share
			}
		}
	}

	return s
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.Bybit.APIKey == "" {
		return fmt.Errorf("BYBIT_API_KEY is required")
	}
	if c.Bybit.APISecret == "" {
		return fmt.Errorf("BYBIT_API_SECRET is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if len(c.Strategy.Symbols) == 0 {
		return domain.ErrNoSymbols
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
