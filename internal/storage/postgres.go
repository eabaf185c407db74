package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kirillm/signal-bot/internal/domain"
	"github.com/kirillm/signal-bot/internal/storage/repository"
)

// Переопределяем типы из domain для краткости вызывающего кода
type (
	PriceSample     = domain.PriceSample
	SignalRecord    = domain.SignalRecord
	TradeRecord     = domain.TradeRecord
	AnalysisSummary = domain.AnalysisSummary
)

// PostgresStorage является фасадом для работы с PostgreSQL через репозитории.
// Все таблицы append-only: журнал читается назад только при сверке позиций
// и для периодических агрегатов.
type PostgresStorage struct {
	db        *sql.DB
	prices    *repository.PriceRepository
	signals   *repository.SignalRepository
	trades    *repository.TradeRepository
	summaries *repository.SummaryRepository
}

func NewPostgresStorage(host string, port int, user, password, dbname, sslmode string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*PostgresStorage, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseConnection, err)
	}

	// Настройка connection pool из конфигурации
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	storage := &PostgresStorage{
		db:        db,
		prices:    repository.NewPriceRepository(db),
		signals:   repository.NewSignalRepository(db),
		trades:    repository.NewTradeRepository(db),
		summaries: repository.NewSummaryRepository(db),
	}

	// Запускаем миграции
	if err := storage.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) migrate() error {
	migrations := []string{
		// Журнал цен
		`CREATE TABLE IF NOT EXISTS prices (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		// Журнал сигналов классификатора
		`CREATE TABLE IF NOT EXISTS signals (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			signal VARCHAR(10) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			rsi DECIMAL(10, 4) NOT NULL DEFAULT 0,
			macd DECIMAL(20, 8) NOT NULL DEFAULT 0,
			risk_score DECIMAL(10, 4) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		// Журнал сделок: пишется каждая попытка, успешная или нет
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			action VARCHAR(20) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			profit_pct DECIMAL(10, 4) NOT NULL DEFAULT 0,
			profit_abs DECIMAL(20, 8) NOT NULL DEFAULT 0,
			order_id VARCHAR(100),
			status VARCHAR(20) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		// Периодические агрегаты по сделкам
		`CREATE TABLE IF NOT EXISTS analysis_summaries (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			action_prefix VARCHAR(10) NOT NULL,
			trade_count INTEGER NOT NULL DEFAULT 0,
			sum_profit_pct DECIMAL(20, 8) NOT NULL DEFAULT 0,
			mean_profit_pct DECIMAL(20, 8) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		// Индексы
		`CREATE INDEX IF NOT EXISTS idx_prices_symbol_created ON prices(symbol, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_created ON signals(symbol, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_created ON trades(symbol, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_action ON trades(action)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close закрывает подключение к БД
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// SavePrice сохраняет замер цены
func (s *PostgresStorage) SavePrice(sample *PriceSample) error {
	return s.prices.Save(sample)
}

// GetRecentPrices возвращает последние замеры цены символа
func (s *PostgresStorage) GetRecentPrices(symbol string, limit int) ([]PriceSample, error) {
	return s.prices.GetRecent(symbol, limit)
}

// SaveSignal сохраняет сигнал итерации
func (s *PostgresStorage) SaveSignal(signal *SignalRecord) error {
	return s.signals.Save(signal)
}

// GetRecentSignals возвращает последние сигналы символа
func (s *PostgresStorage) GetRecentSignals(symbol string, limit int) ([]SignalRecord, error) {
	return s.signals.GetRecent(symbol, limit)
}

// SaveTrade сохраняет запись о попытке сделки
func (s *PostgresStorage) SaveTrade(trade *TradeRecord) error {
	return s.trades.Save(trade)
}

// GetRecentTrades возвращает последние сделки символа
func (s *PostgresStorage) GetRecentTrades(symbol string, limit int) ([]TradeRecord, error) {
	return s.trades.GetRecent(symbol, limit)
}

// LastTradeBySide возвращает последнюю сделку с данным префиксом действия
func (s *PostgresStorage) LastTradeBySide(symbol, sidePrefix string) (*TradeRecord, error) {
	return s.trades.LastBySide(symbol, sidePrefix)
}

// TradesSince возвращает число успешных сделок и сумму profit_abs с момента since
func (s *PostgresStorage) TradesSince(since time.Time) (int, float64, error) {
	return s.trades.CountSince(since)
}

// SaveSummary сохраняет агрегат
func (s *PostgresStorage) SaveSummary(summary *AnalysisSummary) error {
	return s.summaries.Save(summary)
}

// BuildSummary считает агрегат по сделкам символа с данным префиксом действия
func (s *PostgresStorage) BuildSummary(symbol, actionPrefix string) (*AnalysisSummary, error) {
	return s.summaries.BuildForSymbol(symbol, actionPrefix)
}
