package domain

import "time"

// PriceRepository определяет интерфейс для журнала цен
type PriceRepository interface {
	Save(sample *PriceSample) error
	GetRecent(symbol string, limit int) ([]PriceSample, error)
}

// SignalRepository определяет интерфейс для журнала сигналов
type SignalRepository interface {
	Save(signal *SignalRecord) error
	GetRecent(symbol string, limit int) ([]SignalRecord, error)
}

// TradeRepository определяет интерфейс для журнала сделок
type TradeRepository interface {
	Save(trade *TradeRecord) error
	GetRecent(symbol string, limit int) ([]TradeRecord, error)
	// LastBySide возвращает последнюю сделку символа с данным префиксом
	// действия ("BUY"/"SELL"). Используется только при сверке позиции.
	LastBySide(symbol, sidePrefix string) (*TradeRecord, error)
	// CountSince возвращает число успешных сделок и сумму их profit_abs
	// начиная с момента since. Используется дневным риск-лимитом.
	CountSince(since time.Time) (int, float64, error)
}

// SummaryRepository определяет интерфейс для агрегатов по сделкам
type SummaryRepository interface {
	Save(summary *AnalysisSummary) error
	// BuildForSymbol считает count/sum/mean profit_pct по префиксу действия
	BuildForSymbol(symbol, actionPrefix string) (*AnalysisSummary, error)
}
