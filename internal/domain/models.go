package domain

import "time"

// PriceSample представляет один замер цены для символа
type PriceSample struct {
	ID        int64     `db:"id"`
	Symbol    string    `db:"symbol"`
	Price     float64   `db:"price"`
	CreatedAt time.Time `db:"created_at"`
}

// IndicatorSnapshot представляет значения индикаторов на момент последнего замера.
// Не персистится: в БД сохраняется только производный от него сигнал.
type IndicatorSnapshot struct {
	RSI        float64
	MACD       float64
	MACDSignal float64
	Volatility float64
	RiskScore  float64
}

// SignalRecord представляет сигнал классификатора для символа на одной итерации
type SignalRecord struct {
	ID        int64     `db:"id"`
	Symbol    string    `db:"symbol"`
	Signal    string    `db:"signal"` // "BUY", "SELL", "HOLD"
	Price     float64   `db:"price"`
	RSI       float64   `db:"rsi"`
	MACD      float64   `db:"macd"`
	RiskScore float64   `db:"risk_score"`
	CreatedAt time.Time `db:"created_at"`
}

// Position представляет логическую позицию по символу.
// На символ одновременно существует не более одной открытой позиции;
// DCA докупка увеличивает количество, а не открывает вторую.
type Position struct {
	Symbol          string
	IsOpen          bool
	EntryPrice      float64
	Quantity        float64
	MaxProfitPct    float64
	ApproxCostBasis bool // entry price принята по рынку при неоднозначной сверке
	OpenedAt        time.Time
	LastExitPrice   float64
	LastExitAt      time.Time
}

// TradeRecord представляет запись о попытке сделки (успешной или нет)
type TradeRecord struct {
	ID        int64     `db:"id"`
	Symbol    string    `db:"symbol"`
	Action    string    `db:"action"` // см. Action* константы
	Quantity  float64   `db:"quantity"`
	Price     float64   `db:"price"`
	ProfitPct float64   `db:"profit_pct"`
	ProfitAbs float64   `db:"profit_abs"`
	OrderID   string    `db:"order_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

// AnalysisSummary представляет периодический агрегат по сделкам символа
type AnalysisSummary struct {
	ID            int64     `db:"id"`
	Symbol        string    `db:"symbol"`
	ActionPrefix  string    `db:"action_prefix"` // "BUY" или "SELL"
	TradeCount    int       `db:"trade_count"`
	SumProfitPct  float64   `db:"sum_profit_pct"`
	MeanProfitPct float64   `db:"mean_profit_pct"`
	CreatedAt     time.Time `db:"created_at"`
}
