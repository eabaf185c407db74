package domain

// Trade sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Signals
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalHold = "HOLD"
)

// Trade actions (пишутся в trades.action; префикс BUY/SELL используется в отчётах)
const (
	ActionBuy          = "BUY"
	ActionBuyDCA       = "BUY_DCA"
	ActionSellTP       = "SELL_TP"
	ActionSellSL       = "SELL_SL"
	ActionSellTrailing = "SELL_TRAILING"
	ActionSellSignal   = "SELL_SIGNAL"
)

// Trade statuses
const (
	StatusFilled = "FILLED"
	StatusFailed = "FAILED"
)

// Log levels
const (
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
)

// Order types
const (
	OrderTypeMarket = "Market"
	OrderTypeLimit  = "Limit"
)

// Bybit constants
const (
	BybitCategorySpot   = "spot"
	BybitAccountUnified = "UNIFIED"
	BybitRecvWindow     = "5000"
)

// DustQty является порогом, ниже которого остаток на бирже считается нулевым
const DustQty = 1e-9
