package strategy

import (
	"github.com/kirillm/signal-bot/internal/config"
	"github.com/kirillm/signal-bot/internal/domain"
)

// Classifier превращает снапшот индикаторов в сигнал BUY/SELL/HOLD
type Classifier struct {
	rsiOS float64
	rsiOB float64
}

// NewClassifier создает классификатор с порогами из стратегии
func NewClassifier(cfg config.StrategyConfig) *Classifier {
	return &Classifier{
		rsiOS: cfg.RSIOS,
		rsiOB: cfg.RSIOB,
	}
}

// Classify возвращает ровно один сигнал для любого входа.
// nil-снапшот (недостаточно истории) — это HOLD, а не ошибка.
// BUY и SELL требуют противоположных отношений MACD к signal, поэтому
// взаимоисключаемы даже при rsi_os >= rsi_ob.
func (c *Classifier) Classify(snapshot *domain.IndicatorSnapshot) string {
	if snapshot == nil {
		return domain.SignalHold
	}

	switch {
	case snapshot.RSI < c.rsiOS && snapshot.MACD > snapshot.MACDSignal:
		return domain.SignalBuy
	case snapshot.RSI > c.rsiOB && snapshot.MACD < snapshot.MACDSignal:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}
