package strategy

import (
	"time"

	"github.com/kirillm/signal-bot/internal/config"
	"github.com/kirillm/signal-bot/internal/domain"
)

// Decision описывает действие, выбранное оценщиком для одной итерации
type Decision struct {
	Action    string // пусто, если действий нет
	Quantity  float64
	ProfitPct float64
	Reason    string
}

// Evaluator решает судьбу позиции на каждой итерации. Правила выхода
// проверяются в фиксированном порядке, первый сработавший побеждает:
//  1. stop-loss — сохранение капитала важнее фиксации прибыли;
//  2. trailing stop — взводится после первого достижения take-profit;
//  3. статический take-profit — только пока trailing не взведён
//     (взведённый trailing вытесняет статический, двойного выхода нет);
//  4. SELL по сигналу классификатора;
//  5. докупка DCA;
//  6. ничего.
type Evaluator struct {
	cfg config.StrategyConfig
}

// NewEvaluator создает оценщик с порогами из стратегии
func NewEvaluator(cfg config.StrategyConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// EvaluateOpen оценивает открытую позицию.
// profitPct должен быть уже пересчитан трекером на текущей цене,
// availableQuote — свободный баланс котируемой валюты для DCA.
func (e *Evaluator) EvaluateOpen(p *domain.Position, currentPrice, profitPct, availableQuote float64, signal string) Decision {
	if !p.IsOpen {
		return Decision{}
	}

	if profitPct <= -e.cfg.StopLossPct {
		return Decision{
			Action:    domain.ActionSellSL,
			Quantity:  p.Quantity,
			ProfitPct: profitPct,
			Reason:    "stop-loss",
		}
	}

	trailingArmed := p.MaxProfitPct >= e.cfg.TakeProfitPct

	if trailingArmed && profitPct <= p.MaxProfitPct-e.cfg.TrailingTPPct {
		return Decision{
			Action:    domain.ActionSellTrailing,
			Quantity:  p.Quantity,
			ProfitPct: profitPct,
			Reason:    "trailing stop",
		}
	}

	if !trailingArmed && profitPct >= e.cfg.TakeProfitPct {
		return Decision{
			Action:    domain.ActionSellTP,
			Quantity:  p.Quantity,
			ProfitPct: profitPct,
			Reason:    "take-profit",
		}
	}

	if signal == domain.SignalSell {
		return Decision{
			Action:    domain.ActionSellSignal,
			Quantity:  p.Quantity,
			ProfitPct: profitPct,
			Reason:    "sell signal",
		}
	}

	if dca := e.evaluateDCA(p, currentPrice, profitPct, availableQuote); dca.Action != "" {
		return dca
	}

	return Decision{ProfitPct: profitPct}
}

// evaluateDCA решает, докупать ли просевшую позицию. Усреднение вниз
// никогда не выполняется на позиции, уже попавшей под stop-loss.
func (e *Evaluator) evaluateDCA(p *domain.Position, currentPrice, profitPct, availableQuote float64) Decision {
	dropPct := (p.EntryPrice - currentPrice) / p.EntryPrice * 100
	if dropPct < e.cfg.DCADropPct {
		return Decision{}
	}
	if profitPct <= -e.cfg.StopLossPct {
		return Decision{}
	}

	notional := e.cfg.MinNotional
	if availableQuote < notional {
		return Decision{}
	}

	quantity := notional * (1 - e.cfg.SafetyMargin) / currentPrice
	return Decision{
		Action:    domain.ActionBuyDCA,
		Quantity:  quantity,
		ProfitPct: profitPct,
		Reason:    "dca re-entry",
	}
}

// AllowEntry решает, можно ли открывать новую позицию на BUY-сигнале.
// Запрет повторного входа сразу после продажи и требование минимальной
// скидки к цене выхода гасят болтанку на боковом рынке.
func (e *Evaluator) AllowEntry(p *domain.Position, currentPrice float64, now time.Time) (bool, string) {
	if p.IsOpen {
		return false, "position already open"
	}
	if p.LastExitAt.IsZero() {
		return true, ""
	}

	if now.Sub(p.LastExitAt) < e.cfg.ReentryCooldown.Std() {
		return false, "re-entry cooldown active"
	}

	threshold := p.LastExitPrice * (1 - e.cfg.ReentryDiscount/100)
	if p.LastExitPrice > 0 && currentPrice > threshold {
		return false, "price not below prior exit"
	}

	return true, ""
}
