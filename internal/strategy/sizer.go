package strategy

import (
	"github.com/kirillm/signal-bot/internal/config"
	"github.com/kirillm/signal-bot/internal/domain"
)

// Sizer переводит свободный капитал и вес символа в размер ордера
type Sizer struct {
	cfg config.StrategyConfig
}

// NewSizer создает сайзер с параметрами стратегии
func NewSizer(cfg config.StrategyConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Allocation описывает выделенный символу размер ордера
type Allocation struct {
	Symbol   string
	Notional float64
	Quantity float64
}

// Size рассчитывает количество актива для одного символа.
// target = max(balance*weight, биржевой минимум); запас safety_margin
// оставляет место под комиссию и проскальзывание, чтобы ордер не падал
// по нехватке средств после списания fee.
func (s *Sizer) Size(availableBalance, weight, price float64) (*Allocation, error) {
	if price <= 0 || weight <= 0 {
		return nil, domain.ErrInvalidInput
	}

	target := availableBalance * weight
	if target < s.cfg.MinNotional {
		target = s.cfg.MinNotional
	}

	if availableBalance < target {
		return nil, domain.ErrInsufficientBalance
	}

	notional := target * (1 - s.cfg.SafetyMargin)
	if notional < s.cfg.MinNotional {
		// Отступ не должен уронить ордер ниже минимума биржи
		notional = s.cfg.MinNotional
	}
	return &Allocation{
		Notional: notional,
		Quantity: notional / price,
	}, nil
}

// SizePool распределяет общий пул между символами, готовыми к покупке
// на этой итерации. Веса нормируются только по кандидатам: открытые
// позиции не размывают доли закрытых символов.
func (s *Sizer) SizePool(availableBalance float64, candidates []string, prices map[string]float64) map[string]*Allocation {
	weightSum := 0.0
	for _, symbol := range candidates {
		weightSum += s.cfg.Allocations[symbol]
	}
	if weightSum <= 0 {
		return nil
	}

	// Доли считаются от общего пула; суммарный notional не может выйти
	// за пул с учётом safety margin даже после подтяжки к минимуму биржи
	budget := availableBalance * (1 - s.cfg.SafetyMargin)
	granted := 0.0

	out := make(map[string]*Allocation, len(candidates))
	for _, symbol := range candidates {
		weight := s.cfg.Allocations[symbol] / weightSum
		alloc, err := s.Size(availableBalance, weight, prices[symbol])
		if err != nil {
			continue
		}
		if granted+alloc.Notional > budget {
			continue
		}
		alloc.Symbol = symbol
		out[symbol] = alloc
		granted += alloc.Notional
	}
	return out
}
