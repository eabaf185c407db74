package strategy

import (
	"time"

	"github.com/kirillm/signal-bot/internal/domain"
	"github.com/kirillm/signal-bot/pkg/utils"
)

// Tracker владеет состоянием позиций по символам. Доступ строго из
// горутины торгового цикла, поэтому блокировки не нужны; параллельная
// обработка символов потребует мьютекс на символ.
type Tracker struct {
	positions map[string]*domain.Position
	logger    *utils.Logger
}

// NewTracker создает трекер с закрытыми позициями для всех символов
func NewTracker(symbols []string, logger *utils.Logger) *Tracker {
	positions := make(map[string]*domain.Position, len(symbols))
	for _, symbol := range symbols {
		positions[symbol] = &domain.Position{Symbol: symbol}
	}
	return &Tracker{positions: positions, logger: logger}
}

// Get возвращает позицию символа (создаёт закрытую, если символа ещё нет)
func (t *Tracker) Get(symbol string) *domain.Position {
	if p, ok := t.positions[symbol]; ok {
		return p
	}
	p := &domain.Position{Symbol: symbol}
	t.positions[symbol] = p
	return p
}

// Open открывает позицию по факту BUY-исполнения.
// Повторное открытие — no-op с логом: на символ одна логическая позиция.
func (t *Tracker) Open(symbol string, price, quantity float64) error {
	p := t.Get(symbol)
	if p.IsOpen {
		t.logger.Warn("Open ignored for %s: position already open at %.8f", symbol, p.EntryPrice)
		return domain.ErrPositionAlreadyOpen
	}
	if price <= 0 || quantity <= 0 {
		t.logger.Warn("Open ignored for %s: price=%.8f qty=%.8f", symbol, price, quantity)
		return domain.ErrInvalidInput
	}

	p.IsOpen = true
	p.EntryPrice = price
	p.Quantity = quantity
	p.MaxProfitPct = 0
	p.ApproxCostBasis = false
	p.OpenedAt = time.Now()
	return nil
}

// AddQuantity докупает в открытую позицию (DCA) и пересчитывает среднюю
// цену входа как взвешенное по количеству среднее
func (t *Tracker) AddQuantity(symbol string, fillPrice, addQty float64) error {
	p := t.Get(symbol)
	if !p.IsOpen {
		return domain.ErrPositionNotOpen
	}
	if fillPrice <= 0 || addQty <= 0 {
		return domain.ErrInvalidInput
	}

	newQty := p.Quantity + addQty
	p.EntryPrice = (p.EntryPrice*p.Quantity + fillPrice*addQty) / newQty
	p.Quantity = newQty
	return nil
}

// UpdatePrice пересчитывает нереализованную прибыль и бегущий максимум.
// Вызывается каждую итерацию для каждой открытой позиции независимо от
// того, сработал ли выход: trailing stop опирается на этот максимум.
func (t *Tracker) UpdatePrice(symbol string, currentPrice float64) float64 {
	p := t.Get(symbol)
	if !p.IsOpen || p.EntryPrice <= 0 {
		return 0
	}

	profitPct := (currentPrice - p.EntryPrice) / p.EntryPrice * 100
	if profitPct > p.MaxProfitPct {
		p.MaxProfitPct = profitPct
	}
	return profitPct
}

// Close закрывает позицию по факту SELL-исполнения и запоминает цену
// выхода для re-entry cooldown
func (t *Tracker) Close(symbol string, exitPrice float64) {
	p := t.Get(symbol)
	if !p.IsOpen {
		return
	}

	p.IsOpen = false
	p.EntryPrice = 0
	p.Quantity = 0
	p.MaxProfitPct = 0
	p.ApproxCostBasis = false
	p.LastExitPrice = exitPrice
	p.LastExitAt = time.Now()
}

// Reconcile сверяет локальное состояние с фактическим балансом биржи
// после рестарта процесса. Порядок предпочтений:
//  1. баланс ≈ 0 — позиция принудительно закрыта;
//  2. последний BUY в журнале новее последнего SELL — принимаем его цену
//     и биржевое количество;
//  3. иначе берём текущую рыночную цену как приблизительную цену входа
//     и помечаем позицию флагом ApproxCostBasis — stop-loss/take-profit
//     дальше считаются от неточной базы, молча гадать нельзя.
func (t *Tracker) Reconcile(symbol string, exchangeQty, marketPrice float64, lastBuy, lastSell *domain.TradeRecord) {
	p := t.Get(symbol)

	if exchangeQty <= domain.DustQty {
		if p.IsOpen {
			t.logger.Warn("Reconcile %s: exchange balance is zero, forcing position closed", symbol)
		}
		p.IsOpen = false
		p.EntryPrice = 0
		p.Quantity = 0
		p.MaxProfitPct = 0
		p.ApproxCostBasis = false
		return
	}

	if lastBuy != nil && (lastSell == nil || lastBuy.CreatedAt.After(lastSell.CreatedAt)) {
		p.IsOpen = true
		p.EntryPrice = lastBuy.Price
		p.Quantity = exchangeQty
		p.MaxProfitPct = 0
		p.ApproxCostBasis = false
		p.OpenedAt = lastBuy.CreatedAt
		t.logger.Info("Reconcile %s: adopted ledger BUY at %.8f, qty %.8f", symbol, lastBuy.Price, exchangeQty)
		return
	}

	// Баланс есть, а однозначной записи о покупке нет: реальная цена
	// входа неизвестна
	p.IsOpen = true
	p.EntryPrice = marketPrice
	p.Quantity = exchangeQty
	p.MaxProfitPct = 0
	p.ApproxCostBasis = true
	p.OpenedAt = time.Now()
	t.logger.Warn("Reconcile %s: no unambiguous BUY record, adopting market price %.8f as approximate cost basis", symbol, marketPrice)
}
