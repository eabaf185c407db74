package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillm/signal-bot/internal/config"
	"github.com/kirillm/signal-bot/internal/domain"
	"github.com/kirillm/signal-bot/internal/exchange"
	"github.com/kirillm/signal-bot/internal/indicator"
	"github.com/kirillm/signal-bot/internal/strategy"
	"github.com/kirillm/signal-bot/pkg/utils"
)

// seedKlineInterval является интервалом свечей для затравки окна цен (минуты)
const seedKlineInterval = "15"

// Exchange интерфейс биржевого шлюза
type Exchange interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]float64, error)
	GetBalances(ctx context.Context) (map[string]float64, error)
	PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*exchange.OrderInfo, error)
}

// Ledger интерфейс журнального хранилища
type Ledger interface {
	SavePrice(sample *domain.PriceSample) error
	SaveSignal(signal *domain.SignalRecord) error
	SaveTrade(trade *domain.TradeRecord) error
	LastTradeBySide(symbol, sidePrefix string) (*domain.TradeRecord, error)
	TradesSince(since time.Time) (int, float64, error)
	SaveSummary(summary *domain.AnalysisSummary) error
	BuildSummary(symbol, actionPrefix string) (*domain.AnalysisSummary, error)
}

// Orchestrator владеет торговым циклом: цена -> индикаторы -> сигнал ->
// позиция -> выходы/входы -> ордер -> журнал. Символы обрабатываются
// последовательно в одной горутине, вся мутация позиций идёт отсюда.
type Orchestrator struct {
	cfg        config.StrategyConfig
	exchange   Exchange
	ledger     Ledger
	engine     *indicator.Engine
	classifier *strategy.Classifier
	tracker    *strategy.Tracker
	evaluator  *strategy.Evaluator
	sizer      *strategy.Sizer
	logger     *utils.Logger
	notifyFunc func(string)

	windows     map[string][]float64
	windowCap   int
	iteration   int
	pausedUntil time.Time
	ledgerDown  bool

	ticker    *time.Ticker
	stopChan  chan struct{}
	isRunning bool
}

// New создает оркестратор со всеми компонентами цикла
func New(
	cfg config.StrategyConfig,
	ex Exchange,
	ledger Ledger,
	logger *utils.Logger,
	notifyFunc func(string),
) *Orchestrator {
	engine := indicator.NewEngine(cfg.RSIPeriod, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)

	// Окно держит запас сверх минимума индикаторов под волатильность
	windowCap := engine.MinSamples() + indicator.VolatilityWindow
	if windowCap < 100 {
		windowCap = 100
	}

	return &Orchestrator{
		cfg:        cfg,
		exchange:   ex,
		ledger:     ledger,
		engine:     engine,
		classifier: strategy.NewClassifier(cfg),
		tracker:    strategy.NewTracker(cfg.Symbols, logger),
		evaluator:  strategy.NewEvaluator(cfg),
		sizer:      strategy.NewSizer(cfg),
		logger:     logger,
		notifyFunc: notifyFunc,
		windows:    make(map[string][]float64, len(cfg.Symbols)),
		windowCap:  windowCap,
		stopChan:   make(chan struct{}),
	}
}

// Start затравливает окна цен, сверяет позиции с биржей и запускает цикл
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.isRunning {
		return fmt.Errorf("orchestrator already running")
	}

	o.seedWindows(ctx)
	o.reconcilePositions(ctx)

	o.isRunning = true
	o.ticker = time.NewTicker(o.cfg.PollInterval.Std())
	o.logger.Info("Orchestrator started: %d symbols, poll interval %s", len(o.cfg.Symbols), o.cfg.PollInterval)

	go o.run(ctx)

	return nil
}

// Stop останавливает цикл
func (o *Orchestrator) Stop() {
	if !o.isRunning {
		return
	}
	close(o.stopChan)
	o.ticker.Stop()
	o.isRunning = false
	o.logger.Info("Orchestrator stopped")
}

// run крутит основной цикл до остановки
func (o *Orchestrator) run(ctx context.Context) {
	// Первая итерация сразу после старта
	o.runIteration(ctx)

	for {
		select {
		case <-o.ticker.C:
			o.runIteration(ctx)
		case <-o.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runIteration обрабатывает все символы одной итерации. Любая ошибка
// ввода-вывода пропускает символ и логируется — цикл не останавливается.
func (o *Orchestrator) runIteration(ctx context.Context) {
	o.iteration++
	tradingPaused := o.checkDailyRiskGuard()

	var buyCandidates []string
	prices := make(map[string]float64, len(o.cfg.Symbols))

	for _, symbol := range o.cfg.Symbols {
		price, err := o.exchange.GetPrice(ctx, symbol)
		if err != nil {
			o.logger.Error("Failed to get price for %s: %v", symbol, err)
			continue
		}
		prices[symbol] = price
		o.pushPrice(symbol, price)
		o.persistPrice(symbol, price)

		snapshot, err := o.engine.Compute(o.windows[symbol])
		if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
			o.logger.Error("Indicator computation failed for %s: %v", symbol, err)
		}

		signal := o.classifier.Classify(snapshot)
		o.persistSignal(symbol, signal, price, snapshot)

		position := o.tracker.Get(symbol)
		profitPct := o.tracker.UpdatePrice(symbol, price)

		o.logStatus(symbol, price, signal, snapshot, position, profitPct)

		if tradingPaused {
			continue
		}

		if position.IsOpen {
			quote := o.quoteBalance(ctx)
			decision := o.evaluator.EvaluateOpen(position, price, profitPct, quote, signal)
			if decision.Action != "" {
				o.executeDecision(ctx, symbol, price, decision)
			}
			continue
		}

		if signal == domain.SignalBuy {
			if ok, reason := o.evaluator.AllowEntry(position, price, time.Now()); ok {
				buyCandidates = append(buyCandidates, symbol)
			} else {
				o.logger.Info("%s: BUY signal skipped (%s)", symbol, reason)
			}
		}
	}

	if len(buyCandidates) > 0 && !tradingPaused {
		o.executeBuys(ctx, buyCandidates, prices)
	}

	if o.cfg.SummaryIterations > 0 && o.iteration%o.cfg.SummaryIterations == 0 {
		o.persistSummaries()
	}
}

// checkDailyRiskGuard останавливает торговлю до конца дня при превышении
// дневных лимитов сделок или убытка. Цены и сигналы продолжают писаться.
func (o *Orchestrator) checkDailyRiskGuard() bool {
	now := time.Now()
	if now.Before(o.pausedUntil) {
		return true
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, profitSum, err := o.ledger.TradesSince(midnight)
	if err != nil {
		o.markLedgerState(err)
		return false
	}
	o.markLedgerState(nil)

	if count >= o.cfg.MaxTradesPerDay {
		o.pauseForDay(now, midnight, fmt.Sprintf("daily trade limit reached (%d)", count))
		return true
	}
	if profitSum < 0 && -profitSum >= o.cfg.MaxDailyLoss {
		o.pauseForDay(now, midnight, fmt.Sprintf("daily loss limit reached (%.2f %s)", -profitSum, o.cfg.QuoteAsset))
		return true
	}
	return false
}

func (o *Orchestrator) pauseForDay(now, midnight time.Time, reason string) {
	o.pausedUntil = midnight.Add(24 * time.Hour)
	o.logger.Warn("Trading paused until %s: %s", o.pausedUntil.Format("2006-01-02 15:04:05"), reason)
	o.notify(fmt.Sprintf("⚠️ Trading paused: %s", reason))
}

// executeDecision исполняет продажу или DCA-докупку открытой позиции
func (o *Orchestrator) executeDecision(ctx context.Context, symbol string, price float64, decision strategy.Decision) {
	side := "Sell"
	if decision.Action == domain.ActionBuyDCA {
		side = "Buy"
	}

	position := o.tracker.Get(symbol)
	entryPrice := position.EntryPrice

	order, err := o.exchange.PlaceMarketOrder(ctx, symbol, side, decision.Quantity)
	if err != nil {
		// Несработавший ордер — не катастрофа: правило перепроверится
		// на следующей итерации
		o.logger.Error("%s %s failed for %s: %v", decision.Action, decision.Reason, symbol, err)
		o.persistTrade(&domain.TradeRecord{
			Symbol:    symbol,
			Action:    decision.Action,
			Quantity:  decision.Quantity,
			Price:     price,
			ProfitPct: decision.ProfitPct,
			Status:    domain.StatusFailed,
			CreatedAt: time.Now(),
		})
		return
	}

	profitAbs := 0.0
	switch decision.Action {
	case domain.ActionBuyDCA:
		if err := o.tracker.AddQuantity(symbol, price, decision.Quantity); err != nil {
			o.logger.Error("Failed to average position %s: %v", symbol, err)
		}
	default:
		profitAbs = decision.Quantity * (price - entryPrice)
		o.tracker.Close(symbol, price)
	}

	o.persistTrade(&domain.TradeRecord{
		Symbol:    symbol,
		Action:    decision.Action,
		Quantity:  decision.Quantity,
		Price:     price,
		ProfitPct: decision.ProfitPct,
		ProfitAbs: profitAbs,
		OrderID:   order.OrderID,
		Status:    domain.StatusFilled,
		CreatedAt: time.Now(),
	})

	o.logger.Info("%s: %s executed, qty %.8f at %.8f (profit %.2f%%)",
		symbol, decision.Action, decision.Quantity, price, decision.ProfitPct)
	o.notify(fmt.Sprintf("%s %s\nQty: %.8f\nPrice: %.8f\nProfit: %.2f%%",
		symbol, decision.Action, decision.Quantity, price, decision.ProfitPct))
}

// executeBuys открывает позиции по кандидатам, размер — из общего пула
func (o *Orchestrator) executeBuys(ctx context.Context, candidates []string, prices map[string]float64) {
	quote := o.quoteBalance(ctx)
	if quote <= 0 {
		o.logger.Warn("No %s balance available for buys", o.cfg.QuoteAsset)
		return
	}

	allocations := o.sizer.SizePool(quote, candidates, prices)
	for _, symbol := range candidates {
		alloc, ok := allocations[symbol]
		if !ok {
			o.logger.Info("%s: BUY skipped, allocation below exchange minimum or pool exhausted", symbol)
			continue
		}

		price := prices[symbol]
		order, err := o.exchange.PlaceMarketOrder(ctx, symbol, "Buy", alloc.Quantity)
		if err != nil {
			o.logger.Error("BUY failed for %s: %v", symbol, err)
			o.persistTrade(&domain.TradeRecord{
				Symbol:    symbol,
				Action:    domain.ActionBuy,
				Quantity:  alloc.Quantity,
				Price:     price,
				Status:    domain.StatusFailed,
				CreatedAt: time.Now(),
			})
			continue
		}

		if err := o.tracker.Open(symbol, price, alloc.Quantity); err != nil {
			o.logger.Error("Failed to open position %s: %v", symbol, err)
		}

		o.persistTrade(&domain.TradeRecord{
			Symbol:    symbol,
			Action:    domain.ActionBuy,
			Quantity:  alloc.Quantity,
			Price:     price,
			OrderID:   order.OrderID,
			Status:    domain.StatusFilled,
			CreatedAt: time.Now(),
		})

		o.logger.Info("%s: BUY executed, qty %.8f at %.8f (notional %.2f)",
			symbol, alloc.Quantity, price, alloc.Notional)
		o.notify(fmt.Sprintf("%s BUY\nQty: %.8f\nPrice: %.8f", symbol, alloc.Quantity, price))
	}
}

// seedWindows наполняет окна цен историческими свечами, чтобы индикаторы
// были доступны с первой итерации, а не через windowCap опросов
func (o *Orchestrator) seedWindows(ctx context.Context) {
	for _, symbol := range o.cfg.Symbols {
		closes, err := o.exchange.GetKlines(ctx, symbol, seedKlineInterval, o.windowCap)
		if err != nil {
			o.logger.Warn("Failed to seed price window for %s: %v", symbol, err)
			continue
		}
		o.windows[symbol] = closes
		o.logger.Info("%s: price window seeded with %d candles", symbol, len(closes))
	}
}

// reconcilePositions сверяет локальные позиции с фактическими балансами
// биржи при старте процесса
func (o *Orchestrator) reconcilePositions(ctx context.Context) {
	balances, err := o.exchange.GetBalances(ctx)
	if err != nil {
		o.logger.Error("Reconciliation skipped, failed to get balances: %v", err)
		return
	}

	for _, symbol := range o.cfg.Symbols {
		base := exchange.BaseAsset(symbol, o.cfg.QuoteAsset)
		exchangeQty := balances[base]

		price, err := o.exchange.GetPrice(ctx, symbol)
		if err != nil {
			o.logger.Error("Reconciliation skipped for %s, failed to get price: %v", symbol, err)
			continue
		}

		lastBuy := o.lastTrade(symbol, domain.SideBuy)
		lastSell := o.lastTrade(symbol, domain.SideSell)

		o.tracker.Reconcile(symbol, exchangeQty, price, lastBuy, lastSell)
	}
}

func (o *Orchestrator) lastTrade(symbol, sidePrefix string) *domain.TradeRecord {
	trade, err := o.ledger.LastTradeBySide(symbol, sidePrefix)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Error("Failed to query last %s trade for %s: %v", sidePrefix, symbol, err)
		}
		return nil
	}
	return trade
}

// quoteBalance возвращает свободный баланс котируемой валюты
func (o *Orchestrator) quoteBalance(ctx context.Context) float64 {
	balances, err := o.exchange.GetBalances(ctx)
	if err != nil {
		o.logger.Error("Failed to get balances: %v", err)
		return 0
	}
	return balances[o.cfg.QuoteAsset]
}

// pushPrice добавляет цену в окно символа, подрезая его до windowCap
func (o *Orchestrator) pushPrice(symbol string, price float64) {
	window := append(o.windows[symbol], price)
	if len(window) > o.windowCap {
		window = window[len(window)-o.windowCap:]
	}
	o.windows[symbol] = window
}

// persistSummaries пишет периодические агрегаты по покупкам и продажам
func (o *Orchestrator) persistSummaries() {
	for _, symbol := range o.cfg.Symbols {
		for _, prefix := range []string{domain.SideBuy, domain.SideSell} {
			summary, err := o.ledger.BuildSummary(symbol, prefix)
			if err != nil {
				o.markLedgerState(err)
				return
			}
			if summary.TradeCount == 0 {
				continue
			}
			if err := o.ledger.SaveSummary(summary); err != nil {
				o.markLedgerState(err)
				return
			}
		}
	}
	o.markLedgerState(nil)
}

func (o *Orchestrator) persistPrice(symbol string, price float64) {
	err := o.ledger.SavePrice(&domain.PriceSample{
		Symbol:    symbol,
		Price:     price,
		CreatedAt: time.Now(),
	})
	o.markLedgerState(err)
}

func (o *Orchestrator) persistSignal(symbol, signal string, price float64, snapshot *domain.IndicatorSnapshot) {
	record := &domain.SignalRecord{
		Symbol:    symbol,
		Signal:    signal,
		Price:     price,
		CreatedAt: time.Now(),
	}
	if snapshot != nil {
		record.RSI = snapshot.RSI
		record.MACD = snapshot.MACD
		record.RiskScore = snapshot.RiskScore
	}
	o.markLedgerState(o.ledger.SaveSignal(record))
}

func (o *Orchestrator) persistTrade(trade *domain.TradeRecord) {
	o.markLedgerState(o.ledger.SaveTrade(trade))
}

// markLedgerState логирует деградацию до log-only режима один раз,
// а не на каждой итерации. Недоступная БД не останавливает торговлю.
func (o *Orchestrator) markLedgerState(err error) {
	if err != nil {
		if !o.ledgerDown {
			o.ledgerDown = true
			o.logger.Error("Ledger store unavailable, degrading to log-only: %v", err)
		}
		return
	}
	if o.ledgerDown {
		o.ledgerDown = false
		o.logger.Info("Ledger store available again")
	}
}

// logStatus пишет человекочитаемую строку итогов итерации по символу
func (o *Orchestrator) logStatus(symbol string, price float64, signal string, snapshot *domain.IndicatorSnapshot, position *domain.Position, profitPct float64) {
	state := "closed"
	if position.IsOpen {
		state = fmt.Sprintf("open %.8f@%.8f profit %.2f%% max %.2f%%",
			position.Quantity, position.EntryPrice, profitPct, position.MaxProfitPct)
		if position.ApproxCostBasis {
			state += " (approx cost basis)"
		}
	}

	if snapshot == nil {
		o.logger.Info("%s: price %.8f | signal %s (warming up) | %s", symbol, price, signal, state)
		return
	}
	o.logger.Info("%s: price %.8f | RSI %.2f | MACD %.6f/%.6f | vol %.4f | signal %s | %s",
		symbol, price, snapshot.RSI, snapshot.MACD, snapshot.MACDSignal, snapshot.Volatility, signal, state)
}

func (o *Orchestrator) notify(message string) {
	if o.notifyFunc != nil {
		o.notifyFunc(message)
	}
}
