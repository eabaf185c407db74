package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kirillm/signal-bot/internal/config"
	"github.com/kirillm/signal-bot/internal/domain"
	"github.com/kirillm/signal-bot/internal/exchange"
	"github.com/kirillm/signal-bot/pkg/utils"
)

type placedOrder struct {
	Symbol   string
	Side     string
	Quantity float64
}

// fakeExchange отдаёт заранее заданные цены и запоминает ордера
type fakeExchange struct {
	klines   []float64
	prices   []float64
	idx      int
	balances map[string]float64
	orders   []placedOrder
	orderErr error
}

func (f *fakeExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if len(f.prices) == 0 {
		return 0, errors.New("no price")
	}
	price := f.prices[f.idx]
	if f.idx < len(f.prices)-1 {
		f.idx++
	}
	return price, nil
}

func (f *fakeExchange) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	if len(f.klines) > limit {
		return f.klines[len(f.klines)-limit:], nil
	}
	return f.klines, nil
}

func (f *fakeExchange) GetBalances(ctx context.Context) (map[string]float64, error) {
	return f.balances, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*exchange.OrderInfo, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, placedOrder{Symbol: symbol, Side: side, Quantity: quantity})
	return &exchange.OrderInfo{
		OrderID:  fmt.Sprintf("order-%d", len(f.orders)),
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Status:   "Filled",
	}, nil
}

// fakeLedger пишет записи в память и умеет имитировать отказ БД
type fakeLedger struct {
	prices     []*domain.PriceSample
	signals    []*domain.SignalRecord
	trades     []*domain.TradeRecord
	lastTrades map[string]*domain.TradeRecord
	saveErr    error
	dayCount   int
	dayProfit  float64
}

func (f *fakeLedger) SavePrice(sample *domain.PriceSample) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.prices = append(f.prices, sample)
	return nil
}

func (f *fakeLedger) SaveSignal(signal *domain.SignalRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.signals = append(f.signals, signal)
	return nil
}

func (f *fakeLedger) SaveTrade(trade *domain.TradeRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.trades = append(f.trades, trade)
	return nil
}

func (f *fakeLedger) LastTradeBySide(symbol, sidePrefix string) (*domain.TradeRecord, error) {
	if trade, ok := f.lastTrades[symbol+"/"+sidePrefix]; ok {
		return trade, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLedger) TradesSince(since time.Time) (int, float64, error) {
	if f.saveErr != nil {
		return 0, 0, f.saveErr
	}
	return f.dayCount, f.dayProfit, nil
}

func (f *fakeLedger) SaveSummary(summary *domain.AnalysisSummary) error {
	return f.saveErr
}

func (f *fakeLedger) BuildSummary(symbol, actionPrefix string) (*domain.AnalysisSummary, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &domain.AnalysisSummary{Symbol: symbol}, nil
}

func testOrchestratorConfig() config.StrategyConfig {
	cfg := config.DefaultStrategy()
	cfg.Symbols = []string{"BTCUSDT"}
	cfg.Allocations = map[string]float64{"BTCUSDT": 1.0}
	// Порог RSI поднят выше насыщения, чтобы растущий ряд стабильно
	// давал BUY: MACD на ускоряющемся росте всегда выше сигнальной
	cfg.RSIOS = 101
	return cfg
}

// acceleratingSeries даёт выпуклый растущий ряд: RSI насыщается в 100,
// MACD строго выше сигнальной линии
func acceleratingSeries(n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = 100 * math.Pow(1.01, float64(i))
	}
	return series
}

func newTestOrchestrator(cfg config.StrategyConfig, ex *fakeExchange, ledger *fakeLedger) *Orchestrator {
	return New(cfg, ex, ledger, utils.NewLogger("error"), nil)
}

func TestOrchestrator_BuyOnSignal(t *testing.T) {
	cfg := testOrchestratorConfig()
	seed := acceleratingSeries(120)
	ex := &fakeExchange{
		klines:   seed,
		prices:   []float64{seed[len(seed)-1] * 1.01},
		balances: map[string]float64{"USDT": 1000},
	}
	ledger := &fakeLedger{}

	o := newTestOrchestrator(cfg, ex, ledger)
	ctx := context.Background()
	o.seedWindows(ctx)
	o.runIteration(ctx)

	if len(ex.orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(ex.orders))
	}
	if ex.orders[0].Side != "Buy" {
		t.Errorf("order side = %s, want Buy", ex.orders[0].Side)
	}

	position := o.tracker.Get("BTCUSDT")
	if !position.IsOpen {
		t.Fatal("position not opened after executed BUY")
	}
	if position.EntryPrice != ex.prices[0] {
		t.Errorf("entry price = %v, want %v", position.EntryPrice, ex.prices[0])
	}

	// Пул 1000 с отступом 1% даёт notional 990
	wantQty := 990.0 / ex.prices[0]
	if math.Abs(position.Quantity-wantQty) > 1e-9 {
		t.Errorf("quantity = %v, want %v", position.Quantity, wantQty)
	}

	if len(ledger.trades) != 1 {
		t.Fatalf("got %d trade records, want 1", len(ledger.trades))
	}
	trade := ledger.trades[0]
	if trade.Action != domain.ActionBuy || trade.Status != domain.StatusFilled {
		t.Errorf("trade = %s/%s, want %s/%s", trade.Action, trade.Status, domain.ActionBuy, domain.StatusFilled)
	}
	if len(ledger.prices) == 0 || len(ledger.signals) == 0 {
		t.Error("price and signal records must be persisted each iteration")
	}
}

func TestOrchestrator_StopLossClosesPosition(t *testing.T) {
	cfg := testOrchestratorConfig()
	seed := acceleratingSeries(120)
	entry := seed[len(seed)-1] * 1.01
	ex := &fakeExchange{
		klines:   seed,
		prices:   []float64{entry, entry * 0.9},
		balances: map[string]float64{"USDT": 1000},
	}
	ledger := &fakeLedger{}

	o := newTestOrchestrator(cfg, ex, ledger)
	ctx := context.Background()
	o.seedWindows(ctx)
	o.runIteration(ctx) // открытие
	o.runIteration(ctx) // просадка -10% дергает стоп-лосс

	if len(ex.orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(ex.orders))
	}
	if ex.orders[1].Side != "Sell" {
		t.Errorf("second order side = %s, want Sell", ex.orders[1].Side)
	}

	position := o.tracker.Get("BTCUSDT")
	if position.IsOpen {
		t.Fatal("position still open after stop-loss")
	}

	exit := ledger.trades[len(ledger.trades)-1]
	if exit.Action != domain.ActionSellSL {
		t.Errorf("exit action = %s, want %s", exit.Action, domain.ActionSellSL)
	}
	if exit.ProfitAbs >= 0 {
		t.Errorf("ProfitAbs = %v, want negative on stop-loss", exit.ProfitAbs)
	}
}

func TestOrchestrator_DailyRiskGuardPausesTrading(t *testing.T) {
	tests := []struct {
		name      string
		dayCount  int
		dayProfit float64
	}{
		{"trade limit reached", 5, 0},
		{"loss limit reached", 1, -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testOrchestratorConfig()
			seed := acceleratingSeries(120)
			ex := &fakeExchange{
				klines:   seed,
				prices:   []float64{seed[len(seed)-1] * 1.01},
				balances: map[string]float64{"USDT": 1000},
			}
			ledger := &fakeLedger{dayCount: tt.dayCount, dayProfit: tt.dayProfit}

			o := newTestOrchestrator(cfg, ex, ledger)
			ctx := context.Background()
			o.seedWindows(ctx)
			o.runIteration(ctx)

			if len(ex.orders) != 0 {
				t.Errorf("got %d orders, want 0 while paused", len(ex.orders))
			}
			// Наблюдение не останавливается вместе с торговлей
			if len(ledger.prices) == 0 || len(ledger.signals) == 0 {
				t.Error("prices and signals must be recorded while trading is paused")
			}
			if o.tracker.Get("BTCUSDT").IsOpen {
				t.Error("no position must be opened while paused")
			}
		})
	}
}

func TestOrchestrator_TradesThroughLedgerOutage(t *testing.T) {
	cfg := testOrchestratorConfig()
	seed := acceleratingSeries(120)
	ex := &fakeExchange{
		klines:   seed,
		prices:   []float64{seed[len(seed)-1] * 1.01},
		balances: map[string]float64{"USDT": 1000},
	}
	ledger := &fakeLedger{saveErr: errors.New("connection refused")}

	o := newTestOrchestrator(cfg, ex, ledger)
	ctx := context.Background()
	o.seedWindows(ctx)
	o.runIteration(ctx)

	// Недоступная БД деградирует журнал до логов, но не блокирует ордера
	if len(ex.orders) != 1 {
		t.Fatalf("got %d orders, want 1 despite ledger outage", len(ex.orders))
	}
	if !o.ledgerDown {
		t.Error("ledger degradation flag not set")
	}

	// Восстановление снимает флаг
	ledger.saveErr = nil
	o.runIteration(ctx)
	if o.ledgerDown {
		t.Error("ledger degradation flag not cleared after recovery")
	}
}

func TestOrchestrator_ReconcileAdoptsExchangeBalance(t *testing.T) {
	cfg := testOrchestratorConfig()
	ex := &fakeExchange{
		prices:   []float64{100},
		balances: map[string]float64{"USDT": 500, "BTC": 0.5},
	}
	ledger := &fakeLedger{
		lastTrades: map[string]*domain.TradeRecord{
			"BTCUSDT/" + domain.SideBuy: {
				Symbol:    "BTCUSDT",
				Action:    domain.ActionBuy,
				Price:     95,
				Quantity:  0.5,
				CreatedAt: time.Now().Add(-time.Hour),
			},
		},
	}

	o := newTestOrchestrator(cfg, ex, ledger)
	o.reconcilePositions(context.Background())

	position := o.tracker.Get("BTCUSDT")
	if !position.IsOpen {
		t.Fatal("position must be adopted from exchange balance")
	}
	if position.EntryPrice != 95 {
		t.Errorf("entry price = %v, want 95 from last buy", position.EntryPrice)
	}
	if position.Quantity != 0.5 {
		t.Errorf("quantity = %v, want 0.5", position.Quantity)
	}
	if position.ApproxCostBasis {
		t.Error("cost basis must be exact when a buy record exists")
	}
}

func TestOrchestrator_DCABuyAveragesPosition(t *testing.T) {
	cfg := testOrchestratorConfig()
	cfg.StopLossPct = 10 // стоп дальше, чем порог докупки
	seed := acceleratingSeries(120)
	entry := seed[len(seed)-1] * 1.01
	ex := &fakeExchange{
		klines:   seed,
		prices:   []float64{entry, entry * 0.94},
		balances: map[string]float64{"USDT": 1000},
	}
	ledger := &fakeLedger{}

	o := newTestOrchestrator(cfg, ex, ledger)
	ctx := context.Background()
	o.seedWindows(ctx)
	o.runIteration(ctx) // открытие
	o.runIteration(ctx) // просадка -6% >= dca_drop 5%

	if len(ex.orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(ex.orders))
	}
	if ex.orders[1].Side != "Buy" {
		t.Errorf("second order side = %s, want Buy (averaging)", ex.orders[1].Side)
	}

	last := ledger.trades[len(ledger.trades)-1]
	if last.Action != domain.ActionBuyDCA {
		t.Errorf("action = %s, want %s", last.Action, domain.ActionBuyDCA)
	}

	position := o.tracker.Get("BTCUSDT")
	if !position.IsOpen {
		t.Fatal("position must stay open after averaging")
	}
	if position.EntryPrice >= entry {
		t.Errorf("entry price = %v, want averaged below %v", position.EntryPrice, entry)
	}
	if !strings.HasPrefix(ledger.trades[0].Action, domain.SideBuy) {
		t.Errorf("first trade action = %s, want buy-side", ledger.trades[0].Action)
	}
}
