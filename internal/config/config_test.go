package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadStrategy_MissingFileFallsBackToDefaults(t *testing.T) {
	strategy := LoadStrategy(filepath.Join(t.TempDir(), "absent.yaml"))

	def := DefaultStrategy()
	if strategy.RSIPeriod != def.RSIPeriod || strategy.StopLossPct != def.StopLossPct {
		t.Errorf("missing file must yield defaults, got %+v", strategy)
	}
	if len(strategy.Symbols) == 0 {
		t.Error("defaults must include at least one symbol")
	}
}

func TestLoadStrategy_BrokenYAMLFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	if err := os.WriteFile(path, []byte("symbols: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	strategy := LoadStrategy(path)
	def := DefaultStrategy()
	if strategy.TakeProfitPct != def.TakeProfitPct {
		t.Errorf("broken YAML must yield defaults, got %+v", strategy)
	}
}

func TestLoadStrategy_PartialFileKeepsDefaultsForRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	yaml := `symbols: ["BTCUSDT", "ETHUSDT"]
stop_loss: 4.0
poll_interval: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	strategy := LoadStrategy(path)
	if strategy.StopLossPct != 4.0 {
		t.Errorf("StopLossPct = %v, want 4.0 from file", strategy.StopLossPct)
	}
	if strategy.PollInterval.Std() != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s from file", strategy.PollInterval)
	}
	def := DefaultStrategy()
	if strategy.RSIPeriod != def.RSIPeriod {
		t.Errorf("RSIPeriod = %v, want default %v", strategy.RSIPeriod, def.RSIPeriod)
	}
	if strategy.TakeProfitPct != def.TakeProfitPct {
		t.Errorf("TakeProfitPct = %v, want default %v", strategy.TakeProfitPct, def.TakeProfitPct)
	}
}

func TestNormalize_FillsMissingAllocations(t *testing.T) {
	tests := []struct {
		name        string
		symbols     []string
		allocations map[string]float64
		want        map[string]float64
	}{
		{
			name:    "no allocations at all",
			symbols: []string{"BTCUSDT", "ETHUSDT"},
			want:    map[string]float64{"BTCUSDT": 0.5, "ETHUSDT": 0.5},
		},
		{
			name:        "one symbol without weight",
			symbols:     []string{"BTCUSDT", "ETHUSDT"},
			allocations: map[string]float64{"BTCUSDT": 0.7},
			want:        map[string]float64{"BTCUSDT": 0.7, "ETHUSDT": 0.3},
		},
		{
			name:        "explicit weights untouched",
			symbols:     []string{"BTCUSDT", "ETHUSDT"},
			allocations: map[string]float64{"BTCUSDT": 0.6, "ETHUSDT": 0.4},
			want:        map[string]float64{"BTCUSDT": 0.6, "ETHUSDT": 0.4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := StrategyConfig{Symbols: tt.symbols, Allocations: tt.allocations}
			got := s.Normalize()
			for symbol, want := range tt.want {
				if got.Allocations[symbol] != want {
					t.Errorf("allocation %s = %v, want %v", symbol, got.Allocations[symbol], want)
				}
			}
		})
	}
}

func TestNormalize_FillsZeroFields(t *testing.T) {
	s := StrategyConfig{Symbols: []string{"BTCUSDT"}}
	got := s.Normalize()
	def := DefaultStrategy()

	if got.RSIPeriod != def.RSIPeriod {
		t.Errorf("RSIPeriod = %v, want %v", got.RSIPeriod, def.RSIPeriod)
	}
	if got.MinNotional != def.MinNotional {
		t.Errorf("MinNotional = %v, want %v", got.MinNotional, def.MinNotional)
	}
	if got.QuoteAsset != def.QuoteAsset {
		t.Errorf("QuoteAsset = %q, want %q", got.QuoteAsset, def.QuoteAsset)
	}
	if got.PollInterval != def.PollInterval {
		t.Errorf("PollInterval = %v, want %v", got.PollInterval, def.PollInterval)
	}
}
