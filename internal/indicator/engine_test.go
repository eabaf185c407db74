package indicator

import (
	"errors"
	"math"
	"testing"

	"github.com/kirillm/signal-bot/internal/domain"
)

func TestRSI_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
	}{
		{"rising then falling", []float64{100, 102, 101, 105, 103, 108, 104, 110, 107, 111, 109, 112, 110, 115, 113}, 14},
		{"volatile", []float64{50, 55, 45, 60, 40, 65, 35, 70, 30, 75, 25, 80, 20, 85, 15}, 14},
		{"small moves", []float64{100, 100.1, 99.9, 100.2, 99.8, 100.3, 99.7, 100.4}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RSI(tt.prices, tt.period)
			if got < 0 || got > 100 {
				t.Errorf("RSI() = %v, want value in [0, 100]", got)
			}
		})
	}
}

func TestRSI_Saturation(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"all gains", []float64{100, 101, 102, 103, 104, 105, 106, 107}, 100},
		{"all losses", []float64{107, 106, 105, 104, 103, 102, 101, 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RSI(tt.prices, 7); got != tt.want {
				t.Errorf("RSI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSI_InsufficientData(t *testing.T) {
	if got := RSI([]float64{100, 101}, 14); got != 50.0 {
		t.Errorf("RSI() with short series = %v, want neutral 50", got)
	}
}

func TestMACD_ConstantSeries(t *testing.T) {
	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = 100.0
	}

	macdLine, signalLine := MACD(prices, 12, 26, 9)
	if math.Abs(macdLine) > 1e-9 {
		t.Errorf("MACD line for constant series = %v, want 0", macdLine)
	}
	if math.Abs(signalLine) > 1e-9 {
		t.Errorf("MACD signal for constant series = %v, want 0", signalLine)
	}
}

func TestEMASeries_SeededWithFirstValue(t *testing.T) {
	values := []float64{10, 20, 30}
	ema := EMASeries(values, 9)

	if ema[0] != 10 {
		t.Errorf("EMA seed = %v, want first value 10", ema[0])
	}

	// alpha = 2/(9+1) = 0.2: ema[1] = 0.2*20 + 0.8*10 = 12
	if math.Abs(ema[1]-12) > 1e-9 {
		t.Errorf("EMA[1] = %v, want 12", ema[1])
	}
}

func TestMACD_CrossoverDirection(t *testing.T) {
	// Линейно растущая серия: быстрая EMA над медленной, MACD > 0
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	macdLine, _ := MACD(prices, 12, 26, 9)
	if macdLine <= 0 {
		t.Errorf("MACD line for rising series = %v, want > 0", macdLine)
	}
}

func TestVolatility(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		wantZero bool
	}{
		{"constant series", []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100}, true},
		{"volatile series", []float64{100, 110, 95, 120, 90, 115, 85, 125, 80, 130, 75}, false},
		{"too short", []float64{100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Volatility(tt.prices, VolatilityWindow)
			if tt.wantZero && got != 0 {
				t.Errorf("Volatility() = %v, want 0", got)
			}
			if !tt.wantZero && got <= 0 {
				t.Errorf("Volatility() = %v, want > 0", got)
			}
		})
	}
}

func TestEngine_Compute_InsufficientData(t *testing.T) {
	engine := NewEngine(14, 12, 26, 9)

	prices := []float64{100, 101, 102}
	_, err := engine.Compute(prices)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("Compute() error = %v, want ErrInsufficientData", err)
	}
}

func TestEngine_Compute_Snapshot(t *testing.T) {
	engine := NewEngine(14, 12, 26, 9)

	prices := make([]float64, engine.MinSamples())
	for i := range prices {
		prices[i] = 100 + float64(i%5)
	}

	snapshot, err := engine.Compute(prices)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	if snapshot.RSI < 0 || snapshot.RSI > 100 {
		t.Errorf("snapshot RSI = %v, want value in [0, 100]", snapshot.RSI)
	}
	if snapshot.RiskScore < 0.01 || snapshot.RiskScore > 1.0 {
		t.Errorf("snapshot risk score = %v, want value in [0.01, 1.0]", snapshot.RiskScore)
	}
}

func TestEngine_MinSamples(t *testing.T) {
	tests := []struct {
		name      string
		rsiPeriod int
		macdSlow  int
		want      int
	}{
		{"macd slow dominates", 14, 26, 27},
		{"rsi period dominates", 30, 26, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(tt.rsiPeriod, 12, tt.macdSlow, 9)
			if got := engine.MinSamples(); got != tt.want {
				t.Errorf("MinSamples() = %v, want %v", got, tt.want)
			}
		})
	}
}
