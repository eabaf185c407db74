package indicator

import (
	"math"

	"github.com/kirillm/signal-bot/internal/domain"
)

// VolatilityWindow является окном для расчёта волатильности (в замерах)
const VolatilityWindow = 10

// Engine рассчитывает RSI, MACD и волатильность по серии цен
type Engine struct {
	rsiPeriod  int
	macdFast   int
	macdSlow   int
	macdSignal int
}

// NewEngine создает новый движок индикаторов
func NewEngine(rsiPeriod, macdFast, macdSlow, macdSignal int) *Engine {
	return &Engine{
		rsiPeriod:  rsiPeriod,
		macdFast:   macdFast,
		macdSlow:   macdSlow,
		macdSignal: macdSignal,
	}
}

// MinSamples возвращает минимальную длину серии для расчёта
func (e *Engine) MinSamples() int {
	if e.rsiPeriod > e.macdSlow {
		return e.rsiPeriod + 1
	}
	return e.macdSlow + 1
}

// Compute считает снапшот индикаторов по серии цен (от старых к новым).
// При недостатке данных возвращает domain.ErrInsufficientData — вызывающий
// код трактует это как HOLD, а не как ошибку итерации.
func (e *Engine) Compute(prices []float64) (*domain.IndicatorSnapshot, error) {
	if len(prices) < e.MinSamples() {
		return nil, domain.ErrInsufficientData
	}

	rsi := RSI(prices, e.rsiPeriod)
	macdLine, signalLine := MACD(prices, e.macdFast, e.macdSlow, e.macdSignal)
	volatility := Volatility(prices, VolatilityWindow)

	return &domain.IndicatorSnapshot{
		RSI:        rsi,
		MACD:       macdLine,
		MACDSignal: signalLine,
		Volatility: volatility,
		RiskScore:  riskScore(volatility),
	}, nil
}

// RSI считает Relative Strength Index по простым средним прибылей и убытков
// за последние period шагов. При нулевом среднем убытке насыщается до 100.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 || period <= 0 {
		return 50.0
	}

	gains, losses := 0.0, 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// MACD считает линии MACD и signal на последнем замере.
// EMA — рекурсивное сглаживание с alpha = 2/(span+1), затравленное первым
// значением серии. Формула воспроизводится точно: пороги стратегии
// подобраны именно под неё.
func MACD(prices []float64, fast, slow, signal int) (macdLine, signalLine float64) {
	fastEMA := EMASeries(prices, fast)
	slowEMA := EMASeries(prices, slow)

	macdSeries := make([]float64, len(prices))
	for i := range prices {
		macdSeries[i] = fastEMA[i] - slowEMA[i]
	}

	signalEMA := EMASeries(macdSeries, signal)

	last := len(prices) - 1
	return macdSeries[last], signalEMA[last]
}

// EMASeries считает серию экспоненциальных скользящих средних
func EMASeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1.0-alpha)*out[i-1]
	}
	return out
}

// Volatility считает стандартное отклонение процентных доходностей
// за последние window шагов
func Volatility(prices []float64, window int) float64 {
	if len(prices) < 2 {
		return 0
	}
	if len(prices) < window+1 {
		window = len(prices) - 1
	}

	returns := make([]float64, 0, window)
	for i := len(prices) - window; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}

// riskScore нормирует волатильность в диапазон [0.01, 1.0]
func riskScore(volatility float64) float64 {
	score := volatility * 100
	if score < 0.01 {
		return 0.01
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
