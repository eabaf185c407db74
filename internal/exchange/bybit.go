package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillm/signal-bot/internal/domain"
)

// BybitClient является шлюзом к spot API Bybit v5
type BybitClient struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	recvWindow string
}

type TickerResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	} `json:"result"`
}

type WalletBalanceResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Coin []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
			} `json:"coin"`
		} `json:"list"`
	} `json:"result"`
}

type OrderResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	} `json:"result"`
}

type KlineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List [][]string `json:"list"`
	} `json:"result"`
}

type OrderInfo struct {
	OrderID   string
	Symbol    string
	Side      string
	Price     float64
	Quantity  float64
	Status    string
	CreatedAt time.Time
}

// NewBybitClient создает клиент с таймаутом HTTP и лимитом частоты запросов
func NewBybitClient(apiKey, apiSecret, baseURL string, requestsSec float64) *BybitClient {
	if requestsSec <= 0 {
		requestsSec = 5
	}
	return &BybitClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsSec), 1),
		recvWindow: domain.BybitRecvWindow,
	}
}

// GetPrice получает текущую цену актива
func (b *BybitClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := "/v5/market/tickers"
	params := fmt.Sprintf("category=%s&symbol=%s", domain.BybitCategorySpot, symbol)

	body, err := b.doGet(ctx, endpoint, params, false)
	if err != nil {
		return 0, err
	}

	var tickerResp TickerResponse
	if err := json.Unmarshal(body, &tickerResp); err != nil {
		return 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if tickerResp.RetCode != 0 {
		return 0, fmt.Errorf("%w: %s", domain.ErrExchangeAPI, tickerResp.RetMsg)
	}

	if len(tickerResp.Result.List) == 0 {
		return 0, fmt.Errorf("no price data for symbol %s", symbol)
	}

	lastPrice := tickerResp.Result.List[0].LastPrice
	if lastPrice == "" {
		return 0, fmt.Errorf("empty price data for symbol %s", symbol)
	}

	price, err := strconv.ParseFloat(lastPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price for %s: %w", symbol, err)
	}

	return price, nil
}

// GetKlines получает последние limit свечей и возвращает цены закрытия
// от старых к новым. Используется для затравки окна цен при старте.
func (b *BybitClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]float64, error) {
	endpoint := "/v5/market/kline"
	params := fmt.Sprintf("category=%s&symbol=%s&interval=%s&limit=%d",
		domain.BybitCategorySpot, symbol, interval, limit)

	body, err := b.doGet(ctx, endpoint, params, false)
	if err != nil {
		return nil, err
	}

	var klineResp KlineResponse
	if err := json.Unmarshal(body, &klineResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if klineResp.RetCode != 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrExchangeAPI, klineResp.RetMsg)
	}

	// Bybit отдаёт свечи от новых к старым: [start, open, high, low, close, ...]
	list := klineResp.Result.List
	closes := make([]float64, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if len(list[i]) < 5 {
			continue
		}
		closePrice, err := strconv.ParseFloat(list[i][4], 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse kline close for %s: %w", symbol, err)
		}
		closes = append(closes, closePrice)
	}

	return closes, nil
}

// GetBalances получает балансы всех монет UNIFIED-аккаунта
func (b *BybitClient) GetBalances(ctx context.Context) (map[string]float64, error) {
	endpoint := "/v5/account/wallet-balance"
	params := fmt.Sprintf("accountType=%s", domain.BybitAccountUnified)

	body, err := b.doGet(ctx, endpoint, params, true)
	if err != nil {
		return nil, err
	}

	var balanceResp WalletBalanceResponse
	if err := json.Unmarshal(body, &balanceResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if balanceResp.RetCode != 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrExchangeAPI, balanceResp.RetMsg)
	}

	balances := make(map[string]float64)
	if len(balanceResp.Result.List) == 0 {
		return balances, nil
	}

	for _, coinData := range balanceResp.Result.List[0].Coin {
		if coinData.WalletBalance == "" {
			continue
		}
		qty, err := strconv.ParseFloat(coinData.WalletBalance, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance for %s: %w", coinData.Coin, err)
		}
		balances[coinData.Coin] = qty
	}

	return balances, nil
}

// GetBalance получает баланс одной монеты
func (b *BybitClient) GetBalance(ctx context.Context, coin string) (float64, error) {
	balances, err := b.GetBalances(ctx)
	if err != nil {
		return 0, err
	}
	return balances[coin], nil
}

// PlaceMarketOrder размещает рыночный ордер. Ошибка API отличима от
// успеха по обёрнутому domain.ErrExchangeAPI — оркестратор пишет в журнал
// и падение ордера, и успех.
func (b *BybitClient) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*OrderInfo, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := "/v5/order/create"
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	params := map[string]interface{}{
		"category":  domain.BybitCategorySpot,
		"symbol":    symbol,
		"side":      side,
		"orderType": domain.OrderTypeMarket,
		"qty":       fmt.Sprintf("%.8f", quantity),
	}

	jsonData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	signature := b.generateSignature(timestamp, string(jsonData))

	url := fmt.Sprintf("%s%s", b.baseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(jsonData)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	b.setAuthHeaders(req, timestamp, signature)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if orderResp.RetCode != 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrExchangeAPI, orderResp.RetMsg)
	}

	return &OrderInfo{
		OrderID:   orderResp.Result.OrderID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Status:    domain.StatusFilled,
		CreatedAt: time.Now(),
	}, nil
}

// doGet выполняет GET-запрос с опциональной подписью
func (b *BybitClient) doGet(ctx context.Context, endpoint, params string, signed bool) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s?%s", b.baseURL, endpoint, params)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := b.generateSignature(timestamp, params)
		b.setAuthHeaders(req, timestamp, signature)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// generateSignature генерирует подпись для запросов (GET и POST)
func (b *BybitClient) generateSignature(timestamp, payload string) string {
	message := timestamp + b.apiKey + b.recvWindow + payload
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// setAuthHeaders устанавливает заголовки авторизации для запроса
func (b *BybitClient) setAuthHeaders(req *http.Request, timestamp, signature string) {
	req.Header.Set("X-BAPI-API-KEY", b.apiKey)
	req.Header.Set("X-BAPI-SIGN", signature)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", b.recvWindow)
}

// BaseAsset возвращает базовый актив спотового символа ("BTCUSDT" -> "BTC")
func BaseAsset(symbol, quote string) string {
	return strings.TrimSuffix(symbol, quote)
}
