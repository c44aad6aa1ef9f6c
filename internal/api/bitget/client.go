package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	platformhttp "github.com/Alias1177/FuturesBot/internal/platform/http"
	"github.com/Alias1177/FuturesBot/models"
)

// ErrSizeTooSmall is returned when an order rounds down below the contract minimum
var ErrSizeTooSmall = errors.New("order size below contract minimum")

// Options configures a Client
type Options struct {
	BaseURL        string
	ProductType    string
	MarginCoin     string
	MarginMode     string
	Timeout        time.Duration
	RequestsPerSec int
}

// Client talks to the Bitget v2 USDT-futures REST API
type Client struct {
	http    *platformhttp.Client
	baseURL string
	creds   Credentials
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.Mutex
	contracts map[string]Contract
}

// NewClient creates a Bitget client; empty credentials restrict it to public endpoints
func NewClient(creds Credentials, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.bitget.com"
	}
	if opts.ProductType == "" {
		opts.ProductType = "USDT-FUTURES"
	}
	if opts.MarginCoin == "" {
		opts.MarginCoin = "USDT"
	}
	if opts.MarginMode == "" {
		opts.MarginMode = "isolated"
	}

	return &Client{
		http: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:        opts.Timeout,
			RequestsPerSec: opts.RequestsPerSec,
		}),
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		creds:     creds,
		opts:      opts,
		logger:    log.With().Str("component", "bitget_client").Logger(),
		now:       time.Now,
		contracts: make(map[string]Contract),
	}
}

// GetBars fetches the latest count candles, oldest first
func (c *Client) GetBars(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error) {
	granularity, err := granularity(interval)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", c.opts.ProductType)
	params.Set("granularity", granularity)
	params.Set("limit", strconv.Itoa(count))

	var raw []rawCandle
	if err := c.get(ctx, "/api/v2/mix/market/candles", params, &raw); err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, r := range raw {
		candle, err := parseCandle(r)
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Skipping malformed candle")
			continue
		}
		candles = append(candles, candle)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles returned for %s", symbol)
	}

	// Sort candles by time (oldest first for proper calculations)
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	c.logger.Debug().Str("symbol", symbol).Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// GetCurrentPrice returns the last traded price
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", c.opts.ProductType)

	var tickers []tickerData
	if err := c.get(ctx, "/api/v2/mix/market/ticker", params, &tickers); err != nil {
		return 0, fmt.Errorf("fetching ticker for %s: %w", symbol, err)
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("empty ticker for %s", symbol)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPr, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing last price %q: %w", tickers[0].LastPr, err)
	}
	return price, nil
}

// GetAvailableBalance returns the available margin coin balance
func (c *Client) GetAvailableBalance(ctx context.Context) (float64, error) {
	params := url.Values{}
	params.Set("productType", c.opts.ProductType)

	var accounts []accountData
	if err := c.get(ctx, "/api/v2/mix/account/accounts", params, &accounts); err != nil {
		return 0, fmt.Errorf("fetching accounts: %w", err)
	}

	for _, a := range accounts {
		if strings.EqualFold(a.MarginCoin, c.opts.MarginCoin) {
			available, err := strconv.ParseFloat(a.Available, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing available balance %q: %w", a.Available, err)
			}
			return available, nil
		}
	}
	return 0, fmt.Errorf("no %s account found", c.opts.MarginCoin)
}

// GetContract returns the contract rules for symbol, cached after the first call
func (c *Client) GetContract(ctx context.Context, symbol string) (Contract, error) {
	c.mu.Lock()
	contract, ok := c.contracts[symbol]
	c.mu.Unlock()
	if ok {
		return contract, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", c.opts.ProductType)

	var contracts []Contract
	if err := c.get(ctx, "/api/v2/mix/market/contracts", params, &contracts); err != nil {
		return Contract{}, fmt.Errorf("fetching contract for %s: %w", symbol, err)
	}
	for _, ct := range contracts {
		if ct.Symbol == symbol {
			c.mu.Lock()
			c.contracts[symbol] = ct
			c.mu.Unlock()
			return ct, nil
		}
	}
	return Contract{}, fmt.Errorf("contract %s not found", symbol)
}

// SetLeverage sets the leverage for both sides of symbol
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := leverageRequest{
		Symbol:      symbol,
		ProductType: c.opts.ProductType,
		MarginCoin:  c.opts.MarginCoin,
		Leverage:    strconv.Itoa(leverage),
	}
	if err := c.post(ctx, "/api/v2/mix/account/set-leverage", body, nil); err != nil {
		return fmt.Errorf("setting leverage for %s: %w", symbol, err)
	}

	c.logger.Info().Str("symbol", symbol).Int("leverage", leverage).Msg("Leverage set")
	return nil
}

// PlaceMarketOrder opens a position at market with preset stop loss and take profit.
// Size is truncated and prices are rounded to the contract precision.
func (c *Client) PlaceMarketOrder(ctx context.Context, order OrderRequest) (*OrderResult, error) {
	contract, err := c.GetContract(ctx, order.Symbol)
	if err != nil {
		return nil, err
	}

	size, err := formatSize(order.Size, contract)
	if err != nil {
		return nil, fmt.Errorf("placing %s order: %w", order.Symbol, err)
	}

	body := placeOrderRequest{
		Symbol:      order.Symbol,
		ProductType: c.opts.ProductType,
		MarginMode:  c.opts.MarginMode,
		MarginCoin:  c.opts.MarginCoin,
		Size:        size,
		Side:        order.Side,
		OrderType:   "market",
		ClientOid:   uuid.NewString(),
	}
	if order.StopLoss > 0 {
		body.PresetStopLossPrice = formatPrice(order.StopLoss, contract)
	}
	if order.TakeProfit > 0 {
		body.PresetStopSurplusPrice = formatPrice(order.TakeProfit, contract)
	}

	var result OrderResult
	if err := c.post(ctx, "/api/v2/mix/order/place-order", body, &result); err != nil {
		return nil, fmt.Errorf("placing %s order: %w", order.Symbol, err)
	}
	result.Size = size

	c.logger.Info().
		Str("symbol", order.Symbol).
		Str("side", order.Side).
		Str("size", size).
		Str("order_id", result.OrderID).
		Str("stop_loss", body.PresetStopLossPrice).
		Str("take_profit", body.PresetStopSurplusPrice).
		Msg("Market order placed")

	return &result, nil
}

// ClosePosition flash-closes the position on holdSide ("long" or "short") at market
func (c *Client) ClosePosition(ctx context.Context, symbol, holdSide string) error {
	body := closePositionsRequest{
		Symbol:      symbol,
		ProductType: c.opts.ProductType,
		HoldSide:    holdSide,
	}
	if err := c.post(ctx, "/api/v2/mix/order/close-positions", body, nil); err != nil {
		return fmt.Errorf("closing %s %s: %w", holdSide, symbol, err)
	}

	c.logger.Info().Str("symbol", symbol).Str("hold_side", holdSide).Msg("Position closed")
	return nil
}

// GetPositions lists open positions in the margin coin
func (c *Client) GetPositions(ctx context.Context) ([]ExchangePosition, error) {
	params := url.Values{}
	params.Set("productType", c.opts.ProductType)
	params.Set("marginCoin", c.opts.MarginCoin)

	var positions []ExchangePosition
	if err := c.get(ctx, "/api/v2/mix/position/all-position", params, &positions); err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}

	open := positions[:0]
	for _, p := range positions {
		if total, err := strconv.ParseFloat(p.Total, 64); err == nil && total != 0 {
			open = append(open, p)
		}
	}
	return open, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, requestPath, nil, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, requestPath string, body []byte, out interface{}) error {
	raw, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if !c.creds.empty() {
			c.creds.apply(req, c.now(), requestPath, string(body))
		}
		return req, nil
	})
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error().Err(err).Str("response", string(raw)).Msg("Error parsing JSON")
		return fmt.Errorf("parsing JSON: %w", err)
	}
	if env.Code != successCode {
		c.logger.Error().Str("code", env.Code).Str("msg", env.Msg).Str("path", requestPath).Msg("Bitget API error")
		return &APIError{Code: env.Code, Msg: env.Msg}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parsing data: %w", err)
	}
	return nil
}

func parseCandle(r rawCandle) (models.Candle, error) {
	if len(r) < 6 {
		return models.Candle{}, fmt.Errorf("candle has %d fields", len(r))
	}

	ms, err := strconv.ParseInt(r[0], 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing timestamp %q: %w", r[0], err)
	}

	values := make([]float64, 5)
	for i := range values {
		v, err := strconv.ParseFloat(r[i+1], 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parsing field %d %q: %w", i+1, r[i+1], err)
		}
		values[i] = v
	}

	return models.Candle{
		Timestamp: time.UnixMilli(ms).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// granularity maps bot intervals to Bitget candle granularities
func granularity(interval string) (string, error) {
	if _, err := models.IntervalDuration(interval); err != nil {
		return "", err
	}
	// minutes stay lowercase, hours and days are uppercase (1H, 4H, 1D)
	if strings.HasSuffix(interval, "h") || strings.HasSuffix(interval, "d") {
		return strings.ToUpper(interval), nil
	}
	return interval, nil
}

func formatSize(size float64, contract Contract) (string, error) {
	places, _ := strconv.Atoi(contract.VolumePlace)
	d := decimal.NewFromFloat(size).Truncate(int32(places))

	minTrade, err := decimal.NewFromString(contract.MinTradeNum)
	if err != nil {
		minTrade = decimal.Zero
	}
	if d.IsZero() || d.LessThan(minTrade) {
		return "", fmt.Errorf("%w: %s < %s", ErrSizeTooSmall, d.String(), minTrade.String())
	}
	return d.String(), nil
}

func formatPrice(price float64, contract Contract) string {
	places, _ := strconv.Atoi(contract.PricePlace)
	return decimal.NewFromFloat(price).Round(int32(places)).String()
}
