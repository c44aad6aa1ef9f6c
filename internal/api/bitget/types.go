package bitget

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const successCode = "00000"

// envelope is the common wrapper of every Bitget v2 response
type envelope struct {
	Code        string          `json:"code"`
	Msg         string          `json:"msg"`
	RequestTime int64           `json:"requestTime"`
	Data        json.RawMessage `json:"data"`
}

// APIError is a non-success envelope returned by the exchange
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitget error %s: %s", e.Code, e.Msg)
}

// candles come back as [ts, open, high, low, close, baseVolume, quoteVolume]
type rawCandle []string

type tickerData struct {
	Symbol string `json:"symbol"`
	LastPr string `json:"lastPr"`
	MarkPr string `json:"markPrice"`
}

type accountData struct {
	MarginCoin    string `json:"marginCoin"`
	Available     string `json:"available"`
	AccountEquity string `json:"accountEquity"`
}

// Contract holds the trading rules needed to format orders
type Contract struct {
	Symbol      string `json:"symbol"`
	VolumePlace string `json:"volumePlace"`
	PricePlace  string `json:"pricePlace"`
	MinTradeNum string `json:"minTradeNum"`
}

type leverageRequest struct {
	Symbol      string `json:"symbol"`
	ProductType string `json:"productType"`
	MarginCoin  string `json:"marginCoin"`
	Leverage    string `json:"leverage"`
}

type placeOrderRequest struct {
	Symbol                 string `json:"symbol"`
	ProductType            string `json:"productType"`
	MarginMode             string `json:"marginMode"`
	MarginCoin             string `json:"marginCoin"`
	Size                   string `json:"size"`
	Side                   string `json:"side"`
	OrderType              string `json:"orderType"`
	ClientOid              string `json:"clientOid"`
	PresetStopSurplusPrice string `json:"presetStopSurplusPrice,omitempty"`
	PresetStopLossPrice    string `json:"presetStopLossPrice,omitempty"`
}

type closePositionsRequest struct {
	Symbol      string `json:"symbol"`
	ProductType string `json:"productType"`
	HoldSide    string `json:"holdSide,omitempty"`
}

// OrderRequest describes a market entry with attached stop loss and take profit
type OrderRequest struct {
	Symbol     string
	Side       string // buy or sell
	Size       float64
	StopLoss   float64
	TakeProfit float64
}

// OrderResult identifies a placed order
type OrderResult struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
	Size      string `json:"-"`
}

// FilledSize is the submitted size after truncation to the contract precision
func (r *OrderResult) FilledSize() (float64, error) {
	d, err := decimal.NewFromString(r.Size)
	if err != nil {
		return 0, fmt.Errorf("parsing order size %q: %w", r.Size, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// ExchangePosition is an open position as reported by the exchange
type ExchangePosition struct {
	Symbol        string `json:"symbol"`
	HoldSide      string `json:"holdSide"`
	Total         string `json:"total"`
	OpenPriceAvg  string `json:"openPriceAvg"`
	MarkPrice     string `json:"markPrice"`
	UnrealizedPL  string `json:"unrealizedPL"`
	Leverage      string `json:"leverage"`
	MarginSize    string `json:"marginSize"`
	LiquidationPx string `json:"liquidationPrice"`
}
