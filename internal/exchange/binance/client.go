// Package binance streams trades and fetches klines from Binance spot.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/exchange"
	"TickFeed/internal/symbols"
	"TickFeed/pkg/fixed"
	xhttp "TickFeed/pkg/http"
)

const pageLimit = 1000

type Client struct {
	wsURL     string
	restURL   string
	http      *xhttp.Client
	pageDelay time.Duration
}

func New(wsURL, restURL string, hc *xhttp.Client, pageDelay time.Duration) *Client {
	return &Client{wsURL: wsURL, restURL: restURL, http: hc, pageDelay: pageDelay}
}

func (c *Client) Venue() models.Venue { return models.VenueBinance }

// DialURL selects the trade channel through the URL path; Binance needs
// no subscribe frame.
func (c *Client) DialURL(symbol models.Symbol) (string, error) {
	s, ok := symbols.WS(models.VenueBinance, symbol)
	if !ok {
		return "", fmt.Errorf("binance: unsupported pair %s", symbol)
	}
	return c.wsURL + "/" + s + "@trade", nil
}

func (c *Client) SubscribeFrames(models.Symbol) ([][]byte, error) { return nil, nil }

// E and t are declared so encoding/json's case-insensitive key matching
// does not fold the event time into e or the trade id into T.
type wsTrade struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	TradeID   int64  `json:"t"`
	Price     string `json:"p"`
	Qty       string `json:"q"`
	Time      int64  `json:"T"`
}

func (c *Client) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var m wsTrade
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	if m.Event != "trade" || m.Time <= 0 {
		return nil
	}
	price, ok := fixed.Parse(m.Price)
	if !ok || price <= 0 {
		return nil
	}
	size, ok := fixed.Parse(m.Qty)
	if !ok || size < 0 {
		return nil
	}
	return []models.Trade{{
		Symbol:    symbol,
		Venue:     models.VenueBinance,
		Price:     price,
		Size:      size,
		Timestamp: exchange.MsToNs(m.Time),
	}}
}

// FetchCandles pages through /api/v3/klines by startTime until a short
// page, advancing the cursor past the last open time.
func (c *Client) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	rest, ok := symbols.REST(models.VenueBinance, symbol)
	if !ok {
		return nil, fmt.Errorf("binance: unsupported pair %s", symbol)
	}

	startMs := start.UnixMilli()
	endMs := end.UnixMilli()

	var out []models.Candle
	for startMs <= endMs {
		var raw []byte
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    c.restURL + "/api/v3/klines",
			QueryParams: map[string][]string{
				"symbol":    {rest},
				"interval":  {string(tf)}, // Binance intervals match the canonical labels
				"startTime": {strconv.FormatInt(startMs, 10)},
				"endTime":   {strconv.FormatInt(endMs, 10)},
				"limit":     {strconv.Itoa(pageLimit)},
			},
		}, &raw)
		if err != nil {
			return nil, fmt.Errorf("binance klines: %w", err)
		}

		var rows [][]json.RawMessage
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("binance klines decode: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		var lastOpenMs int64
		for _, r := range rows {
			if len(r) < 6 {
				continue
			}
			openMs, ok := exchange.CellInt(r[0])
			if !ok {
				continue
			}
			lastOpenMs = openMs
			candle, ok := rowToCandle(symbol, tf, openMs, r)
			if !ok {
				continue
			}
			out = append(out, candle)
		}

		if len(rows) < pageLimit {
			break
		}
		startMs = lastOpenMs + 1

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pageDelay):
		}
	}
	return out, nil
}

func rowToCandle(symbol models.Symbol, tf models.Timeframe, openMs int64, r []json.RawMessage) (models.Candle, bool) {
	open, ok1 := exchange.CellFx(r[1])
	high, ok2 := exchange.CellFx(r[2])
	low, ok3 := exchange.CellFx(r[3])
	cls, ok4 := exchange.CellFx(r[4])
	vol, ok5 := exchange.CellFx(r[5])
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return models.Candle{}, false
	}
	return models.Candle{
		Symbol:    symbol,
		Timeframe: tf,
		OpenTime:  openMs / 1000,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, true
}
