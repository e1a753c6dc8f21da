// Package bitvavo streams trades and fetches candles from Bitvavo.
package bitvavo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/exchange"
	"TickFeed/internal/resample"
	"TickFeed/internal/symbols"
	"TickFeed/pkg/fixed"
	xhttp "TickFeed/pkg/http"
)

type Client struct {
	wsURL   string
	restURL string
	http    *xhttp.Client
}

func New(wsURL, restURL string, hc *xhttp.Client) *Client {
	return &Client{wsURL: wsURL, restURL: restURL, http: hc}
}

func (c *Client) Venue() models.Venue { return models.VenueBitvavo }

func (c *Client) DialURL(symbol models.Symbol) (string, error) {
	if _, ok := symbols.WS(models.VenueBitvavo, symbol); !ok {
		return "", fmt.Errorf("bitvavo: unsupported pair %s", symbol)
	}
	return c.wsURL, nil
}

func (c *Client) SubscribeFrames(symbol models.Symbol) ([][]byte, error) {
	market, ok := symbols.WS(models.VenueBitvavo, symbol)
	if !ok {
		return nil, fmt.Errorf("bitvavo: unsupported pair %s", symbol)
	}
	frame, _ := json.Marshal(map[string]interface{}{
		"action": "subscribe",
		"channels": []map[string]interface{}{
			{"name": "trades", "markets": []string{market}},
		},
	})
	return [][]byte{frame}, nil
}

type wsTrade struct {
	Event     string `json:"event"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"` // ms, or ns when >13 digits
}

func (c *Client) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var m wsTrade
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	if m.Event != "trade" || m.Timestamp <= 0 {
		return nil
	}
	price, ok := fixed.Parse(m.Price)
	if !ok || price <= 0 {
		return nil
	}
	size, ok := fixed.Parse(m.Amount)
	if !ok || size < 0 {
		return nil
	}
	return []models.Trade{{
		Symbol:    symbol,
		Venue:     models.VenueBitvavo,
		Price:     price,
		Size:      size,
		Timestamp: exchange.FlexibleMsNs(m.Timestamp),
	}}
}

// FetchCandles requests /v2/{market}/candles; the interval label is the
// canonical timeframe. Rows are [time_ms, o, h, l, c, v].
func (c *Client) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	market, ok := symbols.REST(models.VenueBitvavo, symbol)
	if !ok {
		return nil, fmt.Errorf("bitvavo: unsupported pair %s", symbol)
	}
	if tf.Seconds() <= 0 {
		return nil, fmt.Errorf("bitvavo: unsupported timeframe %s", tf)
	}

	var raw []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.restURL + "/v2/" + market + "/candles",
		QueryParams: map[string][]string{
			"interval": {string(tf)},
			"start":    {strconv.FormatInt(start.UnixMilli(), 10)},
			"end":      {strconv.FormatInt(end.UnixMilli(), 10)},
			"limit":    {"1000"},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("bitvavo candles: %w", err)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("bitvavo candles decode: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		ms, ok := exchange.CellInt(r[0])
		if !ok {
			continue
		}
		open, ok1 := exchange.CellFx(r[1])
		high, ok2 := exchange.CellFx(r[2])
		low, ok3 := exchange.CellFx(r[3])
		cls, ok4 := exchange.CellFx(r[4])
		vol, ok5 := exchange.CellFx(r[5])
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		out = append(out, models.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  ms / 1000,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    vol,
		})
	}

	resample.SortAscending(out)
	return resample.Clip(out, start.Unix(), end.Unix()), nil
}
