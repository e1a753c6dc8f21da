// Package coinbase streams matches and fetches candles from Coinbase
// Exchange.
package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/resample"
	"TickFeed/internal/symbols"
	"TickFeed/pkg/fixed"
	xhttp "TickFeed/pkg/http"
)

// nativeGranularities are the only granularities the candles endpoint
// accepts, in seconds.
var nativeGranularities = map[int64]bool{
	60: true, 300: true, 900: true, 3600: true, 21600: true, 86400: true,
}

type Client struct {
	wsURL   string
	restURL string
	http    *xhttp.Client
}

func New(wsURL, restURL string, hc *xhttp.Client) *Client {
	return &Client{wsURL: wsURL, restURL: restURL, http: hc}
}

func (c *Client) Venue() models.Venue { return models.VenueCoinbase }

func (c *Client) DialURL(symbol models.Symbol) (string, error) {
	if _, ok := symbols.WS(models.VenueCoinbase, symbol); !ok {
		return "", fmt.Errorf("coinbase: unsupported pair %s", symbol)
	}
	return c.wsURL, nil
}

func (c *Client) SubscribeFrames(symbol models.Symbol) ([][]byte, error) {
	product, ok := symbols.WS(models.VenueCoinbase, symbol)
	if !ok {
		return nil, fmt.Errorf("coinbase: unsupported pair %s", symbol)
	}
	frame, _ := json.Marshal(map[string]interface{}{
		"type":        "subscribe",
		"product_ids": []string{product},
		"channels":    []string{"matches"},
	})
	return [][]byte{frame}, nil
}

type wsMatch struct {
	Type  string `json:"type"`
	Price string `json:"price"`
	Size  string `json:"size"`
	Time  string `json:"time"` // RFC3339 with fractional seconds
}

// ParseMessage accepts only type "match"; subscriptions confirmations,
// heartbeats and last_match replays are not trades.
func (c *Client) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var m wsMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	if m.Type != "match" {
		return nil
	}
	price, ok := fixed.Parse(m.Price)
	if !ok || price <= 0 {
		return nil
	}
	size, ok := fixed.Parse(m.Size)
	if !ok || size < 0 {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, m.Time)
	if err != nil {
		return nil
	}
	return []models.Trade{{
		Symbol:    symbol,
		Venue:     models.VenueCoinbase,
		Price:     price,
		Size:      size,
		Timestamp: ts.UnixNano(),
	}}
}

// FetchCandles requests the timeframe directly when the granularity is
// native; otherwise it fetches 1-minute candles and rolls them up. The
// response rows are [time, low, high, open, close, volume], newest
// first.
func (c *Client) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	tfSec := tf.Seconds()
	if tfSec <= 0 {
		return nil, fmt.Errorf("coinbase: unsupported timeframe %s", tf)
	}

	if nativeGranularities[tfSec] {
		return c.fetch(ctx, symbol, tf, tfSec, start, end)
	}

	minute, err := c.fetch(ctx, symbol, models.TF1m, 60, start, end)
	if err != nil {
		return nil, err
	}
	return resample.Up(minute, tf), nil
}

func (c *Client) fetch(ctx context.Context, symbol models.Symbol, tf models.Timeframe, granularity int64, start, end time.Time) ([]models.Candle, error) {
	product, ok := symbols.REST(models.VenueCoinbase, symbol)
	if !ok {
		return nil, fmt.Errorf("coinbase: unsupported pair %s", symbol)
	}

	var raw []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.restURL + "/products/" + product + "/candles",
		QueryParams: map[string][]string{
			"granularity": {strconv.FormatInt(granularity, 10)},
			"start":       {start.UTC().Format(time.RFC3339)},
			"end":         {end.UTC().Format(time.RFC3339)},
		},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("coinbase candles: %w", err)
	}

	// decode with Number so prices keep their decimal literals
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows [][]json.Number
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("coinbase candles decode: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		sec, err := strconv.ParseInt(r[0].String(), 10, 64)
		if err != nil {
			continue
		}
		low, ok1 := fixed.Parse(r[1].String())
		high, ok2 := fixed.Parse(r[2].String())
		open, ok3 := fixed.Parse(r[3].String())
		cls, ok4 := fixed.Parse(r[4].String())
		vol, ok5 := fixed.Parse(r[5].String())
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		out = append(out, models.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  sec,
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
