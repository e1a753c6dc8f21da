// Package okx streams trades and fetches candles from OKX.
package okx

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

func (c *Client) Venue() models.Venue { return models.VenueOKX }

func (c *Client) DialURL(symbol models.Symbol) (string, error) {
	if _, ok := symbols.WS(models.VenueOKX, symbol); !ok {
		return "", fmt.Errorf("okx: unsupported pair %s", symbol)
	}
	return c.wsURL, nil
}

func (c *Client) SubscribeFrames(symbol models.Symbol) ([][]byte, error) {
	inst, ok := symbols.WS(models.VenueOKX, symbol)
	if !ok {
		return nil, fmt.Errorf("okx: unsupported pair %s", symbol)
	}
	frame, _ := json.Marshal(map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "trades", "instId": inst},
		},
	})
	return [][]byte{frame}, nil
}

type wsMessage struct {
	Event string `json:"event"`
	Data  []struct {
		Px string `json:"px"`
		Sz string `json:"sz"`
		Ts string `json:"ts"` // ms, quoted
	} `json:"data"`
}

func (c *Client) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var m wsMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	// subscription acks and errors carry an event field, never trades
	if m.Event != "" || len(m.Data) == 0 {
		return nil
	}

	trades := make([]models.Trade, 0, len(m.Data))
	for _, d := range m.Data {
		price, ok := fixed.Parse(d.Px)
		if !ok || price <= 0 {
			continue
		}
		size, ok := fixed.Parse(d.Sz)
		if !ok || size < 0 {
			continue
		}
		ms, err := strconv.ParseInt(d.Ts, 10, 64)
		if err != nil || ms <= 0 {
			continue
		}
		trades = append(trades, models.Trade{
			Symbol:    symbol,
			Venue:     models.VenueOKX,
			Price:     price,
			Size:      size,
			Timestamp: exchange.MsToNs(ms),
		})
	}
	if len(trades) == 0 {
		return nil
	}
	return trades
}

var barLabels = map[models.Timeframe]string{
	models.TF1m:  "1m",
	models.TF5m:  "5m",
	models.TF15m: "15m",
	models.TF30m: "30m",
	models.TF1h:  "1H",
	models.TF4h:  "4H",
	models.TF1d:  "1D",
	models.TF1w:  "1W",
}

type candlesResponse struct {
	Code string            `json:"code"`
	Msg  string            `json:"msg"`
	Data [][]json.RawMessage `json:"data"`
}

// FetchCandles issues one request (limit 300); the response is
// newest-first and is re-sorted ascending before range filtering.
func (c *Client) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	inst, ok := symbols.REST(models.VenueOKX, symbol)
	if !ok {
		return nil, fmt.Errorf("okx: unsupported pair %s", symbol)
	}
	bar, ok := barLabels[tf]
	if !ok {
		return nil, fmt.Errorf("okx: unsupported timeframe %s", tf)
	}

	var resp candlesResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.restURL + "/api/v5/market/candles",
		QueryParams: map[string][]string{
			"instId": {inst},
			"bar":    {bar},
			"limit":  {"300"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("okx candles: %w", err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("okx candles: code %s %s", resp.Code, resp.Msg)
	}

	out := make([]models.Candle, 0, len(resp.Data))
	for _, r := range resp.Data {
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
