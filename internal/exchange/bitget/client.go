// Package bitget streams spot trades and fetches candles from Bitget.
package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/exchange"
	"TickFeed/internal/resample"
	"TickFeed/internal/symbols"
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

func (c *Client) Venue() models.Venue { return models.VenueBitget }

func (c *Client) DialURL(symbol models.Symbol) (string, error) {
	if _, ok := symbols.WS(models.VenueBitget, symbol); !ok {
		return "", fmt.Errorf("bitget: unsupported pair %s", symbol)
	}
	return c.wsURL, nil
}

func (c *Client) SubscribeFrames(symbol models.Symbol) ([][]byte, error) {
	inst, ok := symbols.WS(models.VenueBitget, symbol)
	if !ok {
		return nil, fmt.Errorf("bitget: unsupported pair %s", symbol)
	}
	frame, _ := json.Marshal(map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{
			{"instType": "SPOT", "channel": "trade", "instId": inst},
		},
	})
	return [][]byte{frame}, nil
}

type wsMessage struct {
	Event string            `json:"event"`
	Data  []json.RawMessage `json:"data"`
}

// ParseMessage handles both row encodings Bitget emits: objects
// {p,q,t} and positional arrays [p,q,t], timestamps in ms either way.
func (c *Client) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var m wsMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	if m.Event != "" || len(m.Data) == 0 {
		return nil
	}

	trades := make([]models.Trade, 0, len(m.Data))
	for _, row := range m.Data {
		if t, ok := parseRow(symbol, row); ok {
			trades = append(trades, t)
		}
	}
	if len(trades) == 0 {
		return nil
	}
	return trades
}

func parseRow(symbol models.Symbol, row json.RawMessage) (models.Trade, bool) {
	var priceRaw, sizeRaw, tsRaw json.RawMessage

	var obj struct {
		P json.RawMessage `json:"p"`
		Q json.RawMessage `json:"q"`
		T json.RawMessage `json:"t"`
	}
	if err := json.Unmarshal(row, &obj); err == nil && obj.P != nil {
		priceRaw, sizeRaw, tsRaw = obj.P, obj.Q, obj.T
	} else {
		var arr []json.RawMessage
		if err := json.Unmarshal(row, &arr); err != nil || len(arr) < 3 {
			return models.Trade{}, false
		}
		priceRaw, sizeRaw, tsRaw = arr[0], arr[1], arr[2]
	}

	price, ok := exchange.CellFx(priceRaw)
	if !ok || price <= 0 {
		return models.Trade{}, false
	}
	size, ok := exchange.CellFx(sizeRaw)
	if !ok || size < 0 {
		return models.Trade{}, false
	}
	ms, ok := exchange.CellInt(tsRaw)
	if !ok || ms <= 0 {
		return models.Trade{}, false
	}

	return models.Trade{
		Symbol:    symbol,
		Venue:     models.VenueBitget,
		Price:     price,
		Size:      size,
		Timestamp: exchange.MsToNs(ms),
	}, true
}

var granularities = map[models.Timeframe]string{
	models.TF1m:  "1min",
	models.TF5m:  "5min",
	models.TF15m: "15min",
	models.TF30m: "30min",
	models.TF1h:  "1h",
	models.TF4h:  "4h",
	models.TF1d:  "1day",
	models.TF1w:  "1week",
}

type candlesResponse struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data [][]json.RawMessage `json:"data"`
}

// FetchCandles issues one request (limit 1000). Row order is not
// documented, so the result is sorted ascending before filtering.
func (c *Client) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	rest, ok := symbols.REST(models.VenueBitget, symbol)
	if !ok {
		return nil, fmt.Errorf("bitget: unsupported pair %s", symbol)
	}
	gran, ok := granularities[tf]
	if !ok {
		return nil, fmt.Errorf("bitget: unsupported timeframe %s", tf)
	}

	var resp candlesResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.restURL + "/api/v2/spot/market/candles",
		QueryParams: map[string][]string{
			"symbol":      {rest},
			"granularity": {gran},
			"limit":       {"1000"},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("bitget candles: %w", err)
	}
	if resp.Code != "00000" {
		return nil, fmt.Errorf("bitget candles: code %s %s", resp.Code, resp.Msg)
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
