// Package kraken streams trades and fetches OHLC from Kraken.
package kraken

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

func (c *Client) Venue() models.Venue { return models.VenueKraken }

func (c *Client) DialURL(symbol models.Symbol) (string, error) {
	if _, ok := symbols.WS(models.VenueKraken, symbol); !ok {
		return "", fmt.Errorf("kraken: unsupported pair %s", symbol)
	}
	return c.wsURL, nil
}

func (c *Client) SubscribeFrames(symbol models.Symbol) ([][]byte, error) {
	pair, ok := symbols.WS(models.VenueKraken, symbol)
	if !ok {
		return nil, fmt.Errorf("kraken: unsupported pair %s", symbol)
	}
	frame, _ := json.Marshal(map[string]interface{}{
		"event":        "subscribe",
		"pair":         []string{pair},
		"subscription": map[string]string{"name": "trade"},
	})
	return [][]byte{frame}, nil
}

// ParseMessage decodes the positional trade message:
// [chanId, [[price, volume, time, side, type, misc], ...], "trade", pair].
// Object-shaped frames (heartbeat, subscriptionStatus) are not trades.
func (c *Client) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil
	}
	if len(frame) < 4 {
		return nil
	}

	var channel string
	if err := json.Unmarshal(frame[2], &channel); err != nil || channel != "trade" {
		return nil
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(frame[1], &rows); err != nil {
		return nil
	}

	trades := make([]models.Trade, 0, len(rows))
	for _, r := range rows {
		if len(r) < 3 {
			continue
		}
		price, ok := exchange.CellFx(r[0])
		if !ok || price <= 0 {
			continue
		}
		size, ok := exchange.CellFx(r[1])
		if !ok || size < 0 {
			continue
		}
		tsLit, ok := exchange.CellString(r[2])
		if !ok {
			continue
		}
		ns, ok := exchange.DecimalSecondsToNs(tsLit)
		if !ok || ns <= 0 {
			continue
		}
		trades = append(trades, models.Trade{
			Symbol:    symbol,
			Venue:     models.VenueKraken,
			Price:     price,
			Size:      size,
			Timestamp: ns,
		})
	}
	if len(trades) == 0 {
		return nil
	}
	return trades
}

type ohlcResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// FetchCandles requests /0/public/OHLC. The result object holds one
// row list keyed by the pair plus a "last" cursor, which is ignored.
// Rows are [time, o, h, l, c, vwap, volume, count]; volume is index 6.
func (c *Client) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	pair, ok := symbols.REST(models.VenueKraken, symbol)
	if !ok {
		return nil, fmt.Errorf("kraken: unsupported pair %s", symbol)
	}
	if tf.Seconds() < 60 || tf.Seconds()%60 != 0 {
		return nil, fmt.Errorf("kraken: unsupported timeframe %s", tf)
	}

	var resp ohlcResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.restURL + "/0/public/OHLC",
		QueryParams: map[string][]string{
			"pair":     {pair},
			"interval": {strconv.FormatInt(tf.Seconds()/60, 10)},
			"since":    {strconv.FormatInt(start.Unix(), 10)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("kraken ohlc: %w", err)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken ohlc: %v", resp.Error)
	}

	var rows [][]json.RawMessage
	for key, raw := range resp.Result {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("kraken ohlc decode: %w", err)
		}
		break
	}

	out := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 7 {
			continue
		}
		sec, ok := exchange.CellInt(r[0])
		if !ok {
			continue
		}
		open, ok1 := exchange.CellFx(r[1])
		high, ok2 := exchange.CellFx(r[2])
		low, ok3 := exchange.CellFx(r[3])
		cls, ok4 := exchange.CellFx(r[4])
		vol, ok5 := exchange.CellFx(r[6])
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
