// Package bitstamp streams live trades and fetches OHLC from Bitstamp.
package bitstamp

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

func (c *Client) Venue() models.Venue { return models.VenueBitstamp }

func (c *Client) DialURL(symbol models.Symbol) (string, error) {
	if _, ok := symbols.WS(models.VenueBitstamp, symbol); !ok {
		return "", fmt.Errorf("bitstamp: unsupported pair %s", symbol)
	}
	return c.wsURL, nil
}

func (c *Client) SubscribeFrames(symbol models.Symbol) ([][]byte, error) {
	pair, ok := symbols.WS(models.VenueBitstamp, symbol)
	if !ok {
		return nil, fmt.Errorf("bitstamp: unsupported pair %s", symbol)
	}
	frame, _ := json.Marshal(map[string]interface{}{
		"event": "bts:subscribe",
		"data":  map[string]string{"channel": "live_trades_" + pair},
	})
	return [][]byte{frame}, nil
}

type wsMessage struct {
	Event string `json:"event"`
	Data  struct {
		Price     json.Number `json:"price"`
		Amount    json.Number `json:"amount"`
		Timestamp string      `json:"timestamp"` // epoch seconds, quoted
	} `json:"data"`
}

func (c *Client) ParseMessage(symbol models.Symbol, data []byte) []models.Trade {
	var m wsMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	// bts:subscription_succeeded and heartbeats are not trades
	if m.Event != "trade" {
		return nil
	}
	price, ok := fixed.Parse(m.Data.Price.String())
	if !ok || price <= 0 {
		return nil
	}
	size, ok := fixed.Parse(m.Data.Amount.String())
	if !ok || size < 0 {
		return nil
	}
	sec, err := strconv.ParseInt(m.Data.Timestamp, 10, 64)
	if err != nil || sec <= 0 {
		return nil
	}
	return []models.Trade{{
		Symbol:    symbol,
		Venue:     models.VenueBitstamp,
		Price:     price,
		Size:      size,
		Timestamp: exchange.SecToNs(sec),
	}}
}

type ohlcResponse struct {
	Data struct {
		OHLC []struct {
			Timestamp string `json:"timestamp"`
			Open      string `json:"open"`
			High      string `json:"high"`
			Low       string `json:"low"`
			Close     string `json:"close"`
			Volume    string `json:"volume"`
		} `json:"ohlc"`
	} `json:"data"`
}

// FetchCandles requests /api/v2/ohlc with step equal to the timeframe
// second count and filters by the requested range.
func (c *Client) FetchCandles(ctx context.Context, symbol models.Symbol, tf models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	pair, ok := symbols.REST(models.VenueBitstamp, symbol)
	if !ok {
		return nil, fmt.Errorf("bitstamp: unsupported pair %s", symbol)
	}
	step := tf.Seconds()
	if step <= 0 {
		return nil, fmt.Errorf("bitstamp: unsupported timeframe %s", tf)
	}

	var resp ohlcResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.restURL + "/api/v2/ohlc/" + pair + "/",
		QueryParams: map[string][]string{
			"step":  {strconv.FormatInt(step, 10)},
			"limit": {"1000"},
			"start": {strconv.FormatInt(start.Unix(), 10)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("bitstamp ohlc: %w", err)
	}

	out := make([]models.Candle, 0, len(resp.Data.OHLC))
	for _, r := range resp.Data.OHLC {
		sec, err := strconv.ParseInt(r.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		open, ok1 := fixed.Parse(r.Open)
		high, ok2 := fixed.Parse(r.High)
		low, ok3 := fixed.Parse(r.Low)
		cls, ok4 := fixed.Parse(r.Close)
		vol, ok5 := fixed.Parse(r.Volume)
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
