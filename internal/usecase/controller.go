package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TickFeed/internal/domain/models"
	"TickFeed/internal/domain/repository"
	"TickFeed/internal/port"
	"TickFeed/internal/statestore"
	"TickFeed/internal/symbols"
	"TickFeed/pkg/fixed"
	"TickFeed/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// Controller owns the worker's mutable state: current selection, the
// state store, the live adapter set and the aggregator. Commands arrive
// from the message port one at a time; stream callbacks arrive from
// adapter goroutines and only touch the aggregator queue and the event
// writer, both of which are safe for concurrent use.
type Controller struct {
	log         *logger.Logger
	metrics     repository.Metrics
	newExchange func(models.Venue) (repository.Exchange, error)
	backfiller  *Backfiller
	sink        repository.AggregateSink
	emit        func(port.Event)
	aggCfg      AggregatorConfig
	validate    *validator.Validate

	mu       sync.RWMutex
	store    *statestore.Store
	symbol   models.Symbol
	tf       models.Timeframe
	adapters map[models.Venue]repository.Exchange
	agg      *Aggregator
	ready    bool
}

// NewController wires the controller. sink may be nil when no downstream
// archive is configured.
func NewController(
	newExchange func(models.Venue) (repository.Exchange, error),
	backfiller *Backfiller,
	sink repository.AggregateSink,
	aggCfg AggregatorConfig,
	emit func(port.Event),
	log *logger.Logger,
	metrics repository.Metrics,
) *Controller {
	return &Controller{
		log:         log,
		metrics:     metrics,
		newExchange: newExchange,
		backfiller:  backfiller,
		sink:        sink,
		emit:        emit,
		aggCfg:      aggCfg,
		validate:    validator.New(),
		symbol:      models.BTCUSDT,
		tf:          models.DefaultTimeframe(),
		adapters:    map[models.Venue]repository.Exchange{},
	}
}

// Handle executes one command. The returned bool is true when the
// worker should exit (shutdown).
func (c *Controller) Handle(ctx context.Context, cmd port.Command) bool {
	switch cmd.Type {
	case port.CmdInit:
		c.handleInit(ctx, cmd)
	case port.CmdSetSymbol:
		c.handleSetSymbol(ctx, cmd)
	case port.CmdSetTimeframe:
		c.handleSetTimeframe(ctx, cmd)
	case port.CmdBackfill:
		c.handleBackfill(ctx, cmd)
	case port.CmdShutdown:
		c.Shutdown()
		c.ack(cmd, port.Ack{For: port.CmdShutdown, OK: true})
		return true
	default:
		c.fail(cmd, port.CodeUnknownCmd, fmt.Sprintf("unknown command %q", cmd.Type))
	}
	return false
}

type initArgs struct {
	StateDirPath string `validate:"required"`
}

func (c *Controller) handleInit(ctx context.Context, cmd port.Command) {
	if err := c.validate.Struct(initArgs{StateDirPath: cmd.StateDirPath}); err != nil {
		c.fail(cmd, port.CodeInvalidArg, "stateDirPath is required")
		return
	}
	if cmd.Debug {
		c.log.SetLevel("debug")
	}

	store, err := statestore.New(cmd.StateDirPath)
	if err != nil {
		c.fail(cmd, port.CodeInternal, err.Error())
		return
	}

	c.mu.Lock()
	c.store = store
	if sym, tf, ok := store.Load(); ok {
		c.symbol, c.tf = sym, tf
	}
	symbol, tf := c.symbol, c.tf
	c.ready = true
	c.mu.Unlock()

	c.restartAggregator(ctx)
	c.startAdapters(ctx, symbol)

	c.ack(cmd, port.Ack{
		For:       port.CmdInit,
		OK:        true,
		Symbol:    string(symbol),
		Timeframe: string(tf),
	})
}

type setSymbolArgs struct {
	Symbol string `validate:"required,oneof=BTC/USDT BTC/USD BTC/EUR"`
}

func (c *Controller) handleSetSymbol(ctx context.Context, cmd port.Command) {
	if !c.isReady() {
		c.fail(cmd, port.CodeUnavailable, "not initialized")
		return
	}
	if err := c.validate.Struct(setSymbolArgs{Symbol: cmd.Symbol}); err != nil {
		c.fail(cmd, port.CodeInvalidArg, fmt.Sprintf("unsupported symbol %q", cmd.Symbol))
		return
	}
	symbol := models.Symbol(cmd.Symbol)

	c.mu.Lock()
	c.symbol = symbol
	store, tf := c.store, c.tf
	c.mu.Unlock()

	if err := store.Save(symbol, tf); err != nil {
		c.fail(cmd, port.CodeInternal, err.Error())
		return
	}

	// adapters stream the old symbol until stopped; in-flight trades for
	// it die with the discarded aggregator
	c.stopAdapters()
	c.restartAggregator(ctx)
	c.startAdapters(ctx, symbol)

	c.ack(cmd, port.Ack{For: port.CmdSetSymbol, OK: true})
}

type setTimeframeArgs struct {
	Timeframe string `validate:"required,oneof=1m 5m 15m 30m 1h 4h 1d 1w"`
}

func (c *Controller) handleSetTimeframe(ctx context.Context, cmd port.Command) {
	if !c.isReady() {
		c.fail(cmd, port.CodeUnavailable, "not initialized")
		return
	}
	if err := c.validate.Struct(setTimeframeArgs{Timeframe: cmd.Timeframe}); err != nil {
		c.fail(cmd, port.CodeInvalidArg, fmt.Sprintf("unsupported timeframe %q", cmd.Timeframe))
		return
	}
	tf := models.Timeframe(cmd.Timeframe)

	c.mu.Lock()
	c.tf = tf
	store, symbol := c.store, c.symbol
	c.mu.Unlock()

	if err := store.Save(symbol, tf); err != nil {
		c.fail(cmd, port.CodeInternal, err.Error())
		return
	}

	c.restartAggregator(ctx)
	c.ack(cmd, port.Ack{For: port.CmdSetTimeframe, OK: true})
}

func (c *Controller) handleBackfill(ctx context.Context, cmd port.Command) {
	if !c.isReady() {
		c.fail(cmd, port.CodeUnavailable, "not initialized")
		return
	}

	c.mu.RLock()
	symbol, tf := c.symbol, c.tf
	c.mu.RUnlock()

	if cmd.Symbol != "" {
		symbol = models.Symbol(cmd.Symbol)
		if !models.IsValidSymbol(symbol) {
			c.fail(cmd, port.CodeInvalidArg, fmt.Sprintf("unsupported symbol %q", cmd.Symbol))
			return
		}
	}
	if cmd.Timeframe != "" {
		tf = models.Timeframe(cmd.Timeframe)
		if !models.IsValidTimeframe(tf) {
			c.fail(cmd, port.CodeInvalidArg, fmt.Sprintf("unsupported timeframe %q", cmd.Timeframe))
			return
		}
	}

	start, err := time.Parse(time.RFC3339, cmd.StartISO)
	if err != nil {
		c.fail(cmd, port.CodeInvalidArg, "startIso must be RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, cmd.EndISO)
	if err != nil {
		c.fail(cmd, port.CodeInvalidArg, "endIso must be RFC3339")
		return
	}
	if !start.Before(end) {
		c.fail(cmd, port.CodeInvalidArg, "startIso must precede endIso")
		return
	}

	candles, err := c.backfiller.Fetch(ctx, symbol, tf, start, end)
	if err != nil {
		// the ack still succeeds with an empty set; the error event is
		// advisory
		c.emit(port.Event{
			Type:  port.EvtError,
			ReqID: cmd.ReqID,
			Data:  port.ErrorData{Code: port.CodeUnavailable, Message: err.Error()},
		})
	}
	for _, candle := range candles {
		c.emit(port.Event{Type: port.EvtCandle, Data: candle, ReqID: cmd.ReqID})
	}
	c.ack(cmd, port.Ack{For: port.CmdBackfill, OK: true})
}

// Shutdown stops the aggregator and every adapter. Safe to call twice;
// also used for process-level teardown on SIGTERM.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	agg := c.agg
	c.agg = nil
	c.ready = false
	c.mu.Unlock()

	if agg != nil {
		agg.Stop()
	}
	c.stopAdapters()
}

// --- stream callbacks (repository.StreamEvents) ---

// OnTrade feeds the aggregator. Trades for a symbol other than the
// current selection are leftovers from a stopping adapter and are
// dropped.
func (c *Controller) OnTrade(t models.Trade) {
	c.mu.RLock()
	agg, symbol := c.agg, c.symbol
	c.mu.RUnlock()

	if agg == nil || t.Symbol != symbol {
		return
	}
	agg.Enqueue(t)
	c.metrics.RecordLastPrice(string(t.Symbol), float64(t.Price)/fixed.Scale)
}

func (c *Controller) OnConnectionChange(venue models.Venue, connected bool) {
	c.emit(port.Event{
		Type: port.EvtStatus,
		Data: models.ConnStatus{Venue: venue, Connected: connected},
	})
}

func (c *Controller) OnStatus(st models.ConnStatus) {
	c.mu.RLock()
	agg := c.agg
	c.mu.RUnlock()
	if agg != nil {
		st.DroppedTrades = agg.Dropped()
	}
	c.emit(port.Event{Type: port.EvtStatus, Data: st})
}

// --- lifecycle helpers ---

// restartAggregator discards the previous instance: buckets never carry
// across a symbol or timeframe change.
func (c *Controller) restartAggregator(ctx context.Context) {
	c.mu.Lock()
	old := c.agg
	symbol, tf := c.symbol, c.tf
	c.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	agg := NewAggregator(symbol, tf, c.aggCfg, c.publishAggregate, c.metrics)
	agg.Start(ctx)

	c.mu.Lock()
	c.agg = agg
	c.mu.Unlock()
}

func (c *Controller) publishAggregate(p models.AggregatedPoint) {
	c.emit(port.Event{Type: port.EvtAggregated, Data: p})
	if c.sink != nil {
		if err := c.sink.Publish(context.Background(), p); err != nil {
			c.metrics.RecordError("sink")
			c.log.Warn("sink publish failed", logger.Error(err))
		}
	}
}

func (c *Controller) startAdapters(ctx context.Context, symbol models.Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, venue := range symbols.VenuesFor(symbol) {
		ex, err := c.newExchange(venue)
		if err != nil {
			c.metrics.RecordError("adapter_create")
			c.log.Error("adapter create failed",
				logger.String("venue", string(venue)), logger.Error(err))
			continue
		}
		if err := ex.Connect(ctx, symbol, c); err != nil {
			c.metrics.RecordError("adapter_connect")
			c.log.Error("adapter connect failed",
				logger.String("venue", string(venue)), logger.Error(err))
			continue
		}
		c.adapters[venue] = ex
	}
}

func (c *Controller) stopAdapters() {
	c.mu.Lock()
	adapters := c.adapters
	c.adapters = map[models.Venue]repository.Exchange{}
	c.mu.Unlock()

	for venue, ex := range adapters {
		if err := ex.Disconnect(); err != nil {
			c.log.Warn("adapter disconnect",
				logger.String("venue", string(venue)), logger.Error(err))
		}
	}
}

func (c *Controller) isReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Controller) ack(cmd port.Command, ack port.Ack) {
	c.emit(port.Event{Type: port.EvtAck, Data: ack, ReqID: cmd.ReqID})
}

func (c *Controller) fail(cmd port.Command, code, msg string) {
	c.emit(port.Event{
		Type:  port.EvtError,
		ReqID: cmd.ReqID,
		Data:  port.ErrorData{Code: code, Message: msg},
	})
}
