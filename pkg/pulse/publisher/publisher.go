package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tradesys/pulse/pkg/pulse/event"
	"github.com/tradesys/pulse/pkg/pulse/observability"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultLatencyWindow = 256
)

// Config configures a Publisher.
type Config struct {
	// Source names the component stamped on every envelope.
	// Default: "pulse"
	Source string

	// SchemaVersion marks the payload conventions in use.
	// Default: event.DefaultSchemaVersion
	SchemaVersion string

	// LatencyWindow is how many recent publish latencies LatencyP95
	// considers. Default: 256
	LatencyWindow int

	// Logger receives structured logs. nil disables logging.
	Logger *slog.Logger

	// Metrics receives drop metrics; publish metrics are recorded by the
	// sinks themselves. nil disables metrics.
	Metrics observability.MetricsRecorder
}

func (c Config) withDefaults() Config {
	if c.Source == "" {
		c.Source = "pulse"
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = event.DefaultSchemaVersion
	}
	if c.LatencyWindow <= 0 {
		c.LatencyWindow = DefaultLatencyWindow
	}
	return c
}

// Publisher is the narrow, typed entry point trading components use to
// emit pulse events. Each method builds the per-kind payload convention,
// wraps it in an envelope, and hands it to the sink.
//
// The facade fails open: with no sink attached, or after Disable, every
// method is a Debug-logged no-op returning nil. Telemetry must never take
// the trading path down with it.
type Publisher struct {
	cfg     Config
	sink    Sink
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	enabled atomic.Bool
	latency *latencyWindow

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Publisher over the given sink. A nil sink is allowed and
// puts the publisher in degraded mode.
func New(sink Sink, cfg Config) *Publisher {
	cfg = cfg.withDefaults()

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	p := &Publisher{
		cfg:     cfg,
		sink:    sink,
		logger:  cfg.Logger,
		metrics: metrics,
		latency: newLatencyWindow(cfg.LatencyWindow),
	}
	p.enabled.Store(true)

	if sink == nil && p.logger != nil {
		p.logger.Warn("publisher has no sink, running degraded",
			slog.String("source", cfg.Source))
	}
	return p
}

// NewCorrelationID mints the id that ties a causal chain of events
// together. The chain's first publisher calls it once and threads the id
// through every subsequent call for that chain.
func (p *Publisher) NewCorrelationID() string {
	return fmt.Sprintf("sig_%s", uuid.New().String()[:8])
}

// Enable resumes publishing after Disable.
func (p *Publisher) Enable() { p.enabled.Store(true) }

// Disable suppresses all publishing; every method becomes a no-op
// returning nil. Used for deterministic tests and emergency muting.
func (p *Publisher) Disable() { p.enabled.Store(false) }

// Enabled reports whether publishing is active.
func (p *Publisher) Enabled() bool { return p.enabled.Load() }

// Published returns the number of envelopes accepted by the sink.
func (p *Publisher) Published() uint64 { return p.published.Load() }

// Dropped returns the number of publishes that failed or were refused by
// the sink.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// LatencyP95 returns the 95th percentile of recent sink publish times,
// zero when nothing has been published yet.
func (p *Publisher) LatencyP95() time.Duration { return p.latency.p95() }

// publish builds the envelope and hands it to the sink, recording wall
// time. Degraded and disabled publishes return nil; real sink failures
// are counted, logged, and returned for callers that care.
func (p *Publisher) publish(ctx context.Context, t event.Type, correlationID string, payload map[string]any) error {
	if !p.enabled.Load() {
		observability.LogDegraded(p.logger, string(t), "disabled")
		return nil
	}
	if p.sink == nil {
		observability.LogDegraded(p.logger, string(t), "no sink")
		return nil
	}

	evt, err := event.New(t, correlationID, payload,
		event.WithSource(p.cfg.Source),
		event.WithSchemaVersion(p.cfg.SchemaVersion),
	)
	if err != nil {
		p.dropped.Add(1)
		p.metrics.RecordDrop(ctx, string(t), "build_failed")
		return fmt.Errorf("build envelope: %w", err)
	}

	start := time.Now()
	err = p.sink.Publish(ctx, evt)
	p.latency.observe(time.Since(start))

	if err != nil {
		p.dropped.Add(1)
		p.metrics.RecordDrop(ctx, string(t), "sink_error")
		if p.logger != nil {
			p.logger.Warn("publish failed",
				slog.String("event_type", string(t)),
				slog.String("event_id", evt.ID),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	p.published.Add(1)
	return nil
}

// SignalReceived opens a new causal chain for an incoming trading signal
// and returns the minted correlation id for the caller to thread through
// the chain's later events.
func (p *Publisher) SignalReceived(ctx context.Context, symbol, side, reason string, meta map[string]any) (string, error) {
	correlationID := p.NewCorrelationID()
	err := p.publish(ctx, event.TypeSignal, correlationID, SignalPayload{
		Symbol: symbol,
		Side:   side,
		Reason: reason,
		Meta:   meta,
	}.Map())
	return correlationID, err
}

// SignalScored reports the scoring verdict for a received signal.
func (p *Publisher) SignalScored(ctx context.Context, correlationID, symbol string, score float64, verdict string) error {
	return p.publish(ctx, event.TypeSignalScore, correlationID, SignalScorePayload{
		Symbol:  symbol,
		Score:   score,
		Verdict: verdict,
	}.Map())
}

// Decision reports the trading decision taken for the chain.
func (p *Publisher) Decision(ctx context.Context, correlationID, symbol, action, reason string) error {
	return p.publish(ctx, event.TypeDecision, correlationID, DecisionPayload{
		Symbol: symbol,
		Action: action,
		Reason: reason,
	}.Map())
}

// OrderIntent reports that an order is about to be placed.
func (p *Publisher) OrderIntent(ctx context.Context, correlationID, symbol, side string, qty, price float64) error {
	return p.publish(ctx, event.TypeOrderIntent, correlationID, OrderIntentPayload{
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Price:  price,
	}.Map())
}

// OrderSubmitted reports an order accepted by the exchange.
func (p *Publisher) OrderSubmitted(ctx context.Context, correlationID, symbol, orderID, side string, qty, price float64) error {
	return p.publish(ctx, event.TypeOrderSubmitted, correlationID, OrderSubmittedPayload{
		Symbol:  symbol,
		OrderID: orderID,
		Side:    side,
		Qty:     qty,
		Price:   price,
	}.Map())
}

// OrderFill reports a (partial) fill on a submitted order.
func (p *Publisher) OrderFill(ctx context.Context, correlationID, symbol, orderID string, qty, price, fee float64) error {
	return p.publish(ctx, event.TypeOrderFill, correlationID, FillPayload{
		Symbol:  symbol,
		OrderID: orderID,
		Qty:     qty,
		Price:   price,
		Fee:     fee,
	}.Map())
}

// PositionSnapshot reports the current open positions. Snapshots are not
// part of any signal chain, so each one opens its own correlation id.
func (p *Publisher) PositionSnapshot(ctx context.Context, positions []Position) error {
	correlationID := fmt.Sprintf("snap_%s", uuid.New().String()[:8])
	return p.publish(ctx, event.TypePositionSnapshot, correlationID, PositionSnapshotPayload{
		Positions: positions,
	}.Map())
}

// PositionAnomaly reports a mismatch between expected and actual position
// size. Anomalies open their own chain; reconciliation follows up on it.
func (p *Publisher) PositionAnomaly(ctx context.Context, symbol string, expected, actual float64, note string) error {
	return p.publish(ctx, event.TypePositionAnomaly, p.NewCorrelationID(), PositionAnomalyPayload{
		Symbol:   symbol,
		Expected: expected,
		Actual:   actual,
		Note:     note,
	}.Map())
}

// PositionClosed reports a position fully closed, with realized pnl.
func (p *Publisher) PositionClosed(ctx context.Context, correlationID, symbol string, pnl float64, reason string) error {
	return p.publish(ctx, event.TypeClose, correlationID, ClosePayload{
		Symbol: symbol,
		PnL:    pnl,
		Reason: reason,
	}.Map())
}

// RiskStop reports a risk-triggered halt for the chain.
func (p *Publisher) RiskStop(ctx context.Context, correlationID, symbol, trigger, note string) error {
	return p.publish(ctx, event.TypeRiskStop, correlationID, RiskStopPayload{
		Symbol:  symbol,
		Trigger: trigger,
		Note:    note,
	}.Map())
}

// StopLossFailure reports that placing or amending a stop-loss failed.
// Downstream monitors treat this as the highest-severity event kind.
func (p *Publisher) StopLossFailure(ctx context.Context, correlationID, symbol, orderID, reason string) error {
	return p.publish(ctx, event.TypeStopLossFailure, correlationID, StopLossFailurePayload{
		Symbol:  symbol,
		OrderID: orderID,
		Reason:  reason,
	}.Map())
}

// Health reports a component heartbeat or status change.
func (p *Publisher) Health(ctx context.Context, component, status, detail string) error {
	return p.publish(ctx, event.TypeHealth, p.NewCorrelationID(), HealthPayload{
		Component: component,
		Status:    status,
		Detail:    detail,
	}.Map())
}

// Panic reports an unrecoverable component failure.
func (p *Publisher) Panic(ctx context.Context, component, reason, detail string) error {
	return p.publish(ctx, event.TypePanic, p.NewCorrelationID(), PanicPayload{
		Component: component,
		Reason:    reason,
		Detail:    detail,
	}.Map())
}
