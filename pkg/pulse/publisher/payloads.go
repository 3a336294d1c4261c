package publisher

import (
	"encoding/json"
	"fmt"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

// The envelope core treats payloads as opaque maps; the structs below are
// the per-kind shape conventions the facade's typed methods emit. A
// consumer recovers the typed form with DecodePayload:
//
//	fill, err := publisher.DecodePayload[publisher.FillPayload](evt)
//
// Producers outside the facade may still publish free-form maps; these
// conventions bind the facade only.

// SignalPayload rides TypeSignal events.
type SignalPayload struct {
	Symbol string         `json:"symbol"`
	Side   string         `json:"side"`
	Reason string         `json:"reason"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Map renders the payload in envelope form.
func (p SignalPayload) Map() map[string]any {
	m := map[string]any{
		"symbol": p.Symbol,
		"side":   p.Side,
		"reason": p.Reason,
	}
	if p.Meta != nil {
		m["meta"] = p.Meta
	}
	return m
}

// SignalScorePayload rides TypeSignalScore events.
type SignalScorePayload struct {
	Symbol  string  `json:"symbol"`
	Score   float64 `json:"score"`
	Verdict string  `json:"verdict"`
}

func (p SignalScorePayload) Map() map[string]any {
	return map[string]any{
		"symbol":  p.Symbol,
		"score":   p.Score,
		"verdict": p.Verdict,
	}
}

// DecisionPayload rides TypeDecision events.
type DecisionPayload struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (p DecisionPayload) Map() map[string]any {
	return map[string]any{
		"symbol": p.Symbol,
		"action": p.Action,
		"reason": p.Reason,
	}
}

// OrderIntentPayload rides TypeOrderIntent events.
type OrderIntentPayload struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
}

func (p OrderIntentPayload) Map() map[string]any {
	return map[string]any{
		"symbol": p.Symbol,
		"side":   p.Side,
		"qty":    p.Qty,
		"price":  p.Price,
	}
}

// OrderSubmittedPayload rides TypeOrderSubmitted events.
type OrderSubmittedPayload struct {
	Symbol  string  `json:"symbol"`
	OrderID string  `json:"order_id"`
	Side    string  `json:"side"`
	Qty     float64 `json:"qty"`
	Price   float64 `json:"price"`
}

func (p OrderSubmittedPayload) Map() map[string]any {
	return map[string]any{
		"symbol":   p.Symbol,
		"order_id": p.OrderID,
		"side":     p.Side,
		"qty":      p.Qty,
		"price":    p.Price,
	}
}

// FillPayload rides TypeOrderFill events.
type FillPayload struct {
	Symbol  string  `json:"symbol"`
	OrderID string  `json:"order_id"`
	Qty     float64 `json:"qty"`
	Price   float64 `json:"price"`
	Fee     float64 `json:"fee"`
}

func (p FillPayload) Map() map[string]any {
	return map[string]any{
		"symbol":   p.Symbol,
		"order_id": p.OrderID,
		"qty":      p.Qty,
		"price":    p.Price,
		"fee":      p.Fee,
	}
}

// Position is one open position inside a snapshot.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgPrice      float64 `json:"avg_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PositionSnapshotPayload rides TypePositionSnapshot events.
type PositionSnapshotPayload struct {
	Positions []Position `json:"positions"`
}

func (p PositionSnapshotPayload) Map() map[string]any {
	return map[string]any{
		"positions": p.Positions,
		"count":     len(p.Positions),
	}
}

// PositionAnomalyPayload rides TypePositionAnomaly events.
type PositionAnomalyPayload struct {
	Symbol   string  `json:"symbol"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
	Note     string  `json:"note"`
}

func (p PositionAnomalyPayload) Map() map[string]any {
	return map[string]any{
		"symbol":   p.Symbol,
		"expected": p.Expected,
		"actual":   p.Actual,
		"note":     p.Note,
	}
}

// ClosePayload rides TypeClose events.
type ClosePayload struct {
	Symbol string  `json:"symbol"`
	PnL    float64 `json:"pnl"`
	Reason string  `json:"reason"`
}

func (p ClosePayload) Map() map[string]any {
	return map[string]any{
		"symbol": p.Symbol,
		"pnl":    p.PnL,
		"reason": p.Reason,
	}
}

// RiskStopPayload rides TypeRiskStop events.
type RiskStopPayload struct {
	Symbol  string `json:"symbol"`
	Trigger string `json:"trigger"`
	Note    string `json:"note"`
}

func (p RiskStopPayload) Map() map[string]any {
	return map[string]any{
		"symbol":  p.Symbol,
		"trigger": p.Trigger,
		"note":    p.Note,
	}
}

// StopLossFailurePayload rides TypeStopLossFailure events.
type StopLossFailurePayload struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (p StopLossFailurePayload) Map() map[string]any {
	return map[string]any{
		"symbol":   p.Symbol,
		"order_id": p.OrderID,
		"reason":   p.Reason,
	}
}

// HealthPayload rides TypeHealth events.
type HealthPayload struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
}

func (p HealthPayload) Map() map[string]any {
	return map[string]any{
		"component": p.Component,
		"status":    p.Status,
		"detail":    p.Detail,
	}
}

// PanicPayload rides TypePanic events.
type PanicPayload struct {
	Component string `json:"component"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail"`
}

func (p PanicPayload) Map() map[string]any {
	return map[string]any{
		"component": p.Component,
		"reason":    p.Reason,
		"detail":    p.Detail,
	}
}

// DecodePayload recovers a typed payload from an envelope by bridging
// through JSON, so it accepts both freshly built payloads and payloads
// that round-tripped the journal.
func DecodePayload[T any](evt *event.Envelope) (T, error) {
	var out T
	if evt == nil {
		return out, fmt.Errorf("decode payload: nil envelope")
	}
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode payload for %s: %w", evt.Type, err)
	}
	return out, nil
}
