package benchmarks

import (
	"context"
	"testing"

	"github.com/tradesys/pulse/pkg/pulse/bus"
	"github.com/tradesys/pulse/pkg/pulse/event"
)

// noopHandler does minimal work to measure dispatch overhead.
var noopHandler = bus.NamedHandler("noop", func(ctx context.Context, evt *event.Envelope) error {
	return nil
})

// BenchmarkBusPublish measures enqueue plus dispatch through a running
// loop with one wildcard subscriber.
func BenchmarkBusPublish(b *testing.B) {
	ctx := context.Background()
	bb := mustBus(b, bus.Config{QueueCapacity: 4096})
	_ = bb.SubscribeAll(noopHandler)
	if err := bb.Start(ctx); err != nil {
		b.Fatal(err)
	}
	defer bb.Stop()

	evt := mustEnvelope(b, smallPayload())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bb.Publish(ctx, evt)
	}
}

// BenchmarkBusPublish_Handlers10 measures dispatch fan-out to 10 handlers.
func BenchmarkBusPublish_Handlers10(b *testing.B) {
	ctx := context.Background()
	bb := mustBus(b, bus.Config{QueueCapacity: 4096})
	for i := 0; i < 10; i++ {
		_ = bb.SubscribeAll(noopHandler)
	}
	if err := bb.Start(ctx); err != nil {
		b.Fatal(err)
	}
	defer bb.Stop()

	evt := mustEnvelope(b, smallPayload())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bb.Publish(ctx, evt)
	}
}

// BenchmarkBusTryPublish_Drop measures the drop path on a full queue,
// the cost a latency-sensitive caller pays under backpressure.
func BenchmarkBusTryPublish_Drop(b *testing.B) {
	bb := mustBus(b, bus.Config{QueueCapacity: 1})

	evt := mustEnvelope(b, smallPayload())
	_ = bb.TryPublish(evt) // fill the queue; no loop is draining it
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bb.TryPublish(evt)
	}
}

// BenchmarkBusSubscribe measures registry insertion.
func BenchmarkBusSubscribe(b *testing.B) {
	bb := mustBus(b, bus.Config{})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bb.Subscribe(event.TypeSignal, noopHandler)
	}
}

func mustBus(b *testing.B, cfg bus.Config) *bus.Bus {
	b.Helper()
	bb, err := bus.New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	return bb
}
