// Package config provides file-based configuration for the pulse
// components an embedding application constructs: the bus, the journal,
// and the publisher facade. Loading starts from Default and overlays the
// file, so a config file only states what it changes.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tradesys/pulse/pkg/pulse/bus"
	"github.com/tradesys/pulse/pkg/pulse/event"
	"github.com/tradesys/pulse/pkg/pulse/journal"
	"github.com/tradesys/pulse/pkg/pulse/publisher"
)

// Duration wraps time.Duration for config files. It accepts Go duration
// strings ("500ms", "2s") and bare numbers, which are read as seconds.
type Duration struct {
	time.Duration
}

// Seconds builds a Duration from a number of seconds.
func Seconds(s float64) Duration {
	return Duration{time.Duration(s * float64(time.Second))}
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", val, err)
		}
		d.Duration = parsed
	case float64:
		d.Duration = time.Duration(val * float64(time.Second))
	case int:
		d.Duration = time.Duration(val) * time.Second
	case int64:
		d.Duration = time.Duration(val) * time.Second
	default:
		return fmt.Errorf("unsupported duration value %v (%T)", v, v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var v any
	if err := value.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

// Config is the file-level shape: one section per pulse component.
type Config struct {
	Bus       BusConfig       `yaml:"bus" json:"bus"`
	Journal   JournalConfig   `yaml:"journal" json:"journal"`
	Publisher PublisherConfig `yaml:"publisher" json:"publisher"`
}

// BusConfig configures the in-process bus.
type BusConfig struct {
	// QueueCapacity bounds the pending-event queue.
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`

	// DeadLetterCapacity bounds the kept-failure list.
	DeadLetterCapacity int `yaml:"dead_letter_capacity" json:"dead_letter_capacity"`

	// WaitTimeout is the dispatch loop's idle wait slice.
	WaitTimeout Duration `yaml:"wait_timeout" json:"wait_timeout"`

	// PersistDir enables the per-type JSONL mirror when set.
	PersistDir string `yaml:"persist_dir" json:"persist_dir"`

	// DedupeTTL enables id-based duplicate suppression when positive.
	DedupeTTL Duration `yaml:"dedupe_ttl" json:"dedupe_ttl"`
}

// JournalConfig configures the cross-process transport.
type JournalConfig struct {
	// Dir holds the per-day journal files. Required for processes that
	// use the journal at all.
	Dir string `yaml:"dir" json:"dir"`

	// ProcessName identifies this writer; empty means the binary name.
	ProcessName string `yaml:"process_name" json:"process_name"`

	// ProcessID overrides the OS pid, for tests and supervisors that
	// recycle pids. Zero means os.Getpid().
	ProcessID int `yaml:"process_id" json:"process_id"`

	// PollInterval is the reader's cadence.
	PollInterval Duration `yaml:"poll_interval" json:"poll_interval"`

	// MaxBatch bounds lines parsed per poll.
	MaxBatch int `yaml:"max_batch" json:"max_batch"`

	// ReadFromLatest tails new files from the end instead of replaying.
	ReadFromLatest bool `yaml:"read_from_latest" json:"read_from_latest"`

	// CursorPath, when set, is the SQLite file persisting read offsets
	// across restarts.
	CursorPath string `yaml:"cursor_path" json:"cursor_path"`
}

// PublisherConfig configures the facade.
type PublisherConfig struct {
	// Source names the component stamped on envelopes.
	Source string `yaml:"source" json:"source"`

	// SchemaVersion marks the payload conventions in use.
	SchemaVersion string `yaml:"schema_version" json:"schema_version"`

	// LatencyWindow is the sample count behind LatencyP95.
	LatencyWindow int `yaml:"latency_window" json:"latency_window"`
}

// Default returns the configuration the components would apply on their
// own for zero values, so a loaded file only has to state overrides.
func Default() Config {
	return Config{
		Bus: BusConfig{
			QueueCapacity:      bus.DefaultQueueCapacity,
			DeadLetterCapacity: bus.DefaultDeadLetterCapacity,
			WaitTimeout:        Duration{bus.DefaultWaitTimeout},
		},
		Journal: JournalConfig{
			PollInterval: Duration{journal.DefaultPollInterval},
			MaxBatch:     journal.DefaultMaxBatch,
		},
		Publisher: PublisherConfig{
			SchemaVersion: event.DefaultSchemaVersion,
			LatencyWindow: publisher.DefaultLatencyWindow,
		},
	}
}

// Validate rejects values no component could run with. Empty strings are
// allowed: they either fall back to defaults or disable the feature.
func (c Config) Validate() error {
	if c.Bus.QueueCapacity < 0 {
		return fmt.Errorf("invalid config: bus.queue_capacity %d is negative", c.Bus.QueueCapacity)
	}
	if c.Bus.DeadLetterCapacity < 0 {
		return fmt.Errorf("invalid config: bus.dead_letter_capacity %d is negative", c.Bus.DeadLetterCapacity)
	}
	if c.Bus.WaitTimeout.Duration < 0 {
		return fmt.Errorf("invalid config: bus.wait_timeout %s is negative", c.Bus.WaitTimeout)
	}
	if c.Bus.DedupeTTL.Duration < 0 {
		return fmt.Errorf("invalid config: bus.dedupe_ttl %s is negative", c.Bus.DedupeTTL)
	}
	if c.Journal.PollInterval.Duration < 0 {
		return fmt.Errorf("invalid config: journal.poll_interval %s is negative", c.Journal.PollInterval)
	}
	if c.Journal.MaxBatch < 0 {
		return fmt.Errorf("invalid config: journal.max_batch %d is negative", c.Journal.MaxBatch)
	}
	if c.Journal.ProcessID < 0 {
		return fmt.Errorf("invalid config: journal.process_id %d is negative", c.Journal.ProcessID)
	}
	if c.Publisher.LatencyWindow < 0 {
		return fmt.Errorf("invalid config: publisher.latency_window %d is negative", c.Publisher.LatencyWindow)
	}
	return nil
}
