package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tradesys/pulse/pkg/pulse/event"
)

// Entry is one journal line: an envelope wrapped with the metadata of the
// process that wrote it. Seq restarts at 1 on every process start and is
// gap-free per writer only; cross-writer order is approximate.
type Entry struct {
	Seq         uint64          `json:"seq"`
	TsUnix      float64         `json:"ts_unix"`
	ProcessID   int             `json:"process_id"`
	ProcessName string          `json:"process_name"`
	Event       *event.Envelope `json:"event"`
}

// WriteTime converts the wall-clock write stamp back to a time.Time.
func (e *Entry) WriteTime() time.Time {
	sec := int64(e.TsUnix)
	nsec := int64((e.TsUnix - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

func (e *Entry) encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode journal entry: %w", err)
	}
	return data, nil
}

// decodeEntry parses one journal line. A line that is valid JSON but not
// a journal entry (no wrapped envelope, no type) is rejected the same way
// as malformed JSON, so the caller has a single skip path.
func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Event == nil {
		return nil, errors.New("missing event")
	}
	if e.Event.Type == "" {
		return nil, event.ErrEmptyType
	}
	return &e, nil
}
