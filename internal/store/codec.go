package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion tags every persisted record. Payloads carrying any other
// version are rejected whole.
const SchemaVersion = 1

// ErrCorruptRecord reports a stored payload that cannot be trusted. Callers
// treat it as "no state"; partial trust in a corrupted record is never
// granted.
var ErrCorruptRecord = errors.New("corrupt security state record")

// Record is the persisted security state for one identifier. Timestamps are
// epoch milliseconds; LockoutUntil zero means no lockout. The JSON shape is a
// compatibility contract with previously stored state.
type Record struct {
	FailedAttempts int   `json:"failedAttempts"`
	LastAttempt    int64 `json:"lastAttempt"`
	LockoutUntil   int64 `json:"lockoutUntil,omitempty"`
	CreatedAt      int64 `json:"createdAt"`
	UpdatedAt      int64 `json:"updatedAt"`
	Version        int   `json:"version"`
}

// Clone returns a copy of r, or nil for nil.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// EncodeRecord serializes r with the current schema version.
func EncodeRecord(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrCorruptRecord)
	}
	stamped := *r
	stamped.Version = SchemaVersion
	return json.Marshal(&stamped)
}

// DecodeRecord parses and validates a stored payload. Every malformed shape
// (truncated JSON, wrong types, negative counters, missing timestamps,
// unknown schema version) yields ErrCorruptRecord.
func DecodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	if r.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d", ErrCorruptRecord, r.Version)
	}
	if r.FailedAttempts < 0 {
		return nil, fmt.Errorf("%w: negative attempt count", ErrCorruptRecord)
	}
	if r.LastAttempt < 0 || r.LockoutUntil < 0 || r.CreatedAt < 0 || r.UpdatedAt < 0 {
		return nil, fmt.Errorf("%w: negative timestamp", ErrCorruptRecord)
	}
	if r.CreatedAt == 0 || r.UpdatedAt == 0 {
		return nil, fmt.Errorf("%w: missing bookkeeping timestamps", ErrCorruptRecord)
	}

	return &r, nil
}
