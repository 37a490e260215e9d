// Package snowflake implements 64-bit time-ordered unique identifiers.
//
// An ID packs a millisecond timestamp (41 bits, custom epoch), a worker id
// (5 bits), a process id (5 bits) and a per-millisecond sequence (12 bits).
// IDs sort by creation time when compared as unsigned integers; ties within
// the same millisecond are broken by sequence.
package snowflake

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Epoch is the custom epoch in Unix milliseconds. Timestamps inside an ID
// are offsets from this instant, which extends the usable range of the
// 41-bit field well past 2090.
const Epoch uint64 = 1683992570782

const (
	timestampBits = 41
	workerBits    = 5
	processBits   = 5
	sequenceBits  = 12

	timestampShift = workerBits + processBits + sequenceBits
	workerShift    = processBits + sequenceBits
	processShift   = sequenceBits

	// MaxWorkerID and MaxProcessID bound the 5-bit node fields.
	MaxWorkerID  = 1<<workerBits - 1
	MaxProcessID = 1<<processBits - 1
	// MaxSequence bounds the per-millisecond sequence counter.
	MaxSequence = 1<<sequenceBits - 1

	maxTimestamp = 1<<timestampBits - 1
)

// ErrInt64Overflow is returned by Int64 when the ID's timestamp has grown
// large enough to set the top bit, which a signed representation cannot
// carry without changing the value.
var ErrInt64Overflow = errors.New("snowflake: id does not fit in int64")

// Snowflake is a packed 64-bit identifier.
type Snowflake uint64

// Compose assembles an ID from its four components. The node and
// sequence components are masked to their field widths; the timestamp
// shifts through unmasked, so a timestamp past the 41-bit range sets
// the top bit instead of silently wrapping into a colliding ID, and
// Int64 then refuses it.
func Compose(timestamp, worker, process, sequence uint64) Snowflake {
	return Snowflake(
		timestamp<<timestampShift |
			(worker&MaxWorkerID)<<workerShift |
			(process&MaxProcessID)<<processShift |
			sequence&MaxSequence,
	)
}

// Timestamp returns the milliseconds elapsed since Epoch at issuance.
func (s Snowflake) Timestamp() uint64 {
	return uint64(s) >> timestampShift
}

// WorkerID returns the 5-bit worker component.
func (s Snowflake) WorkerID() uint64 {
	return uint64(s) >> workerShift & MaxWorkerID
}

// ProcessID returns the 5-bit process component.
func (s Snowflake) ProcessID() uint64 {
	return uint64(s) >> processShift & MaxProcessID
}

// Sequence returns the 12-bit per-millisecond sequence component.
func (s Snowflake) Sequence() uint64 {
	return uint64(s) & MaxSequence
}

// Time returns the issuance instant in wall-clock terms.
func (s Snowflake) Time() time.Time {
	return time.UnixMilli(int64(Epoch + s.Timestamp()))
}

// Int64 returns the ID as a signed integer for stores that only carry
// int64 keys. IDs with the top bit set are rejected rather than silently
// reinterpreted as negative values.
func (s Snowflake) Int64() (int64, error) {
	if uint64(s)>>63 != 0 {
		return 0, ErrInt64Overflow
	}
	return int64(s), nil
}

// String renders the ID as an unsigned decimal.
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// Parse reads a decimal ID as produced by String.
func Parse(raw string) (Snowflake, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snowflake: parse %q: %w", raw, err)
	}
	return Snowflake(v), nil
}

// MarshalJSON encodes the ID as a decimal string. IDs exceed the safe
// integer range of JSON consumers, so they never travel as numbers.
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON accepts both the string form and, for lenient ingestion,
// a bare number.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
