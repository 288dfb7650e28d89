// Package record defines the health record entity: an insulin dose or a
// glucose reading with a timestamp and a unique id.
package record

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/glyco/internal/errors"
)

// Kind names used as the discriminant in the durable encoding.
const (
	KindInsulin = "insulin"
	KindGlucose = "glucose"
)

// Kind is the closed payload variant of a Record. The only implementations
// are Insulin and Glucose; the unexported method keeps it that way.
type Kind interface {
	kindName() string
}

// Insulin is an insulin dose in whole units.
type Insulin struct {
	Units int
}

// Glucose is a blood-glucose reading, conventionally mg/dL.
type Glucose struct {
	Value float64
}

func (Insulin) kindName() string { return KindInsulin }
func (Glucose) kindName() string { return KindGlucose }

// Record is one logged health event. Records are immutable after creation.
type Record struct {
	// ID is a UUID for local entries, or the external sample id for merged readings
	ID string

	// Kind is either Insulin or Glucose
	Kind Kind

	// Date is the moment the record represents (not necessarily creation time)
	Date time.Time
}

// KindName returns "insulin" or "glucose".
func (r Record) KindName() string {
	if r.Kind == nil {
		return ""
	}
	return r.Kind.kindName()
}

// Insulin returns the insulin payload when the record is a dose.
func (r Record) Insulin() (Insulin, bool) {
	i, ok := r.Kind.(Insulin)
	return i, ok
}

// Glucose returns the glucose payload when the record is a reading.
func (r Record) Glucose() (Glucose, bool) {
	g, ok := r.Kind.(Glucose)
	return g, ok
}

// Match dispatches on the record kind. Every caller handles both variants,
// so adding a third variant means adding a parameter here and fixing every call site.
func Match[T any](k Kind, insulin func(Insulin) T, glucose func(Glucose) T) T {
	switch v := k.(type) {
	case Insulin:
		return insulin(v)
	case Glucose:
		return glucose(v)
	default:
		panic("record: unknown kind")
	}
}

// Validate reports whether the payload is acceptable for storage.
// Only positivity is checked; there is no medical range enforcement.
func Validate(k Kind) error {
	switch v := k.(type) {
	case Insulin:
		if v.Units <= 0 {
			return errors.NewInvalidUnits(v.Units)
		}
	case Glucose:
		if v.Value <= 0 || math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return errors.NewInvalidValue(v.Value)
		}
	default:
		return errors.NewInvalidRequest("record kind is required")
	}
	return nil
}

// New creates a record with a fresh UUID. A zero at means now.
// The monotonic clock reading is stripped so the value round-trips through encoding.
func New(k Kind, at time.Time) Record {
	if at.IsZero() {
		at = time.Now()
	}
	return Record{
		ID:   uuid.NewString(),
		Kind: k,
		Date: at.Round(0),
	}
}

// WithID creates a record with a caller-chosen id, used when materializing
// external samples so that re-importing the same sample is idempotent.
func WithID(id string, k Kind, at time.Time) Record {
	return Record{
		ID:   id,
		Kind: k,
		Date: at.Round(0),
	}
}
