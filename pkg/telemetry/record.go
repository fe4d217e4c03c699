package telemetry

import "time"

// Category identifies the kind of event a record carries.
type Category int

const (
	// CategoryAccelerometer marks a periodic 3-axis acceleration sample.
	CategoryAccelerometer Category = iota + 1
	// CategoryTouch marks a discrete tap on the foreground surface.
	CategoryTouch
)

// String returns the canonical category name used in reports.
func (c Category) String() string {
	switch c {
	case CategoryAccelerometer:
		return "Accelerometer"
	case CategoryTouch:
		return "Touch"
	default:
		return "Unknown"
	}
}

// Payload is the category-specific data attached to a record. The set of
// implementations is closed to this package.
type Payload interface {
	Category() Category
	isPayload()
}

// Acceleration is a single accelerometer sample in units of g.
type Acceleration struct {
	X float64
	Y float64
	Z float64

	// SensorTime is the driver's own sample timestamp, if it reports one.
	// Records are ordered by capture time, never by SensorTime.
	SensorTime time.Time
}

// Category implements Payload.
func (Acceleration) Category() Category { return CategoryAccelerometer }

func (Acceleration) isPayload() {}

// Point is an interaction location relative to the surface that received it.
type Point struct {
	X float64
	Y float64
}

// Category implements Payload.
func (Point) Category() Category { return CategoryTouch }

func (Point) isPayload() {}

// Record is one captured event. The zero value is not useful; build records
// with NewAccelerometer or NewTouch.
type Record struct {
	timestamp time.Time
	payload   Payload
}

// NewAccelerometer builds an accelerometer record captured at ts.
func NewAccelerometer(ts time.Time, sample Acceleration) Record {
	return Record{timestamp: ts, payload: sample}
}

// NewTouch builds a touch record captured at ts.
func NewTouch(ts time.Time, location Point) Record {
	return Record{timestamp: ts, payload: location}
}

// Timestamp reports when the record was captured.
func (r Record) Timestamp() time.Time { return r.timestamp }

// Category reports the record kind, derived from its payload.
func (r Record) Category() Category {
	if r.payload == nil {
		return 0
	}
	return r.payload.Category()
}

// Payload returns the category-specific data.
func (r Record) Payload() Payload { return r.payload }
