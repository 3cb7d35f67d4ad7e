package domain

import (
	"errors"
	"time"
)

// ErrUnknownCoordinateField is returned for a change naming no known field.
var ErrUnknownCoordinateField = errors.New("unknown coordinate field")

// Coordinate is the shared latitude/longitude pair. A nil field is absent,
// which is distinct from zero. The two fields are independent.
type Coordinate struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// DefaultCoordinate returns the start-up value: both fields zero.
func DefaultCoordinate() Coordinate {
	return Coordinate{Latitude: Float(0), Longitude: Float(0)}
}

// AbsentCoordinate returns a coordinate with both fields absent.
func AbsentCoordinate() Coordinate {
	return Coordinate{}
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}

// Clone returns a copy that shares no pointers with c.
func (c Coordinate) Clone() Coordinate {
	return Coordinate{Latitude: cloneFloat(c.Latitude), Longitude: cloneFloat(c.Longitude)}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

// CoordinateField names the part of a coordinate a write touched.
type CoordinateField string

const (
	FieldLatitude  CoordinateField = "latitude"
	FieldLongitude CoordinateField = "longitude"
	FieldBoth      CoordinateField = "both"
)

// Valid reports whether f is one of the known fields.
func (f CoordinateField) Valid() bool {
	switch f {
	case FieldLatitude, FieldLongitude, FieldBoth:
		return true
	}
	return false
}

// CoordinateChange is emitted after every store write. Seq increases with
// every write to one store; it is local to that store and not meaningful
// across instances.
type CoordinateChange struct {
	Seq        uint64          `json:"seq"`
	Origin     string          `json:"origin"`
	Field      CoordinateField `json:"field"`
	Coordinate Coordinate      `json:"coordinate"` // full value after the write
	ChangedAt  time.Time       `json:"changed_at"`
}
