package frames

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
)

// ErrUnknownFrame is returned for an unsupported frame name.
var ErrUnknownFrame = errors.New("frames: unknown frame")

// ErrNoIntersection is returned when a line of sight misses the surface
// used to invert a pixel into 3-D.
var ErrNoIntersection = errors.New("frames: line of sight does not intersect surface")

// MissingEphemerisError reports that no valid observer position is known
// for an observer at the required time.
type MissingEphemerisError struct {
	Observer string
	Time     time.Time
	Reason   string
}

func (e *MissingEphemerisError) Error() string {
	msg := fmt.Sprintf("missing ephemeris for observer %q at %s", e.Observer, e.Time.UTC().Format(time.RFC3339))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// SingularProjectionError reports a point that coincides with the observer.
type SingularProjectionError struct {
	Observer string
	Time     time.Time
	Point    r3.Vector
}

func (e *SingularProjectionError) Error() string {
	return fmt.Sprintf("singular projection for observer %q at %s: point %v coincides with observer",
		e.Observer, e.Time.UTC().Format(time.RFC3339), e.Point)
}
