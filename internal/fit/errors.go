package fit

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoViews is returned for a request without any point sets.
var ErrNoViews = errors.New("fit: no views supplied")

// UnderdeterminedFitError reports fewer marks than free parameters.
type UnderdeterminedFitError struct {
	Marks int
	Free  int
}

func (e *UnderdeterminedFitError) Error() string {
	return fmt.Sprintf("underdetermined fit: %d marks for %d free parameters", e.Marks, e.Free)
}

// NoVisibleGeometryError reports a view in which the seed model is
// entirely hidden by the solar disk.
type NoVisibleGeometryError struct {
	Observer string
	Time     time.Time
}

func (e *NoVisibleGeometryError) Error() string {
	return fmt.Sprintf("model not visible from %q at %s", e.Observer, e.Time.UTC().Format(time.RFC3339))
}
