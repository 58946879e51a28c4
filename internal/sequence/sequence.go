// Package sequence holds the per-event, time-ordered collection of fitted
// models that kinematics are derived from.
package sequence

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/coronafit/internal/fit"
	"github.com/banshee-data/coronafit/internal/geometry"
)

var (
	// ErrDuplicateTime is returned when inserting a second fit at an
	// existing timestamp; use Replace to correct an entry.
	ErrDuplicateTime = errors.New("sequence: a fit already exists at this time")
	// ErrKindMismatch is returned for a fit of a different model kind.
	ErrKindMismatch = errors.New("sequence: model kind does not match sequence")
	// ErrNotFound is returned when no entry exists at the given time.
	ErrNotFound = errors.New("sequence: no fit at this time")
)

// Sequence is an ordered series of fits of one event with one model kind.
// Entries are ordered by time with unique timestamps. The zero value is
// not usable; build with New.
type Sequence struct {
	ID      uuid.UUID
	Event   string
	Kind    geometry.Kind
	entries []fit.Result
}

// New creates a sequence and inserts results in time order.
func New(event string, kind geometry.Kind, results ...fit.Result) (*Sequence, error) {
	if _, err := geometry.For(kind); err != nil {
		return nil, err
	}
	s := &Sequence{ID: uuid.New(), Event: event, Kind: kind}
	for _, r := range results {
		if err := s.Insert(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of entries.
func (s *Sequence) Len() int { return len(s.entries) }

// Entries returns a copy of the entries in time order.
func (s *Sequence) Entries() []fit.Result {
	return append([]fit.Result(nil), s.entries...)
}

// At returns the entry at time t.
func (s *Sequence) At(t time.Time) (fit.Result, bool) {
	i, ok := s.find(t)
	if !ok {
		return fit.Result{}, false
	}
	return s.entries[i], true
}

func (s *Sequence) find(t time.Time) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Model.Time.Before(t)
	})
	return i, i < len(s.entries) && s.entries[i].Model.Time.Equal(t)
}

func (s *Sequence) check(r fit.Result) error {
	if r.Model.Kind != s.Kind {
		return fmt.Errorf("%w: got %s, sequence is %s", ErrKindMismatch, r.Model.Kind, s.Kind)
	}
	if r.Model.Time.IsZero() {
		return errors.New("sequence: fit has no timestamp")
	}
	return nil
}

// Insert adds r at its timestamp, keeping time order regardless of the
// order in which fits arrive.
func (s *Sequence) Insert(r fit.Result) error {
	if err := s.check(r); err != nil {
		return err
	}
	i, exists := s.find(r.Model.Time)
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTime, r.Model.Time.UTC().Format(time.RFC3339Nano))
	}
	s.entries = append(s.entries, fit.Result{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = r
	return nil
}

// Replace swaps the entry at r's timestamp for r.
func (s *Sequence) Replace(r fit.Result) error {
	if err := s.check(r); err != nil {
		return err
	}
	i, ok := s.find(r.Model.Time)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, r.Model.Time.UTC().Format(time.RFC3339Nano))
	}
	s.entries[i] = r
	return nil
}

// Remove deletes the entry at t.
func (s *Sequence) Remove(t time.Time) error {
	i, ok := s.find(t)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, t.UTC().Format(time.RFC3339Nano))
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

// Sample is one height-time point.
type Sample struct {
	Time   time.Time
	Height float64 // Rsun
	Sigma  float64 // Rsun, zero when unknown
}

// Heights returns the leading-edge height series in time order.
func (s *Sequence) Heights() []Sample {
	out := make([]Sample, len(s.entries))
	for i, r := range s.entries {
		sigma := r.HeightSigma()
		if math.IsNaN(sigma) {
			sigma = 0
		}
		out[i] = Sample{Time: r.Model.Time, Height: r.LeadingEdge(), Sigma: sigma}
	}
	return out
}

// NonMonotonic returns the indices of entries whose height is lower than
// the preceding entry's. The sequence keeps them; the caller decides.
func (s *Sequence) NonMonotonic() []int {
	return NonMonotonic(s.Heights())
}

// NonMonotonic returns the indices i where samples[i].Height drops below
// samples[i-1].Height.
func NonMonotonic(samples []Sample) []int {
	var out []int
	for i := 1; i < len(samples); i++ {
		if samples[i].Height < samples[i-1].Height {
			out = append(out, i)
		}
	}
	return out
}

// ModelID returns the identifier used to name exported fittings: the event
// label with '-' and ':' removed, '|' replaced by 'D' and '.' by 'p',
// followed by 'M' and the model label.
func (s *Sequence) ModelID() string {
	return ModelID(s.Event, s.Kind)
}

// ModelID builds the export identifier for an event label and kind.
func ModelID(event string, kind geometry.Kind) string {
	r := strings.NewReplacer("-", "", ":", "", "|", "D", ".", "p")
	return r.Replace(event) + "M" + kind.Label()
}
