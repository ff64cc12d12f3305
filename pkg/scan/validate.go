package scan

import (
	"errors"
	"fmt"

	"hexentour/pkg/station"
)

var (
	// ErrInvalidPayload means the decoded text is not a station id.
	ErrInvalidPayload = errors.New("invalid qr payload")
	// ErrMismatch means a real station was scanned out of order.
	ErrMismatch = errors.New("unexpected station")
)

// MismatchError reports which station was expected instead.
type MismatchError struct {
	Expected station.ID
	Got      station.ID
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("unexpected station %s, expected %s", e.Got, e.Expected)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

// ExpectedNext returns the only id a scan may arrive at from current: its
// numeric successor, with the start marker counting as zero.
func ExpectedNext(current station.ID) station.ID {
	n := current.Number()
	if n < 0 {
		n = 0
	}
	return station.FromNumber(n + 1)
}

// Validate checks got against the catalog and the current position.
func Validate(cat *station.Catalog, current, got station.ID) error {
	if !got.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPayload, string(got))
	}
	if !cat.Has(got) {
		return fmt.Errorf("%w: %s", station.ErrUnknownStation, got)
	}
	if want := ExpectedNext(current); got != want {
		return &MismatchError{Expected: want, Got: got}
	}
	return nil
}
