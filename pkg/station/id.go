package station

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ID identifies a station, e.g. "s07".
type ID string

// Start is the position marker before the first station has been reached.
const Start ID = "s00"

// MaxNumber is the highest station number an ID may carry.
const MaxNumber = 25

var (
	// ErrInvalidID is returned when a string is not a well-formed station id.
	ErrInvalidID = errors.New("invalid station id")
	// ErrUnknownStation is returned when a well-formed id is not in the catalog.
	ErrUnknownStation = errors.New("unknown station")
)

var idPattern = regexp.MustCompile(`^s(0[1-9]|1[0-9]|2[0-5])$`)

// Valid reports whether s is a lexically valid station id (s01..s25).
func Valid(s string) bool {
	return idPattern.MatchString(s)
}

// Parse trims s and validates it as a station id.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if !Valid(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(s), nil
}

// FromNumber formats n as a zero-padded id. It does not validate the range.
func FromNumber(n int) ID {
	return ID(fmt.Sprintf("s%02d", n))
}

// Number returns the numeric part of the id, 0 for Start and -1 when the
// id is malformed.
func (id ID) Number() int {
	if id == Start {
		return 0
	}
	if len(id) != 3 || id[0] != 's' {
		return -1
	}
	n, err := strconv.Atoi(string(id[1:]))
	if err != nil {
		return -1
	}
	return n
}

// Valid reports whether the id is a well-formed station id.
func (id ID) Valid() bool {
	return Valid(string(id))
}

func (id ID) String() string {
	return string(id)
}
