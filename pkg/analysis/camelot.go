package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UnknownCamelot is returned for keys outside the wheel.
const UnknownCamelot = "unknown"

var ErrInvalidCamelot = errors.New("invalid camelot code")

// Camelot wheel positions indexed by pitch class from C.
var (
	camelotMajor = [12]int{8, 3, 10, 5, 12, 7, 2, 9, 4, 11, 6, 1}
	camelotMinor = [12]int{5, 12, 7, 2, 9, 4, 11, 6, 1, 8, 3, 10}
)

// Camelot is a position on the Camelot wheel. Letter is 'A' for minor keys
// and 'B' for major keys.
type Camelot struct {
	Number int
	Letter byte
}

// CamelotCode returns the wheel code for a key, e.g. "8B" for C major, or
// UnknownCamelot.
func CamelotCode(pitchClass string, mode Mode) string {
	c, ok := CamelotFor(pitchClass, mode)
	if !ok {
		return UnknownCamelot
	}
	return c.String()
}

// CamelotFor looks up the wheel position of a key.
func CamelotFor(pitchClass string, mode Mode) (Camelot, bool) {
	pc := pitchClassIndex(pitchClass)
	if pc < 0 {
		return Camelot{}, false
	}
	switch mode {
	case Major:
		return Camelot{Number: camelotMajor[pc], Letter: 'B'}, true
	case Minor:
		return Camelot{Number: camelotMinor[pc], Letter: 'A'}, true
	default:
		return Camelot{}, false
	}
}

// ParseCamelot parses codes like "8B" or "12a".
func ParseCamelot(s string) (Camelot, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Camelot{}, fmt.Errorf("%w: %q", ErrInvalidCamelot, s)
	}
	letter := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 1 || n > 12 || (letter != 'A' && letter != 'B') {
		return Camelot{}, fmt.Errorf("%w: %q", ErrInvalidCamelot, s)
	}
	return Camelot{Number: n, Letter: letter}, nil
}

func (c Camelot) String() string {
	return fmt.Sprintf("%d%c", c.Number, c.Letter)
}

// Key returns the pitch class and mode at this wheel position.
func (c Camelot) Key() (string, Mode, bool) {
	table, mode := camelotMajor, Major
	if c.Letter == 'A' {
		table, mode = camelotMinor, Minor
	}
	for pc, n := range table {
		if n == c.Number {
			return PitchClasses[pc], mode, true
		}
	}
	return "", "", false
}

// Neighbors returns the codes that mix harmonically with c: itself, one
// step either way on the same ring, and the relative key on the other ring.
func (c Camelot) Neighbors() []Camelot {
	other := byte('A')
	if c.Letter == 'A' {
		other = 'B'
	}
	return []Camelot{
		c,
		{Number: wrapWheel(c.Number - 1), Letter: c.Letter},
		{Number: wrapWheel(c.Number + 1), Letter: c.Letter},
		{Number: c.Number, Letter: other},
	}
}

// Compatible reports whether o is one of c's neighbors.
func (c Camelot) Compatible(o Camelot) bool {
	for _, n := range c.Neighbors() {
		if n == o {
			return true
		}
	}
	return false
}

func wrapWheel(n int) int {
	return (n+11)%12 + 1
}

func pitchClassIndex(name string) int {
	for i, pc := range PitchClasses {
		if pc == name {
			return i
		}
	}
	return -1
}
