package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLocationCode is returned when a location code cannot be turned into coordinates
var ErrInvalidLocationCode = errors.New("invalid location code")

// locationSeparator splits a code such as "A1-B2-C3" into aisle, section and shelf tokens
const locationSeparator = "-"

// Coordinates is the aisle/section position of a location code
type Coordinates struct {
	Aisle   int
	Section int
}

// ParseLocation extracts aisle and section from the first two tokens of a location code.
// Each token has its leading non-digit characters stripped and the digit run that follows
// is parsed. A token without digits is rejected.
func ParseLocation(code string) (Coordinates, error) {
	tokens := strings.Split(strings.TrimSpace(code), locationSeparator)
	if len(tokens) < 2 {
		return Coordinates{}, fmt.Errorf("%w %q: expected at least aisle and section", ErrInvalidLocationCode, code)
	}

	aisle, err := parseLocationToken(tokens[0])
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w %q: aisle: %v", ErrInvalidLocationCode, code, err)
	}
	section, err := parseLocationToken(tokens[1])
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w %q: section: %v", ErrInvalidLocationCode, code, err)
	}

	return Coordinates{Aisle: aisle, Section: section}, nil
}

func parseLocationToken(token string) (int, error) {
	token = strings.TrimSpace(token)
	start := strings.IndexFunc(token, isDigit)
	if start < 0 {
		return 0, fmt.Errorf("token %q has no digits", token)
	}

	rest := token[start:]
	end := strings.IndexFunc(rest, func(r rune) bool { return !isDigit(r) })
	if end >= 0 {
		rest = rest[:end]
	}

	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("token %q: %v", token, err)
	}
	return n, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// DistanceTo returns the Manhattan distance between two coordinates
func (c Coordinates) DistanceTo(other Coordinates) int {
	return abs(c.Aisle-other.Aisle) + abs(c.Section-other.Section)
}

// Distance returns the Manhattan distance between two location codes
func Distance(a, b string) (int, error) {
	ca, err := ParseLocation(a)
	if err != nil {
		return 0, err
	}
	cb, err := ParseLocation(b)
	if err != nil {
		return 0, err
	}
	return ca.DistanceTo(cb), nil
}

// ValidateLocationCode reports whether code parses into coordinates
func ValidateLocationCode(code string) error {
	_, err := ParseLocation(code)
	return err
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
