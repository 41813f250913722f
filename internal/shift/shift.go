package shift

import (
	"errors"
	"fmt"
)

// Canonical tokens of the built-in definition table.
const (
	TokenOff    = 'O'
	TokenEarly  = 'E'
	TokenLate   = 'L'
	TokenNight  = 'N'
	TokenDouble = 'D'
)

// ErrUnknownShift is returned by Table.Lookup for tokens with no definition.
// Callers are expected to treat it as non-fatal (warn and skip the day).
var ErrUnknownShift = errors.New("unknown shift token")

// ClockTime is a time of day with second precision, parsed from the compact
// HHMM / HHMMSS form used in shift configuration.
type ClockTime struct {
	hour, minute, second int
}

// ParseClock parses a 4- or 6-digit clock value. A 4-digit value is padded
// with "00" seconds, so "0800" and "080000" are the same instant of day.
func ParseClock(s string) (ClockTime, error) {
	switch len(s) {
	case 4:
		s += "00"
	case 6:
		// ok
	default:
		return ClockTime{}, fmt.Errorf("clock value %q: want 4 or 6 digits", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ClockTime{}, fmt.Errorf("clock value %q: non-digit character", s)
		}
	}
	c := ClockTime{
		hour:   int(s[0]-'0')*10 + int(s[1]-'0'),
		minute: int(s[2]-'0')*10 + int(s[3]-'0'),
		second: int(s[4]-'0')*10 + int(s[5]-'0'),
	}
	if c.hour > 23 || c.minute > 59 || c.second > 59 {
		return ClockTime{}, fmt.Errorf("clock value %q: out of range", s)
	}
	return c, nil
}

// MustClock is ParseClock for compiled-in values; it panics on bad input.
func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Packed returns the clock value as a single HHMMSS integer. Overnight
// detection compares these raw values, not elapsed durations.
func (c ClockTime) Packed() int {
	return c.hour*10000 + c.minute*100 + c.second
}

// String renders the six-digit HHMMSS form used in iCalendar date-time values.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d%02d%02d", c.hour, c.minute, c.second)
}

// Definition describes the behavior of one shift token. A non-working
// definition produces no calendar event; Start and End are meaningful only
// when Working is true.
type Definition struct {
	Token   rune
	Working bool
	Start   ClockTime
	End     ClockTime
	Title   string
}

// CrossesMidnight reports whether the shift ends on the following calendar
// day. The rule is a pure clock comparison: a start value numerically greater
// than the end value rolls the end date forward by one day.
func (d Definition) CrossesMidnight() bool {
	return d.Working && d.Start.Packed() > d.End.Packed()
}

// Table maps shift tokens to their definitions. It is built once, never
// mutated afterwards, and safe for concurrent readers.
type Table map[rune]Definition

// Lookup returns the definition for token, or ErrUnknownShift.
func (t Table) Lookup(token rune) (Definition, error) {
	d, ok := t[token]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownShift, string(token))
	}
	return d, nil
}

// DefaultTable returns the compiled-in definition set used when no
// configuration source is supplied.
func DefaultTable() Table {
	return Table{
		TokenOff: {Token: TokenOff},
		TokenEarly: {
			Token:   TokenEarly,
			Working: true,
			Start:   MustClock("0800"),
			End:     MustClock("1600"),
		},
		TokenLate: {
			Token:   TokenLate,
			Working: true,
			Start:   MustClock("1130"),
			End:     MustClock("2000"),
		},
		TokenNight: {
			Token:   TokenNight,
			Working: true,
			Start:   MustClock("2030"),
			End:     MustClock("0745"),
		},
		TokenDouble: {
			Token:   TokenDouble,
			Working: true,
			Start:   MustClock("0800"),
			End:     MustClock("2000"),
		},
	}
}
