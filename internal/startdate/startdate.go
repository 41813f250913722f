// Package startdate resolves the start-date expressions accepted at the CLI
// and web boundary: the literal "today", a signed day offset from today, an
// 8-digit YYYYMMDD date, or a hyphenated YYYY-MM-DD date.
package startdate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrBadExpression is returned for expressions matching none of the accepted
// forms. It is fatal at the boundary that collected the expression.
var ErrBadExpression = errors.New("unrecognized startdate format")

var (
	offsetRe  = regexp.MustCompile(`^[+-][0-9]+$`)
	compactRe = regexp.MustCompile(`^[0-9]{8}$`)
	hyphenRe  = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}$`)
)

// Parse resolves expr against the given "today". An empty expression means
// today.
func Parse(expr string, today time.Time) (time.Time, error) {
	switch {
	case expr == "" || expr == "today":
		return today, nil

	case offsetRe.MatchString(expr):
		n, err := strconv.Atoi(expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadExpression, expr)
		}
		return today.AddDate(0, 0, n), nil

	case compactRe.MatchString(expr):
		t, err := time.Parse("20060102", expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadExpression, expr)
		}
		return t, nil

	case hyphenRe.MatchString(expr):
		t, err := time.Parse("2006-01-02", expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadExpression, expr)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadExpression, expr)
}
