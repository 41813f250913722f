package startdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2014, time.January, 10, 0, 0, 0, 0, time.UTC)

func TestParseToday(t *testing.T) {
	for _, expr := range []string{"", "today"} {
		got, err := Parse(expr, today)
		require.NoError(t, err)
		assert.True(t, got.Equal(today), "expr %q", expr)
	}
}

func TestParseSignedOffsets(t *testing.T) {
	got, err := Parse("-1", today)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Day())

	got, err = Parse("+3", today)
	require.NoError(t, err)
	assert.Equal(t, 13, got.Day())
}

func TestParseCompactDate(t *testing.T) {
	got, err := Parse("20140728", today)
	require.NoError(t, err)
	assert.Equal(t, time.July, got.Month())
	assert.Equal(t, 28, got.Day())
}

func TestParseHyphenatedDate(t *testing.T) {
	got, err := Parse("2014-07-28", today)
	require.NoError(t, err)
	assert.Equal(t, time.July, got.Month())
	assert.Equal(t, 28, got.Day())
}

func TestParseRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"yesterday", "2014/07/28", "3", "+", "-", "201407", "2014-7-28", "99999999"} {
		_, err := Parse(expr, today)
		assert.ErrorIs(t, err, ErrBadExpression, "expr %q", expr)
	}
}
