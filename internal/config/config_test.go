package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftcal/internal/shift"
)

func mustTable(t *testing.T, yml string) shift.Table {
	t.Helper()
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)
	table, err := cfg.Table()
	require.NoError(t, err)
	return table
}

func TestTableEarlyShift(t *testing.T) {
	table := mustTable(t, `
shifts: early
early:
  token: E
  start: "0730"
  end: "1530"
`)
	def, err := table.Lookup('E')
	require.NoError(t, err)
	assert.True(t, def.Working)
	assert.Equal(t, "073000", def.Start.String())
	assert.Equal(t, "153000", def.End.String())
	assert.Empty(t, def.Title)
}

func TestTableShiftWithTitle(t *testing.T) {
	table := mustTable(t, `
shifts: early
early:
  token: E
  title: Early
  start: "0730"
  end: "1530"
`)
	def, err := table.Lookup('E')
	require.NoError(t, err)
	assert.Equal(t, "Early", def.Title)
}

func TestTableEarlyAndNightShift(t *testing.T) {
	table := mustTable(t, `
shifts: early, night
early:
  token: E
  start: "0730"
  end: "1530"
night:
  token: N
  start: "2030"
  end: "0745"
`)
	night, err := table.Lookup('N')
	require.NoError(t, err)
	assert.Equal(t, "203000", night.Start.String())
	assert.Equal(t, "074500", night.End.String())
	assert.True(t, night.CrossesMidnight())

	_, err = table.Lookup('E')
	assert.NoError(t, err)
}

func TestTableTokenOnlyIsNonWorking(t *testing.T) {
	table := mustTable(t, `
shifts: off
off:
  token: O
`)
	def, err := table.Lookup('O')
	require.NoError(t, err)
	assert.False(t, def.Working)
}

// A section declaring only one of start/end is malformed and fails the whole
// table build, not just the offending entry.
func TestTableOnlyStartIsMalformed(t *testing.T) {
	cfg, err := Parse([]byte(`
shifts: early, broken
early:
  token: E
  start: "0730"
  end: "1530"
broken:
  token: B
  start: "0900"
`))
	require.NoError(t, err)
	_, err = cfg.Table()
	assert.ErrorIs(t, err, ErrMalformedDefinition)
}

func TestTableBadClockValueIsMalformed(t *testing.T) {
	cfg, err := Parse([]byte(`
shifts: early
early:
  token: E
  start: "2730"
  end: "1530"
`))
	require.NoError(t, err)
	_, err = cfg.Table()
	assert.ErrorIs(t, err, ErrMalformedDefinition)
}

func TestTableMissingSectionIsMalformed(t *testing.T) {
	cfg, err := Parse([]byte(`shifts: ghost`))
	require.NoError(t, err)
	_, err = cfg.Table()
	assert.ErrorIs(t, err, ErrMalformedDefinition)
}

func TestTableMultiCharacterTokenIsMalformed(t *testing.T) {
	cfg, err := Parse([]byte(`
shifts: early
early:
  token: EE
  start: "0730"
  end: "1530"
`))
	require.NoError(t, err)
	_, err = cfg.Table()
	assert.ErrorIs(t, err, ErrMalformedDefinition)
}

// Two sections mapping to the same token: the later one in shifts-list order
// silently wins.
func TestTableTokenCollisionLastWriteWins(t *testing.T) {
	table := mustTable(t, `
shifts: first, second
first:
  token: E
  start: "0700"
  end: "1500"
second:
  token: E
  start: "0800"
  end: "1600"
`)
	def, err := table.Lookup('E')
	require.NoError(t, err)
	assert.Equal(t, "080000", def.Start.String())
	assert.Equal(t, "160000", def.End.String())
}

// Supplying any configuration replaces the entire default table; tokens not
// redefined become unrecognized rather than inheriting their default.
func TestTableReplacesDefaultsEntirely(t *testing.T) {
	table := mustTable(t, `
shifts: early
early:
  token: E
  start: "0730"
  end: "1530"
`)
	_, err := table.Lookup(shift.TokenLate)
	assert.ErrorIs(t, err, shift.ErrUnknownShift)
	_, err = table.Lookup(shift.TokenOff)
	assert.ErrorIs(t, err, shift.ErrUnknownShift)
}

func TestTableWithoutShiftsListIsNil(t *testing.T) {
	cfg, err := Parse([]byte(`listen: 127.0.0.1:9999`))
	require.NoError(t, err)
	table, err := cfg.Table()
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestLoadMissingFileMeansDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shiftcal.yaml")

	require.NoError(t, Save(path, DefaultConfig()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	table, err := cfg.Table()
	require.NoError(t, err)

	def, err := table.Lookup('N')
	require.NoError(t, err)
	assert.Equal(t, "203000", def.Start.String())
	assert.Equal(t, "074500", def.End.String())
	assert.Equal(t, "Night", def.Title)

	off, err := table.Lookup('O')
	require.NoError(t, err)
	assert.False(t, off.Working)
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Normalize()
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "*/15 * * * *", cfg.ReloadCron)
	assert.NotNil(t, cfg.Sections)
}
