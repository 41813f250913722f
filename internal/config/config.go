package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"shiftcal/internal/shift"
)

// ErrMalformedDefinition is returned when a shift section cannot be turned
// into a usable definition (one of start/end missing, bad clock value, bad
// token). It fails the whole table build, not just the offending entry.
var ErrMalformedDefinition = errors.New("malformed shift definition")

// ShiftSection describes one named shift in the configuration file.
//
// A section with neither start nor end is a non-working shift (no calendar
// event). Declaring only one of the two is malformed.
type ShiftSection struct {
	// Token is the single character used for this shift in a day sequence.
	Token string `yaml:"token" json:"token"`
	// Start / End are clock times in compact HHMM or HHMMSS form.
	Start string `yaml:"start,omitempty" json:"start,omitempty"`
	End   string `yaml:"end,omitempty" json:"end,omitempty"`
	// Title, if set, becomes the event summary.
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web front end.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone attached to generated instants
	// (e.g. "Europe/Berlin"). Empty means naive instants with no zone.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`

	// ReloadCron is a cron-style schedule (e.g. "*/15 * * * *") on which
	// serve mode re-reads this file and swaps the definition table.
	ReloadCron string `yaml:"reload" json:"reload"`

	// Shifts lists the active shift section names, comma-separated, in
	// table order. Later sections overwrite earlier ones on token clashes.
	Shifts string `yaml:"shifts" json:"shifts"`

	// Sections holds the named shift sections keyed by section name.
	Sections map[string]ShiftSection `yaml:",inline" json:"sections"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory configuration whose shift sections
// mirror the compiled-in default table. It is what -init-config writes.
func DefaultConfig() *Config {
	return &Config{
		Listen:     "127.0.0.1:8080",
		ReloadCron: "*/15 * * * *",
		Shifts:     "off, early, late, night, double",
		Sections: map[string]ShiftSection{
			"off":    {Token: "O"},
			"early":  {Token: "E", Start: "0800", End: "1600", Title: "Early"},
			"late":   {Token: "L", Start: "1130", End: "2000", Title: "Late"},
			"night":  {Token: "N", Start: "2030", End: "0745", Title: "Night"},
			"double": {Token: "D", Start: "0800", End: "2000", Title: "Double"},
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.ReloadCron == "" {
		c.ReloadCron = "*/15 * * * *"
	}
	if c.Sections == nil {
		c.Sections = map[string]ShiftSection{}
	}
}

// Table builds the shift definition table from the configured sections.
//
// A config with shift sections replaces the compiled-in default table
// entirely; there is no per-token merge. A config without a shifts list
// returns a nil table, which callers treat as "use the defaults".
func (c *Config) Table() (shift.Table, error) {
	if strings.TrimSpace(c.Shifts) == "" {
		return nil, nil
	}

	table := make(shift.Table)
	for _, name := range strings.Split(c.Shifts, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sec, ok := c.Sections[name]
		if !ok {
			return nil, fmt.Errorf("shift %q: %w: no such section", name, ErrMalformedDefinition)
		}
		def, err := sec.definition(name)
		if err != nil {
			return nil, err
		}
		// Last write wins on token collisions.
		table[def.Token] = def
	}
	return table, nil
}

func (s ShiftSection) definition(name string) (shift.Definition, error) {
	runes := []rune(s.Token)
	if len(runes) != 1 {
		return shift.Definition{}, fmt.Errorf("shift %q: %w: token must be a single character, got %q",
			name, ErrMalformedDefinition, s.Token)
	}
	def := shift.Definition{Token: runes[0], Title: s.Title}

	switch {
	case s.Start == "" && s.End == "":
		// Non-working shift; consumes a day but emits no event.
		return def, nil
	case s.Start == "" || s.End == "":
		return shift.Definition{}, fmt.Errorf("shift %q: %w: start and end must both be set",
			name, ErrMalformedDefinition)
	}

	start, err := shift.ParseClock(s.Start)
	if err != nil {
		return shift.Definition{}, fmt.Errorf("shift %q start: %w: %v", name, ErrMalformedDefinition, err)
	}
	end, err := shift.ParseClock(s.End)
	if err != nil {
		return shift.Definition{}, fmt.Errorf("shift %q end: %w: %v", name, ErrMalformedDefinition, err)
	}

	def.Working = true
	def.Start = start
	def.End = end
	return def, nil
}

// Parse unmarshals a YAML configuration payload.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Load loads configuration from the given YAML path.
//
// A missing file is not an error: Load returns (nil, nil) and callers fall
// back to the compiled-in default table.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	return Parse(data)
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".shiftcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
