package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"shiftcal/internal/config"
	"shiftcal/internal/ics"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/shift"
	"shiftcal/internal/startdate"
)

// Server is the optional web front end: an HTML planning form plus the
// /shiftcal.ics endpoint that hands the planned token sequence to the
// generator and passes its document through unmodified.
type Server struct {
	cfg        *config.Config
	configPath string
	mux        *http.ServeMux

	// tzOverride is the timezone name given on the command line. It takes
	// precedence over the config file, including across table reloads.
	tzOverride string

	// now is the wall clock, replaceable in tests.
	now func() time.Time

	// The definition table and timezone are the only mutable state; they
	// are swapped wholesale by the cron reloader and read per request.
	tableMu sync.RWMutex
	table   shift.Table
	loc     *time.Location
}

// embeddedTemplates holds the HTML form template.
//
//go:embed templates/index.html
var embeddedTemplates embed.FS

var indexTmpl = template.Must(template.ParseFS(embeddedTemplates, "templates/index.html"))

// NewServer constructs a new Server. table may be nil, meaning the
// compiled-in default definitions; loc may be nil, meaning naive instants.
// tzOverride is the CLI timezone name, empty when none was given.
func NewServer(cfg *config.Config, configPath string, table shift.Table, loc *time.Location, tzOverride string) *Server {
	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		mux:        http.NewServeMux(),
		tzOverride: tzOverride,
		now:        time.Now,
		table:      table,
		loc:        loc,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shiftcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run starts the HTTP server on cfg.Listen and, when a config path is known,
// a cron job that periodically reloads the definition table from it. The
// server shuts down gracefully when ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, configPath string, table shift.Table, loc *time.Location, tzOverride string) error {
	s := NewServer(cfg, configPath, table, loc, tzOverride)

	if configPath != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.ReloadCron, s.reloadTable); err != nil {
			appLog.Error("invalid reload schedule; table reload disabled", err, "reload", cfg.ReloadCron)
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// reloadTable re-reads the backing configuration and swaps the definition
// table. A broken config leaves the previous table in place.
func (s *Server) reloadTable() {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		appLog.Error("config reload failed", err, "config_path", s.configPath)
		return
	}
	if cfg == nil {
		// Config file removed: nothing to swap in.
		return
	}

	table, err := cfg.Table()
	if err != nil {
		appLog.Error("config reload: bad shift definitions", err, "config_path", s.configPath)
		return
	}

	// The CLI -timezone override outranks the config file, also on reload.
	tzName := s.tzOverride
	if tzName == "" {
		tzName = cfg.Timezone
	}
	var loc *time.Location
	if tzName != "" {
		loc, err = time.LoadLocation(tzName)
		if err != nil {
			appLog.Error("config reload: bad timezone", err, "timezone", tzName)
			return
		}
	}

	s.tableMu.Lock()
	s.table = table
	s.loc = loc
	s.tableMu.Unlock()
	appLog.Info("definition table reloaded", "config_path", s.configPath, "shifts", len(table))
}

// snapshot returns the current definition table and timezone for one request.
func (s *Server) snapshot() (shift.Table, *time.Location) {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	return s.table, s.loc
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/shiftcal.ics", s.handleICS)
	s.mux.HandleFunc("/", s.handleIndex)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// indexData feeds the planning form template.
type indexData struct {
	StartDate string
	NumDates  int
	Days      []dayRow
	Shifts    []shiftOption
}

type dayRow struct {
	Index int
	Label string
}

type shiftOption struct {
	Token string
	Title string
}

// handleIndex renders the planning form: a start date, one row of shift
// choices per day, and a "more" button that extends the plan by a week.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()

	start := s.now()
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "unrecognized start_date", http.StatusBadRequest)
			return
		}
		start = t
	}

	numDates := parseIntDefault(q.Get("num_dates"), 7)
	if numDates <= 0 {
		numDates = 7
	}
	if q.Has("more") {
		numDates += 7
	}

	table, _ := s.snapshot()
	if len(table) == 0 {
		table = shift.DefaultTable()
	}

	data := indexData{
		StartDate: start.Format("2006-01-02"),
		NumDates:  numDates,
		Shifts:    shiftOptions(table),
	}
	for i := 0; i < numDates; i++ {
		data.Days = append(data.Days, dayRow{
			Index: i,
			Label: start.AddDate(0, 0, i).Format("Mon 2006-01-02"),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		appLog.Error("failed to render planning form", err)
	}
}

// shiftOptions lists the table entries for the form. Table iteration order is
// unspecified, so the listing is sorted by token; this affects only the UI,
// never calendar output.
func shiftOptions(table shift.Table) []shiftOption {
	opts := make([]shiftOption, 0, len(table))
	for _, def := range table {
		title := def.Title
		if title == "" {
			title = string(def.Token)
		}
		opts = append(opts, shiftOption{Token: string(def.Token), Title: title})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Token < opts[j].Token })
	return opts
}

// handleICS turns the submitted plan into a calendar document and passes it
// through unmodified, with the content type and byte length the calendar
// format consumers expect.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// One clock read: the default start and the anchor for relative
	// expressions must agree, even across midnight.
	now := s.now()
	start := now
	if v := q.Get("start_date"); v != "" {
		t, err := startdate.Parse(v, now)
		if err != nil {
			appLog.Warn("rejected start_date", "start_date", v)
			http.Error(w, "unrecognized start_date", http.StatusBadRequest)
			return
		}
		start = t
	}

	tokens := collectTokens(q)
	table, loc := s.snapshot()

	body := ics.Serialize(ics.Generate(start, tokens, table, loc))

	w.Header().Set("Content-Type", "text/calendar")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// collectTokens concatenates the shift-N selections in day order. Days with
// no selection contribute nothing to the sequence.
func collectTokens(q url.Values) string {
	type selection struct {
		day   int
		token string
	}
	sels := make([]selection, 0, len(q))
	for key, vals := range q {
		if !strings.HasPrefix(key, "shift-") || len(vals) == 0 {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(key, "shift-"))
		if err != nil {
			continue
		}
		sels = append(sels, selection{day: n, token: vals[0]})
	}
	sort.Slice(sels, func(i, j int) bool { return sels[i].day < sels[j].day })

	var b strings.Builder
	for _, sel := range sels {
		b.WriteString(sel.token)
	}
	return b.String()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
