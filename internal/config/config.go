package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/reactor/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reactor.json"

	// DefaultAddr is the default server listen address.
	DefaultAddr = ":8080"

	// DefaultStateFile is the default initial state file.
	DefaultStateFile = "state.json"

	// DefaultMetricsPath is where Prometheus metrics are served by default.
	DefaultMetricsPath = "/metrics"

	// DefaultSnapshotDir is the default directory of the file backend.
	DefaultSnapshotDir = "snapshots"
)

// Snapshot backends.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config represents the complete reactor.json configuration.
type Config struct {
	// Server contains the HTTP and websocket settings.
	Server ServerConfig `json:"server"`

	// State locates the initial state.
	State StateConfig `json:"state"`

	// Log configures the process logger.
	Log LogConfig `json:"log"`

	// Snapshot selects where snapshots are persisted.
	Snapshot SnapshotConfig `json:"snapshot"`

	// Routes is the optional route table used by the routes command.
	Routes []RouteConfig `json:"routes,omitempty"`

	// configPath is the path to the config file (not serialized).
	configPath string
}

// ServerConfig contains server settings. Zero values fall back to the
// server package defaults.
type ServerConfig struct {
	Addr              string   `json:"addr,omitempty"`
	ReadHeaderTimeout Duration `json:"readHeaderTimeout,omitempty"`
	WriteTimeout      Duration `json:"writeTimeout,omitempty"`
	IdleTimeout       Duration `json:"idleTimeout,omitempty"`
	ShutdownTimeout   Duration `json:"shutdownTimeout,omitempty"`
	PingInterval      Duration `json:"pingInterval,omitempty"`
	SendBuffer        int      `json:"sendBuffer,omitempty"`
	MaxBodySize       int64    `json:"maxBodySize,omitempty"`
	MetricsPath       string   `json:"metricsPath,omitempty"`
}

// StateConfig locates the initial state.
type StateConfig struct {
	// File is a .json or .hcl file, relative to the config directory.
	File string `json:"file,omitempty"`

	// Duplicates keeps duplicate subscriber registrations instead of
	// deduplicating them.
	Duplicates bool `json:"duplicates,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// SnapshotConfig selects the snapshot backend.
type SnapshotConfig struct {
	Backend   string `json:"backend,omitempty"`
	Dir       string `json:"dir,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty"`
}

// RouteConfig is a named route pattern.
type RouteConfig struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        DefaultAddr,
			MetricsPath: DefaultMetricsPath,
		},
		State: StateConfig{
			File: DefaultStateFile,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Snapshot: SnapshotConfig{
			Backend: BackendFile,
			Dir:     DefaultSnapshotDir,
		},
	}
}

// Load loads configuration from reactor.json in the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R100").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("R101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("R101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithLocation(path, jsonErrorLine(data, err), 0)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault loads reactor.json from dir, or returns the defaults
// rooted at dir when the file does not exist.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err == nil {
		return cfg, nil
	}
	if e, ok := err.(*errors.Error); ok && e.Code == "R100" {
		cfg = New()
		cfg.configPath = filepath.Join(dir, ConfigFileName)
		return cfg, nil
	}
	return nil, err
}

// jsonErrorLine returns the 1-based line of a syntax error, or 0.
func jsonErrorLine(data []byte, err error) int {
	var offset int64
	switch e := err.(type) {
	case *json.SyntaxError:
		offset = e.Offset
	case *json.UnmarshalTypeError:
		offset = e.Offset
	default:
		return 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return strings.Count(string(data[:offset]), "\n") + 1
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("R101").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("R101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// applyDefaults fills in fields an explicit empty value removed.
func (c *Config) applyDefaults() {
	d := New()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = d.Server.MetricsPath
	}
	if c.State.File == "" {
		c.State.File = d.State.File
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = d.Snapshot.Backend
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = d.Snapshot.Dir
	}
}

// ApplyEnv applies environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("REACTOR_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("REACTOR_STATE"); v != "" {
		c.State.File = v
	}
	if v := getenv("REACTOR_LOG_LEVEL"); v != "" {
		if _, ok := parseLevel(v); !ok {
			return errors.New("R103").
				WithField("REACTOR_LOG_LEVEL").
				WithDetail("unknown level " + strconv.Quote(v))
		}
		c.Log.Level = v
	}
	if v := getenv("REACTOR_SNAPSHOT_BUCKET"); v != "" {
		c.Snapshot.Bucket = v
		c.Snapshot.Backend = BackendS3
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("R102").
			WithField("server.addr").
			WithDetail("address must not be empty")
	}
	if c.Server.SendBuffer < 0 {
		return errors.New("R102").
			WithField("server.sendBuffer").
			WithDetail("send buffer must not be negative")
	}
	if c.Server.MaxBodySize < 0 {
		return errors.New("R102").
			WithField("server.maxBodySize").
			WithDetail("body limit must not be negative")
	}
	durations := []struct {
		field string
		d     Duration
	}{
		{"server.readHeaderTimeout", c.Server.ReadHeaderTimeout},
		{"server.writeTimeout", c.Server.WriteTimeout},
		{"server.idleTimeout", c.Server.IdleTimeout},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
		{"server.pingInterval", c.Server.PingInterval},
	}
	for _, f := range durations {
		if f.d < 0 {
			return errors.New("R102").
				WithField(f.field).
				WithDetail("duration must not be negative")
		}
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return errors.New("R102").
			WithField("server.metricsPath").
			WithDetail("path must start with /")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("R102").
			WithField("log.level").
			WithDetail("unknown level " + strconv.Quote(c.Log.Level)).
			WithSuggestion("Use one of debug, info, warn, error")
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		return errors.New("R102").
			WithField("log.format").
			WithDetail("unknown format " + strconv.Quote(c.Log.Format)).
			WithSuggestion("Use text or json")
	}
	switch c.Snapshot.Backend {
	case BackendFile:
		if c.Snapshot.Dir == "" {
			return errors.New("R102").
				WithField("snapshot.dir").
				WithDetail("the file backend needs a directory")
		}
	case BackendS3:
		if c.Snapshot.Bucket == "" {
			return errors.New("R102").
				WithField("snapshot.bucket").
				WithDetail("the s3 backend needs a bucket").
				WithSuggestion("Set snapshot.bucket or REACTOR_SNAPSHOT_BUCKET")
		}
	default:
		return errors.New("R102").
			WithField("snapshot.backend").
			WithDetail("unknown backend " + strconv.Quote(c.Snapshot.Backend)).
			WithSuggestion("Use file or s3")
	}
	seen := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		field := "routes[" + strconv.Itoa(i) + "]"
		if r.Name == "" || r.Path == "" {
			return errors.New("R102").
				WithField(field).
				WithDetail("route needs a name and a path")
		}
		if seen[r.Name] {
			return errors.New("R102").
				WithField(field).
				WithDetail("duplicate route name " + strconv.Quote(r.Name))
		}
		seen[r.Name] = true
	}
	return nil
}

// Path returns the path to the config file.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

// StatePath returns the absolute path to the state file.
func (c *Config) StatePath() string {
	return c.resolve(c.State.File)
}

// SnapshotDir returns the absolute path to the file backend directory.
func (c *Config) SnapshotDir() string {
	return c.resolve(c.Snapshot.Dir)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// SlogLevel returns the configured slog level. Unknown levels map to info.
func (l LogConfig) SlogLevel() slog.Level {
	lvl, _ := parseLevel(l.Level)
	return lvl
}

// Handler returns a slog handler writing to w in the configured format.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Logger returns a logger writing to w in the configured format.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	return slog.New(l.Handler(w))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
