package main

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/store"
)

// project writes reactor.json and a state file into a temp directory.
func project(t *testing.T, configJSON, stateName, state string) string {
	t.Helper()
	dir := t.TempDir()
	if configJSON != "" {
		if err := os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(configJSON), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if stateName != "" {
		if err := os.WriteFile(filepath.Join(dir, stateName), []byte(state), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func errorCode(err error) string {
	if e, ok := err.(*errors.Error); ok {
		return e.Code
	}
	return ""
}

func TestParseWrite(t *testing.T) {
	tests := []struct {
		arg      string
		mutation string
		payload  any
		wantErr  bool
	}{
		{"count+=2", store.MutationIncrement, store.IncrementPayload{Key: "count", By: 2}, false},
		{"count+=0", store.MutationIncrement, store.IncrementPayload{Key: "count", By: 0}, false},
		{"title=\"hi\"", store.MutationSet, store.SetPayload{Key: "title", Value: "hi"}, false},
		{"n=3", store.MutationSet, store.SetPayload{Key: "n", Value: float64(3)}, false},
		{"name=alice", store.MutationSet, store.SetPayload{Key: "name", Value: "alice"}, false},
		{"flag=true", store.MutationSet, store.SetPayload{Key: "flag", Value: true}, false},
		{"count+=lots", "", nil, true},
		{"=1", "", nil, true},
		{"novalue", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			w, err := parseWrite(tt.arg)
			if tt.wantErr {
				if errorCode(err) != "R500" {
					t.Errorf("err = %v, want R500", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseWrite(%q) failed: %v", tt.arg, err)
			}
			if w.mutation != tt.mutation || w.payload != tt.payload {
				t.Errorf("got %s %#v, want %s %#v", w.mutation, w.payload, tt.mutation, tt.payload)
			}
		})
	}
}

func TestWatchCommand(t *testing.T) {
	dir := project(t, `{"state": {"file": "state.hcl"}}`, "state.hcl", "count = 1\n")

	out, err := execute(t, "--config", dir, "watch", "count+=1", "count=10")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	want := "count = 1\ncount = 2\ncount = 10\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestWatchCommandErrors(t *testing.T) {
	dir := project(t, "", "state.json", `{"count": 1}`)

	if _, err := execute(t, "--config", dir, "watch", "--keys", "missing"); errorCode(err) != "R502" {
		t.Errorf("unknown key: err = %v, want R502", err)
	}
	if _, err := execute(t, "--config", dir, "watch", "other=1"); errorCode(err) != "R502" {
		t.Errorf("unknown write: err = %v, want R502", err)
	}

	empty := t.TempDir()
	if _, err := execute(t, "--config", empty, "watch"); errorCode(err) != "R200" {
		t.Errorf("missing state: err = %v, want R200", err)
	}

	yaml := project(t, `{"state": {"file": "state.yaml"}}`, "state.yaml", "count: 1")
	if _, err := execute(t, "--config", yaml, "watch"); errorCode(err) != "R202" {
		t.Errorf("yaml state: err = %v, want R202", err)
	}
}

func TestSnapshotCommands(t *testing.T) {
	dir := project(t, "", "state.json", `{"count": 1, "title": "draft"}`)

	out, err := execute(t, "--config", dir, "snapshot", "save", "first")
	if err != nil {
		t.Fatalf("snapshot save failed: %v", err)
	}
	if !strings.Contains(out, "Saved snapshot first") {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, config.DefaultSnapshotDir, "first.snapshot.pb")); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}

	// Change the state file, then load the snapshot over it.
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte(`{"count": 7, "title": "final"}`), 0644); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "--config", dir, "snapshot", "load", "first")
	if err != nil {
		t.Fatalf("snapshot load failed: %v", err)
	}
	if !strings.Contains(out, `"count": 1`) || !strings.Contains(out, `"title": "draft"`) {
		t.Errorf("loaded state = %s", out)
	}

	target := filepath.Join(dir, "out.json")
	if _, err := execute(t, "--config", dir, "snapshot", "load", "first", "--output", target); err != nil {
		t.Fatalf("snapshot load --output failed: %v", err)
	}
	if data, err := os.ReadFile(target); err != nil || !strings.Contains(string(data), `"draft"`) {
		t.Errorf("output file = %s, %v", data, err)
	}

	if _, err := execute(t, "--config", dir, "snapshot", "load", "missing"); errorCode(err) != "R300" {
		t.Errorf("missing snapshot: err = %v, want R300", err)
	}
}

func TestRoutesCommand(t *testing.T) {
	dir := project(t, `{"routes": [{"name": "user", "path": "/users/:id"}, {"name": "docs", "path": "/docs/*path"}]}`, "", "")

	out, err := execute(t, "--config", dir, "routes")
	if err != nil {
		t.Fatalf("routes failed: %v", err)
	}
	if !strings.Contains(out, "user") || !strings.Contains(out, "/docs/*path") {
		t.Errorf("route list = %q", out)
	}

	out, err = execute(t, "--config", dir, "routes", "--route", "home=/", "/users/42", "#/docs/a/b", "/nowhere", "/")
	if err != nil {
		t.Fatalf("routes resolve failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), out)
	}
	checks := []string{"user id=42", "docs path=a/b", "(no match)", "home"}
	for i, want := range checks {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}

	if _, err := execute(t, "--config", dir, "routes", "--route", "broken"); errorCode(err) != "R501" {
		t.Errorf("bad --route: err = %v, want R501", err)
	}
	if _, err := execute(t, "--config", dir, "routes", "/a\\b"); errorCode(err) != "R501" {
		t.Errorf("bad location: err = %v, want R501", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := project(t, `{"log": {"level": "info"}}`, "", "")
	env := map[string]string{"REACTOR_ADDR": ":1"}

	cfg, err := loadConfig(&globalFlags{configDir: dir, logLevel: "debug", logFormat: "json"}, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":1" || cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Server, cfg.Log)
	}

	_, err = loadConfig(&globalFlags{configDir: dir, logFormat: "xml"}, func(string) string { return "" })
	if errorCode(err) != "R102" {
		t.Errorf("bad flag: err = %v, want R102", err)
	}
}

func TestTelemetrySinks(t *testing.T) {
	logger := config.LogConfig{}.Logger(&bytes.Buffer{})

	if _, err := telemetry(logger, nil, []string{"slog", "bogus"}); errorCode(err) != "R102" {
		t.Errorf("err = %v, want R102", err)
	}
	obs, err := telemetry(logger, nil, []string{" "})
	if err != nil || obs == nil {
		t.Errorf("empty list: %v, %v", obs, err)
	}
}

func TestNewPersister(t *testing.T) {
	cfg := config.New()
	if _, ok := newPersister(cfg, os.Getenv).(*store.FilePersister); !ok {
		t.Error("file backend should build a FilePersister")
	}

	cfg.Snapshot = config.SnapshotConfig{Backend: config.BackendS3, Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true}
	if _, ok := newPersister(cfg, os.Getenv).(*store.S3Persister); !ok {
		t.Error("s3 backend should build an S3Persister")
	}

	if _, err := envCredentials(func(string) string { return "" }); errorCode(err) != "R301" {
		t.Errorf("missing credentials: err = %v, want R301", err)
	}
	creds, err := envCredentials(func(k string) string { return "v-" + k })
	if err != nil || creds.AccessKeyID != "v-AWS_ACCESS_KEY_ID" {
		t.Errorf("creds = %+v, %v", creds, err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version = %q, want %q", out, version)
	}
}

func TestErrorsCommand(t *testing.T) {
	out, err := execute(t, "errors")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "R202  state") || !strings.Contains(out, "R504") {
		t.Errorf("code list = %q", out)
	}

	out, err = execute(t, "errors", "r202")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "R202: Unsupported state file format") || !strings.Contains(out, ".json or .hcl") {
		t.Errorf("explain = %q", out)
	}

	if _, err := execute(t, "errors", "R999"); errorCode(err) != "R504" {
		t.Errorf("unknown code: err = %v, want R504", err)
	}
}

func TestReportError(t *testing.T) {
	noEnv := func(string) string { return "" }
	coded := errors.New("R200").WithDetail("state.json")

	var buf bytes.Buffer
	reportError(&buf, coded, config.FormatJSON, noEnv)
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON report is not valid JSON: %v: %q", err, buf.String())
	}
	if decoded["code"] != "R200" || decoded["detail"] != "state.json" {
		t.Errorf("JSON report = %s", buf.String())
	}

	// A buffer is not a terminal: one plain line.
	buf.Reset()
	reportError(&buf, coded, config.FormatText, noEnv)
	if got := buf.String(); got != "R200: State file not found: state.json\n" {
		t.Errorf("compact report = %q", got)
	}

	buf.Reset()
	reportError(&buf, stderrors.New(`unknown command "nope"`), "", noEnv)
	if got := buf.String(); !strings.HasPrefix(got, "R503: Invalid command line: unknown command") {
		t.Errorf("plain error report = %q", got)
	}
}
