package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// resetForTest restores the package defaults after a test touches the
// global logger state.
func resetForTest(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		InitWithWriter(bytes.NewBuffer(nil), "INFO", "text", false)
	})
}

// ============================================================================
// Text output
// ============================================================================

func TestTextOutput_MessageAndFields(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Info("renewing credentials", KeyPrincipal, "alice@EXAMPLE.ORG", KeyCache, "FILE:/tmp/krb5cc_1000")

	out := buf.String()
	if !strings.Contains(out, "[INFO] renewing credentials") {
		t.Errorf("missing level and message: %q", out)
	}
	if !strings.Contains(out, "principal=alice@EXAMPLE.ORG") {
		t.Errorf("missing principal field: %q", out)
	}
	if !strings.Contains(out, "cache=FILE:/tmp/krb5cc_1000") {
		t.Errorf("missing cache field: %q", out)
	}
}

func TestTextOutput_NoColorWithoutTerminal(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Error("error reading ticket cache", KeyError, "boom")

	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("unexpected ANSI escapes: %q", buf.String())
	}
}

func TestTextOutput_ColorWhenEnabled(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", true)

	Warn("ticket cannot be renewed for long enough")

	if !strings.Contains(buf.String(), colorYellow) {
		t.Errorf("expected colored WARN level: %q", buf.String())
	}
}

// ============================================================================
// Level filtering
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("WARN and ERROR should pass: %q", out)
	}
}

func TestSetLevel_AdjustsAtRuntime(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Debug("hidden")
	SetLevel("DEBUG")
	Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug leaked at INFO level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("debug missing after SetLevel: %q", out)
	}
}

func TestSetLevel_IgnoresInvalid(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("LOUD")
	Info("still info")

	if !strings.Contains(buf.String(), "still info") {
		t.Errorf("invalid level changed configuration: %q", buf.String())
	}
}

// ============================================================================
// JSON output
// ============================================================================

func TestJSONOutput(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("credentials renewed", KeyCache, "FILE:/tmp/krb5cc_1000", KeyPID, 4242)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "credentials renewed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["cache"] != "FILE:/tmp/krb5cc_1000" {
		t.Errorf("cache = %v", record["cache"])
	}
	if record["pid"] != float64(4242) {
		t.Errorf("pid = %v", record["pid"])
	}
}

// ============================================================================
// Attribute helpers
// ============================================================================

func TestAttrHelpers(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	Logger().Info("cleanup failed",
		Err(errors.New("permission denied")),
		Cache("FILE:/tmp/krb5cc_1000_abc"),
		Principal("alice@EXAMPLE.ORG"),
	)

	out := buf.String()
	for _, want := range []string{
		"error=permission denied",
		"cache=FILE:/tmp/krb5cc_1000_abc",
		"principal=alice@EXAMPLE.ORG",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestWith_BindsFields(t *testing.T) {
	resetForTest(t)
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	l := With(KeyCache, "FILE:/tmp/krb5cc_1000")
	l.Info("first")
	l.Info("second")

	out := buf.String()
	if strings.Count(out, "cache=FILE:/tmp/krb5cc_1000") != 2 {
		t.Errorf("bound field missing from some records: %q", out)
	}
}

// ============================================================================
// Tee handler
// ============================================================================

type countingHandler struct {
	enabled bool
	records []slog.Record
}

func (c *countingHandler) Enabled(context.Context, slog.Level) bool { return c.enabled }
func (c *countingHandler) Handle(_ context.Context, r slog.Record) error {
	c.records = append(c.records, r)
	return nil
}
func (c *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *countingHandler) WithGroup(string) slog.Handler      { return c }

func TestTeeHandler_FansOut(t *testing.T) {
	a := &countingHandler{enabled: true}
	b := &countingHandler{enabled: true}
	l := slog.New(teeHandler{a, b})

	l.Info("hello")

	if len(a.records) != 1 || len(b.records) != 1 {
		t.Errorf("fanout counts: %d, %d", len(a.records), len(b.records))
	}
}

func TestTeeHandler_SkipsDisabled(t *testing.T) {
	a := &countingHandler{enabled: true}
	b := &countingHandler{enabled: false}
	l := slog.New(teeHandler{a, b})

	l.Info("hello")

	if len(a.records) != 1 {
		t.Errorf("enabled handler records: %d", len(a.records))
	}
	if len(b.records) != 0 {
		t.Errorf("disabled handler received a record")
	}
}

func TestAppendPlainAttr_SkipsEmpty(t *testing.T) {
	buf := appendPlainAttr(nil, slog.Attr{})
	if len(buf) != 0 {
		t.Errorf("empty attr produced output: %q", buf)
	}
}
