package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(&buf, "WARN", "json")
	if err != nil {
		t.Fatal(err)
	}

	log.Info().Msg("hidden")
	log.Warn().Str("kind", "io").Msg("proxy not ok")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info event written at warn level: %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"kind":"io"`) {
		t.Fatalf("missing warn event: %s", out)
	}
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(&buf, "", "")
	if err != nil {
		t.Fatal(err)
	}

	log.Debug().Msg("hidden")
	log.Info().Msg("listening")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug event written at default level: %s", out)
	}
	if !strings.Contains(out, "listening") {
		t.Fatalf("missing info event: %s", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("default format should not be json: %s", out)
	}
}

func TestNewInvalid(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, "chatty", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewTrace(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "trace", "json")
	if err != nil {
		t.Fatal(err)
	}

	log.Trace().Msg("protocol ok")

	if !strings.Contains(buf.String(), `"level":"trace"`) {
		t.Fatalf("trace event dropped: %q", buf.String())
	}
}
