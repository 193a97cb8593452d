package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_EveryLevelIsWritten(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "shadow matched", "remote_id", "r-1")
	log.Info(ctx, "invite redeemed", "label", "calm-brave-otter")
	log.Warn(ctx, "remote disable lagging", "account", "a-7")
	log.Error(ctx, "orphan remote account", "remote_id", "r-9")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", `msg="shadow matched"`, "remote_id=r-1",
		"level=INFO", "label=calm-brave-otter",
		"level=WARN", "account=a-7",
		"level=ERROR", "remote_id=r-9",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSlogLogger_WithKeepsModule(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("module", "sweeper").Info(context.TODO(), "sweep finished", "disabled", 2)

	out := buf.String()
	for _, want := range []string{"module=sweeper", `msg="sweep finished"`, "disabled=2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, "warn")
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown", "account_id", "a-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message must be filtered at warn level:\n%s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"account_id":"a-1"`) {
		t.Fatalf("expected JSON warn line, got:\n%s", out)
	}
}

func TestNop_Discards(t *testing.T) {
	l := Nop()
	l.Error(context.Background(), "nothing")
	l.With("k", "v").Info(context.Background(), "nothing")
}
