package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRoutesByLevel(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer
	console := slog.NewJSONHandler(&consoleBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	file := slog.NewJSONHandler(&fileBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(console, file)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug to be enabled through the file handler")
	}

	logger := slog.New(h).With(slog.Int(FieldFrame, 3))
	logger.Debug("window scanned")
	if consoleBuf.Len() != 0 {
		t.Fatalf("console handler received debug record: %s", consoleBuf.String())
	}
	if !bytes.Contains(fileBuf.Bytes(), []byte(`"frame":3`)) {
		t.Fatalf("file handler missing frame attr: %s", fileBuf.String())
	}

	logger.WithGroup("search").Info("accepted", slog.Float64("diff", 1.5))
	for name, buf := range map[string]*bytes.Buffer{"console": &consoleBuf, "file": &fileBuf} {
		if !bytes.Contains(buf.Bytes(), []byte(`"search":{"diff":1.5}`)) {
			t.Errorf("%s handler missing grouped attr: %s", name, buf.String())
		}
	}
}
