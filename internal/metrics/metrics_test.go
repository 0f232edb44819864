package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus error: %v", err)
	}
	ctx := context.Background()
	p.Observe(ctx, "create_song", true, 2*time.Millisecond)
	p.Observe(ctx, "create_song", true, time.Millisecond)
	p.Observe(ctx, "create_song", false, time.Millisecond)

	if got := testutil.ToFloat64(p.ops.WithLabelValues("create_song", "ok")); got != 2 {
		t.Fatalf("expected 2 ok, got %v", got)
	}
	if got := testutil.ToFloat64(p.ops.WithLabelValues("create_song", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(p.duration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestNewPrometheusRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheus(reg); err != nil {
		t.Fatalf("NewPrometheus error: %v", err)
	}
	if _, err := NewPrometheus(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus error: %v", err)
	}
	p.Observe(context.Background(), "attach_song", true, time.Millisecond)

	path := filepath.Join(t.TempDir(), "gigbook.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(data), `gigbook_operations_total{operation="attach_song",status="ok"} 1`) {
		t.Fatalf("unexpected textfile:\n%s", data)
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.Observe(context.Background(), "x", false, 0)
}
