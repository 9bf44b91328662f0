package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCommand(t *testing.T) {
	r := New()

	r.ObserveCommand(LocationRemote, ResultSuccess, 200*time.Millisecond)
	r.ObserveCommand(LocationRemote, ResultSuccess, time.Second)
	r.ObserveCommand(LocationLocal, ResultFailure, time.Millisecond)

	if got := testutil.ToFloat64(r.CommandsTotal.WithLabelValues(LocationRemote, ResultSuccess)); got != 2 {
		t.Errorf("remote success = %f, want 2", got)
	}
	if got := testutil.ToFloat64(r.CommandsTotal.WithLabelValues(LocationLocal, ResultFailure)); got != 1 {
		t.Errorf("local failure = %f, want 1", got)
	}
	if count := testutil.CollectAndCount(r.CommandDuration); count != 2 {
		t.Errorf("expected 2 duration series, got %d", count)
	}
}

func TestObserveTransfer(t *testing.T) {
	r := New()

	r.ObserveTransfer(DirectionSend, ResultSuccess)
	r.ObserveTransfer(DirectionFetch, ResultError)

	if got := testutil.ToFloat64(r.TransfersTotal.WithLabelValues(DirectionSend, ResultSuccess)); got != 1 {
		t.Errorf("send success = %f, want 1", got)
	}
	if got := testutil.ToFloat64(r.TransfersTotal.WithLabelValues(DirectionFetch, ResultError)); got != 1 {
		t.Errorf("fetch error = %f, want 1", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder

	// Must not panic
	r.ObserveCommand(LocationLocal, ResultSuccess, time.Second)
	r.ObserveTransfer(DirectionSend, ResultSuccess)
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile() on nil recorder = %v", err)
	}
	if r.Registry() != nil {
		t.Error("expected nil registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveCommand(LocationRemote, ResultSuccess, time.Second)

	path := filepath.Join(t.TempDir(), "rouster.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, `rouster_commands_total{location="remote",result="success"} 1`) {
		t.Errorf("textfile missing command counter:\n%s", content)
	}
	if !strings.Contains(content, "rouster_command_duration_seconds_bucket") {
		t.Errorf("textfile missing histogram:\n%s", content)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveTransfer(DirectionSend, ResultSuccess)

	if got := testutil.ToFloat64(b.TransfersTotal.WithLabelValues(DirectionSend, ResultSuccess)); got != 0 {
		t.Errorf("recorders share state: got %f", got)
	}
}
