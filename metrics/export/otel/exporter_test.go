package otel

import (
	"errors"
	"testing"

	buddyline "github.com/buddyline/buddyline-go"
)

type staticSource struct{}

func (staticSource) MetricsSnapshot() buddyline.MetricsSnapshot {
	return buddyline.MetricsSnapshot{Counters: map[buddyline.MetricID]uint64{}}
}

func TestNewExporterRejectsNilMeter(t *testing.T) {
	if _, err := NewExporterFromSource(nil, staticSource{}); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("err = %v, want ErrNilMeter", err)
	}
}

func TestNewExporterRejectsNilSource(t *testing.T) {
	if _, err := NewExporter(nil, nil); !errors.Is(err, ErrNilMeter) {
		t.Fatalf("err = %v, want ErrNilMeter first", err)
	}
}

func TestCloseOnNilExporter(t *testing.T) {
	var e *Exporter
	if err := e.Close(); err != nil {
		t.Fatalf("nil close = %v", err)
	}
}
