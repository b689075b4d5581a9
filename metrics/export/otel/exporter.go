// Package otel bridges the SDK's atomic counters into an OpenTelemetry meter
// via observable counters. The exporter pulls a snapshot per collection cycle;
// it never adds work to request paths.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	buddyline "github.com/buddyline/buddyline-go"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is satisfied by *buddyline.Client.
type metricsSource interface {
	MetricsSnapshot() buddyline.MetricsSnapshot
}

type observedCounter struct {
	id         buddyline.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers one observable counter per SDK metric and reports the
// latest snapshot on every collection.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
}

// NewExporter wires a client's counters into the meter.
func NewExporter(meter metric.Meter, client *buddyline.Client) (*Exporter, error) {
	return NewExporterFromSource(meter, client)
}

// NewExporterFromSource is NewExporter for any snapshot source, which keeps
// the exporter testable without a full client.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	ids := buddyline.MetricIDs()
	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(ids)),
	}

	observables := make([]metric.Observable, 0, len(ids))
	for _, id := range ids {
		name := buddyline.MetricName(id)
		ins, err := meter.Int64ObservableCounter(name)
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: id, instrument: ins})
		observables = append(observables, ins)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
