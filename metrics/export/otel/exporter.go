package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// histogramInstruments mirrors one HistogramValue: a gauge per cumulative
// bucket plus a count gauge.
type histogramInstruments struct {
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter observes Engine counters on every collection cycle.
// Instrument slices are index-aligned with internaldefs.Collect output.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration
	counters     []metric.Int64ObservableCounter
	histograms   []histogramInstruments
	deliveries   []metric.Int64ObservableCounter
}

// NewOTelExporter registers observable instruments for engine on meter.
func NewOTelExporter(meter metric.Meter, engine *accountcore.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter for any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	counter := func(name, help string) (metric.Int64ObservableCounter, error) {
		ins, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}
	gauge := func(name, help string) (metric.Int64ObservableGauge, error) {
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", name, err)
		}
		observables = append(observables, ins)
		return ins, nil
	}

	for _, def := range internaldefs.CounterDefs {
		ins, err := counter(def.Name, def.Help)
		if err != nil {
			return nil, err
		}
		e.counters = append(e.counters, ins)
	}
	for _, def := range internaldefs.HistogramDefs {
		var h histogramInstruments
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			ins, err := gauge(def.Name+"_bucket_le_"+suffix, "Cumulative histogram bucket count.")
			if err != nil {
				return nil, err
			}
			h.buckets[i] = ins
		}
		ins, err := gauge(def.Name+"_count", "Histogram total sample count.")
		if err != nil {
			return nil, err
		}
		h.count = ins
		e.histograms = append(e.histograms, h)
	}
	for _, def := range internaldefs.DeliveryDefs {
		ins, err := counter(def.Name, def.Help)
		if err != nil {
			return nil, err
		}
		e.deliveries = append(e.deliveries, ins)
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	sample := internaldefs.Collect(e.source)
	for i, c := range sample.Counters {
		o.ObserveInt64(e.counters[i], int64(c.Value))
	}
	for i, h := range sample.Histograms {
		for j, v := range h.Cumulative {
			o.ObserveInt64(e.histograms[i].buckets[j], int64(v))
		}
		o.ObserveInt64(e.histograms[i].count, int64(h.Count()))
	}
	for i, c := range sample.Deliveries {
		o.ObserveInt64(e.deliveries[i], int64(c.Value))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
