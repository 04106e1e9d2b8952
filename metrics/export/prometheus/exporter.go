package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// PrometheusExporter serves Engine metrics to a Prometheus scraper.
type PrometheusExporter struct {
	source internaldefs.Source
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *accountcore.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource is NewPrometheusExporter for any snapshot
// source.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render as text/plain.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" when metrics are disabled and
// no dispatcher has dropped anything.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	sample := internaldefs.Collect(p.source)
	if !sample.Active {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)
	for _, c := range sample.Counters {
		writeCounter(&b, c)
	}
	for _, h := range sample.Histograms {
		writeHistogram(&b, h)
	}
	for _, c := range sample.Deliveries {
		writeCounter(&b, c)
	}
	return b.String()
}

func writeFamily(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeSeries(b *strings.Builder, name string, v uint64) {
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(v, 10))
	b.WriteByte('\n')
}

func writeCounter(b *strings.Builder, c internaldefs.CounterValue) {
	writeFamily(b, c.Name, c.Help, "counter")
	writeSeries(b, c.Name, c.Value)
}

func writeHistogram(b *strings.Builder, h internaldefs.HistogramValue) {
	writeFamily(b, h.Name, h.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		writeSeries(b, h.Name+`_bucket{le="`+le+`"}`, h.Cumulative[i])
	}
	writeSeries(b, h.Name+"_count", h.Count())
	// The Engine keeps bucket counts only.
	writeSeries(b, h.Name+"_sum", 0)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
