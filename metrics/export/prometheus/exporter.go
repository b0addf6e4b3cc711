package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() goAccounts.MetricsSnapshot
}

// PrometheusExporter renders account pipeline metrics in Prometheus text
// exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter returns an exporter that reads engine on every scrape.
func NewPrometheusExporter(engine *goAccounts.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource returns an exporter over any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render over HTTP.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes every counter family and the login latency histogram.
// Families keyed by error code or event type are omitted until a sample
// exists. Disabled metrics render as the empty string.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, family := range internaldefs.Families {
		samples := internaldefs.Samples(family.Name, snapshot)
		if len(samples) == 0 {
			continue
		}
		writeHeader(&b, family.Name, family.Help, "counter")
		for _, s := range samples {
			b.WriteString(family.Name)
			if family.Label != "" {
				writeLabel(&b, family.Label, s.LabelValue)
			}
			b.WriteByte(' ')
			b.WriteString(strconv.FormatUint(s.Value, 10))
			b.WriteByte('\n')
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeLabel(b *strings.Builder, name, value string) {
	b.WriteByte('{')
	b.WriteString(name)
	b.WriteString("=\"")
	b.WriteString(escapeLabel(value))
	b.WriteString("\"}")
}

// writeHistogram emits a zero _sum; snapshots carry bucket counts only.
func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket")
		writeLabel(b, "le", le)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteString("\n")
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

var (
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)
)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}

func escapeLabel(v string) string {
	return labelEscaper.Replace(v)
}
