package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AntoninoBonanno/DragDropAnnotate/internal/events"
)

// Metrics holds the Prometheus metrics of the annotation server.
type Metrics struct {
	events        *prometheus.CounterVec
	surfaces      prometheus.Gauge
	rooms         prometheus.Gauge
	imageLoads    *prometheus.CounterVec
	imageLoadTime prometheus.Histogram
	exports       prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotation_events_total",
				Help: "Annotation events emitted, by kind",
			},
			[]string{"kind"},
		),
		surfaces: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "annotation_surfaces",
				Help: "Number of live annotatable surfaces",
			},
		),
		rooms: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "annotation_collab_rooms",
				Help: "Number of surfaces with connected websocket clients",
			},
		),
		imageLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotation_image_loads_total",
				Help: "Annotation image loads, by result",
			},
			[]string{"result"},
		),
		imageLoadTime: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annotation_image_load_seconds",
				Help:    "Time to fetch and decode an annotation image",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		exports: f.NewCounter(
			prometheus.CounterOpts{
				Name: "annotation_exports_total",
				Help: "PNG exports rendered",
			},
		),
	}
}

// ObserveEvent counts ev by kind. Pointer moves are not counted.
func (m *Metrics) ObserveEvent(ev events.Event) {
	if ev.Kind == events.PointerMovedOverSurface {
		return
	}
	m.events.WithLabelValues(string(ev.Kind)).Inc()
}

// Sink returns an event sink that feeds ObserveEvent.
func (m *Metrics) Sink() events.Sink {
	return events.SinkFunc(m.ObserveEvent)
}

// ObserveImageLoad records one image load.
func (m *Metrics) ObserveImageLoad(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.imageLoads.WithLabelValues(result).Inc()
	m.imageLoadTime.Observe(elapsed.Seconds())
}

func (m *Metrics) SetSurfaces(n int) { m.surfaces.Set(float64(n)) }
func (m *Metrics) SetRooms(n int)    { m.rooms.Set(float64(n)) }
func (m *Metrics) IncExports()       { m.exports.Inc() }
