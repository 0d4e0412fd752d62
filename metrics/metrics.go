package metrics

import (
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/status"
)

// Collector counts what the server goes through. It owns a private registry, so a
// few instances may coexist, e.g. in tests.
type Collector struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	responses   *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Counter
	errors      *prometheus.CounterVec
	cost        prometheus.Histogram
}

func New() *Collector {
	// milliseconds
	buckets := []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrweb_requests_total",
			Help: "Requests parsed, by method.",
		}, []string{"method"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrweb_responses_total",
			Help: "Responses sent, by status code.",
		}, []string{"code"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrweb_upload_events_total",
			Help: "Upload events, by status.",
		}, []string{"status"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rrweb_upload_bytes_total",
			Help: "File bytes handed to upload handlers.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrweb_errors_total",
			Help: "Connections ended with an error, by kind.",
		}, []string{"kind"}),
		cost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rrweb_connection_duration_ms",
			Help:    "Time spent on a connection, from accept to close.",
			Buckets: buckets,
		}),
	}

	c.registry.MustRegister(c.requests, c.responses, c.uploads, c.uploadBytes, c.errors, c.cost)

	return c
}

// Registry returns the registry all the metrics are registered in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Request(m method.Method) {
	c.requests.WithLabelValues(m.String()).Inc()
}

// Response records a sent response. Zero code means nothing was sent.
func (c *Collector) Response(code status.Code) {
	if code == 0 {
		return
	}

	c.responses.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

// Upload is meant to be used as an upload observer.
func (c *Collector) Upload(upload *http.Upload) {
	c.uploads.WithLabelValues(upload.Status.String()).Inc()

	if upload.Status == http.UploadWrite {
		c.uploadBytes.Add(float64(upload.CurrentSize))
	}
}

// Error records the error a connection ended with. Nil errors are ignored.
func (c *Collector) Error(err error) {
	if err == nil {
		return
	}

	c.errors.WithLabelValues(status.KindOf(err).String()).Inc()
}

func (c *Collector) Cost(d time.Duration) {
	c.cost.Observe(float64(d.Milliseconds()))
}

// WriteText encodes all the metrics in the text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}

	return encode(w, families)
}

func encode(w io.Writer, families []*dto.MetricFamily) error {
	encoder := expfmt.NewEncoder(w, expfmt.FmtText)

	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return err
		}
	}

	return nil
}
