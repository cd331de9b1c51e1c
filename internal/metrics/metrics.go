package metrics

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"strings"
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drand/stepout/common/log"
)

var (
	// PrivateMetrics about the go process itself
	PrivateMetrics = prometheus.NewRegistry()
	// ClientMetrics about signature requests and verifications
	ClientMetrics = prometheus.NewRegistry()

	// VerificationResults counts every terminal outcome of a request
	VerificationResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stepout_verification_results",
		Help: "Number of signature requests per terminal outcome",
	}, []string{"result"})

	// TransportLatency measures the round trip to the signature server
	TransportLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stepout_transport_latency_seconds",
		Help:    "Duration of signature fetches",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"transport"})

	// TransportFailures counts fetches that failed before any byte was decoded
	TransportFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stepout_transport_failures",
		Help: "Number of failed signature fetches",
	}, []string{"transport"})

	// StepOutListSize is the number of revocation tokens currently loaded
	StepOutListSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stepout_list_size",
		Help: "Number of revocation tokens in the loaded step-out list",
	})

	// StepOutEpoch is the epoch of the loaded step-out list
	StepOutEpoch = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stepout_list_epoch",
		Help: "Epoch of the loaded step-out list",
	})

	// KeyCache counts member key cache lookups
	KeyCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stepout_key_cache",
		Help: "Member verification key cache lookups",
	}, []string{"outcome"})

	metricsBound sync.Once
)

func bindMetrics(l log.Logger) {
	if err := PrivateMetrics.Register(collectors.NewGoCollector()); err != nil {
		l.Errorw("error in bindMetrics", "metrics", "goCollector", "err", err)
		return
	}
	if err := PrivateMetrics.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		l.Errorw("error in bindMetrics", "metrics", "processCollector", "err", err)
		return
	}

	if err := RegisterClientMetrics(ClientMetrics); err != nil {
		l.Errorw("error in bindMetrics", "metrics", "bindMetrics", "err", err)
		return
	}
	if err := RegisterClientMetrics(PrivateMetrics); err != nil {
		l.Errorw("error in bindMetrics", "metrics", "bindMetrics", "err", err)
		return
	}
}

// RegisterClientMetrics registers the step-out client metrics, including the
// gRPC client interceptor metrics, with the given registry
func RegisterClientMetrics(r prometheus.Registerer) error {
	client := []prometheus.Collector{
		VerificationResults,
		TransportLatency,
		TransportFailures,
		StepOutListSize,
		StepOutEpoch,
		KeyCache,
		grpc_prometheus.DefaultClientMetrics,
	}
	for _, c := range client {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Start starts a prometheus metrics server with debug endpoints. /metrics
// serves every collector, /client/metrics only the step-out client ones. If
// metricsBind is only a port, it listens on localhost.
func Start(logger log.Logger, metricsBind string) net.Listener {
	logger.Infow("metrics starting", "desired_port", metricsBind)

	metricsBound.Do(func() {
		bindMetrics(logger)
	})

	if !strings.Contains(metricsBind, ":") {
		metricsBind = "127.0.0.1:" + metricsBind
	}
	//nolint:noctx
	l, err := net.Listen("tcp", metricsBind)
	if err != nil {
		logger.Warnw("", "metrics", "listen failed", "err", err)
		return nil
	}
	logger.Infow("metric listener started", "addr", l.Addr())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(PrivateMetrics, promhttp.HandlerOpts{Registry: PrivateMetrics}))
	// client metrics without the process collectors, for scraping by peers
	mux.Handle("/client/metrics", promhttp.HandlerFor(ClientMetrics, promhttp.HandlerOpts{Registry: ClientMetrics}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/gc", func(w http.ResponseWriter, _ *http.Request) {
		runtime.GC()
		fmt.Fprintf(w, "GC run complete")
	})

	s := http.Server{Addr: l.Addr().String(), ReadHeaderTimeout: 3 * time.Second, Handler: mux}
	go func() {
		logger.Warnw("", "metrics", "listen finished", "err", s.Serve(l))
	}()
	return l
}

// ObserveResult records the outcome of a request.
func ObserveResult(result string) {
	VerificationResults.WithLabelValues(result).Inc()
}

// ObserveFetch records a signature fetch over the named transport.
func ObserveFetch(transport string, took time.Duration, err error) {
	TransportLatency.WithLabelValues(transport).Observe(took.Seconds())
	if err != nil {
		TransportFailures.WithLabelValues(transport).Inc()
	}
}

// StepOutLoaded records a newly loaded step-out list.
func StepOutLoaded(epoch uint64, size int) {
	StepOutEpoch.Set(float64(epoch))
	StepOutListSize.Set(float64(size))
}

// KeyCacheLookup records a hit or a miss in the member key cache.
func KeyCacheLookup(hit bool) {
	if hit {
		KeyCache.WithLabelValues("hit").Inc()
		return
	}
	KeyCache.WithLabelValues("miss").Inc()
}
