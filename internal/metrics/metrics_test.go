package metrics

import (
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/drand/stepout/internal/test/testlogger"
)

func TestObservers(t *testing.T) {
	before := testutil.ToFloat64(VerificationResults.WithLabelValues("revoked"))
	ObserveResult("revoked")
	require.Equal(t, before+1, testutil.ToFloat64(VerificationResults.WithLabelValues("revoked")))

	failures := testutil.ToFloat64(TransportFailures.WithLabelValues("tcp"))
	ObserveFetch("tcp", time.Millisecond, nil)
	ObserveFetch("tcp", time.Millisecond, errors.New("boom"))
	require.Equal(t, failures+1, testutil.ToFloat64(TransportFailures.WithLabelValues("tcp")))

	StepOutLoaded(4, 2)
	require.Equal(t, 4.0, testutil.ToFloat64(StepOutEpoch))
	require.Equal(t, 2.0, testutil.ToFloat64(StepOutListSize))

	hits := testutil.ToFloat64(KeyCache.WithLabelValues("hit"))
	KeyCacheLookup(true)
	KeyCacheLookup(false)
	require.Equal(t, hits+1, testutil.ToFloat64(KeyCache.WithLabelValues("hit")))
}

func TestStartServesMetrics(t *testing.T) {
	l := Start(testlogger.New(t), "127.0.0.1:0")
	require.NotNil(t, l)
	defer l.Close()

	ObserveResult("verified")
	resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "stepout_verification_results")
	require.Contains(t, string(body), "go_goroutines")
}

func TestStartServesClientMetrics(t *testing.T) {
	l := Start(testlogger.New(t), "127.0.0.1:0")
	require.NotNil(t, l)
	defer l.Close()

	ObserveResult("invalid")
	resp, err := http.Get("http://" + l.Addr().String() + "/client/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "stepout_verification_results")
	require.NotContains(t, string(body), "go_goroutines")
}
