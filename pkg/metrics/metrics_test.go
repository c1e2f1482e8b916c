package metrics

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sigma "github.com/markuskont/go-sigma-rule-deploy"
)

func TestObserve(t *testing.T) {
	r := NewRecorder()
	r.Observe(sigma.Outcome{Kind: sigma.Created})
	r.Observe(sigma.Outcome{Kind: sigma.Updated})
	r.Observe(sigma.Outcome{Kind: sigma.Updated})
	r.Observe(sigma.Outcome{Kind: sigma.ConflictThenFailed})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.outcomes.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("conflict_then_failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.outcomes.WithLabelValues("transport_failed")))
}

func TestPush(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		data, _ := ioutil.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.Observe(sigma.Outcome{Kind: sigma.Created})
	require.NoError(t, r.Push(context.Background(), srv.URL, ""))

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/"+DefaultJob, gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, NewRecorder().Push(context.Background(), srv.URL, "job"))
}
