package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/config"
	"github.com/poku-e/ecopack/internal/logger"
	"github.com/poku-e/ecopack/internal/ui"
)

type fakeView struct {
	mu         sync.Mutex
	busy       []bool
	toasts     []string
	kinds      []ui.ToastKind
	shown      [][]api.Recommendation
	sortBy     string
	panicOnRes bool
}

func (v *fakeView) SetGenerating(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = append(v.busy, b)
}

func (v *fakeView) ShowToast(m string, k ui.ToastKind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.toasts = append(v.toasts, m)
	v.kinds = append(v.kinds, k)
}

func (v *fakeView) ShowResults(recs []api.Recommendation, sortBy string) error {
	if v.panicOnRes {
		panic("render exploded")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shown = append(v.shown, recs)
	v.sortBy = sortBy
	return nil
}

func (v *fakeView) lastToast() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.toasts) == 0 {
		return ""
	}
	return v.toasts[len(v.toasts)-1]
}

type fakeSession struct {
	checks     atomic.Int32
	checkErrs  []error
	overwrites []api.SessionInfo
}

func (s *fakeSession) Check(ctx context.Context) error {
	s.checks.Add(1)
	s.checkErrs = append(s.checkErrs, ctx.Err())
	return nil
}

func (s *fakeSession) Overwrite(info api.SessionInfo) {
	s.overwrites = append(s.overwrites, info)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Quota = config.QuotaConfig{Limit: 3, Window: 20 * time.Minute}
	return cfg
}

var validForm = Form{Category: "Electronics", ShippingMode: "Air", Weight: "2", SortBy: "CO2"}

func setup(t *testing.T, h http.HandlerFunc) (*Orchestrator, *fakeView, *fakeSession) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := api.New(srv.URL)
	require.NoError(t, err)
	view, sess := &fakeView{}, &fakeSession{}
	return NewOrchestrator(c, view, sess, testConfig(), logger.NewNop()), view, sess
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestGenerateSuccess(t *testing.T) {
	var sent map[string]any
	o, view, sess := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, config.RouteRecommend, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		io.WriteString(w, `{"status":"success","recommendations":[
			{"Material_Name":"Kraft","Pred_CO2":1,"Pred_Cost":2,"Sustainability":0.9,"Biodegradable":"Yes","Tensile_Strength_MPa":40},
			{"Material_Name":"PET","Pred_CO2":3,"Pred_Cost":1,"Sustainability":0.95,"Biodegradable":false,"Tensile_Strength_MPa":55}
		],"session_info":{"used":2,"remaining":1}}`)
	})

	batch, err := o.Generate(context.Background(), validForm)
	require.NoError(t, err)

	assert.Equal(t, "Electronics", sent["Category_item"])
	assert.Equal(t, float64(5), sent["top_k"])
	assert.Nil(t, sent["Height_cm"])

	require.Len(t, batch.Recommendations, 2)
	assert.Equal(t, "Kraft", batch.Recommendations[0].MaterialName, "order kept as received")
	assert.Equal(t, "CO2", batch.SortBy)
	assert.Equal(t, "CO2", view.sortBy)
	assert.Len(t, view.shown, 1)

	assert.Equal(t, []api.SessionInfo{{Used: 2, Remaining: 1}}, sess.overwrites)
	assert.Equal(t, int32(1), sess.checks.Load())
	assert.Equal(t, "✅ Success! 1 recommendation remaining (20 min window).", view.lastToast())
	assert.Equal(t, []bool{true, false}, view.busy)
	assert.False(t, o.InFlight())

	last, ok := o.LastBatch()
	require.True(t, ok)
	assert.Equal(t, batch, last)
}

func TestGenerateEmptyList(t *testing.T) {
	o, view, _ := setup(t, respond(http.StatusOK, `{"recommendations":[],"session_info":{"used":3,"remaining":0}}`))
	_, err := o.Generate(context.Background(), validForm)
	require.NoError(t, err)
	require.Len(t, view.shown, 1)
	assert.Empty(t, view.shown[0])
	assert.Equal(t, "✅ Success! 0 recommendations remaining (20 min window).", view.lastToast())
}

func TestGenerateValidationSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	o, view, sess := setup(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

	_, err := o.Generate(context.Background(), Form{Category: "Electronics"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, hits.Load())
	assert.Zero(t, sess.checks.Load())
	assert.Equal(t, []string{MsgMissingFields}, view.toasts)
	assert.Equal(t, []ui.ToastKind{ui.ToastError}, view.kinds)
	assert.Equal(t, []bool{true, false}, view.busy)
}

func TestGenerateRateLimits(t *testing.T) {
	canned := "You've used your quota of 3 calls per 20 minutes. Wait and try again a bit later."
	tests := []struct {
		name   string
		status int
		body   string
		toast  string
	}{
		{"429 with quota message", 429, `{"error":"Rate limit exceeded: 3 per 20 minutes"}`, "Rate limit exceeded: 3 per 20 minutes"},
		{"429 with unrelated message", 429, `{"error":"slow down"}`, canned},
		{"429 with html body", 429, `<html>Too Many Requests</html>`, canned},
		{"429 with empty body", 429, ``, canned},
		{"json quota marker", 403, `{"error":"Daily QUOTA used"}`, canned},
		{"json limit_reached", 400, `{"error":"nope","limit_reached":true}`, canned},
		{"text limit marker", 503, `upstream limit hit`, canned},
		{"text 429 marker", 502, `proxy said 429`, canned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, view, sess := setup(t, respond(tt.status, tt.body))
			_, err := o.Generate(context.Background(), validForm)
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.Equal(t, tt.toast, view.lastToast())
			assert.Equal(t, int32(1), sess.checks.Load())
			assert.Empty(t, sess.overwrites)
			assert.Empty(t, view.shown)
			assert.False(t, o.InFlight())
		})
	}
}

func TestGenerateServerError(t *testing.T) {
	o, view, sess := setup(t, respond(http.StatusInternalServerError, `{"error":"model not loaded"}`))
	_, err := o.Generate(context.Background(), validForm)

	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "model not loaded", se.Message)
	assert.Equal(t, "model not loaded", view.lastToast())
	assert.Equal(t, int32(1), sess.checks.Load())
}

func TestGenerateServerErrorWithoutMessage(t *testing.T) {
	o, view, _ := setup(t, respond(http.StatusInternalServerError, `<h1>boom</h1>`))
	_, err := o.Generate(context.Background(), validForm)

	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, MsgFailed, view.lastToast())
}

func TestGenerateTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	c, err := api.New(url)
	require.NoError(t, err)
	view, sess := &fakeView{}, &fakeSession{}
	o := NewOrchestrator(c, view, sess, testConfig(), logger.NewNop())

	_, err = o.Generate(context.Background(), validForm)
	var te *api.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, MsgFailed, view.lastToast())
	assert.Equal(t, int32(1), sess.checks.Load())
	assert.Equal(t, []bool{true, false}, view.busy)
}

func TestGenerateOutlivesCallerContext(t *testing.T) {
	o, view, sess := setup(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, `{"recommendations":[{"Material_Name":"Kraft"}],"session_info":{"used":3,"remaining":0}}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	batch, err := o.Generate(ctx, validForm)
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.Len(t, batch.Recommendations, 1)
	assert.Equal(t, []api.SessionInfo{{Used: 3, Remaining: 0}}, sess.overwrites)
	assert.Equal(t, []error{nil}, sess.checkErrs, "quota re-poll runs on a live context")
	assert.Equal(t, "✅ Success! 0 recommendations remaining (20 min window).", view.lastToast())
}

func TestGenerateInFlightIsNoop(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	o, view, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		io.WriteString(w, `{"recommendations":[]}`)
	})

	done := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), validForm)
		done <- err
	}()
	<-entered
	assert.True(t, o.InFlight())

	_, err := o.Generate(context.Background(), validForm)
	assert.ErrorIs(t, err, ErrInFlight)
	view.mu.Lock()
	assert.Equal(t, []bool{true}, view.busy)
	assert.Empty(t, view.toasts)
	view.mu.Unlock()

	close(release)
	require.NoError(t, <-done)
	assert.False(t, o.InFlight())
}

func TestGenerateCleansUpAfterPanic(t *testing.T) {
	o, view, sess := setup(t, respond(http.StatusOK, `{"recommendations":[{"Material_Name":"Kraft"}]}`))
	view.panicOnRes = true

	assert.Panics(t, func() { o.Generate(context.Background(), validForm) })
	assert.False(t, o.InFlight())
	assert.Equal(t, []bool{true, false}, view.busy)
	assert.Equal(t, int32(1), sess.checks.Load())
}
