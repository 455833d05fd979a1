package interceptor_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/admin-session/credentials"
	"github.com/jrsteele09/admin-session/interceptor"
	apperrors "github.com/jrsteele09/admin-session/internal/errors"
	"github.com/jrsteele09/admin-session/navigation"
	"github.com/jrsteele09/admin-session/sessionapi"
)

const waitTimeout = 2 * time.Second

type testFixture struct {
	server    *httptest.Server
	store     *credentials.Store
	navigator *navigation.Recorder
	registry  *prometheus.Registry
	transport *interceptor.Transport
	client    *http.Client

	validToken   atomic.Value
	handler      atomic.Value
	hits         atomic.Int32
	refreshCalls atomic.Int32

	mu         sync.Mutex
	acceptedAs []string
	bodies     []string
}

// newTestFixture serves 401 to any request whose bearer token is not the current valid token.
func newTestFixture(t *testing.T, refresh interceptor.RefreshFunc) *testFixture {
	t.Helper()
	f := &testFixture{
		store:     credentials.NewStore(),
		navigator: &navigation.Recorder{},
		registry:  prometheus.NewRegistry(),
	}
	f.validToken.Store("")

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if custom, ok := f.handler.Load().(http.HandlerFunc); ok {
			custom(w, r)
			return
		}
		f.hits.Add(1)
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()

		valid := f.validToken.Load().(string)
		auth := r.Header.Get("Authorization")
		if valid == "" || auth != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		f.mu.Lock()
		f.acceptedAs = append(f.acceptedAs, auth)
		f.mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(f.server.Close)

	counted := func(ctx context.Context) (string, error) {
		f.refreshCalls.Add(1)
		return refresh(ctx)
	}
	f.transport = interceptor.New(f.store, counted, f.navigator,
		interceptor.WithMetrics(interceptor.NewMetrics(f.registry)),
	)
	f.client = &http.Client{Transport: f.transport}
	return f
}

// serve replaces the default token-checking handler.
func (f *testFixture) serve(handler http.HandlerFunc) {
	f.handler.Store(handler)
}

func (f *testFixture) accepted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acceptedAs...)
}

func (f *testFixture) receivedBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

func (f *testFixture) get(path string) (*http.Response, error) {
	resp, err := f.client.Get(f.server.URL + path)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp, nil
}

// waitUntil polls cond. It is safe to call outside the test goroutine.
func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if outcome == "" {
				return m.GetCounter().GetValue()
			}
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestTransport_AttachesBearerToken(t *testing.T) {
	f := newTestFixture(t, func(context.Context) (string, error) { return "", errors.New("unused") })
	f.store.Set("good")
	f.validToken.Store("good")

	resp, err := f.get("/admin/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"Bearer good"}, f.accepted())
	require.EqualValues(t, 0, f.refreshCalls.Load())
}

func TestTransport_PassesThroughOtherStatuses(t *testing.T) {
	f := newTestFixture(t, func(context.Context) (string, error) { return "", errors.New("unused") })
	var auth atomic.Value
	f.serve(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusInternalServerError)
	})

	resp, err := f.get("/admin/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "", auth.Load())
	require.EqualValues(t, 0, f.refreshCalls.Load())
	require.Empty(t, f.navigator.Paths())
}

func TestTransport_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 8
	var f *testFixture
	f = newTestFixture(t, func(context.Context) (string, error) {
		if !waitUntil(func() bool { return f.transport.Waiting() == n-1 }) {
			return "", errors.New("requests never queued")
		}
		if f.transport.State() != interceptor.Refreshing {
			return "", errors.New("state is not refreshing")
		}
		f.validToken.Store("fresh")
		return "fresh", nil
	})
	f.store.Set("stale")

	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.get("/admin/users")
			errs[i] = err
			if resp != nil {
				statuses[i] = resp.StatusCode
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i])
	}
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.EqualValues(t, 2*n, f.hits.Load())
	accepted := f.accepted()
	require.Len(t, accepted, n)
	for _, auth := range accepted {
		require.Equal(t, "Bearer fresh", auth)
	}
	require.Equal(t, "fresh", f.store.Get())
	require.Equal(t, interceptor.Idle, f.transport.State())
	require.Zero(t, f.transport.Waiting())

	require.Equal(t, 1.0, counterValue(t, f.registry, "admin_session_interceptor_refresh_total", "success"))
	require.Equal(t, float64(n-1), counterValue(t, f.registry, "admin_session_interceptor_queued_requests_total", ""))
	require.Equal(t, float64(n), counterValue(t, f.registry, "admin_session_interceptor_replayed_requests_total", ""))
}

func TestTransport_RefreshFailureRejectsEveryoneAndRedirectsOnce(t *testing.T) {
	const n = 5
	var f *testFixture
	f = newTestFixture(t, func(context.Context) (string, error) {
		waitUntil(func() bool { return f.transport.Waiting() == n-1 })
		return "", errors.Wrap(apperrors.ErrRefreshFailed, "cookie expired")
	})
	f.store.Set("stale")

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.get("/admin/users")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	}
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.EqualValues(t, n, f.hits.Load())
	require.Empty(t, f.store.Get())
	require.Equal(t, 1, f.navigator.Count(interceptor.DefaultLoginPath))
	require.Equal(t, []string{interceptor.DefaultLoginPath}, f.navigator.Paths())
	require.Equal(t, 1.0, counterValue(t, f.registry, "admin_session_interceptor_refresh_total", "failure"))
}

func TestTransport_RefreshErrorIsClassifiedAsRefreshFailed(t *testing.T) {
	f := newTestFixture(t, func(context.Context) (string, error) {
		return "", apperrors.ErrNetwork
	})

	_, err := f.get("/admin/users")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.ErrorIs(t, err, apperrors.ErrNetwork)
}

func TestTransport_RetriedRequestIsNotRetriedAgain(t *testing.T) {
	const n = 3
	var f *testFixture
	f = newTestFixture(t, func(context.Context) (string, error) {
		waitUntil(func() bool { return f.transport.Waiting() == n-1 })
		return "rejected-too", nil
	})
	f.store.Set("stale")

	var wg sync.WaitGroup
	statuses := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.get("/admin/users")
			if err == nil {
				statuses[i] = resp.StatusCode
			}
		}(i)
	}
	wg.Wait()

	for _, status := range statuses {
		require.Equal(t, http.StatusUnauthorized, status)
	}
	require.EqualValues(t, 2*n, f.hits.Load())
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.Empty(t, f.navigator.Paths())
}

func TestTransport_RequestMarkedRetriedPassesThrough(t *testing.T) {
	f := newTestFixture(t, func(context.Context) (string, error) { return "fresh", nil })

	req, err := http.NewRequestWithContext(interceptor.WithRetried(context.Background()), http.MethodGet, f.server.URL+"/admin/users", nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, f.refreshCalls.Load())
}

func TestTransport_RefreshEndpointIsNeverIntercepted(t *testing.T) {
	f := newTestFixture(t, func(context.Context) (string, error) { return "fresh", nil })

	resp, err := f.client.Post(f.server.URL+"/api/v1"+sessionapi.RefreshPath, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 0, f.refreshCalls.Load())
	require.EqualValues(t, 1, f.hits.Load())
}

func TestTransport_ReplayResendsBody(t *testing.T) {
	var f *testFixture
	f = newTestFixture(t, func(context.Context) (string, error) {
		f.validToken.Store("fresh")
		return "fresh", nil
	})

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/admin/universities", io.NopCloser(strings.NewReader(`{"name":"Sharif"}`)))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{`{"name":"Sharif"}`, `{"name":"Sharif"}`}, f.receivedBodies())
}

func TestTransport_LateUnauthorizedReusesNewerToken(t *testing.T) {
	f := newTestFixture(t, func(context.Context) (string, error) { return "", errors.New("must not refresh") })
	f.store.Set("stale")

	// The token is rotated while the request is on the wire.
	f.serve(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		switch r.Header.Get("Authorization") {
		case "Bearer stale":
			f.store.Set("fresh")
			w.WriteHeader(http.StatusUnauthorized)
		case "Bearer fresh":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	resp, err := f.get("/admin/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, f.refreshCalls.Load())
	require.EqualValues(t, 2, f.hits.Load())
}

func TestTransport_QueuedRequestHonoursOwnContext(t *testing.T) {
	release := make(chan struct{})
	var f *testFixture
	f = newTestFixture(t, func(context.Context) (string, error) {
		<-release
		f.validToken.Store("fresh")
		return "fresh", nil
	})
	f.store.Set("stale")

	leaderDone := make(chan error, 1)
	go func() {
		_, err := f.get("/admin/users")
		leaderDone <- err
	}()
	require.Eventually(t, func() bool { return f.transport.State() == interceptor.Refreshing }, waitTimeout, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/admin/users", nil)
	require.NoError(t, err)
	waiterDone := make(chan error, 1)
	go func() {
		resp, err := f.client.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		waiterDone <- err
	}()
	require.Eventually(t, func() bool { return f.transport.Waiting() == 1 }, waitTimeout, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-waiterDone, context.Canceled)

	close(release)
	require.NoError(t, <-leaderDone)
	require.EqualValues(t, 1, f.refreshCalls.Load())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", interceptor.Idle.String())
	require.Equal(t, "refreshing", interceptor.Refreshing.String())
}

func TestTransport_KeepsTokenStoredByNewerLogin(t *testing.T) {
	var f *testFixture
	f = newTestFixture(t, func(ctx context.Context) (string, error) {
		// a login lands while the refresh is in flight and the refresh defers to it
		f.store.Set("login-token")
		return f.store.Get(), nil
	})
	f.validToken.Store("login-token")
	f.store.Set("expired")

	var writes atomic.Int32
	f.store.OnSet(func(string) { writes.Add(1) })

	resp, err := f.get("/admin/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "login-token", f.store.Get())
	require.Equal(t, int32(1), writes.Load())
	require.Equal(t, []string{"Bearer login-token"}, f.accepted())
}
