package relay

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"serpgrab/pkg/config"
	"serpgrab/pkg/logger"
)

func sharedConfig() config.RelayConfig {
	return config.RelayConfig{
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestGeoclipBroadcastsToListeners(t *testing.T) {
	s := NewServer(sharedConfig(), nil, nil, logger.NewTestLogger())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c1 := dial(t, wsURL)
	c2 := dial(t, wsURL)
	require.Eventually(t, func() bool { return s.Registry().Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	// Rejected records must never reach listeners
	status, body := post(t, ts.URL+"/geoclip", `{"lat":48.85}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Missing required lat/lon fields."}`, body)

	status, body = post(t, ts.URL+"/geoclip", `{"lat":48.85,"lon":2.35,"probability":0.7,"extra":true}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Data received and broadcast.", body)

	for _, c := range []*websocket.Conn{c1, c2} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		typ, data, err := c.Read(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)
		assert.JSONEq(t, `{"lat":48.85,"lon":2.35,"probability":0.7}`, string(data))
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.recordsReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.recordsRejected))
}

func TestGeoclipRejectsBadBodies(t *testing.T) {
	s := NewServer(sharedConfig(), nil, nil, logger.NewNopLogger())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty body", body: "", want: `{"error":"Missing required lat/lon fields."}`},
		{name: "null lon", body: `{"lat":1,"lon":null}`, want: `{"error":"Missing required lat/lon fields."}`},
		{name: "not json", body: `lat=1&lon=2`, want: `{"error":"Invalid JSON body."}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, ts.URL+"/geoclip", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.JSONEq(t, tt.want, body)
		})
	}
}

func TestDisconnectedListenerIsRemoved(t *testing.T) {
	s := NewServer(sharedConfig(), nil, nil, logger.NewNopLogger())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	c := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws")
	require.Eventually(t, func() bool { return s.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	c.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool { return s.Registry().Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	status, _ := post(t, ts.URL+"/geoclip", `{"lat":1,"lon":2}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := NewServer(sharedConfig(), nil, nil, logger.NewNopLogger())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "serpgrab_relay_listeners")
	assert.Contains(t, text, `serpgrab_http_requests_total{method="GET",path="/healthz",status="200"} 1`)
}

func TestPushRouteOnlyWhenShared(t *testing.T) {
	cfg := sharedConfig()
	cfg.WSAddr = "127.0.0.1:0"
	s := NewServer(cfg, nil, nil, logger.NewNopLogger())
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeWithDedicatedPushListener(t *testing.T) {
	cfg := sharedConfig()
	cfg.WSAddr = "127.0.0.1:0"
	s := NewServer(cfg, nil, nil, logger.NewNopLogger())

	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	wsLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, httpLn, wsLn) }()

	c := dial(t, "ws://"+wsLn.Addr().String()+"/")
	require.Eventually(t, func() bool { return s.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, _ := post(t, "http://"+httpLn.Addr().String()+"/geoclip", `{"lat":0,"lon":0}`)
	assert.Equal(t, http.StatusOK, status)

	readCtx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	_, data, err := c.Read(readCtx)
	readCancel()
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":0,"lon":0}`, string(data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Equal(t, 0, s.Registry().Len())
}

func dialFrom(ctx context.Context, url, origin string) (*websocket.Conn, *http.Response, error) {
	return websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {origin}},
	})
}

func TestPushAcceptsCrossOriginByDefault(t *testing.T) {
	cfg := sharedConfig()
	cfg.WSAddr = "127.0.0.1:0"
	s := NewServer(cfg, nil, nil, logger.NewNopLogger())

	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	wsLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, httpLn, wsLn)

	// A map page loaded from the HTTP listener connects to the other port
	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	c, _, err := dialFrom(dialCtx, "ws://"+wsLn.Addr().String()+"/", "http://"+httpLn.Addr().String())
	require.NoError(t, err)
	defer c.CloseNow()

	assert.Eventually(t, func() bool { return s.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestPushRestrictsConfiguredOrigins(t *testing.T) {
	cfg := sharedConfig()
	cfg.AllowedOrigins = []string{"maps.example.com"}
	s := NewServer(cfg, nil, nil, logger.NewNopLogger())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := dialFrom(ctx, url, "http://elsewhere.test")
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	assert.Equal(t, 0, s.Registry().Len())

	c, _, err := dialFrom(ctx, url, "https://maps.example.com")
	require.NoError(t, err)
	defer c.CloseNow()
	assert.Eventually(t, func() bool { return s.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestMapPageNotServed(t *testing.T) {
	s := NewServer(sharedConfig(), nil, nil, logger.NewNopLogger())
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	for _, path := range []string{"/map", "/index.html"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}
