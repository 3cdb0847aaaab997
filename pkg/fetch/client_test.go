package fetch

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"serpgrab/pkg/errors"
	"serpgrab/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestOpenSuccess(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("jpegbytes"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, "serpgrab-test", logger.NewTestLogger())
	body, err := client.Open(context.Background(), server.URL+"/a.jpg")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))
	assert.Equal(t, "serpgrab-test", gotUA)
}

func TestOpenNon200(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
		{"no content", http.StatusNoContent},
		{"not modified", http.StatusNotModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &trackingBody{Reader: bytes.NewBufferString("nope")}
			client := NewClient(time.Second, "", logger.NewNopLogger())
			client.httpClient = &http.Client{Transport: &mockRoundTripper{
				handler: func(req *http.Request) (*http.Response, error) {
					return &http.Response{StatusCode: tt.status, Body: body, Header: make(http.Header)}, nil
				},
			}}

			rc, err := client.Open(context.Background(), "http://cdn.test/x.jpg")
			assert.Nil(t, rc)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
			assert.Equal(t, tt.status, errors.StatusCode(err))
			assert.True(t, body.closed, "body should be closed on failure")
		})
	}
}

func TestOpenNetworkError(t *testing.T) {
	client := NewClient(time.Second, "", logger.NewNopLogger())
	client.httpClient = &http.Client{Transport: &mockRoundTripper{
		handler: func(req *http.Request) (*http.Response, error) {
			return nil, stderrors.New("dial tcp: connection refused")
		},
	}}

	_, err := client.Open(context.Background(), "http://cdn.test/x.jpg")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
	assert.Equal(t, 0, errors.StatusCode(err))
}

func TestOpenCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(5*time.Second, "", logger.NewNopLogger())
	_, err := client.Open(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
