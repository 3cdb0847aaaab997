package materialize

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"serpgrab/pkg/errors"
	"serpgrab/pkg/fetch"
	"serpgrab/pkg/logger"
	"serpgrab/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Write([]byte("remote-bytes"))
		case "/slow.png":
			w.Header().Set("Content-Length", "100")
			w.Write([]byte("partial"))
			// Connection is cut before Content-Length is satisfied
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestMaterializer(log logger.Logger) *Materializer {
	return New(fetch.NewClient(5*time.Second, "", logger.NewNopLogger()), nil, log)
}

func TestMaterializeMixedReferences(t *testing.T) {
	server := imageServer(t)
	dir := filepath.Join(t.TempDir(), "fresh")

	refs := []string{
		"data:image/png;base64,AAAA",
		server.URL + "/ok.png",
		"not-a-url",
	}

	outcomes := newTestMaterializer(logger.NewNopLogger()).Materialize(context.Background(), refs, dir)
	require.Len(t, outcomes, 3)

	for i, o := range outcomes {
		assert.Equal(t, i+1, o.Index)
		assert.Equal(t, refs[i], o.Reference)
	}

	assert.True(t, outcomes[0].Succeeded())
	assert.Equal(t, filepath.Join(dir, "image_1.png"), outcomes[0].Path)
	data, err := os.ReadFile(outcomes[0].Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, data)

	assert.True(t, outcomes[1].Succeeded())
	assert.Equal(t, filepath.Join(dir, "image_2.jpg"), outcomes[1].Path)
	data, err = os.ReadFile(outcomes[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "remote-bytes", string(data))

	assert.False(t, outcomes[2].Succeeded())
	assert.ErrorIs(t, outcomes[2].Err, ErrUnsupported)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMaterializeNotFoundLeavesNoFile(t *testing.T) {
	server := imageServer(t)
	dir := t.TempDir()

	// A stale file from an earlier run sits at the computed path
	stale := filepath.Join(dir, "image_1.jpg")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	outcomes := newTestMaterializer(logger.NewNopLogger()).Materialize(context.Background(), []string{server.URL + "/missing.png"}, dir)
	require.Len(t, outcomes, 1)

	o := outcomes[0]
	assert.False(t, o.Succeeded())
	assert.Equal(t, KindRemote, o.Kind)
	assert.Equal(t, 404, errors.StatusCode(o.Err))
	assert.Empty(t, o.Path)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestMaterializeTruncatedBodyCleansUp(t *testing.T) {
	server := imageServer(t)
	dir := t.TempDir()

	outcomes := newTestMaterializer(logger.NewNopLogger()).Materialize(context.Background(), []string{server.URL + "/slow.png"}, dir)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Succeeded())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMaterializeMalformedInline(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewTestLogger()

	outcomes := newTestMaterializer(log).Materialize(context.Background(), []string{
		"data:image/png,nobase64",
		"data:image/gif;base64,###",
		"data:image/gif;base64,R0lG",
	}, dir)

	require.Len(t, outcomes, 3)
	assert.ErrorIs(t, outcomes[0].Err, ErrMalformedInline)
	assert.True(t, errors.IsType(outcomes[1].Err, errors.ErrorTypeMalformed))
	assert.True(t, outcomes[2].Succeeded())
	assert.Equal(t, filepath.Join(dir, "image_3.gif"), outcomes[2].Path)

	assert.Len(t, log.GetMessagesByLevel("warn"), 2)
	assert.True(t, log.HasMessage("Materialization finished"))
}

func TestMaterializeEmptyInput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	outcomes := newTestMaterializer(logger.NewNopLogger()).Materialize(context.Background(), nil, dir)
	assert.Empty(t, outcomes)

	// Directory is created even with nothing to write
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMaterializeDirectoryFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	refs := []string{"data:image/png;base64,AAAA", "https://x/y.png"}
	outcomes := newTestMaterializer(logger.NewNopLogger()).Materialize(context.Background(), refs, filepath.Join(blocker, "out"))

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.False(t, o.Succeeded())
	}
	assert.Equal(t, KindInline, outcomes[0].Kind)
	assert.Equal(t, KindRemote, outcomes[1].Kind)
}

type countingOpener struct {
	calls int
}

func (c *countingOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	c.calls++
	return io.NopCloser(strings.NewReader(url)), nil
}

func TestMaterializeWaitsOnLimiter(t *testing.T) {
	opener := &countingOpener{}
	limiter := ratelimit.NewHostLimiter(1, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	m := New(opener, limiter, logger.NewNopLogger())
	outcomes := m.Materialize(ctx, []string{
		"https://a/1.jpg",
		"https://B/1.jpg",
		"https://a/2.jpg",
		"data:image/png;base64,AAAA",
	}, t.TempDir())

	require.Len(t, outcomes, 4)
	assert.True(t, outcomes[0].Succeeded())
	assert.True(t, outcomes[1].Succeeded(), "other hosts have their own window")
	assert.ErrorIs(t, outcomes[2].Err, context.DeadlineExceeded)
	assert.True(t, outcomes[3].Succeeded(), "inline images do not wait on the limiter")
	assert.Equal(t, 2, opener.calls)
}

func TestMaterializeWithoutFetcher(t *testing.T) {
	dir := t.TempDir()
	m := New(nil, nil, logger.NewNopLogger())

	outcomes := m.Materialize(context.Background(), []string{
		"https://cdn.test/a.jpg",
		"data:image/png;base64,AAAA",
	}, dir)

	require.Len(t, outcomes, 2)
	assert.Equal(t, errors.ErrorTypeStructural, errors.TypeOf(outcomes[0].Err))
	assert.Empty(t, outcomes[0].Path)
	assert.True(t, outcomes[1].Succeeded())
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Outcome{
		{Kind: KindInline, Bytes: 3},
		{Kind: KindRemote, Bytes: 10},
		{Kind: KindRemote, Err: ErrUnsupported},
		{Kind: KindUnsupported, Err: ErrUnsupported},
	})

	assert.Equal(t, Summary{Total: 4, Succeeded: 2, Failed: 2, Inline: 1, Remote: 1, Bytes: 13}, s)
}
