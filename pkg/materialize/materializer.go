package materialize

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"serpgrab/pkg/errors"
	"serpgrab/pkg/fetch"
	"serpgrab/pkg/logger"
	"serpgrab/pkg/ratelimit"
	"serpgrab/pkg/storage"
)

// Outcome is the result for one input reference. Index is 1-based.
type Outcome struct {
	Index     int
	Reference string
	Kind      Kind
	Path      string
	Bytes     int64
	Err       error
}

// Succeeded reports whether the reference was written to disk
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Materializer writes image references into a directory
type Materializer struct {
	fetcher fetch.Opener
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// New creates a Materializer. limiter may be nil.
func New(fetcher fetch.Opener, limiter ratelimit.Limiter, log logger.Logger) *Materializer {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Materializer{
		fetcher: fetcher,
		limiter: limiter,
		logger:  log.WithField("component", "materialize"),
	}
}

// FileName returns the name the reference at 1-based index is written to
func FileName(index int, ref Reference) string {
	return fmt.Sprintf("image_%d.%s", index, ref.FileExtension())
}

// Materialize writes every reference into dir and returns one outcome per
// input, in input order. Individual failures are recorded on their outcome;
// the call itself never fails. Files are named by position, so callers that
// want a clean run clear dir first.
func (m *Materializer) Materialize(ctx context.Context, refs []string, dir string) []Outcome {
	outcomes := make([]Outcome, len(refs))

	store, err := storage.NewManager(dir)
	if err != nil {
		m.logger.WithError(err).WithField("dir", dir).Error("Cannot prepare output directory")
		for i, raw := range refs {
			ref, _ := Parse(raw)
			outcomes[i] = Outcome{Index: i + 1, Reference: raw, Kind: ref.Kind, Err: err}
		}
		return outcomes
	}

	for i, raw := range refs {
		out := m.one(ctx, store, i+1, raw)
		logger.LogOutcome(m.logger, out.Index, out.Kind.String(), out.Path, out.Bytes, out.Err)
		outcomes[i] = out
	}

	s := Summarize(outcomes)
	m.logger.InfoWithFields("Materialization finished", map[string]interface{}{
		"dir":       dir,
		"total":     s.Total,
		"succeeded": s.Succeeded,
		"failed":    s.Failed,
		"bytes":     s.Bytes,
	})
	return outcomes
}

func (m *Materializer) one(ctx context.Context, store *storage.Manager, index int, raw string) Outcome {
	out := Outcome{Index: index, Reference: raw}

	ref, err := Parse(raw)
	out.Kind = ref.Kind
	if err != nil {
		out.Err = err
		return out
	}

	name := FileName(index, ref)

	switch ref.Kind {
	case KindInline:
		data, err := ref.Decode()
		if err != nil {
			out.Err = err
			return out
		}
		out.Path, out.Bytes, out.Err = store.Save(bytes.NewReader(data), name)

	case KindRemote:
		if err := m.limiter.Wait(ctx, hostOf(ref.URL)); err != nil {
			out.Err = err
			return out
		}
		out.Path, out.Bytes, out.Err = m.download(ctx, store, ref.URL, name)
		if out.Err != nil {
			// Nothing may remain at the computed path after a failed fetch
			if rmErr := store.Remove(name); rmErr != nil {
				m.logger.WithError(rmErr).WithField("name", name).Warn("Cleanup failed")
			}
			out.Path = ""
		}
	}

	return out
}

func (m *Materializer) download(ctx context.Context, store *storage.Manager, url, name string) (string, int64, error) {
	if m.fetcher == nil {
		return "", 0, errors.Structural("no fetch client configured")
	}

	body, err := m.fetcher.Open(ctx, url)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	return store.Save(body, name)
}

// Summary counts materialization outcomes
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Inline    int
	Remote    int
	Bytes     int64
}

// Summarize tallies outcomes
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if !o.Succeeded() {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.Bytes += o.Bytes
		switch o.Kind {
		case KindInline:
			s.Inline++
		case KindRemote:
			s.Remote++
		}
	}
	return s
}

// hostOf returns the limiter key for a remote reference
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.ToLower(u.Host)
}
