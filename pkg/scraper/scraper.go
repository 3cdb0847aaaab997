package scraper

import (
	"context"
	"time"

	"serpgrab/pkg/collector"
	"serpgrab/pkg/config"
	"serpgrab/pkg/errors"
	"serpgrab/pkg/extract"
	"serpgrab/pkg/fetch"
	"serpgrab/pkg/logger"
	"serpgrab/pkg/materialize"
	"serpgrab/pkg/ratelimit"
	"serpgrab/pkg/traversal"
)

// Scraper sequences the search workflows over one Surface. Workflows run
// one at a time; a Scraper is not safe for concurrent use.
type Scraper struct {
	surface      Surface
	materializer *materialize.Materializer
	config       *config.Config
	logger       logger.Logger
}

// New creates a Scraper that borrows surface for its lifetime. When m is
// nil a Materializer is built from the download configuration.
func New(surface Surface, m *materialize.Materializer, cfg *config.Config, log logger.Logger) (*Scraper, error) {
	if surface == nil {
		return nil, errors.Structural("scraper requires a page surface")
	}
	if cfg == nil {
		return nil, errors.Structural("scraper requires a configuration")
	}
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "scraper")

	if m == nil {
		client := fetch.NewClient(cfg.Download.Timeout, cfg.Download.UserAgent, log)
		m = materialize.New(client, ratelimit.PerMinute(cfg.Download.RequestsPerMinute), log)
	}

	return &Scraper{
		surface:      surface,
		materializer: m,
		config:       cfg,
		logger:       log,
	}, nil
}

// CollectLinks searches for query and gathers every result link across all
// result pages
func (s *Scraper) CollectLinks(ctx context.Context, query string) []string {
	log := s.logger.WithFields(map[string]interface{}{"workflow": "links", "query": query})

	if !s.startSearch(ctx, log, query) {
		return []string{}
	}

	search := s.config.Search
	ctrl := s.controller(s.config.Timing.PageSettle, log)
	set := ctrl.Paginated(ctx, traversal.PaginatedSteps{
		Scroll: func(ctx context.Context) error {
			return s.surface.ScrollBy(ctx, 0)
		},
		Extent:  s.surface.ContentHeight,
		Extract: s.extractLinks,
		HasNext: func(ctx context.Context) (bool, error) {
			return s.surface.Exists(ctx, search.NextSelector)
		},
		Next: func(ctx context.Context) error {
			return s.surface.Click(ctx, search.NextSelector)
		},
		Ready: s.surface.Ready,
	})

	log.WithField("collected", set.Len()).Info("Link collection finished")
	return set.Snapshot()
}

// CollectImages searches for query, switches to the image results view and
// gathers image references until scrolling stops producing new ones
func (s *Scraper) CollectImages(ctx context.Context, query string) []string {
	log := s.logger.WithFields(map[string]interface{}{"workflow": "images", "query": query})

	if !s.startSearch(ctx, log, query) {
		return []string{}
	}

	search := s.config.Search
	clicked, err := s.surface.ClickText(ctx, search.ImagesSelector, search.ImagesLabel)
	if err != nil {
		log.WithError(err).Warn("Could not open image results")
		return []string{}
	}
	if !clicked {
		log.WithField("label", search.ImagesLabel).Warn("Image results control not found")
		return []string{}
	}
	s.waiter(s.config.Timing.ImageSettle).Wait(ctx, s.surface.Ready)

	step := s.config.Traversal.ImageScrollStep
	ctrl := s.controller(s.config.Timing.ImageSettle, log)
	set := ctrl.InfiniteScroll(ctx, traversal.InfiniteSteps{
		Extract: s.extractImages,
		Scroll: func(ctx context.Context) error {
			return s.surface.ScrollBy(ctx, step)
		},
		Ready: s.surface.Ready,
	})

	log.WithField("collected", set.Len()).Info("Image collection finished")
	return set.Snapshot()
}

// CollectImagesFromURLs visits each page in turn, scrolls it to stability
// and gathers its image references into one set. Pages that fail are
// logged and skipped; a structural failure ends the batch.
func (s *Scraper) CollectImagesFromURLs(ctx context.Context, urls []string) []string {
	log := s.logger.WithField("workflow", "urls")
	set := collector.New()
	ctrl := s.controller(s.config.Timing.PageSettle, log)

	for i, url := range urls {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("URL batch interrupted")
			break
		}
		pageLog := log.WithFields(map[string]interface{}{"url": url, "position": i + 1})

		if err := s.surface.Navigate(ctx, url); err != nil {
			if errors.Propagates(err) {
				pageLog.WithError(err).Error("URL batch aborted")
				break
			}
			pageLog.WithError(err).Warn("Skipping page")
			continue
		}

		ctrl.ScrollToStability(ctx, func(ctx context.Context) error {
			return s.surface.ScrollBy(ctx, 0)
		}, s.surface.ContentHeight, s.surface.Ready)

		images, err := s.extractImages(ctx)
		if err != nil {
			pageLog.WithError(err).Warn("Skipping page")
			continue
		}
		added := set.Add(images)
		pageLog.DebugWithFields("Page collected", map[string]interface{}{
			"found": len(images),
			"new":   added,
		})
	}

	log.WithFields(map[string]interface{}{
		"pages":     len(urls),
		"collected": set.Len(),
	}).Info("URL batch finished")
	return set.Snapshot()
}

// DismissConsent rejects the cookie consent dialog if one appears. Absence
// or timeout is expected and only logged.
func (s *Scraper) DismissConsent(ctx context.Context) {
	search := s.config.Search
	log := s.logger.WithField("label", search.ConsentLabel)

	if err := s.surface.WaitVisible(ctx, search.ConsentSelector, s.config.Timing.ConsentTimeout); err != nil {
		log.WithError(err).Debug("Consent dialog not shown")
		return
	}

	clicked, err := s.surface.ClickText(ctx, search.ConsentSelector, search.ConsentLabel)
	switch {
	case err != nil:
		log.WithError(err).Warn("Could not dismiss consent dialog")
	case !clicked:
		log.Info("No consent control matched")
	default:
		log.Debug("Consent dialog dismissed")
	}
}

// DownloadImages materializes refs into dir, or the configured output
// directory when dir is empty
func (s *Scraper) DownloadImages(ctx context.Context, refs []string, dir string) []materialize.Outcome {
	if dir == "" {
		dir = s.config.Download.OutputDirectory
	}
	return s.materializer.Materialize(ctx, refs, dir)
}

// startSearch opens the search page, clears consent and submits query
func (s *Scraper) startSearch(ctx context.Context, log logger.Logger, query string) bool {
	search := s.config.Search

	if err := s.surface.Navigate(ctx, search.BaseURL); err != nil {
		log.WithError(err).Error("Could not open search page")
		return false
	}

	s.DismissConsent(ctx)

	if err := s.surface.Submit(ctx, search.QuerySelector, query); err != nil {
		log.WithError(err).Error("Could not submit query")
		return false
	}

	s.waiter(s.config.Timing.QuerySettle).Wait(ctx, s.surface.Ready)
	return true
}

func (s *Scraper) extractLinks(ctx context.Context) ([]string, error) {
	html, base, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	return extract.Links(html, base), nil
}

func (s *Scraper) extractImages(ctx context.Context) ([]string, error) {
	html, base, err := s.document(ctx)
	if err != nil {
		return nil, err
	}
	return extract.Images(html, base), nil
}

// document returns the page HTML and the URL relative references resolve against
func (s *Scraper) document(ctx context.Context) (string, string, error) {
	html, err := s.surface.HTML(ctx)
	if err != nil {
		return "", "", err
	}
	base, err := s.surface.Location(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("Location unavailable, keeping absolute references only")
		base = ""
	}
	return html, base, nil
}

func (s *Scraper) waiter(delay time.Duration) *traversal.Waiter {
	t := s.config.Timing
	return &traversal.Waiter{
		Delay:        delay,
		Readiness:    t.Readiness,
		MaxWait:      t.MaxWait,
		PollInterval: t.PollInterval,
	}
}

func (s *Scraper) controller(settle time.Duration, log logger.Logger) *traversal.Controller {
	return traversal.NewController(
		s.waiter(settle),
		s.waiter(s.config.Timing.ScrollSettle),
		s.config.Traversal.MaxCycles,
		log.WithField("component", "traversal"),
	)
}
