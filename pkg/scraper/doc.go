// Package scraper sequences the search workflows.
//
// A Scraper borrows one Surface (a live browser tab) and runs three
// workflows over it:
//
//   - CollectLinks submits a query and follows the next-page control,
//     scrolling each page to stability before extracting anchors.
//   - CollectImages submits a query, opens the image results view and
//     scrolls the grid until no new image appears.
//   - CollectImagesFromURLs visits a list of pages and gathers their images.
//
// Interaction failures never escape a workflow. They are logged and the
// workflow returns whatever it collected, which may be nothing.
// DownloadImages hands a collected set to the materializer.
//
// Usage:
//
//	session, err := browser.Launch(cfg.Browser, log)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	s, err := scraper.New(session, nil, cfg, log)
//	links := s.CollectLinks(ctx, "golang")
package scraper
