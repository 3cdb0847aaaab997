package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"serpgrab/pkg/browser"
	"serpgrab/pkg/config"
	"serpgrab/pkg/logger"
	"serpgrab/pkg/manifest"
	"serpgrab/pkg/scraper"
	"serpgrab/pkg/ui"
)

var (
	// Collection flags
	manifestPath string
	noManifest   bool
	download     bool
	outputDir    string
	rateLimit    int
	fromManifest string
)

// linksCmd collects result links across every result page
var linksCmd = &cobra.Command{
	Use:   "links <query>",
	Short: "Collect result links for a search query",
	Long: `Search for a query and collect the link of every result across all result
pages. Pagination stops when the next-page control disappears.

The collected links are printed one per line and saved to a manifest that
'serpgrab urls --from' can read.`,
	Example: `  serpgrab links "golang websocket"
  serpgrab links "golang websocket" --manifest ./links.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLinks,
}

// imagesCmd collects image references from the image results view
var imagesCmd = &cobra.Command{
	Use:   "images <query>",
	Short: "Collect image references for a search query",
	Long: `Search for a query, switch to the image results view and scroll until no new
images appear. References may be remote URLs or inline data: images.`,
	Example: `  serpgrab images "eiffel tower"
  serpgrab images "eiffel tower" --download --output ./tower`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImages,
}

// urlsCmd collects images from a list of pages
var urlsCmd = &cobra.Command{
	Use:   "urls [url...]",
	Short: "Collect images from a list of pages",
	Long: `Visit each page, scroll it until its height stops growing and collect the
images it contains. Pages can be given as arguments or read from a links
manifest with --from. Pages that fail to load are skipped.`,
	Example: `  serpgrab urls https://example.com/a https://example.com/b
  serpgrab urls --from ~/.local/share/serpgrab/manifests/links-golang.json --download`,
	RunE: runURLs,
}

func init() {
	rootCmd.AddCommand(linksCmd, imagesCmd, urlsCmd)

	for _, cmd := range []*cobra.Command{linksCmd, imagesCmd, urlsCmd} {
		cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file to write (default is under the user data directory)")
		cmd.Flags().BoolVar(&noManifest, "no-manifest", false, "do not write a manifest")
	}
	for _, cmd := range []*cobra.Command{imagesCmd, urlsCmd} {
		cmd.Flags().BoolVarP(&download, "download", "d", false, "download the collected images")
		cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
		cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "remote downloads per minute per host (0 is unlimited)")
	}
	urlsCmd.Flags().StringVar(&fromManifest, "from", "", "read page URLs from a manifest")
}

func runLinks(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withScraper(cmd, nil, func(ctx context.Context, cfg *config.Config, s *scraper.Scraper) error {
		ui.PrintInfo("Query", query)
		links := s.CollectLinks(ctx, query)

		ui.PrintList(links)
		ui.PrintSuccess(fmt.Sprintf("Collected %d links", len(links)))
		return saveManifest(manifest.New(manifest.KindLinks, query, links))
	})
}

func runImages(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withScraper(cmd, downloadFlags(cmd), func(ctx context.Context, cfg *config.Config, s *scraper.Scraper) error {
		ui.PrintInfo("Query", query)
		images := s.CollectImages(ctx, query)
		ui.PrintSuccess(fmt.Sprintf("Collected %d images", len(images)))

		m := manifest.New(manifest.KindImages, query, images)
		if download {
			recordOutcomes(m, s.DownloadImages(ctx, images, cfg.Download.OutputDirectory))
		} else {
			ui.PrintList(images)
		}
		return saveManifest(m)
	})
}

func runURLs(cmd *cobra.Command, args []string) error {
	pages := append([]string{}, args...)
	if fromManifest != "" {
		src, err := manifest.Load(fromManifest)
		if err != nil {
			return err
		}
		pages = append(pages, src.References...)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no pages given: pass URLs as arguments or use --from")
	}

	return withScraper(cmd, downloadFlags(cmd), func(ctx context.Context, cfg *config.Config, s *scraper.Scraper) error {
		ui.PrintInfo("Pages", fmt.Sprintf("%d", len(pages)))
		images := s.CollectImagesFromURLs(ctx, pages)
		ui.PrintSuccess(fmt.Sprintf("Collected %d images", len(images)))

		m := manifest.New(manifest.KindURLs, "", images)
		m.Sources = pages
		if download {
			recordOutcomes(m, s.DownloadImages(ctx, images, cfg.Download.OutputDirectory))
		} else {
			ui.PrintList(images)
		}
		return saveManifest(m)
	})
}

// downloadFlags returns the download options the user set on cmd
func downloadFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("output") {
		flags["output"] = outputDir
	}
	if cmd.Flags().Changed("rate-limit") {
		flags["requests-per-minute"] = rateLimit
	}
	return flags
}

// withScraper launches a browser, runs fn with a scraper bound to it and
// closes the browser afterwards
func withScraper(cmd *cobra.Command, extra map[string]interface{}, fn func(ctx context.Context, cfg *config.Config, s *scraper.Scraper) error) error {
	cfg, err := loadConfig(cmd, extra)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	log := logger.GetLogger()
	session, err := browser.Launch(cfg.Browser, log)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer session.Close()

	s, err := scraper.New(session, nil, cfg, log)
	if err != nil {
		return err
	}

	if err := fn(ctx, cfg, s); err != nil {
		return err
	}
	if ctx.Err() != nil {
		ui.PrintWarning("Interrupted, results are partial")
	}
	return nil
}

// saveManifest writes m to --manifest or its default location
func saveManifest(m *manifest.Manifest) error {
	if noManifest {
		return nil
	}

	path := manifestPath
	if path == "" {
		var err error
		path, err = manifest.DefaultPath(m.Kind, manifestName(m))
		if err != nil {
			return fmt.Errorf("failed to resolve manifest path: %w", err)
		}
	}

	if err := manifest.Save(path, m); err != nil {
		return err
	}
	ui.PrintInfo("Manifest", path)
	return nil
}

func manifestName(m *manifest.Manifest) string {
	if m.Query != "" {
		return m.Query
	}
	return m.CreatedAt.Format("20060102-150405")
}
