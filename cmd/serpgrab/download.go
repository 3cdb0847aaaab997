package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"serpgrab/pkg/fetch"
	"serpgrab/pkg/logger"
	"serpgrab/pkg/manifest"
	"serpgrab/pkg/materialize"
	"serpgrab/pkg/ratelimit"
	"serpgrab/pkg/ui"
)

// downloadCmd materializes the references of a saved manifest
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the images listed in a manifest",
	Long: `Download every image reference in a manifest written by 'images' or 'urls'.
Inline data: images are decoded, remote images are fetched. Failures are
recorded per image in the manifest and do not stop the batch.`,
	Example: `  serpgrab download --from ./images.json --output ./photos`,
	RunE:    runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVar(&fromManifest, "from", "", "manifest to download from (required)")
	downloadCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	downloadCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "remote downloads per minute per host (0 is unlimited)")
	downloadCmd.MarkFlagRequired("from")
}

func runDownload(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(fromManifest)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, downloadFlags(cmd))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	log := logger.GetLogger()
	client := fetch.NewClient(cfg.Download.Timeout, cfg.Download.UserAgent, log)
	mat := materialize.New(client, ratelimit.PerMinute(cfg.Download.RequestsPerMinute), log)

	ui.PrintInfo("Manifest", fromManifest)
	ui.PrintInfo("Output", cfg.Download.OutputDirectory)
	recordOutcomes(m, mat.Materialize(ctx, m.References, cfg.Download.OutputDirectory))

	return manifest.Save(fromManifest, m)
}

// recordOutcomes stores outcomes on m and prints a summary
func recordOutcomes(m *manifest.Manifest, outcomes []materialize.Outcome) {
	m.Downloads = make([]manifest.Download, 0, len(outcomes))
	for _, o := range outcomes {
		d := manifest.Download{Index: o.Index, Path: o.Path, Bytes: o.Bytes}
		if o.Err != nil {
			d.Error = o.Err.Error()
		}
		m.Downloads = append(m.Downloads, d)
	}

	sum := materialize.Summarize(outcomes)
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d of %d (%d inline, %d remote, %d bytes)",
		sum.Succeeded, sum.Total, sum.Inline, sum.Remote, sum.Bytes))
	if sum.Failed > 0 {
		ui.PrintWarning("Failed downloads", sum.Failed)
		for _, o := range outcomes {
			if !o.Succeeded() {
				ui.PrintWarning(fmt.Sprintf("  #%d", o.Index), o.Err)
			}
		}
	}
}
