package main

import (
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vango-dev/helmet/pkg/assets"
)

func assetsCmd() *cobra.Command {
	var (
		src string
		out string
	)

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Fingerprint static assets and write a manifest",
		Long: `Copy static assets into an output directory under content-hashed
names and write a manifest.json mapping source paths to the hashed ones.

Serve the output directory with any static file server or CDN, then
point the demo server at the manifest:

  helmet-demo assets --src=public --out=dist
  helmet-demo serve --manifest=dist/manifest.json

Head declarations that reference a mapped path, for example a stylesheet
link to /docs.css, are rewritten to the fingerprinted path before they
are deduplicated and mirrored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssets(src, out)
		},
	}

	cmd.Flags().StringVar(&src, "src", "public", "Directory containing source assets")
	cmd.Flags().StringVar(&out, "out", "dist", "Output directory for fingerprinted assets")

	return cmd
}

func runAssets(src, out string) error {
	m, err := assets.Fingerprint(src, out)
	if err != nil {
		return err
	}

	if err := m.Save(filepath.Join(out, "manifest.json")); err != nil {
		return err
	}

	entries := m.All()
	sources := make([]string, 0, len(entries))
	for source := range entries {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		info("%s -> %s", source, entries[source])
	}
	success("Fingerprinted %d assets into %s", m.Len(), out)

	return nil
}
