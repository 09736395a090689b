package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"placesweep/internal/config"
	"placesweep/internal/export"
	"placesweep/internal/logging"
	"placesweep/internal/store"
)

var (
	exportFormats []string
	exportOut     string
	exportName    string
)

// exportCmd writes the store to files or an index
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored places (ndjson, json, csv, geojson, xlsx, elastic)",
	Example: `  placesweep export --format ndjson,csv
  placesweep export --format geojson --out ./out --name berlin`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringSliceVarP(&exportFormats, "format", "f", nil, "Formats to write (default: export.formats)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output directory (default: export.output_dir)")
	exportCmd.Flags().StringVar(&exportName, "name", "places", "Base file name")
}

// newRegistry returns the file writers plus the elastic sink when requested.
func newRegistry(cfg *config.Config, formats []string) (*export.Registry, error) {
	reg := export.NewRegistry()
	for _, f := range formats {
		if !strings.EqualFold(strings.TrimSpace(f), "elastic") {
			continue
		}
		es, err := export.NewElastic(export.ElasticConfig{
			URL:   cfg.Export.ElasticURL,
			Index: cfg.Export.ElasticIndex,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(es)
		break
	}
	return reg, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	formats := exportFormats
	if len(formats) == 0 {
		formats = cfg.Export.Formats
	}
	dir := exportOut
	if dir == "" {
		dir = cfg.Export.OutputDir
	}

	reg, err := newRegistry(cfg, formats)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := commandContext()
	defer cancel()

	results, err := export.WriteAll(ctx, reg, st, formats, dir, exportName)
	if err != nil {
		return err
	}

	audit := logging.Audit("")
	for _, r := range results {
		audit.Export(r.Format, r.Target, r.Count)
		logger.Info("Exported", zap.String("format", r.Format), zap.String("target", r.Target), zap.Int("count", r.Count))
		fmt.Printf("%-8s %6d places -> %s\n", r.Format, r.Count, r.Target)
	}
	return nil
}
