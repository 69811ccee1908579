// Command snid-identify implements the single "identify" CLI surface of
// spec.md §6: classify one spectrum against a template library and write
// result artifacts to an output directory.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	snidconfig "github.com/cwbudde/snid-go/internal/config"
	"github.com/cwbudde/snid-go/internal/grid"
	"github.com/cwbudde/snid-go/internal/pipeline"
	"github.com/cwbudde/snid-go/internal/preprocess"
	"github.com/cwbudde/snid-go/internal/report"
	"github.com/cwbudde/snid-go/internal/snidtypes"
	"github.com/cwbudde/snid-go/internal/specio"
	"github.com/cwbudde/snid-go/internal/template"
)

type flags struct {
	outputDir string
	minimal   bool
	complete  bool

	zmin, zmax     float64
	rlapmin, lapmin float64
	forcedRedshift float64
	forcedSet      bool

	savgolWindow int
	savgolFWHM   float64
	savgolOrder  int
	abandRemove  bool
	skyclip      bool
	emclipZ      float64
	emwidth      float64
	apodizePct   float64
	wavelengthMasks []string

	ageMin, ageMax float64
	ageMinSet, ageMaxSet bool

	typeFilter      []string
	templateFilter  []string
	excludeTemplates []string

	peakWindowSize     int
	maxOutputTemplates int

	configFile string
	verbose    bool
}

func main() {
	f := &flags{}

	root := &cobra.Command{
		Use:   "identify <spectrum_path> [templates_dir]",
		Short: "Classify a supernova spectrum against a template library",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args, f)
		},
	}
	root.SilenceUsage = true

	registerFlags(root, f)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func registerFlags(root *cobra.Command, f *flags) {
	root.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "output directory (required)")
	root.Flags().BoolVar(&f.minimal, "minimal", false, "write only the .output summary")
	root.Flags().BoolVar(&f.complete, "complete", false, "write full diagnostic artifacts")

	root.Flags().Float64Var(&f.zmin, "zmin", -0.01, "minimum redshift to search")
	root.Flags().Float64Var(&f.zmax, "zmax", 1.0, "maximum redshift to search")
	root.Flags().Float64Var(&f.rlapmin, "rlapmin", 5.0, "minimum rlap to admit a match")
	root.Flags().Float64Var(&f.lapmin, "lapmin", 0.3, "minimum overlap fraction to admit a match")
	root.Flags().Float64Var(&f.forcedRedshift, "forced-redshift", 0, "skip the redshift search and evaluate only this z")

	root.Flags().IntVar(&f.savgolWindow, "savgol-window", 0, "Savitzky-Golay window in pixels (0 disables)")
	root.Flags().Float64Var(&f.savgolFWHM, "savgol-fwhm", 0, "Savitzky-Golay window in Å FWHM (0 disables)")
	root.Flags().IntVar(&f.savgolOrder, "savgol-order", 3, "Savitzky-Golay polynomial order")
	root.Flags().BoolVar(&f.abandRemove, "aband-remove", false, "clip the telluric A-band")
	root.Flags().BoolVar(&f.skyclip, "skyclip", false, "clip fixed sky emission lines")
	root.Flags().Float64Var(&f.emclipZ, "emclip-z", -1, "host emission-line clip redshift (-1 disables)")
	root.Flags().Float64Var(&f.emwidth, "emwidth", 40, "host emission-line clip width in Å")
	root.Flags().Float64Var(&f.apodizePct, "apodize-percent", 10, "cosine taper percent of the active range")
	root.Flags().StringSliceVar(&f.wavelengthMasks, "wavelength-masks", nil, "WMIN:WMAX ranges to drop")

	root.Flags().Float64Var(&f.ageMin, "age-min", 0, "minimum template age in days")
	root.Flags().Float64Var(&f.ageMax, "age-max", 0, "maximum template age in days")
	root.Flags().StringSliceVar(&f.typeFilter, "type-filter", nil, "template type whitelist")
	root.Flags().StringSliceVar(&f.templateFilter, "template-filter", nil, "template name whitelist")
	root.Flags().StringSliceVar(&f.excludeTemplates, "exclude-templates", nil, "template name blacklist")

	root.Flags().IntVar(&f.peakWindowSize, "peak-window-size", 10, "correlation peak search window in bins")
	root.Flags().IntVar(&f.maxOutputTemplates, "max-output-templates", 10, "maximum templates in filtered_matches")

	root.Flags().Bool("save-plots", false, "accepted for compatibility; plotting is external")
	root.Flags().StringVar(&f.configFile, "config", "", "optional YAML defaults file")
	root.Flags().BoolVar(&f.verbose, "verbose", false, "verbose structured logging")

	root.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f.outputDir == "" {
			return fmt.Errorf("--output-dir is required")
		}
		if f.minimal && f.complete {
			return fmt.Errorf("--minimal and --complete are mutually exclusive")
		}
		f.forcedSet = cmd.Flags().Changed("forced-redshift")
		f.ageMinSet = cmd.Flags().Changed("age-min")
		f.ageMaxSet = cmd.Flags().Changed("age-max")
		return nil
	}
}

func run(ctx context.Context, args []string, f *flags) error {
	level := zerolog.InfoLevel
	if f.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	spectrumPath := args[0]
	templatesDir := "templates"
	if len(args) == 2 {
		templatesDir = args[1]
	}

	masks, err := parseWavelengthMasks(f.wavelengthMasks)
	if err != nil {
		return err
	}

	cliFile := buildCLIOverrides(f)
	fileCfg, err := snidconfig.Load(f.configFile)
	if err != nil {
		return err
	}
	resolved := snidconfig.Merge(fileCfg, cliFile)
	resolved.Preprocess.WavelengthMasks = masks

	if f.forcedSet {
		z := f.forcedRedshift
		resolved.Preprocess.ForcedRedshift = &z
		resolved.Correlate.ForcedRedshift = &z
	}

	logger.Debug().Str("spectrum", spectrumPath).Str("templates", templatesDir).Msg("starting identify")

	g := grid.NewDefault()

	raw, err := readSpectrum(spectrumPath)
	if err != nil {
		return fmt.Errorf("reading spectrum failed: %w", err)
	}

	store, err := template.Open(templatesDir, g)
	if err != nil {
		return fmt.Errorf("loading templates failed: %w", err)
	}

	filter := buildFilter(f)

	verbosity := report.Minimal
	if f.complete {
		verbosity = report.Complete
	}

	progressCB := func(message string, fraction float64) {
		logger.Info().Float64("progress", fraction).Msg(message)
	}

	opts := pipeline.Options{
		Grid:     g,
		Store:    store,
		Filter:   filter,
		Config:   resolved,
		Progress: progressCB,
	}
	if f.forcedSet {
		z := f.forcedRedshift
		opts.ForcedRedshift = &z
	}

	ar, err := pipeline.Run(ctx, raw, opts)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(spectrumPath), filepath.Ext(spectrumPath))
	if err := report.WriteAll(f.outputDir, name, ar, verbosity); err != nil {
		return fmt.Errorf("writing output failed: %w", err)
	}

	logger.Info().Str("consensus_type", ar.ConsensusType).Float64("redshift", ar.Redshift).Msg("identify complete")
	return nil
}

func readSpectrum(path string) (snidtypes.RawSpectrum, error) {
	if strings.EqualFold(filepath.Ext(path), ".fits") || strings.EqualFold(filepath.Ext(path), ".fit") {
		return specio.ReadFITS(path)
	}
	return specio.ReadASCII(path, false)
}

func buildCLIOverrides(f *flags) *snidconfig.File {
	cf := &snidconfig.File{
		ZMin: &f.zmin, ZMax: &f.zmax, RlapMin: &f.rlapmin, LapMin: &f.lapmin,
		SavgolOrder: &f.savgolOrder, ABandRemove: &f.abandRemove, SkyClip: &f.skyclip,
		EmclipZ: &f.emclipZ, Emwidth: &f.emwidth, ApodizePct: &f.apodizePct,
		PeakWindowSize: &f.peakWindowSize, MaxOutputTemplates: &f.maxOutputTemplates,
	}
	if f.savgolWindow > 0 {
		cf.SavgolWindow = &f.savgolWindow
	}
	if f.savgolFWHM > 0 {
		cf.SavgolFWHM = &f.savgolFWHM
	}
	return cf
}

func buildFilter(f *flags) template.Filter {
	filter := template.Filter{
		TypeWhitelist:    f.typeFilter,
		NameWhitelist:    f.templateFilter,
		NameBlacklist:    f.excludeTemplates,
	}
	if f.ageMinSet || f.ageMaxSet {
		filter.Age = template.AgeRange{Set: true, Min: f.ageMin, Max: f.ageMax}
	}
	return filter
}

func parseWavelengthMasks(specs []string) ([]preprocess.WavelengthMask, error) {
	var out []preprocess.WavelengthMask
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid wavelength mask %q, expected WMIN:WMAX", s)
		}
		minV, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid wavelength mask %q: %w", s, err)
		}
		maxV, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid wavelength mask %q: %w", s, err)
		}
		out = append(out, preprocess.WavelengthMask{Min: minV, Max: maxV})
	}
	return out, nil
}
