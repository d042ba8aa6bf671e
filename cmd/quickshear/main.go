package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/effigies/quickshear/internal/logging"
	"github.com/effigies/quickshear/pkg/config"
	"github.com/effigies/quickshear/pkg/deface"
	"github.com/effigies/quickshear/pkg/nifti"
	"github.com/effigies/quickshear/pkg/orientation"
	"github.com/effigies/quickshear/pkg/visualization"
)

const version = "1.0.0"

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [options] <anat_file> <mask_file> <defaced_file> [buffer]\n\n",
		filepath.Base(os.Args[0]))
	fmt.Fprintln(out, "Quickshear removes facial features from an anatomical image by shearing")
	fmt.Fprintln(out, "away everything below a plane derived from the subject's brain mask.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "quickshear.yaml", "Path to YAML configuration file")
	buffer := flag.Int("buffer", 10, "Buffer size in voxels between the shear line and the brain mask")
	hemi := flag.String("hemi", "R", "Hemisphere the first canonical axis points to (R or L)")
	previewFlag := flag.String("preview", "", "Write a midsagittal QC snapshot PNG to this path (%auto derives <output>_qc.png)")
	previewWidth := flag.Int("previewwidth", 512, "Pixel width of the QC snapshot")
	batchFile := flag.String("batch", "", "YAML batch manifest defacing several subjects in one run")
	workers := flag.Int("workers", 0, "Number of subjects defaced concurrently in batch mode (0 = automatic)")
	failFast := flag.Bool("fail-fast", false, "Stop a batch at the first failed subject")
	verbose := flag.Bool("verbose", false, "Print diagnostic detail while running")
	quiet := flag.Bool("quiet", false, "Suppress progress output, print only warnings and errors")
	noReport := flag.Bool("no-report", false, "Skip the defacing statistics report")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("quickshear %s\n", version)
		return
	}
	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration file: %v", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", *configPath)
		return
	}

	// Load the configuration file first, then let explicitly set flags
	// override individual values.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "buffer":
			cfg.Defacing.Buffer = *buffer
		case "hemi":
			cfg.Defacing.Hemisphere = *hemi
		case "preview":
			cfg.Preview.Enabled = *previewFlag != ""
		case "previewwidth":
			cfg.Preview.Width = *previewWidth
		case "workers":
			cfg.Batch.Workers = *workers
		case "fail-fast":
			cfg.Batch.ContinueOnError = !*failFast
		case "no-report":
			cfg.Output.Report = !*noReport
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level := logging.LevelInfo
	if cfg.Output.Verbose {
		level = logging.LevelDebug
	}
	if *quiet {
		level = logging.LevelWarning
	}
	logger := logging.New(os.Stdout, level)

	hemisphere, err := orientation.ParseHemisphere(cfg.Defacing.Hemisphere)
	if err != nil {
		log.Fatalf("Invalid hemisphere: %v", err)
	}
	params := &deface.Params{
		Buffer:     cfg.Defacing.Buffer,
		Hemisphere: hemisphere,
		Logger:     logger,
	}

	if *batchFile != "" {
		if flag.NArg() != 0 {
			log.Fatalf("Batch mode takes no positional arguments, got %d", flag.NArg())
		}
		if cfg.Preview.Enabled && *previewFlag != "" && *previewFlag != "%auto" {
			log.Fatalf("Batch previews need per-subject names; use -preview %%auto")
		}
		runBatchMode(*batchFile, cfg, params, logger)
		return
	}

	args := flag.Args()
	if len(args) < 3 || len(args) > 4 {
		flag.Usage()
		os.Exit(1)
	}
	anatPath, maskPath, outPath := args[0], args[1], args[2]
	if len(args) == 4 {
		// The optional positional buffer overrides both the config file
		// and the -buffer flag. Reject it before touching any image.
		b, err := strconv.Atoi(args[3])
		if err != nil || b < 0 {
			log.Fatalf("Invalid buffer value %q: must be a nonnegative integer", args[3])
		}
		params.Buffer = b
	}

	anat, err := nifti.Load(anatPath)
	if err != nil {
		log.Fatalf("Failed to load anatomical image: %v", err)
	}
	mask, err := nifti.Load(maskPath)
	if err != nil {
		log.Fatalf("Failed to load brain mask: %v", err)
	}

	result, err := deface.Run(anat, mask, params)
	if err != nil {
		log.Fatalf("Defacing failed: %v", err)
	}
	if err := anat.Save(outPath); err != nil {
		log.Fatalf("Failed to save defaced image: %v", err)
	}
	logger.Infof("Defaced file: %s", outPath)

	if cfg.Output.Report {
		result.Report.Log(logger)
	}
	if cfg.Preview.Enabled {
		path := previewTarget(*previewFlag, outPath)
		previewImg := visualization.NewPreview(anat.Volume, result.AnatFlips,
			result.Edges, result.Hull, result.Line)
		if err := previewImg.Save(path, cfg.Preview.Width); err != nil {
			logger.Warningf("failed to render preview: %v", err)
		} else {
			logger.Infof("QC snapshot: %s", path)
		}
	}
}

// runBatchMode defaces every subject listed in a YAML manifest. Reports and
// previews are produced after the pool has drained, so their output does not
// interleave between subjects.
func runBatchMode(path string, cfg *config.Config, params *deface.Params, logger *logging.Logger) {
	batch, err := deface.LoadBatch(path)
	if err != nil {
		log.Fatalf("Failed to load batch manifest: %v", err)
	}

	batchParams := &deface.BatchParams{
		Params:          *params,
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
	}
	results, runErr := deface.RunBatch(batch, batchParams)

	for _, res := range results {
		if res.Err != nil || res.Result == nil {
			continue
		}
		if cfg.Output.Report {
			logger.Infof("Subject %s:", res.Entry.Output)
			res.Result.Report.Log(logger)
		}
		if cfg.Preview.Enabled {
			path := previewTarget("%auto", res.Entry.Output)
			if err := savePreviewFromFile(res.Entry.Output, res.Result, path, cfg.Preview.Width); err != nil {
				logger.Warningf("failed to render preview for %s: %v", res.Entry.Output, err)
			} else {
				logger.Infof("QC snapshot: %s", path)
			}
		}
	}

	if runErr != nil {
		log.Fatalf("Batch failed: %v", runErr)
	}
}

// savePreviewFromFile renders a QC image for a subject defaced by a batch
// worker. The defaced volume is re-read from disk; batch results carry only
// the cut geometry, not the voxel data.
func savePreviewFromFile(outputPath string, result *deface.Result, path string, width int) error {
	img, err := nifti.Load(outputPath)
	if err != nil {
		return err
	}
	previewImg := visualization.NewPreview(img.Volume, result.AnatFlips,
		result.Edges, result.Hull, result.Line)
	return previewImg.Save(path, width)
}

// previewTarget resolves the QC snapshot path. An empty or "%auto" request
// places the snapshot next to the defaced output, replacing the NIfTI
// extension with a _qc.png suffix.
func previewTarget(request, outputPath string) string {
	if request != "" && request != "%auto" {
		return request
	}
	base := strings.TrimSuffix(outputPath, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	return base + "_qc.png"
}
