package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"lesionpatch/pkg/config"
	"lesionpatch/pkg/dataset"
	"lesionpatch/pkg/export"
	"lesionpatch/pkg/store"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	envFile := flag.String("env", ".env", "Environment file with LESIONPATCH_* overrides (optional)")
	datasetDir := flag.String("dataset", "", "Dataset directory with the lesion table and patient folders")
	query := flag.String("query", "", "Comma separated modality query words, e.g. ADC,t2_tse_tra")
	patchSize := flag.Int("size", 0, "Patch side length in pixels")
	outputDir := flag.String("out", "", "Directory to write patches and manifests to")
	writeDefault := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	flag.Parse()

	if *writeDefault != "" {
		if err := config.CreateDefaultConfigFile(*writeDefault); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeDefault)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.LoadEnv(cfg, *envFile); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	// Flags take precedence over file and environment
	if *datasetDir != "" {
		cfg.Dataset.Root = *datasetDir
	}
	if *query != "" {
		cfg.Extraction.QueryWords = config.SplitList(*query)
	}
	if *patchSize > 0 {
		cfg.Extraction.PatchSize = *patchSize
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	logger := log.Default()
	if !cfg.Output.Verbose {
		logger = log.New(io.Discard, "", 0)
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if cfg.Dataset.LesionsFile != "" {
		storeOpts = append(storeOpts, store.WithLesionsFile(cfg.Dataset.LesionsFile))
	}
	if cfg.Dataset.Name != "" {
		storeOpts = append(storeOpts, store.WithName(cfg.Dataset.Name))
	}

	fmt.Println("Step 1: Indexing dataset...")
	src, err := store.Open(cfg.Dataset.Root, storeOpts...)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer src.Close()

	fmt.Printf("Step 2: Extracting %dpx patches for %s...\n",
		cfg.Extraction.PatchSize, strings.Join(cfg.Extraction.QueryWords, ", "))
	startTime := time.Now()
	data, err := dataset.GetTrainData(src, cfg.Extraction.QueryWords,
		dataset.WithPatchSize(cfg.Extraction.PatchSize),
		dataset.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Println("Step 3: Writing samples...")
	writer := export.NewWriter(cfg.Output.Dir, export.Options{
		WritePNG:      cfg.Output.WritePNG,
		PNGScale:      cfg.Output.PNGScale,
		WriteManifest: cfg.Output.WriteManifest,
		WriteParquet:  cfg.Output.WriteParquet,
	}, logger)
	summary, err := writer.Write(data)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	positives := 0
	for _, label := range data.Labels {
		if label {
			positives++
		}
	}
	anomalies := map[dataset.AnomalyKind]int{}
	for _, a := range data.Anomalies {
		anomalies[a.Kind]++
	}

	fmt.Printf("\nExtraction completed in %.2f seconds (run %s)\n", processingTime.Seconds(), summary.RunID)
	fmt.Printf("Samples: %d (%d clinically significant)\n", data.Len(), positives)
	fmt.Printf("Skipped: %d duplicate pairs, %d out-of-bounds lesions, %d incomplete lesions, %d empty pairs\n",
		anomalies[dataset.DuplicatePair], anomalies[dataset.OutOfBounds],
		anomalies[dataset.MissingModalities], anomalies[dataset.EmptyPair])
	if summary.PNGs > 0 {
		fmt.Printf("PNG patches: %d\n", summary.PNGs)
	}
	if summary.Manifest != "" {
		fmt.Printf("Manifest: %s\n", summary.Manifest)
	}
	if summary.Parquet != "" {
		fmt.Printf("Parquet: %s\n", summary.Parquet)
	}
}
