package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bookreel/bookreel/internal/catalog"
	"github.com/bookreel/bookreel/internal/replace"
)

func main() {
	var (
		videoPath     = flag.String("video", "", "Input video path")
		outputPath    = flag.String("out", "", "Output video path (default <video>_replaced.mp4)")
		coversDir     = flag.String("covers", "./covers", "Directory of catalog cover images")
		trailersDir   = flag.String("trailers", "./trailers", "Directory of trailer videos")
		minConf       = flag.Float64("min-conf", 10, "Minimum weighted identification confidence")
		alpha         = flag.Float64("alpha", 0.7, "Blend factor for composited frames")
		workers       = flag.Int("workers", replace.DefaultWorkers, "Worker pool size")
		batchSize     = flag.Int("batch", replace.DefaultBatchSize, "Frames per batch")
		allowFallback = flag.Bool("allow-fallback", false, "Pair an unmapped cover with the first available trailer")
		verbose       = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *videoPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replace -video input.mp4 [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	out := *outputPath
	if out == "" {
		out = strings.TrimSuffix(*videoPath, filepath.Ext(*videoPath)) + "_replaced.mp4"
	}

	cat, err := catalog.Load(*coversDir, log)
	if err != nil {
		log.Fatal("Failed to load catalog: ", err)
	}
	defer cat.Close()

	trailers, err := catalog.LoadTrailers(*trailersDir, *allowFallback)
	if err != nil {
		log.Fatal("Failed to load trailers: ", err)
	}

	service := replace.NewService(cat, trailers, replace.Options{
		MinConfidence:        *minConf,
		Alpha:                *alpha,
		Workers:              *workers,
		BatchSize:            *batchSize,
		AllowTrailerFallback: *allowFallback,
	}, log)

	result := service.Replace(*videoPath, out)
	if !result.Success {
		fmt.Fprintf(os.Stderr, "replacement failed after %v: %s\n", result.Elapsed, result.ErrorMessage)
		os.Exit(1)
	}

	fmt.Printf("Replaced cover %q in %d/%d frames\n", result.TargetBook, result.ReplacedFrames, result.TotalFrames)
	fmt.Printf("Output: %s (%v)\n", result.OutputPath, result.Elapsed)
}
