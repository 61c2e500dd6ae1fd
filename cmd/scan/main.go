package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/bookreel/bookreel/internal/cache"
	"github.com/bookreel/bookreel/internal/catalog"
	"github.com/bookreel/bookreel/internal/database"
	"github.com/bookreel/bookreel/internal/identify"
)

func main() {
	var (
		videoPath  = flag.String("video", "", "Input video path")
		coversDir  = flag.String("covers", "./covers", "Directory of catalog cover images")
		cacheDir   = flag.String("cache-dir", "./cache", "Directory for cached frame images")
		dbPath     = flag.String("db", "./bookreel.db", "Path to the sqlite database")
		stride     = flag.Int("stride", 30, "Keyframe sampling stride")
		histThresh = flag.Float64("hist-thresh", 0.3, "Keyframe histogram distance threshold")
		sigDist    = flag.Int("sig-dist", identify.DefaultSignatureDistance, "Max signature Hamming distance for candidates")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *videoPath == "" {
		fmt.Fprintln(os.Stderr, "usage: scan -video input.mp4 [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cat, err := catalog.Load(*coversDir, log)
	if err != nil {
		log.Fatal("Failed to load catalog: ", err)
	}
	defer cat.Close()

	db, err := database.NewDB(*dbPath)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer db.Close()

	store, err := cache.NewStore(db, *cacheDir, log)
	if err != nil {
		log.Fatal("Failed to initialize result cache: ", err)
	}

	comparer := identify.NewComparer()
	defer comparer.Close()

	scanner := identify.NewScanner(cat, comparer, store, identify.ScannerOptions{
		Stride:            *stride,
		HistThreshold:     *histThresh,
		SignatureDistance: *sigDist,
	}, log)

	results, err := scanner.Scan(context.Background(), *videoPath)
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	for _, res := range results {
		fmt.Printf("%s -> %s (confidence %.0f, %d good matches)\n",
			res.SourceName, res.TargetName, res.Confidence, res.GoodMatches)
	}
	fmt.Printf("%d keyframes matched\n", len(results))
}
