package main

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bookreel/bookreel/internal/api"
	"github.com/bookreel/bookreel/internal/cache"
	"github.com/bookreel/bookreel/internal/catalog"
	"github.com/bookreel/bookreel/internal/database"
	"github.com/bookreel/bookreel/internal/identify"
	"github.com/bookreel/bookreel/internal/replace"
	"github.com/bookreel/bookreel/internal/storage"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	port := getEnv("PORT", "8080")
	uploadDir := getEnv("UPLOAD_DIR", "./uploads")
	outputDir := getEnv("OUTPUT_DIR", "./output")
	cacheDir := getEnv("CACHE_DIR", "./cache")
	dbPath := getEnv("DB_PATH", "./bookreel.db")
	coversDir := getEnv("COVERS_DIR", "./covers")
	trailersDir := getEnv("TRAILERS_DIR", "./trailers")

	maxSize, err := strconv.ParseInt(getEnv("MAX_UPLOAD_SIZE", "104857600"), 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_UPLOAD_SIZE: ", err)
	}

	opts := replace.Options{
		MinConfidence:        getEnvFloat(log, "MIN_CONFIDENCE", 10),
		Alpha:                getEnvFloat(log, "ALPHA", 0.7),
		Workers:              getEnvInt(log, "WORKERS", replace.DefaultWorkers),
		BatchSize:            getEnvInt(log, "BATCH_SIZE", replace.DefaultBatchSize),
		AllowTrailerFallback: os.Getenv("ALLOW_TRAILER_FALLBACK") == "true",
	}
	scanOpts := identify.ScannerOptions{
		Stride:            getEnvInt(log, "FRAME_STRIDE", 30),
		HistThreshold:     getEnvFloat(log, "HIST_THRESHOLD", 0.3),
		SignatureDistance: getEnvInt(log, "SIGNATURE_DISTANCE", identify.DefaultSignatureDistance),
		Alpha:             opts.Alpha,
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatal("Failed to create output directory: ", err)
	}

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		log.Fatal("Failed to initialize storage: ", err)
	}

	db, err := database.NewDB(dbPath)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	store, err := cache.NewStore(db, cacheDir, log)
	if err != nil {
		log.Fatal("Failed to initialize result cache: ", err)
	}

	cat, err := catalog.Load(coversDir, log)
	if err != nil {
		log.Fatal("Failed to load catalog: ", err)
	}
	defer cat.Close()

	trailers, err := catalog.LoadTrailers(trailersDir, opts.AllowTrailerFallback)
	if err != nil {
		log.Fatal("Failed to load trailers: ", err)
	}

	service := replace.NewService(cat, trailers, opts, log)

	app := &api.App{
		Log:           log,
		Storage:       localStorage,
		VideoRepo:     database.NewVideoRepository(db),
		Cache:         store,
		OutputDir:     outputDir,
		MaxUploadSize: maxSize,
		ReplaceFn:     service.Replace,
		ScanFn: func(ctx context.Context, videoPath string) ([]identify.MatchResult, error) {
			comparer := identify.NewComparer()
			defer comparer.Close()
			scanner := identify.NewScanner(cat, comparer, store, scanOpts, log)
			return scanner.Scan(ctx, videoPath)
		},
	}

	router := api.NewRouter(app)

	log.WithFields(logrus.Fields{
		"port":     port,
		"uploads":  uploadDir,
		"covers":   coversDir,
		"trailers": trailersDir,
		"db":       dbPath,
	}).Info("server starting")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(log *logrus.Logger, key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func getEnvFloat(log *logrus.Logger, key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return f
}
