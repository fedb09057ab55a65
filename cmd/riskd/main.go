package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"edutrack/internal/assess"
	"edutrack/internal/cfg"
	"edutrack/internal/configstore"
	"edutrack/internal/features"
	"edutrack/internal/metrics"
	"edutrack/internal/ml"
	"edutrack/internal/rules"
	"edutrack/internal/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		rosterPath = flag.String("roster", "roster.jsonl", "Path to the student roster file (JSON lines)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	// Optional .env for local runs
	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	st, err := store.Open(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("store open failed")
	}
	defer st.Close()

	thresholds, err := loadThresholds(c)
	if err != nil {
		log.Fatal().Err(err).Msg("threshold config load failed")
	}

	engine, err := rules.NewEngine(thresholds)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid threshold config")
	}
	log.Info().Str("version", thresholds.Version).Msg("threshold config loaded")

	extractor := features.NewExtractorWithMetrics(features.Options{
		RecentExams:   c.RecentExams,
		AttemptCap:    c.AttemptCap,
		FailThreshold: c.FailThreshold,
	}, mw)

	predictor := ml.NewPredictor(mw)
	active, err := st.ActiveArtifact()
	if err != nil {
		log.Fatal().Err(err).Msg("active model artifact load failed")
	}
	if active == nil {
		log.Fatal().Msg("no active model artifact; train and promote one with trainctl first")
	}
	predictor.Swap(active)

	assessor := assess.New(extractor, engine, predictor,
		assess.MLCutoffs{Red: c.MLRedCutoff, Yellow: c.MLYellowCutoff}, mw)

	startMetricsServer(ctx, c)

	changes := make(chan assess.RiskChange, 64)

	var wg sync.WaitGroup
	startEventWorkers(ctx, &wg, c.EventWorkers, changes, m)
	startAssessmentLoop(ctx, &wg, c, *rosterPath, assessor, st, m, changes)

	waitForShutdown(ctx, cancel, &wg)
}

// loadThresholds resolves the threshold source: remote config store, then
// local file, then compiled-in defaults.
func loadThresholds(c cfg.Settings) (rules.ThresholdConfig, error) {
	if c.ConfigStoreURL != "" {
		client := configstore.New(c.ConfigStoreURL, c.RESTTimeout)
		return client.FetchThresholds()
	}
	if c.ThresholdsFile != "" {
		return rules.LoadThresholds(c.ThresholdsFile)
	}
	return rules.DefaultThresholds(), nil
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startEventWorkers fans risk-change events out to a small worker pool so a
// slow notification sink never stalls the assessment loop.
func startEventWorkers(ctx context.Context, wg *sync.WaitGroup, workers int, changes <-chan assess.RiskChange, m *metrics.Metrics) {
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ch := <-changes:
					m.RiskChangesTotal.Inc()
					ev := log.Info()
					if ch.Escalation() {
						ev = log.Warn()
					}
					ev.
						Str("student", ch.StudentID).
						Str("previous", ch.Previous.String()).
						Str("new", ch.New.String()).
						Str("model", ch.Assessment.ModelVersion).
						Msg("risk tier changed")
				}
			}
		}()
	}
}

// startAssessmentLoop runs one batch immediately, then on every tick.
func startAssessmentLoop(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, rosterPath string,
	assessor *assess.Assessor, st *store.Store, m *metrics.Metrics, changes chan<- assess.RiskChange,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.AssessInterval)
		defer ticker.Stop()

		runBatch(ctx, rosterPath, assessor, st, m, changes)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runBatch(ctx, rosterPath, assessor, st, m, changes)
			}
		}
	}()
}

func runBatch(ctx context.Context, rosterPath string, assessor *assess.Assessor,
	st *store.Store, m *metrics.Metrics, changes chan<- assess.RiskChange,
) {
	roster, err := loadRoster(rosterPath)
	if err != nil {
		log.Error().Err(err).Str("path", rosterPath).Msg("roster load failed")
		return
	}

	started := time.Now()
	assessments, failures := assessor.AssessBatch(ctx, roster, started.UTC())
	m.BatchDuration.Observe(time.Since(started).Seconds())

	for _, a := range assessments {
		previous, err := st.LatestAssessment(a.StudentID)
		if err != nil {
			log.Warn().Err(err).Str("student", a.StudentID).Msg("previous assessment lookup failed")
		}
		if err := st.AppendAssessment(a); err != nil {
			log.Error().Err(err).Str("student", a.StudentID).Msg("assessment persist failed")
			continue
		}
		if ch, ok := assess.DetectChange(previous, a); ok {
			select {
			case changes <- ch:
			case <-ctx.Done():
				return
			}
		}
	}

	log.Info().
		Int("assessed", len(assessments)).
		Int("failed", len(failures)).
		Dur("elapsed", time.Since(started)).
		Msg("assessment batch complete")
}

// loadRoster reads student records from a JSON-lines file, one student per line.
func loadRoster(path string) ([]features.StudentRecords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	var roster []features.StudentRecords
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec features.StudentRecords
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("roster line %d: %w", line, err)
		}
		roster = append(roster, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return roster, nil
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
