package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"edutrack/internal/cfg"
	"edutrack/internal/features"
	"edutrack/internal/metrics"
	"edutrack/internal/ml"
	"edutrack/internal/store"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		datasetPath = flag.String("dataset", "dataset.jsonl", "Path to labeled training data (JSON lines)")
		promote     = flag.Bool("promote", true, "Attempt promotion through the quality gate after training")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	fmt.Println("=== Training Configuration ===")
	fmt.Printf("Dataset: %s\n", *datasetPath)
	fmt.Printf("Data Path: %s\n", c.DataPath)
	fmt.Printf("Holdout Fraction: %.2f\n", c.HoldoutFraction)
	fmt.Printf("Seed: %d\n", c.TrainingSeed)
	fmt.Printf("Forest: %d trees, depth %d\n", c.Trees, c.MaxDepth)
	fmt.Printf("Promote: %v (tolerance %.3f)\n", *promote, c.PromotionTolerance)
	fmt.Println("==============================")

	examples, err := loadDataset(*datasetPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *datasetPath).Msg("dataset load failed")
	}
	log.Info().Int("examples", len(examples)).Msg("dataset loaded")

	extractor := features.NewExtractor(features.Options{
		RecentExams:   c.RecentExams,
		AttemptCap:    c.AttemptCap,
		FailThreshold: c.FailThreshold,
	})

	trainer := ml.NewTrainer(ml.TrainerConfig{
		HoldoutFraction: c.HoldoutFraction,
		Seed:            c.TrainingSeed,
		Epochs:          c.Epochs,
		LearningRate:    c.LearningRate,
		L2:              c.L2,
		Trees:           c.Trees,
		MaxDepth:        c.MaxDepth,
		MinLeafSamples:  c.MinLeafSamples,
	}, extractor)

	artifact, err := trainer.Train(examples)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	fmt.Println("=== Training Result ===")
	fmt.Printf("Version: %s\n", artifact.Version)
	fmt.Printf("Training Samples: %d\n", artifact.Trained.TrainingSamples)
	fmt.Printf("Holdout Samples: %d\n", artifact.Trained.HoldoutSamples)
	fmt.Printf("Holdout AUC: %.4f\n", artifact.Trained.HoldoutAUC)
	fmt.Println("=======================")

	st, err := store.Open(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("store open failed")
	}
	defer st.Close()

	if !*promote {
		if err := st.SaveArtifact(artifact); err != nil {
			log.Fatal().Err(err).Msg("artifact save failed")
		}
		log.Info().Str("version", artifact.Version).Msg("artifact staged, promotion skipped")
		return
	}

	m := metrics.New()
	predictor := ml.NewPredictor(metrics.NewWrapper(m))
	promoter := ml.NewPromoter(st, predictor, c.PromotionTolerance, func(ev ml.LifecycleEvent) {
		log.Info().
			Str("version", ev.Version).
			Str("from", ev.From.String()).
			Str("to", ev.To.String()).
			Msg("model lifecycle transition")
	})

	if err := promoter.Promote(artifact); err != nil {
		var regression *ml.QualityRegressionError
		if errors.As(err, &regression) {
			m.PromotionsRejected.Inc()
			log.Error().
				Str("staged", regression.StagedVersion).
				Float64("staged_auc", regression.StagedMetric).
				Str("active", regression.ActiveVersion).
				Float64("active_auc", regression.ActiveMetric).
				Float64("tolerance", regression.Tolerance).
				Msg("promotion rejected by quality gate; active model unchanged")
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("promotion failed")
	}

	m.PromotionsTotal.Inc()
	log.Info().Str("version", artifact.Version).Msg("model promoted to active")
}

// loadDataset reads labeled training examples from a JSON-lines file.
func loadDataset(path string) ([]ml.LabeledStudent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var examples []ml.LabeledStudent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ex ml.LabeledStudent
		if err := json.Unmarshal(raw, &ex); err != nil {
			return nil, fmt.Errorf("dataset line %d: %w", line, err)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return examples, nil
}
