package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	DataPath           string
	MetricsPort        int
	ThresholdsFile     string
	ConfigStoreURL     string
	RESTTimeout        time.Duration
	AssessInterval     time.Duration
	EventWorkers       int
	RecentExams        int
	AttemptCap         int
	FailThreshold      float64
	MLRedCutoff        float64
	MLYellowCutoff     float64
	PromotionTolerance float64
	HoldoutFraction    float64
	TrainingSeed       int64
	Epochs             int
	LearningRate       float64
	L2                 float64
	Trees              int
	MaxDepth           int
	MinLeafSamples     int
}

type ConfigFile struct {
	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"system"`

	Thresholds struct {
		File           string `yaml:"file"`
		ConfigStoreURL string `yaml:"configStoreURL"`
	} `yaml:"thresholds"`

	Assessment struct {
		Interval       string  `yaml:"interval"`
		EventWorkers   int     `yaml:"eventWorkers"`
		MLRedCutoff    float64 `yaml:"mlRedCutoff"`
		MLYellowCutoff float64 `yaml:"mlYellowCutoff"`
	} `yaml:"assessment"`

	Features struct {
		RecentExams   int     `yaml:"recentExams"`
		AttemptCap    int     `yaml:"attemptCap"`
		FailThreshold float64 `yaml:"failThreshold"`
	} `yaml:"features"`

	Training struct {
		PromotionTolerance float64 `yaml:"promotionTolerance"`
		HoldoutFraction    float64 `yaml:"holdoutFraction"`
		Seed               int64   `yaml:"seed"`
		Epochs             int     `yaml:"epochs"`
		LearningRate       float64 `yaml:"learningRate"`
		L2                 float64 `yaml:"l2"`
		Trees              int     `yaml:"trees"`
		MaxDepth           int     `yaml:"maxDepth"`
		MinLeafSamples     int     `yaml:"minLeafSamples"`
	} `yaml:"training"`
}

func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = 5 * time.Second
	}

	assessInterval, err := time.ParseDuration(config.Assessment.Interval)
	if err != nil {
		assessInterval = time.Hour
	}

	settings := Settings{
		DataPath:           getEnvOrDefault("DATA_PATH", config.System.DataPath),
		MetricsPort:        getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort, 8080),
		ThresholdsFile:     getEnvOrDefault("THRESHOLDS_FILE", config.Thresholds.File),
		ConfigStoreURL:     getEnvOrDefault("CONFIG_STORE_URL", config.Thresholds.ConfigStoreURL),
		RESTTimeout:        restTimeout,
		AssessInterval:     assessInterval,
		EventWorkers:       getIntFromEnvOrConfig("EVENT_WORKERS", config.Assessment.EventWorkers, 4),
		RecentExams:        getIntFromEnvOrConfig("RECENT_EXAMS", config.Features.RecentExams, 6),
		AttemptCap:         getIntFromEnvOrConfig("ATTEMPT_CAP", config.Features.AttemptCap, 10),
		FailThreshold:      getFloatFromEnvOrConfig("FAIL_THRESHOLD", config.Features.FailThreshold, 40),
		MLRedCutoff:        getFloatFromEnvOrConfig("ML_RED_CUTOFF", config.Assessment.MLRedCutoff, 0.7),
		MLYellowCutoff:     getFloatFromEnvOrConfig("ML_YELLOW_CUTOFF", config.Assessment.MLYellowCutoff, 0.4),
		PromotionTolerance: getFloatFromEnvOrConfig("PROMOTION_TOLERANCE", config.Training.PromotionTolerance, 0.01),
		HoldoutFraction:    getFloatFromEnvOrConfig("HOLDOUT_FRACTION", config.Training.HoldoutFraction, 0.2),
		TrainingSeed:       getInt64FromEnvOrConfig("TRAINING_SEED", config.Training.Seed, 42),
		Epochs:             getIntFromEnvOrConfig("EPOCHS", config.Training.Epochs, 500),
		LearningRate:       getFloatFromEnvOrConfig("LEARNING_RATE", config.Training.LearningRate, 0.1),
		L2:                 getFloatFromEnvOrConfig("L2_PENALTY", config.Training.L2, 0.01),
		Trees:              getIntFromEnvOrConfig("FOREST_TREES", config.Training.Trees, 25),
		MaxDepth:           getIntFromEnvOrConfig("FOREST_MAX_DEPTH", config.Training.MaxDepth, 4),
		MinLeafSamples:     getIntFromEnvOrConfig("FOREST_MIN_LEAF", config.Training.MinLeafSamples, 2),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:           os.Getenv("DATA_PATH"), // optional, defaults to cwd
		MetricsPort:        getIntOrDefault("METRICS_PORT", 8080),
		ThresholdsFile:     os.Getenv("THRESHOLDS_FILE"),
		ConfigStoreURL:     os.Getenv("CONFIG_STORE_URL"),
		RESTTimeout:        getDurationOrDefault("REST_TIMEOUT", 5*time.Second),
		AssessInterval:     getDurationOrDefault("ASSESS_INTERVAL", time.Hour),
		EventWorkers:       getIntOrDefault("EVENT_WORKERS", 4),
		RecentExams:        getIntOrDefault("RECENT_EXAMS", 6),
		AttemptCap:         getIntOrDefault("ATTEMPT_CAP", 10),
		FailThreshold:      getFloatOrDefault("FAIL_THRESHOLD", 40),
		MLRedCutoff:        getFloatOrDefault("ML_RED_CUTOFF", 0.7),
		MLYellowCutoff:     getFloatOrDefault("ML_YELLOW_CUTOFF", 0.4),
		PromotionTolerance: getFloatOrDefault("PROMOTION_TOLERANCE", 0.01),
		HoldoutFraction:    getFloatOrDefault("HOLDOUT_FRACTION", 0.2),
		TrainingSeed:       getInt64OrDefault("TRAINING_SEED", 42),
		Epochs:             getIntOrDefault("EPOCHS", 500),
		LearningRate:       getFloatOrDefault("LEARNING_RATE", 0.1),
		L2:                 getFloatOrDefault("L2_PENALTY", 0.01),
		Trees:              getIntOrDefault("FOREST_TREES", 25),
		MaxDepth:           getIntOrDefault("FOREST_MAX_DEPTH", 4),
		MinLeafSamples:     getIntOrDefault("FOREST_MIN_LEAF", 2),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}
