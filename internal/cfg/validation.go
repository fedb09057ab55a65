package cfg

import "fmt"

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.MetricsPort < 1 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1 and 65535, got %d", settings.MetricsPort)
	}

	if settings.EventWorkers < 1 {
		return fmt.Errorf("event workers must be at least 1, got %d", settings.EventWorkers)
	}

	if settings.RecentExams < 1 {
		return fmt.Errorf("recent exams window must be at least 1, got %d", settings.RecentExams)
	}

	if settings.AttemptCap < 1 {
		return fmt.Errorf("attempt cap must be at least 1, got %d", settings.AttemptCap)
	}

	if settings.FailThreshold < 0 || settings.FailThreshold > 100 {
		return fmt.Errorf("fail threshold must be between 0 and 100, got %.2f", settings.FailThreshold)
	}

	if settings.MLRedCutoff <= 0 || settings.MLRedCutoff > 1 {
		return fmt.Errorf("ML red cutoff must be in (0, 1], got %.3f", settings.MLRedCutoff)
	}

	if settings.MLYellowCutoff <= 0 || settings.MLYellowCutoff > 1 {
		return fmt.Errorf("ML yellow cutoff must be in (0, 1], got %.3f", settings.MLYellowCutoff)
	}

	if settings.MLYellowCutoff >= settings.MLRedCutoff {
		return fmt.Errorf("ML yellow cutoff (%.3f) must be below red cutoff (%.3f)",
			settings.MLYellowCutoff, settings.MLRedCutoff)
	}

	if settings.PromotionTolerance < 0 || settings.PromotionTolerance > 0.5 {
		return fmt.Errorf("promotion tolerance must be between 0 and 0.5, got %.3f", settings.PromotionTolerance)
	}

	if settings.HoldoutFraction <= 0 || settings.HoldoutFraction >= 1 {
		return fmt.Errorf("holdout fraction must be in (0, 1), got %.3f", settings.HoldoutFraction)
	}

	if settings.Epochs < 1 {
		return fmt.Errorf("epochs must be at least 1, got %d", settings.Epochs)
	}

	if settings.LearningRate <= 0 || settings.LearningRate > 10 {
		return fmt.Errorf("learning rate must be in (0, 10], got %.4f", settings.LearningRate)
	}

	if settings.L2 < 0 {
		return fmt.Errorf("L2 penalty must be non-negative, got %.4f", settings.L2)
	}

	if settings.Trees < 1 {
		return fmt.Errorf("forest size must be at least 1, got %d", settings.Trees)
	}

	if settings.MaxDepth < 1 {
		return fmt.Errorf("forest max depth must be at least 1, got %d", settings.MaxDepth)
	}

	if settings.MinLeafSamples < 1 {
		return fmt.Errorf("forest min leaf samples must be at least 1, got %d", settings.MinLeafSamples)
	}

	return nil
}
