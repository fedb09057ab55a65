package ml

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"edutrack/internal/features"
)

func trainDay(n int) time.Time {
	return time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// studentExample fabricates one labeled student with the given attendance
// rate, exam score, and overdue share.
func studentExample(id string, attendanceRate, score, overdueShare float64, droppedOut bool) LabeledStudent {
	rec := features.StudentRecords{StudentID: id}
	for i := 0; i < 20; i++ {
		present := float64(i) < attendanceRate*20
		rec.Attendance = append(rec.Attendance, features.AttendanceRecord{Date: trainDay(i), Present: present})
	}
	for i := 0; i < 4; i++ {
		rec.Exams = append(rec.Exams, features.ExamRecord{
			Date:          trainDay(i * 7),
			MarksObtained: score,
			TotalMarks:    100,
		})
	}
	rec.Fees = append(rec.Fees, features.FeeRecord{
		DueDate:    trainDay(5),
		AmountDue:  1000,
		AmountPaid: 1000 - overdueShare*1000,
		Overdue:    overdueShare > 0,
	})
	return LabeledStudent{Records: rec, DroppedOut: droppedOut}
}

// separableDataset produces a cleanly separable cohort: half thriving, half
// clearly at risk.
func separableDataset(n int) []LabeledStudent {
	var out []LabeledStudent
	for i := 0; i < n/2; i++ {
		out = append(out, studentExample(
			fmt.Sprintf("ok-%d", i), 0.95, 85-float64(i%5), 0, false))
	}
	for i := 0; i < n/2; i++ {
		out = append(out, studentExample(
			fmt.Sprintf("risk-%d", i), 0.35, 20+float64(i%5), 0.8, true))
	}
	return out
}

func TestTrain_TooFewExamples(t *testing.T) {
	t.Parallel()

	trainer := NewTrainer(DefaultTrainerConfig(), features.NewExtractor(features.DefaultOptions()))
	if _, err := trainer.Train(separableDataset(8)); err == nil {
		t.Fatal("expected error for undersized dataset")
	}
}

func TestTrain_SkipsUnusableExamples(t *testing.T) {
	t.Parallel()

	data := separableDataset(6)
	for i := 0; i < 10; i++ {
		data = append(data, LabeledStudent{
			Records: features.StudentRecords{StudentID: fmt.Sprintf("empty-%d", i)},
		})
	}

	trainer := NewTrainer(DefaultTrainerConfig(), features.NewExtractor(features.DefaultOptions()))
	if _, err := trainer.Train(data); err == nil {
		t.Fatal("empty students must not count toward the minimum")
	}
}

func TestTrain_ProducesStagedArtifact(t *testing.T) {
	t.Parallel()

	trainer := NewTrainer(DefaultTrainerConfig(), features.NewExtractor(features.DefaultOptions()))
	artifact, err := trainer.Train(separableDataset(40))
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if artifact.State != StateStaged {
		t.Errorf("state = %v, want staged", artifact.State)
	}
	if artifact.Version == "" {
		t.Error("artifact version is empty")
	}
	if artifact.SchemaVersion != features.SchemaVersion {
		t.Errorf("schema version = %d, want %d", artifact.SchemaVersion, features.SchemaVersion)
	}
	if len(artifact.Scaler.Means) != features.NumFields || len(artifact.Scaler.Stds) != features.NumFields {
		t.Error("scaler parameter length mismatch")
	}
	if len(artifact.Logistic.Weights) != features.NumFields {
		t.Error("logistic weight length mismatch")
	}
	if len(artifact.Forest.Trees) != DefaultTrainerConfig().Trees {
		t.Errorf("forest size = %d, want %d", len(artifact.Forest.Trees), DefaultTrainerConfig().Trees)
	}
	if artifact.Trained.HoldoutSamples == 0 || artifact.Trained.TrainingSamples == 0 {
		t.Errorf("split sizes = %d/%d, want both non-zero",
			artifact.Trained.TrainingSamples, artifact.Trained.HoldoutSamples)
	}
	if auc := artifact.Trained.HoldoutAUC; auc < 0.5 || auc > 1 {
		t.Errorf("holdout AUC = %v, want within [0.5, 1] on separable data", auc)
	}
}

func TestTrain_ModelSeparatesCohorts(t *testing.T) {
	t.Parallel()

	extractor := features.NewExtractor(features.DefaultOptions())
	trainer := NewTrainer(DefaultTrainerConfig(), extractor)
	artifact, err := trainer.Train(separableDataset(40))
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	p := NewPredictor(nil)
	p.Swap(artifact)

	risky, err := extractor.Extract(studentExample("risky-case", 0.3, 15, 0.9, true).Records)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	healthy, err := extractor.Extract(studentExample("healthy-case", 0.98, 90, 0, false).Records)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	riskPred, err := p.Predict(risky)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	okPred, err := p.Predict(healthy)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if riskPred.Probability <= okPred.Probability {
		t.Errorf("at-risk probability %v should exceed healthy probability %v",
			riskPred.Probability, okPred.Probability)
	}
}

func TestTrain_ReproducibleWithSeed(t *testing.T) {
	t.Parallel()

	data := separableDataset(40)
	cfg := DefaultTrainerConfig()
	extractor := features.NewExtractor(features.DefaultOptions())

	a, err := NewTrainer(cfg, extractor).Train(data)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	b, err := NewTrainer(cfg, extractor).Train(data)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	if !reflect.DeepEqual(a.Logistic, b.Logistic) {
		t.Error("logistic parameters differ across seeded runs")
	}
	if !reflect.DeepEqual(a.Forest, b.Forest) {
		t.Error("forest parameters differ across seeded runs")
	}
	if !reflect.DeepEqual(a.Scaler, b.Scaler) {
		t.Error("scaler parameters differ across seeded runs")
	}
	if a.Trained.HoldoutAUC != b.Trained.HoldoutAUC {
		t.Errorf("holdout AUC differs: %v vs %v", a.Trained.HoldoutAUC, b.Trained.HoldoutAUC)
	}
}

func TestAUCScore(t *testing.T) {
	t.Parallel()

	// Perfect ranking.
	if got := aucScore([]float64{0.1, 0.2, 0.8, 0.9}, []float64{0, 0, 1, 1}); got != 1 {
		t.Errorf("perfect ranking AUC = %v, want 1", got)
	}
	// Inverted ranking.
	if got := aucScore([]float64{0.9, 0.8, 0.2, 0.1}, []float64{0, 0, 1, 1}); got != 0 {
		t.Errorf("inverted ranking AUC = %v, want 0", got)
	}
	// Single-class holdout degrades to the uninformative score.
	if got := aucScore([]float64{0.4, 0.6}, []float64{1, 1}); got != 0.5 {
		t.Errorf("single-class AUC = %v, want 0.5", got)
	}
}

func TestTrain_VersionsAreUnique(t *testing.T) {
	t.Parallel()

	trainer := NewTrainer(DefaultTrainerConfig(), features.NewExtractor(features.DefaultOptions()))
	data := separableDataset(40)

	first, err := trainer.Train(data)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	second, err := trainer.Train(data)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if first.Version == second.Version {
		t.Errorf("back-to-back runs produced the same version %q", first.Version)
	}
}
