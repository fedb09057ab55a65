package assess

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"edutrack/internal/features"
)

// StudentError pairs a failed student with the error, so one student's bad
// data never aborts the rest of a batch.
type StudentError struct {
	StudentID string
	Err       error
}

func (e StudentError) Error() string { return e.StudentID + ": " + e.Err.Error() }

func (e StudentError) Unwrap() error { return e.Err }

// AssessBatch assesses many students against the same config and model
// snapshots. Failures are collected per student and returned alongside the
// successes; the batch never aborts early except on context cancellation.
func (a *Assessor) AssessBatch(ctx context.Context, batch []features.StudentRecords, now time.Time) ([]Assessment, []StudentError) {
	results := make([]Assessment, 0, len(batch))
	var failures []StudentError

	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			for _, rest := range batch[len(results)+len(failures):] {
				failures = append(failures, StudentError{StudentID: rest.StudentID, Err: err})
			}
			break
		}

		out, err := a.Assess(rec, now)
		if err != nil {
			failures = append(failures, StudentError{StudentID: rec.StudentID, Err: err})
			if errors.Is(err, features.ErrInsufficientData) {
				log.Debug().Str("student_id", rec.StudentID).Msg("skipping student with no assessable data")
			} else {
				log.Warn().Err(err).Str("student_id", rec.StudentID).Msg("assessment failed")
			}
			continue
		}
		results = append(results, out)
	}

	return results, failures
}
