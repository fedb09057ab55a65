// Package store provides persistent state for the risk engine using
// BoltDB: the model artifact registry with its single Active pointer, the
// append-only assessment log, and the model lifecycle event log.
//
// The registry's activate operation runs inside one write transaction, so
// a reader can never observe two Active artifacts or a half-performed
// swap.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"edutrack/internal/assess"
	"edutrack/internal/ml"
)

const (
	artifactsBucket   = "artifacts"    // version -> ModelArtifact JSON
	metaBucket        = "meta"         // active_version pointer
	assessmentsBucket = "assessments"  // studentID_tsnano -> Assessment JSON
	latestBucket      = "latest"       // studentID -> most recent Assessment JSON
	eventsBucket      = "model_events" // tsnano_version -> LifecycleEvent JSON
	activeVersionKey  = "active_version"
)

// Store wraps the engine database.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the engine database under dataPath.
func Open(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "edutrack.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{artifactsBucket, metaBucket, assessmentsBucket, latestBucket, eventsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveArtifact persists an artifact keyed by version.
func (s *Store) SaveArtifact(a *ml.ModelArtifact) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal artifact: %w", err)
		}
		return tx.Bucket([]byte(artifactsBucket)).Put([]byte(a.Version), data)
	})
}

// GetArtifact loads one artifact by version, or nil when absent.
func (s *Store) GetArtifact(version string) (*ml.ModelArtifact, error) {
	var out *ml.ModelArtifact
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(artifactsBucket)).Get([]byte(version))
		if data == nil {
			return nil
		}
		var a ml.ModelArtifact
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("unmarshal artifact %s: %w", version, err)
		}
		out = &a
		return nil
	})
	return out, err
}

// ListArtifacts returns every stored artifact.
func (s *Store) ListArtifacts() ([]ml.ModelArtifact, error) {
	var out []ml.ModelArtifact
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).ForEach(func(_, v []byte) error {
			var a ml.ModelArtifact
			if err := json.Unmarshal(v, &a); err != nil {
				return nil // skip malformed records
			}
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

// ActivateVersion promotes one artifact to Active and retires the previous
// Active in the same transaction, keeping exactly one Active at all times.
func (s *Store) ActivateVersion(version string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		artifacts := tx.Bucket([]byte(artifactsBucket))
		meta := tx.Bucket([]byte(metaBucket))

		data := artifacts.Get([]byte(version))
		if data == nil {
			return fmt.Errorf("artifact version %s not found", version)
		}
		var next ml.ModelArtifact
		if err := json.Unmarshal(data, &next); err != nil {
			return fmt.Errorf("unmarshal artifact %s: %w", version, err)
		}

		if prev := meta.Get([]byte(activeVersionKey)); prev != nil && string(prev) != version {
			if prevData := artifacts.Get(prev); prevData != nil {
				var old ml.ModelArtifact
				if err := json.Unmarshal(prevData, &old); err == nil {
					old.State = ml.StateRetired
					retired, err := json.Marshal(&old)
					if err != nil {
						return fmt.Errorf("marshal retired artifact: %w", err)
					}
					if err := artifacts.Put(prev, retired); err != nil {
						return err
					}
				}
			}
		}

		next.State = ml.StateActive
		updated, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal active artifact: %w", err)
		}
		if err := artifacts.Put([]byte(version), updated); err != nil {
			return err
		}
		return meta.Put([]byte(activeVersionKey), []byte(version))
	})
}

// ActiveArtifact returns the single Active artifact, or nil if none has
// been promoted yet.
func (s *Store) ActiveArtifact() (*ml.ModelArtifact, error) {
	var out *ml.ModelArtifact
	err := s.db.View(func(tx *bbolt.Tx) error {
		version := tx.Bucket([]byte(metaBucket)).Get([]byte(activeVersionKey))
		if version == nil {
			return nil
		}
		data := tx.Bucket([]byte(artifactsBucket)).Get(version)
		if data == nil {
			return fmt.Errorf("active version %s has no artifact record", version)
		}
		var a ml.ModelArtifact
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("unmarshal active artifact: %w", err)
		}
		out = &a
		return nil
	})
	return out, err
}

// AppendLifecycleEvent records a model state transition for audit.
func (s *Store) AppendLifecycleEvent(ev ml.LifecycleEvent) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal lifecycle event: %w", err)
		}
		key := fmt.Sprintf("%d_%s", ev.At.UnixNano(), ev.Version)
		return tx.Bucket([]byte(eventsBucket)).Put([]byte(key), data)
	})
}

// LifecycleEvents returns all recorded transitions in time order.
func (s *Store) LifecycleEvents() ([]ml.LifecycleEvent, error) {
	var out []ml.LifecycleEvent
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(eventsBucket)).ForEach(func(_, v []byte) error {
			var ev ml.LifecycleEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return nil
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}

// AppendAssessment stores an assessment in the append-only log and updates
// the per-student latest index used for risk-change detection.
func (s *Store) AppendAssessment(a assess.Assessment) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal assessment: %w", err)
		}
		key := fmt.Sprintf("%s_%d", a.StudentID, a.Timestamp.UnixNano())
		if err := tx.Bucket([]byte(assessmentsBucket)).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(latestBucket)).Put([]byte(a.StudentID), data)
	})
}

// LatestAssessment returns a student's most recent assessment, or nil.
func (s *Store) LatestAssessment(studentID string) (*assess.Assessment, error) {
	var out *assess.Assessment
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(latestBucket)).Get([]byte(studentID))
		if data == nil {
			return nil
		}
		var a assess.Assessment
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("unmarshal latest assessment for %s: %w", studentID, err)
		}
		out = &a
		return nil
	})
	return out, err
}

// AssessmentsInRange returns a student's assessments between start and end
// inclusive, oldest first.
func (s *Store) AssessmentsInRange(studentID string, start, end time.Time) ([]assess.Assessment, error) {
	var out []assess.Assessment
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(assessmentsBucket)).Cursor()
		prefix := []byte(studentID + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", studentID, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", studentID, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var a assess.Assessment
			if err := json.Unmarshal(v, &a); err != nil {
				continue // skip malformed records
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}
