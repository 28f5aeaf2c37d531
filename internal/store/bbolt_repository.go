package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

var bucketRuns = []byte("runs")

type bboltRepository struct {
	db   *bolt.DB
	runs RunStore
}

func NewBboltRepository(path string) (Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := initBboltSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &bboltRepository{db: db, runs: &bboltRunStore{db: db}}, nil
}

func (r *bboltRepository) Runs() RunStore {
	return r.runs
}

func (r *bboltRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func initBboltSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
}

type bboltRunStore struct {
	db *bolt.DB
	mu sync.Mutex
}

func (s *bboltRunStore) SaveRun(state types.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(state.RunID) == "" {
		return errors.New("run state requires run_id")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return errors.New("runs bucket missing")
		}
		return b.Put([]byte(state.RunID), raw)
	})
}

func (s *bboltRunStore) GetRun(runID string) (types.RunState, bool, error) {
	var (
		out types.RunState
		ok  bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(runID))
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return types.RunState{}, false, err
	}
	return out, ok, nil
}

// ListRuns returns archived runs, most recently started first.
func (s *bboltRunStore) ListRuns() ([]types.RunState, error) {
	out := make([]types.RunState, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var state types.RunState
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			out = append(out, state)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *bboltRunStore) RecentRuns(limit int) ([]types.RunState, error) {
	all, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *bboltRunStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		if b == nil {
			return errors.New("runs bucket missing")
		}
		key := []byte(runID)
		if b.Get(key) == nil {
			return ErrRunNotFound
		}
		return b.Delete(key)
	})
}
