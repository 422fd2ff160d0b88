// Package store persists sampler runs in a badger
// database.
//
// Each run is stored under its own key prefix:
//
//	run/<id>/model   serialized *trainhmm.Model
//	run/<id>/truth   serialized trainhmm.SwitchAssignment (optional)
//	run/<id>/chain   serialized *trainhmm.Chain
//	run/<id>/created unix nanoseconds
package store

import (
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/unixpickle/serializer"
	"github.com/unixpickle/trainhmm"
)

const runPrefix = "run/"

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidID is returned for run IDs which cannot be
	// embedded in a key.
	ErrInvalidID = errors.New("invalid run ID")
)

// A Run is one simulated scenario and the chain sampled
// from it.
type Run struct {
	ID      string
	Created time.Time

	Model *trainhmm.Model

	// Truth is the assignment the observations were
	// simulated with, if known.
	Truth trainhmm.SwitchAssignment

	Chain *trainhmm.Chain
}

// Store is a badger-backed collection of runs.
type Store struct {
	db *badger.DB
}

// Open opens the database in dir.
// If dir is empty, the database lives in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.MetricsEnabled = false
	if dir == "" {
		opts.InMemory = true
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %q", dir)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores r, assigning it a fresh ID and creation
// time if they are unset.
// IDs may not contain a slash.
// It returns the run's ID.
func (s *Store) SaveRun(r *Run) (string, error) {
	if r.Model == nil || r.Chain == nil {
		return "", errors.New("save run: model and chain are required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	} else if strings.Contains(r.ID, "/") {
		return "", errors.Wrapf(ErrInvalidID, "save run %q", r.ID)
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}

	entries := map[string]serializer.Serializer{
		"model": r.Model,
		"chain": r.Chain,
	}
	if r.Truth != nil {
		entries["truth"] = r.Truth
	}
	values := map[string][]byte{}
	for name, obj := range entries {
		data, err := serializer.SerializeAny(obj)
		if err != nil {
			return "", errors.Wrapf(err, "save run %s", r.ID)
		}
		values[name] = data
	}
	created, err := serializer.SerializeAny(int(r.Created.UnixNano()))
	if err != nil {
		return "", errors.Wrapf(err, "save run %s", r.ID)
	}
	values["created"] = created

	err = s.db.Update(func(txn *badger.Txn) error {
		for name, data := range values {
			if err := txn.Set(runKey(r.ID, name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "save run %s", r.ID)
	}
	return r.ID, nil
}

// LoadRun reads the run with the given ID.
func (s *Store) LoadRun(id string) (*Run, error) {
	r := &Run{ID: id}
	err := s.db.View(func(txn *badger.Txn) error {
		modelData, err := getValue(txn, runKey(id, "model"))
		if err != nil {
			return err
		}
		if err := serializer.DeserializeAny(modelData, &r.Model); err != nil {
			return err
		}

		chainData, err := getValue(txn, runKey(id, "chain"))
		if err != nil {
			return err
		}
		if err := serializer.DeserializeAny(chainData, &r.Chain); err != nil {
			return err
		}

		createdData, err := getValue(txn, runKey(id, "created"))
		if err != nil {
			return err
		}
		var created int
		if err := serializer.DeserializeAny(createdData, &created); err != nil {
			return err
		}
		r.Created = time.Unix(0, int64(created))

		truthData, err := getValue(txn, runKey(id, "truth"))
		if errors.Is(err, ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		return serializer.DeserializeAny(truthData, &r.Truth)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load run %s", id)
	}
	return r, nil
}

// ListRuns returns the IDs of all stored runs, sorted.
func (s *Store) ListRuns() ([]string, error) {
	ids := map[string]bool{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), runPrefix)
			if idx := strings.IndexByte(rest, '/'); idx > 0 {
				ids[rest[:idx]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	res := make([]string, 0, len(ids))
	for id := range ids {
		res = append(res, id)
	}
	sort.Strings(res)
	return res, nil
}

// DeleteRun removes a run.
// Deleting a missing run is not an error.
func (s *Store) DeleteRun(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, name := range []string{"model", "truth", "chain", "created"} {
			if err := txn.Delete(runKey(id, name)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrapf(err, "delete run %s", id)
}

func runKey(id, name string) []byte {
	return []byte(runPrefix + id + "/" + name)
}

func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "missing key %s", key)
	} else if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
