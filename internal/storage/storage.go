// Package storage provides the persistent prediction log. It uses BoltDB as
// the underlying storage engine and keeps one record per prediction request,
// keyed by time so that range queries are a single cursor scan.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DBFile is the database file created inside the data directory.
	DBFile = "predictions.db"

	predictionsBucket = "predictions" // Bucket name for prediction records
)

// ErrReadOnly is returned by write operations on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("storage: store is read-only")

// PredictionRecord is one entry of the prediction log.
type PredictionRecord struct {
	RequestID      string          `json:"request_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Source         string          `json:"source,omitempty"` // "http" or "ws"
	Success        bool            `json:"success"`
	PredictedPrice *float64        `json:"predicted_price,omitempty"`
	Error          string          `json:"error,omitempty"`
	Fallbacks      []string        `json:"fallbacks,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Store provides persistent storage for prediction records using BoltDB.
type Store struct {
	db       *bbolt.DB // BoltDB database instance
	readOnly bool
}

// New opens (creating if needed) the prediction log inside dataPath.
// Returns an error if the database cannot be opened or the bucket cannot be created.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing database file for inspection. It fails while
// another process holds the database open for writing.
func OpenReadOnly(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db, readOnly: true}, nil
}

// Close closes the database connection. Closing twice is safe.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction appends a record. A zero Timestamp is replaced by the current time.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		return b.Put(recordKey(rec.Timestamp, rec.RequestID), data)
	})
}

// GetPredictions returns records with timestamps in [start, end], oldest first.
func (s *Store) GetPredictions(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()

		startKey := timeKey(start)
		endKey := append(timeKey(end), '_', 0xff)

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Recent returns up to limit of the newest records, newest first.
func (s *Store) Recent(limit int) ([]PredictionRecord, error) {
	var records []PredictionRecord
	if limit <= 0 {
		return records, nil
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(predictionsBucket)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// timeKey renders t as fixed-width decimal nanoseconds so that byte order
// matches time order. Times before the epoch clamp to zero.
func timeKey(t time.Time) []byte {
	nanos := t.UnixNano()
	if nanos < 0 {
		nanos = 0
	}
	return []byte(fmt.Sprintf("%020d", nanos))
}

func recordKey(t time.Time, requestID string) []byte {
	return append(append(timeKey(t), '_'), requestID...)
}
