package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/qr-station/internal/station"
)

const bucketName = "scans"

// ErrNotFound is returned for scan ids that were never journaled
var ErrNotFound = errors.New("scan not found")

// Record is one submitted code and, once known, its outcome
type Record struct {
	ScanID      string     `json:"scan_id"`
	QRData      string     `json:"qr_data"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// BoltJournal keeps the journal in a bbolt file
type BoltJournal struct {
	db *bbolt.DB
}

// Open opens or creates the journal at path, creating its directory
func Open(path string) (*BoltJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltJournal{db: db}, nil
}

// RecordSubmission stores a new pending entry
func (j *BoltJournal) RecordSubmission(scanID, qrData string, at time.Time) error {
	return j.put(&Record{
		ScanID:      scanID,
		QRData:      qrData,
		Status:      station.StatusPending,
		SubmittedAt: at,
	})
}

// RecordResult stores the terminal outcome of a submission
func (j *BoltJournal) RecordResult(scanID string, status station.ScanStatus, at time.Time) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(scanID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, scanID)
		}

		var entry Record
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("unmarshaling entry: %w", err)
		}
		entry.Status = status.Status
		entry.Message = status.Message
		entry.CompletedAt = &at

		updated, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		return bucket.Put([]byte(scanID), updated)
	})
}

// Get retrieves an entry by scan id
func (j *BoltJournal) Get(scanID string) (*Record, error) {
	var entry *Record
	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(scanID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, scanID)
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns all entries, oldest submission first
func (j *BoltJournal) List() ([]*Record, error) {
	entries := make([]*Record, 0)
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var entry Record
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling entry: %w", err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].SubmittedAt.Before(entries[b].SubmittedAt)
	})
	return entries, nil
}

// Close closes the database
func (j *BoltJournal) Close() error {
	return j.db.Close()
}

func (j *BoltJournal) put(entry *Record) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.ScanID), data)
	})
}
