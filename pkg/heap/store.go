// ABOUTME: Append-only row heap, the materialization step after an index scan
// ABOUTME: Direct Pager operations, no secondary indexes — rows are opaque

package heap

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nainya/artindex/pkg/storage"
)

// PREFIX_ROW is the page-store key prefix for row payloads.
const PREFIX_ROW = uint32(6000)

// Store manages row payloads keyed by the row id the ART index resolves
// to. It has no concept of hierarchy or secondary indexing — that lives
// one layer up, in the indexes ART trees point into.
type Store struct {
	p      *storage.Pager
	nextID atomic.Int64
}

// Open creates a row heap store over p, scanning the existing rows once
// to resume row id allocation after the highest id already in use.
func Open(p *storage.Pager) (*Store, error) {
	s := &Store{p: p}

	startKey := storage.EncodeKey(PREFIX_ROW, nil)
	var maxID int64 = -1
	p.Scan(startKey, func(key, _ []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_ROW {
			return false
		}
		vals, err := storage.ExtractFields(key)
		if err != nil || len(vals) < 1 {
			return true
		}
		if vals[0].I64 > maxID {
			maxID = vals[0].I64
		}
		return true
	})
	s.nextID.Store(maxID + 1)

	return s, nil
}

// Append stores data under a freshly allocated row id and returns it.
func (s *Store) Append(data []byte) (int64, error) {
	id := s.nextID.Add(1) - 1

	now := time.Now()
	key := rowKey(id)
	val := storage.EncodeFields([]storage.Field{
		storage.NewBytesField(data),
		storage.NewTimeField(now),
		storage.NewTimeField(now),
	})

	tx := s.p.Begin()
	tx.Set(key, val)
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Get materializes the row stored under id.
func (s *Store) Get(id int64) (*Row, error) {
	val, ok := s.p.Get(rowKey(id))
	if !ok {
		return nil, fmt.Errorf("heap: row not found: %d", id)
	}
	return parseRow(id, val)
}

// Put overwrites the row stored under id, for an already-allocated id
// (e.g. a row whose columns changed but whose identity did not).
func (s *Store) Put(id int64, data []byte) error {
	existing, ok := s.p.Get(rowKey(id))
	createdAt := time.Now()
	if ok {
		if row, err := parseRow(id, existing); err == nil {
			createdAt = row.CreatedAt
		}
	}

	val := storage.EncodeFields([]storage.Field{
		storage.NewBytesField(data),
		storage.NewTimeField(createdAt),
		storage.NewTimeField(time.Now()),
	})

	tx := s.p.Begin()
	tx.Set(rowKey(id), val)
	return tx.Commit()
}

// Delete removes the row stored under id. Deleting does not reclaim the
// row id while this Store stays open. The highest allocated id is not
// persisted, though: Open resumes after the highest id still stored, so
// if the deleted row held the highest id, that id is allocated again
// after a reopen.
func (s *Store) Delete(id int64) error {
	tx := s.p.Begin()
	tx.Del(rowKey(id))
	return tx.Commit()
}

// Scan visits every row with id >= start, in ascending id order, until
// fn returns false.
func (s *Store) Scan(start int64, fn func(row *Row) bool) error {
	startKey := rowKey(start)

	var scanErr error
	s.p.Scan(startKey, func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_ROW {
			return false
		}
		vals, err := storage.ExtractFields(key)
		if err != nil || len(vals) < 1 {
			scanErr = err
			return false
		}

		row, err := parseRow(vals[0].I64, val)
		if err != nil {
			scanErr = err
			return false
		}
		return fn(row)
	})

	return scanErr
}

func rowKey(id int64) []byte {
	return storage.EncodeKey(PREFIX_ROW, []storage.Field{
		storage.NewInt64Field(id),
	})
}

func parseRow(id int64, val []byte) (*Row, error) {
	vals, err := storage.DecodeFields(val)
	if err != nil {
		return nil, err
	}
	if len(vals) < 3 {
		return nil, fmt.Errorf("heap: incomplete row %d", id)
	}
	return &Row{
		ID:        id,
		Data:      vals[0].Str,
		CreatedAt: vals[1].Time,
		UpdatedAt: vals[2].Time,
	}, nil
}
