// ABOUTME: Index descriptor catalog, keyed by name and by covered column
// ABOUTME: Backs pkg/query's lookup of which ART tree answers which scan

package catalog

import (
	"fmt"

	"github.com/nainya/artindex/pkg/storage"
)

// Prefixes for catalog storage.
const (
	PREFIX_INDEX        = uint32(100)
	PREFIX_INDEX_COLUMN = uint32(200) // Index by (column, indexName)
)

// Store manages index descriptors.
type Store struct {
	p *storage.Pager
}

// NewStore creates a new catalog store over p.
func NewStore(p *storage.Pager) *Store {
	return &Store{p: p}
}

// Register stores or replaces an index descriptor.
func (s *Store) Register(d *IndexDescriptor) error {
	tx := s.p.Begin()

	key := storage.EncodeKey(PREFIX_INDEX, []storage.Field{
		storage.NewBytesField([]byte(d.Name)),
	})

	columns := make([]byte, 0, 64)
	for i, c := range d.Columns {
		if i > 0 {
			columns = append(columns, ',')
		}
		columns = append(columns, []byte(c)...)
	}

	gate := int64(0)
	if d.GateEnabled {
		gate = 1
	}

	val := storage.EncodeFields([]storage.Field{
		storage.NewBytesField([]byte(d.Name)),
		storage.NewBytesField(columns),
		storage.NewInt64Field(gate),
		storage.NewInt64Field(d.RowCount),
		storage.NewTimeField(d.BuiltAt),
		storage.NewTimeField(d.CreatedAt),
		storage.NewTimeField(d.UpdatedAt),
	})
	tx.Set(key, val)

	for _, c := range d.Columns {
		colKey := storage.EncodeKey(PREFIX_INDEX_COLUMN, []storage.Field{
			storage.NewBytesField([]byte(c)),
			storage.NewBytesField([]byte(d.Name)),
		})
		tx.Set(colKey, []byte{})
	}

	return tx.Commit()
}

// Get retrieves an index descriptor by name.
func (s *Store) Get(name string) (*IndexDescriptor, error) {
	key := storage.EncodeKey(PREFIX_INDEX, []storage.Field{
		storage.NewBytesField([]byte(name)),
	})

	val, ok := s.p.Get(key)
	if !ok {
		return nil, fmt.Errorf("catalog: index not found: %s", name)
	}

	vals, err := storage.DecodeFields(val)
	if err != nil {
		return nil, err
	}
	return parseDescriptor(vals)
}

// ByColumn returns every index descriptor that covers column, in name
// order.
func (s *Store) ByColumn(column string) ([]*IndexDescriptor, error) {
	startKey := storage.EncodeKey(PREFIX_INDEX_COLUMN, []storage.Field{
		storage.NewBytesField([]byte(column)),
	})

	var results []*IndexDescriptor
	var firstErr error

	s.p.Scan(startKey, func(key, _ []byte) bool {
		vals, err := storage.ExtractFields(key)
		if err != nil || len(vals) < 2 {
			return true
		}
		if string(vals[0].Str) != column {
			return false
		}

		name := string(vals[1].Str)
		d, err := s.Get(name)
		if err != nil {
			firstErr = err
			return false
		}
		results = append(results, d)
		return true
	})

	return results, firstErr
}

// Delete removes an index descriptor and its column entries.
func (s *Store) Delete(name string) error {
	d, err := s.Get(name)
	if err != nil {
		return err
	}

	tx := s.p.Begin()

	key := storage.EncodeKey(PREFIX_INDEX, []storage.Field{
		storage.NewBytesField([]byte(name)),
	})
	tx.Del(key)

	for _, c := range d.Columns {
		colKey := storage.EncodeKey(PREFIX_INDEX_COLUMN, []storage.Field{
			storage.NewBytesField([]byte(c)),
			storage.NewBytesField([]byte(name)),
		})
		tx.Del(colKey)
	}

	return tx.Commit()
}

func parseDescriptor(vals []storage.Field) (*IndexDescriptor, error) {
	if len(vals) < 7 {
		return nil, fmt.Errorf("catalog: incomplete index descriptor")
	}

	var columns []string
	if len(vals[1].Str) > 0 {
		cur := vals[1].Str
		start := 0
		for i, b := range cur {
			if b == ',' {
				columns = append(columns, string(cur[start:i]))
				start = i + 1
			}
		}
		columns = append(columns, string(cur[start:]))
	}

	return &IndexDescriptor{
		Name:        string(vals[0].Str),
		Columns:     columns,
		GateEnabled: vals[2].I64 != 0,
		RowCount:    vals[3].I64,
		BuiltAt:     vals[4].Time,
		CreatedAt:   vals[5].Time,
		UpdatedAt:   vals[6].Time,
	}, nil
}
