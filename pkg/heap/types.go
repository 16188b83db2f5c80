// ABOUTME: Row heap data model
// ABOUTME: A row is an opaque payload addressed by the ART's row id

package heap

import "time"

// Row is a materialized record retrieved by row id.
type Row struct {
	ID        int64
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
