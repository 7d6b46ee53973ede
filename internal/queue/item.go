package queue

import "time"

// Item is a claimed row of the persistent queue table.
// Workers decode Data into a domain.QueueItem; the row ID is what gets
// deleted once the item has been consumed.
type Item struct {
	ID      int64
	Name    string
	Data    []byte
	Created time.Time
	Expire  *time.Time
}
