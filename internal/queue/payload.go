package queue

import (
	"encoding/json"
	"fmt"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

// ItemTypeMarker is the literal every mail payload contains. The last-item
// heuristic matches on it together with the mail content id.
const ItemTypeMarker = "mail"

// Encode serialises a queue item into the payload stored in the queue table.
func Encode(item domain.QueueItem) ([]byte, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode queue item: %w", err)
	}
	return b, nil
}

// Decode parses a stored payload. It does not validate the result.
func Decode(data []byte) (domain.QueueItem, error) {
	var item domain.QueueItem
	if err := json.Unmarshal(data, &item); err != nil {
		return domain.QueueItem{}, fmt.Errorf("%w: %w", domain.ErrUndecodablePayload, err)
	}
	return item, nil
}
