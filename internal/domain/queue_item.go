package domain

import "fmt"

// RawRecipient is an address without a user account behind it.
type RawRecipient struct {
	Email       string `json:"email_address" validate:"required,email"`
	DisplayName string `json:"display_name"`
}

// QueueItem is one fragment of a bulk mail job as stored in the queue.
// The JSON keys match the payload layout written by existing producers.
type QueueItem struct {
	MailContentID string         `json:"mail"`
	UserIDs       []string       `json:"users,omitempty"`
	RawRecipients []RawRecipient `json:"user_mail_addresses,omitempty"`
	BatchID       string         `json:"batch,omitempty"`
}

// Validate reports ErrInvalidItem unless the item names a mail content and
// at least one recipient source.
func (i *QueueItem) Validate() error {
	if i.MailContentID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrMissingMailID)
	}
	if len(i.UserIDs) == 0 && len(i.RawRecipients) == 0 {
		return fmt.Errorf("%w: no users or addresses", ErrInvalidItem)
	}
	return nil
}

// SkipReason explains why an item produced no mail.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipInvalidItem     SkipReason = "invalid_item"
	SkipContentNotFound SkipReason = "content_not_found"
	SkipWrongKind       SkipReason = "wrong_content_kind"
)

// DeliveryResult is the outcome of one mail send attempt.
type DeliveryResult struct {
	Recipient Recipient
	Err       error
}

func (r DeliveryResult) OK() bool { return r.Err == nil }

// Report summarises what processing a single queue item did.
type Report struct {
	MailContentID    string
	Skipped          SkipReason
	Deliveries       []DeliveryResult
	InvalidAddresses []string
	LastItem         bool
	Notified         bool
}

// Delivered counts successful sends.
func (r *Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.OK() {
			n++
		}
	}
	return n
}

// Failed counts sends the mail sender rejected.
func (r *Report) Failed() int {
	return len(r.Deliveries) - r.Delivered()
}
