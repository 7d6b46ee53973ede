package domain

import "time"

// MailJobRequest is the inbound payload that schedules a bulk mail job.
type MailJobRequest struct {
	MailContentID string         `json:"mail_id" validate:"required"`
	UserIDs       []string       `json:"user_ids" validate:"dive,required"`
	RawRecipients []RawRecipient `json:"addresses" validate:"dive"`
	ChunkSize     int            `json:"chunk_size,omitempty"`
}

// ScheduledJob describes the queue items created for a MailJobRequest.
type ScheduledJob struct {
	BatchID       string    `json:"batch_id" yaml:"batch_id"`
	MailContentID string    `json:"mail_id" yaml:"mail_id"`
	Items         int       `json:"items" yaml:"items"`
	Recipients    int       `json:"recipients" yaml:"recipients"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}
