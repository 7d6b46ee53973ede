package domain

import "time"

// MailKind is the bundle of a stored mail content record.
type MailKind string

const (
	MailKindEmail MailKind = "email"
)

// MessageFormatBasicHTML is the text format private messages are stored with.
const MessageFormatBasicHTML = "basic_html"

// MailContent is the stored subject/body of a bulk mail job.
type MailContent struct {
	ID        string    `json:"id"`
	Kind      MailKind  `json:"kind"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	ReplyTo   string    `json:"reply_to"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *MailContent) IsEmail() bool {
	return c.Kind == MailKindEmail
}

// User is the subset of an account record the mail worker needs.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Langcode string `json:"langcode"`
}

// DisplayName falls back to the email address for accounts without a name.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Recipient is a resolved mail destination.
type Recipient struct {
	Email       string
	Langcode    string
	DisplayName string
	UserID      string
}

// Thread is a private message conversation between a fixed set of users.
type Thread struct {
	ID        string
	MemberIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrivateMessage is a single message posted into a Thread.
type PrivateMessage struct {
	ID        string
	OwnerID   string
	Body      string
	Format    string
	CreatedAt time.Time
}

// BatchProgress tracks how many queue items of a scheduled job remain.
type BatchProgress struct {
	BatchID       string
	MailContentID string
	Total         int
	Remaining     int
	CreatedAt     time.Time
}
