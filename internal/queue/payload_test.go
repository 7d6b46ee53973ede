package queue_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
)

func TestDecode_ExistingProducerLayout(t *testing.T) {
	data := []byte(`{"mail":"42","users":["7","9"],"user_mail_addresses":[{"email_address":"a@example.com","display_name":"A"}]}`)

	item, err := queue.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.MailContentID != "42" || len(item.UserIDs) != 2 || item.RawRecipients[0].DisplayName != "A" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := queue.Decode([]byte("a:2:{s:4:"))
	if !errors.Is(err, domain.ErrUndecodablePayload) {
		t.Fatalf("expected ErrUndecodablePayload, got %v", err)
	}
}

// TestEncode_ContainsMarker guards the last-item heuristic: every encoded
// payload must contain the item type marker and the mail content id.
func TestEncode_ContainsMarker(t *testing.T) {
	data, err := queue.Encode(domain.QueueItem{MailContentID: "42", UserIDs: []string{"7"}})
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, queue.ItemTypeMarker) || !strings.Contains(s, "42") {
		t.Fatalf("payload %s lacks marker or id", s)
	}
	if strings.Contains(s, "batch") {
		t.Fatalf("empty batch id should be omitted: %s", s)
	}
}
