// Package notifier sends the mails described by one queue item and tells the
// job owner, through a private message, when the last item of a batch is done.
package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/mailer"
	"github.com/notifyhub/user-mail-queue/internal/repository"
)

var validate = validator.New()

// Options are the deployment-specific settings of a BatchMailNotifier.
type Options struct {
	// DefaultLangcode is used for raw addresses and for users whose stored
	// language tag does not parse.
	DefaultLangcode string
	// SystemSenderID is the account completion messages are sent from.
	SystemSenderID string
}

// Hooks carries the metric callbacks injected by main. All are optional.
type Hooks struct {
	OnDelivered      func(langcode string)
	OnDeliveryFailed func()
	OnBatchCompleted func()
}

// BatchMailNotifier processes one queue item per call. It holds no mutable
// state, so a single instance can serve every worker goroutine.
type BatchMailNotifier struct {
	store    repository.EntityStore
	mail     mailer.Sender
	detector LastItemDetector
	messages repository.MessageRepository
	opts     Options
	hooks    Hooks
	logger   *zap.Logger
}

// New builds a notifier. detector decides batch completion and messages
// stores the owner notification. An empty opts.DefaultLangcode means English;
// nil hooks are no-ops.
func New(
	store repository.EntityStore,
	mail mailer.Sender,
	detector LastItemDetector,
	messages repository.MessageRepository,
	opts Options,
	logger *zap.Logger,
	hooks Hooks,
) *BatchMailNotifier {
	if hooks.OnDelivered == nil {
		hooks.OnDelivered = func(string) {}
	}
	if hooks.OnDeliveryFailed == nil {
		hooks.OnDeliveryFailed = func() {}
	}
	if hooks.OnBatchCompleted == nil {
		hooks.OnBatchCompleted = func() {}
	}
	if opts.DefaultLangcode == "" {
		opts.DefaultLangcode = language.English.String()
	}
	return &BatchMailNotifier{
		store: store, mail: mail, detector: detector, messages: messages,
		opts: opts, hooks: hooks, logger: logger,
	}
}

// ProcessItem sends every mail the item describes and, when it is the last
// item of its batch, notifies the batch owner.
//
// Nothing is returned as an error: invalid items and non-email content are
// skipped without side effects, and each delivery failure is recorded in the
// report while the remaining recipients are still attempted.
func (n *BatchMailNotifier) ProcessItem(ctx context.Context, item domain.QueueItem) domain.Report {
	report := domain.Report{MailContentID: item.MailContentID}
	log := n.logger.With(zap.String("mail_id", item.MailContentID))

	if err := item.Validate(); err != nil {
		log.Debug("skipping queue item", zap.Error(err))
		report.Skipped = domain.SkipInvalidItem
		return report
	}

	content, err := n.store.LoadMailContent(ctx, item.MailContentID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error("failed to load mail content", zap.Error(err))
		}
		report.Skipped = domain.SkipContentNotFound
		return report
	}
	if !content.IsEmail() {
		log.Debug("skipping queue item", zap.String("kind", string(content.Kind)))
		report.Skipped = domain.SkipWrongKind
		return report
	}

	for _, r := range n.userRecipients(ctx, item.UserIDs, log) {
		report.Deliveries = append(report.Deliveries, n.deliver(ctx, r, content, log))
	}

	for _, raw := range item.RawRecipients {
		if !IsValidEmail(raw.Email) {
			report.InvalidAddresses = append(report.InvalidAddresses, raw.Email)
			continue
		}
		r := domain.Recipient{Email: raw.Email, Langcode: n.opts.DefaultLangcode, DisplayName: raw.DisplayName}
		report.Deliveries = append(report.Deliveries, n.deliver(ctx, r, content, log))
	}

	if n.detector.IsLastItem(ctx, item) {
		report.LastItem = true
		report.Notified = n.NotifyOwner(ctx, content.OwnerID, content.Subject)
		n.hooks.OnBatchCompleted()
	}

	log.Info("queue item processed",
		zap.Int("delivered", report.Delivered()),
		zap.Int("failed", report.Failed()),
		zap.Int("invalid_addresses", len(report.InvalidAddresses)),
		zap.Bool("last_item", report.LastItem),
	)
	return report
}

// userRecipients resolves user ids in the order given. Ids without an
// account are dropped, matching a batch load that omits missing records.
func (n *BatchMailNotifier) userRecipients(ctx context.Context, ids []string, log *zap.Logger) []domain.Recipient {
	if len(ids) == 0 {
		return nil
	}
	users, err := n.store.LoadUsers(ctx, ids)
	if err != nil {
		log.Error("failed to load users", zap.Int("count", len(ids)), zap.Error(err))
		return nil
	}

	recipients := make([]domain.Recipient, 0, len(users))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		recipients = append(recipients, domain.Recipient{
			Email:    u.Email,
			Langcode: n.langcode(u.Langcode),
			UserID:   u.ID,
		})
	}
	return recipients
}

func (n *BatchMailNotifier) deliver(ctx context.Context, r domain.Recipient, content *domain.MailContent, log *zap.Logger) domain.DeliveryResult {
	err := n.mail.Send(ctx, mailer.Message{
		Key:      mailer.KeyActionSendEmail,
		To:       r.Email,
		Langcode: r.Langcode,
		ReplyTo:  content.ReplyTo,
		Params: mailer.Params{
			Subject:     content.Subject,
			Message:     content.Message,
			DisplayName: r.DisplayName,
		},
	})
	if err != nil {
		log.Warn("mail delivery failed", zap.String("to", r.Email), zap.Error(err))
		n.hooks.OnDeliveryFailed()
	} else {
		n.hooks.OnDelivered(r.Langcode)
	}
	return domain.DeliveryResult{Recipient: r, Err: err}
}

// langcode canonicalises a stored language tag, falling back to the default.
func (n *BatchMailNotifier) langcode(tag string) string {
	if tag == "" {
		return n.opts.DefaultLangcode
	}
	t, err := language.Parse(tag)
	if err != nil {
		return n.opts.DefaultLangcode
	}
	return t.String()
}

// NotifyOwner posts the completion message from the system sender to the
// owner. It reports whether a thread was found to post into; persistence
// failures after that point are logged and not retried. A message that
// failed to save is not appended to the thread.
func (n *BatchMailNotifier) NotifyOwner(ctx context.Context, ownerID, subject string) bool {
	log := n.logger.With(zap.String("owner_id", ownerID))
	if subject == "" {
		return false
	}

	owner, ok := n.loadUser(ctx, ownerID, log)
	if !ok {
		return false
	}
	sender, ok := n.loadUser(ctx, n.opts.SystemSenderID, log)
	if !ok {
		log.Warn("system sender account missing", zap.String("sender_id", n.opts.SystemSenderID))
		return false
	}

	thread, err := n.messages.ThreadForMembers(ctx, []string{sender.ID, owner.ID})
	if err != nil {
		log.Error("failed to resolve message thread", zap.Error(err))
		return false
	}

	msg := &domain.PrivateMessage{
		OwnerID:   sender.ID,
		Body:      ComposeCompletionMessage(owner.DisplayName(), subject),
		Format:    domain.MessageFormatBasicHTML,
		CreatedAt: time.Now().UTC(),
	}

	// An unsaved message cannot be referenced by the thread.
	if err := n.messages.SaveMessage(ctx, msg); err != nil {
		log.Error("failed to save completion message, not appending it to the thread",
			zap.String("thread_id", thread.ID), zap.Error(err))
		return true
	}
	if err := n.messages.AddMessage(ctx, thread.ID, msg.ID); err != nil {
		log.Error("failed to add completion message to thread",
			zap.String("thread_id", thread.ID), zap.Error(err))
	}
	return true
}

func (n *BatchMailNotifier) loadUser(ctx context.Context, id string, log *zap.Logger) (*domain.User, bool) {
	if id == "" {
		return nil, false
	}
	u, err := n.store.LoadUser(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error("failed to load user", zap.String("user_id", id), zap.Error(err))
		}
		return nil, false
	}
	return u, true
}

// IsValidEmail reports whether s is a syntactically valid address.
func IsValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
