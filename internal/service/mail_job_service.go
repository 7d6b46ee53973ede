package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/repository"
)

// MaxChunkSize bounds the number of recipients per queue item.
const MaxChunkSize = 1000

// MailJobService turns a bulk mail request into queue items.
// It is the producer side of the queue the workers consume.
type MailJobService struct {
	store     repository.EntityStore
	repo      repository.QueueRepository
	queueName string
	chunkSize int
	validate  *validator.Validate
	logger    *zap.Logger
	onJob     func()
}

func NewMailJobService(
	store repository.EntityStore,
	repo repository.QueueRepository,
	queueName string,
	chunkSize int,
	logger *zap.Logger,
	onJob func(),
) *MailJobService {
	if onJob == nil {
		onJob = func() {}
	}
	return &MailJobService{
		store: store, repo: repo, queueName: queueName, chunkSize: chunkSize,
		validate: validator.New(), logger: logger, onJob: onJob,
	}
}

// Schedule validates the request, splits recipients into chunks and stores
// every chunk as a queue item of one batch, together with the batch's
// remaining counter, in a single transaction.
func (s *MailJobService) Schedule(ctx context.Context, req domain.MailJobRequest) (*domain.ScheduledJob, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	content, err := s.store.LoadMailContent(ctx, req.MailContentID)
	if err != nil {
		return nil, fmt.Errorf("load mail content: %w", err)
	}
	if !content.IsEmail() {
		return nil, domain.ErrWrongContentKind
	}

	chunk := s.chunkSize
	if req.ChunkSize != 0 {
		chunk = req.ChunkSize
	}

	userIDs := dedupeUsers(req.UserIDs)
	raw := dedupeAddresses(req.RawRecipients)
	batchID := uuid.New().String()

	var items []domain.QueueItem
	for _, ids := range chunks(userIDs, chunk) {
		items = append(items, domain.QueueItem{MailContentID: content.ID, UserIDs: ids, BatchID: batchID})
	}
	for _, addrs := range chunks(raw, chunk) {
		items = append(items, domain.QueueItem{MailContentID: content.ID, RawRecipients: addrs, BatchID: batchID})
	}

	payloads := make([][]byte, len(items))
	for i, it := range items {
		b, err := queue.Encode(it)
		if err != nil {
			return nil, err
		}
		payloads[i] = b
	}

	now := time.Now().UTC()
	progress := &domain.BatchProgress{
		BatchID:       batchID,
		MailContentID: content.ID,
		Total:         len(items),
		Remaining:     len(items),
		CreatedAt:     now,
	}
	if err := s.repo.EnqueueBatch(ctx, s.queueName, progress, payloads); err != nil {
		return nil, fmt.Errorf("persist mail job: %w", err)
	}

	s.onJob()
	s.logger.Info("mail job scheduled",
		zap.String("batch_id", batchID),
		zap.String("mail_id", content.ID),
		zap.Int("items", len(items)),
		zap.Int("recipients", len(userIDs)+len(raw)),
	)

	return &domain.ScheduledJob{
		BatchID:       batchID,
		MailContentID: content.ID,
		Items:         len(items),
		Recipients:    len(userIDs) + len(raw),
		CreatedAt:     now,
	}, nil
}

// Pending reports how many queue rows match the mail content id, using the
// same substring count as last-item detection.
func (s *MailJobService) Pending(ctx context.Context, mailContentID string) (int, error) {
	if mailContentID == "" {
		return 0, domain.ErrMissingMailID
	}
	return s.repo.CountMatching(ctx, s.queueName, queue.ItemTypeMarker, mailContentID)
}

func (s *MailJobService) validateRequest(req domain.MailJobRequest) error {
	if req.MailContentID == "" {
		return domain.ErrMissingMailID
	}
	if len(req.UserIDs) == 0 && len(req.RawRecipients) == 0 {
		return domain.ErrJobEmpty
	}
	if req.ChunkSize < 0 || req.ChunkSize > MaxChunkSize {
		return domain.ErrInvalidChunkSize
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "email" {
					return fmt.Errorf("%w: %v", domain.ErrInvalidEmail, fe.Value())
				}
			}
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidItem, err)
	}
	return nil
}

func dedupeUsers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeAddresses(raw []domain.RawRecipient) []domain.RawRecipient {
	seen := make(map[string]struct{}, len(raw))
	out := make([]domain.RawRecipient, 0, len(raw))
	for _, r := range raw {
		key := strings.ToLower(strings.TrimSpace(r.Email))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func chunks[T any](s []T, size int) [][]T {
	var out [][]T
	for len(s) > 0 {
		n := size
		if n > len(s) {
			n = len(s)
		}
		out = append(out, s[:n:n])
		s = s[n:]
	}
	return out
}
