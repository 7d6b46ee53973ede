package mailer

import (
	"context"

	"github.com/notifyhub/user-mail-queue/internal/ratelimiter"
)

type rateLimited struct {
	next    Sender
	limiter *ratelimiter.Limiter
}

// RateLimited wraps next so every send first waits for a limiter token.
func RateLimited(next Sender, limiter *ratelimiter.Limiter) Sender {
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Send(ctx context.Context, msg Message) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.Send(ctx, msg)
}
