package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ViewCounter interface {
	IncrementViews(ctx context.Context, id uuid.UUID) error
}

// Tracker records post views in the background. A nil Tracker is disabled.
type Tracker struct {
	counter ViewCounter
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewTracker(counter ViewCounter) *Tracker {
	if counter == nil {
		log.Warn().Msg("view counter is nil, view tracking disabled")
		return nil
	}
	return &Tracker{counter: counter, timeout: 5 * time.Second}
}

// TrackView increments the post's counter without waiting for the result.
// Failures are logged and otherwise ignored; there is no retry.
func (t *Tracker) TrackView(postID uuid.UUID) {
	if t == nil || t.counter == nil {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := t.counter.IncrementViews(ctx, postID); err != nil {
			log.Warn().Err(err).Str("post_id", postID.String()).Msg("error recording post view")
		}
	}()
}

// Wait blocks until in-flight increments finish.
func (t *Tracker) Wait() {
	if t == nil {
		return
	}
	t.wg.Wait()
}
