package scheduler

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stakewatch/stakewatch/internal/logger"
)

// HeadSubscriber subscribes to new chain heads. Implemented by the rpc
// package; requires a websocket endpoint.
type HeadSubscriber interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

const resubscribeDelay = 5 * time.Second

// HeadWatcher nudges the scheduler whenever a new chain head arrives, so
// fresh blocks are crawled without waiting for the next tick.
type HeadWatcher struct {
	subscriber HeadSubscriber
	scheduler  *Scheduler
	log        *logger.Logger
}

// NewHeadWatcher creates a new HeadWatcher.
func NewHeadWatcher(subscriber HeadSubscriber, scheduler *Scheduler,
	log *logger.Logger) *HeadWatcher {
	return &HeadWatcher{
		subscriber: subscriber,
		scheduler:  scheduler,
		log:        log.WithComponent("scheduler"),
	}
}

// Run blocks until the context is cancelled, resubscribing on subscription
// failures. Subscription errors are not fatal: the ticker cadence still
// drives crawling while the subscription is down.
func (w *HeadWatcher) Run(ctx context.Context) error {
	for {
		if err := w.watch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warnf("head subscription lost, resubscribing in %s: %v", resubscribeDelay, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resubscribeDelay):
		}
	}
}

func (w *HeadWatcher) watch(ctx context.Context) error {
	heads := make(chan *types.Header, 16) //nolint:mnd

	sub, err := w.subscriber.SubscribeNewHead(ctx, heads)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	w.log.Info("watching new chain heads")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case header := <-heads:
			w.log.Debugf("new head %d, nudging scheduler", header.Number.Uint64())
			w.scheduler.Nudge()
		}
	}
}
