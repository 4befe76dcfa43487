package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/stakewatch/stakewatch/internal/crawler"
	"github.com/stakewatch/stakewatch/internal/logger"
	"github.com/stakewatch/stakewatch/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// CycleRunner runs one crawl cycle for a contract. Implemented by the
// crawler package.
type CycleRunner interface {
	RunCycle(ctx context.Context, contract *crawler.TrackedContract) (crawler.CrawlResult, error)
}

// Scheduler drives periodic crawl cycles, one goroutine per tracked
// contract. Each contract runs a cycle at startup and then on every tick;
// a Nudge wakes all contracts early without waiting for the next tick.
// A contract is only ever crawled by its own goroutine, so cycles for the
// same contract never overlap.
type Scheduler struct {
	runner    CycleRunner
	contracts []*crawler.TrackedContract
	interval  time.Duration
	log       *logger.Logger

	mu     sync.Mutex
	nudges []chan struct{}
}

// New creates a new Scheduler.
func New(runner CycleRunner, contracts []*crawler.TrackedContract,
	interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		runner:    runner,
		contracts: contracts,
		interval:  interval,
		log:       log.WithComponent("scheduler"),
	}
}

// Nudge requests an early crawl cycle for every contract. It never blocks:
// a contract that already has a pending wake-up is not queued twice.
func (s *Scheduler) Nudge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.nudges {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run blocks until the context is cancelled, crawling every contract on its
// own cadence. Cycle errors are logged and the next cycle retried; they
// never stop the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infof("scheduler starting: contracts=%d, interval=%s", len(s.contracts), s.interval)

	s.mu.Lock()
	s.nudges = make([]chan struct{}, len(s.contracts))
	for i := range s.nudges {
		s.nudges[i] = make(chan struct{}, 1)
	}
	s.mu.Unlock()

	group, ctx := errgroup.WithContext(ctx)

	for i, contract := range s.contracts {
		nudge := s.nudges[i]
		group.Go(func() error {
			return s.runContractLoop(ctx, contract, nudge)
		})
	}

	return group.Wait()
}

// runContractLoop owns one contract's crawl cadence.
func (s *Scheduler) runContractLoop(ctx context.Context,
	contract *crawler.TrackedContract, nudge <-chan struct{}) error {
	// First cycle immediately on startup
	s.runOnce(ctx, contract)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infof("scheduler stopping for contract %s", contract.Name)
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, contract)
		case <-nudge:
			s.runOnce(ctx, contract)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, contract *crawler.TrackedContract) {
	if ctx.Err() != nil {
		return
	}

	result, err := s.runner.RunCycle(ctx, contract)
	if err != nil {
		s.log.Errorf("crawl cycle failed for contract %s: %v", contract.Name, err)
		metrics.ErrorsInc("scheduler", "error")
		metrics.ComponentHealthSet("crawler-"+contract.Name, false)
		return
	}
	metrics.ComponentHealthSet("crawler-"+contract.Name, true)

	if result.ChunksProcessed > 0 {
		s.log.Debugf("crawl cycle for contract %s: through=%d, events=%d",
			contract.Name, result.ProcessedThrough, result.EventsIndexed)
	}
}
