/*
scheduler.go - Automated payout scheduler

PURPOSE:
  Periodically moves pending payouts into processing once their period
  has ended and the settlement hold has passed. The hold leaves
  operators a window to add adjustments (late invoices, refunds) before
  the amount is locked.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - A payout is due when now >= day after period end + SettlementHold
  - Promotions go through settlement.Service, so they use the same
    versioned write as an operator's transition and race safely with
    concurrent adjustments
  - Payouts that lose a race are logged and retried on the next tick

CONFIGURATION:
  - CheckInterval:  How often to check (default: 1 hour)
  - SettlementHold: Delay after period end (default: 72 hours)
  - Enabled:        Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayoutScheduler(svc)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ProcessPayouts endpoint (manual run)
  - settlement/service.go: StartProcessing
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/revenue-share/settlement"
	"github.com/warp/revenue-share/split"
)

// PayoutScheduler promotes due payouts from pending to processing.
type PayoutScheduler struct {
	Service        *settlement.Service
	CheckInterval  time.Duration
	SettlementHold time.Duration
	Enabled        bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayoutScheduler creates a new scheduler.
func NewPayoutScheduler(svc *settlement.Service) *PayoutScheduler {
	return &PayoutScheduler{
		Service:        svc,
		CheckInterval:  1 * time.Hour,
		SettlementHold: 72 * time.Hour,
		Enabled:        true,
		stop:           make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ps *PayoutScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled || ps.CheckInterval <= 0 {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v, settlement hold: %v", ps.CheckInterval, ps.SettlementHold)
}

// Stop stops the scheduler.
func (ps *PayoutScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PayoutScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess(context.Background())

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndProcess(context.Background())
		case <-ps.stop:
			return
		}
	}
}

// Due reports whether p's hold has passed at now.
func (ps *PayoutScheduler) Due(p split.Payout, now time.Time) bool {
	if p.Status != split.PayoutPending {
		return false
	}
	releaseAt := p.Period.End.AddDate(0, 0, 1).Add(ps.SettlementHold)
	return !now.Before(releaseAt)
}

func (ps *PayoutScheduler) checkAndProcess(ctx context.Context) int {
	now := ps.Service.Now()

	pending, err := ps.Service.ListPayouts(ctx, split.PayoutFilter{
		Statuses: []split.PayoutStatus{split.PayoutPending},
	})
	if err != nil {
		log.Printf("[Scheduler] Error listing pending payouts: %v", err)
		return 0
	}

	promoted, waiting := 0, 0
	for _, p := range pending {
		if !ps.Due(p, now) {
			waiting++
			continue
		}
		if _, err := ps.Service.StartProcessing(ctx, p.ID, settlement.SystemActor); err != nil {
			// Cancelled or promoted by an operator since the listing
			log.Printf("[Scheduler] Error promoting payout %s: %v", p.ID, err)
			continue
		}
		promoted++
		log.Printf("[Scheduler] Payout %s for %s moved to processing (%s)",
			p.ID, p.PartnerID, p.Amount.Format(p.Currency))
	}

	if promoted > 0 || waiting > 0 {
		log.Printf("[Scheduler] Completed: %d promoted, %d still in hold", promoted, waiting)
	}
	return promoted
}

// RunNow triggers an immediate check and returns the number of promoted payouts.
func (ps *PayoutScheduler) RunNow(ctx context.Context) int {
	return ps.checkAndProcess(ctx)
}

// GetNextRunTime returns when the next scheduled check will occur.
func (ps *PayoutScheduler) GetNextRunTime() time.Time {
	return ps.Service.Now().Add(ps.CheckInterval)
}
