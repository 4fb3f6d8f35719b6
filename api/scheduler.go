/*
scheduler.go - Background maintenance scheduler

PURPOSE:
  Periodically runs the idempotent maintenance jobs so operators do not
  have to trigger them by hand:
  - Legacy migration: copies any legacy udhar records written by old
    clients into the ledger.
  - Default milk logs: once per store-local day, writes the default
    delivery for every active subscription that has no log yet.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Both jobs are safe to repeat; the unique indexes on the ledger and on
    (customer, date) milk logs make a second run a no-op
  - A failing job is logged and retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled:       Whether scheduler is active (default: true)
  - AutoMigrate:   Run the legacy migration each tick
  - AutoMilkLogs:  Write default milk logs once per day

USAGE:
  scheduler := NewMaintenanceScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: MigrateToLedger and AutoLogDeliveries (manual triggers)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/kirana-ledger/core"
)

// MaintenanceScheduler runs migration and default milk logs in the background.
type MaintenanceScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	AutoMigrate   bool
	AutoMilkLogs  bool

	ticker     *time.Ticker
	stop       chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	lastLogged core.Date
	today      func() core.Date
}

// NewMaintenanceScheduler creates a scheduler with migration enabled.
func NewMaintenanceScheduler(handler *Handler) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		AutoMigrate:   true,
		stop:          make(chan struct{}),
		today:         core.Today,
	}
}

// Start begins the scheduler.
func (ms *MaintenanceScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ms.ticker = time.NewTicker(ms.CheckInterval)
	ms.wg.Add(1)

	go ms.run()

	log.Printf("[Scheduler] Started with check interval: %v", ms.CheckInterval)
}

// Stop stops the scheduler and waits for a running tick to finish.
func (ms *MaintenanceScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker != nil {
		ms.ticker.Stop()
		close(ms.stop)
		ms.wg.Wait()
		ms.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (ms *MaintenanceScheduler) run() {
	defer ms.wg.Done()

	// Run immediately on start
	ms.RunNow(context.Background())

	for {
		select {
		case <-ms.ticker.C:
			ms.RunNow(context.Background())
		case <-ms.stop:
			return
		}
	}
}

// RunNow performs one maintenance pass.
func (ms *MaintenanceScheduler) RunNow(ctx context.Context) {
	if ms.AutoMigrate {
		ms.migrate(ctx)
	}
	if ms.AutoMilkLogs {
		ms.logMilk(ctx)
	}
}

func (ms *MaintenanceScheduler) migrate(ctx context.Context) {
	res, err := ms.Handler.Migration.MigrateLegacyToLedger(ctx)
	if err != nil {
		log.Printf("[Scheduler] Legacy migration failed: %v", err)
		return
	}
	if res.Total() > 0 || res.Skipped > 0 {
		log.Printf("[Scheduler] Legacy migration: %d credits, %d payments, %d skipped",
			res.MigratedCredits, res.MigratedPayments, res.Skipped)
	}
}

// logMilk writes default logs at most once per store-local day.
func (ms *MaintenanceScheduler) logMilk(ctx context.Context) {
	today := ms.today()
	if ms.lastLogged == today {
		return
	}
	n, err := ms.Handler.Milk.AutoLogDeliveries(ctx, today)
	if err != nil {
		log.Printf("[Scheduler] Default milk logs for %s failed: %v", today, err)
		return
	}
	ms.lastLogged = today
	log.Printf("[Scheduler] Default milk logs for %s: %d created", today, n)
}
