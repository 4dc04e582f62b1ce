package marketsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/nexafin/marketsync/internal/app/system"
	"github.com/nexafin/marketsync/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher runs the synchronizer on a cron schedule so prices stay fresh
// without any interactive trigger.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewRefresher creates a lifecycle-managed scheduled sync runner. An empty
// schedule defaults to one pass per minute.
func NewRefresher(service *Service, schedule string, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("marketsync-refresher")
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Refresher{
		service:  service,
		log:      log,
		schedule: schedule,
	}
}

func (r *Refresher) Name() string { return "marketsync-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.tick(context.Background()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c
	r.running = true

	r.log.WithField("schedule", r.schedule).Info("price sync refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.running = false
	r.cron = nil
	r.mu.Unlock()

	// cron.Stop returns a context that resolves once in-flight jobs drain.
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("price sync refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	if _, err := r.service.Sync(ctx); err != nil {
		if errors.Is(err, ErrSyncInFlight) {
			return
		}
		r.log.WithError(err).Warn("scheduled price sync failed")
	}
}
