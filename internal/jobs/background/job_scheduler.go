package background

import (
	"context"
	"log"
	"sync"
	"time"

	"logitrack/internal/caching"
	"logitrack/internal/jobs"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler runs the periodic maintenance jobs: the stock alert sweep and
// dashboard cache invalidation.
type JobScheduler struct {
	scheduler gocron.Scheduler
	alertSvc  *jobs.StockAlertService
	cacheSvc  caching.CacheService
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

func NewJobScheduler(alertSvc *jobs.StockAlertService, cacheSvc caching.CacheService) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		alertSvc:  alertSvc,
		cacheSvc:  cacheSvc,
		jobs:      make(map[string]gocron.Job),
	}
	js.registerJobs()
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() {
	js.mu.Lock()
	defer js.mu.Unlock()

	// Stock alert sweep - every 30 minutes
	alertsJob, err := js.scheduler.NewJob(
		gocron.DurationJob(30*time.Minute),
		gocron.NewTask(js.alertSvc.ScheduledSweep, context.Background()),
		gocron.WithName("stock-alert-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to create stock alert job: %v", err)
	} else {
		js.jobs["stock-alerts"] = alertsJob
	}

	// Dashboard cache invalidation - every hour
	cacheJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.invalidateDashboardCache),
		gocron.WithName("dashboard-cache-invalidate"),
	)
	if err != nil {
		log.Printf("Failed to create cache invalidation job: %v", err)
	} else {
		js.jobs["dashboard-cache"] = cacheJob
	}

	log.Printf("Registered %d background jobs", len(js.jobs))
}

func (js *JobScheduler) invalidateDashboardCache() {
	if err := js.cacheSvc.InvalidateDashboardStats(context.Background()); err != nil {
		log.Printf("Failed to invalidate dashboard stats cache: %v", err)
	}
}
