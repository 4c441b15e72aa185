package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tomsync/shopee-collector/internal/application/ingest"
	"github.com/tomsync/shopee-collector/internal/domain/queue"
)

// CronScheduler fans the collection cycle out over every active shop on
// a cron cadence. It only enqueues; workers do the collecting. A shop
// with a job still pending or running is skipped until that job ends.
type CronScheduler struct {
	cron    *cron.Cron
	service *ingest.Service
	spec    string
	log     *logrus.Entry

	mu          sync.Mutex
	passRunning bool
	currentJobs map[string]string // shopRef -> jobID
}

// NewCronScheduler creates a scheduler with a standard 5-field cron spec
func NewCronScheduler(service *ingest.Service, spec string, log *logrus.Logger) *CronScheduler {
	if log == nil {
		log = logrus.New()
	}
	return &CronScheduler{
		cron:        cron.New(),
		service:     service,
		spec:        spec,
		log:         log.WithField("component", "scheduler"),
		currentJobs: make(map[string]string),
	}
}

// Start registers the cron entry and runs one pass immediately
func (s *CronScheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.pass(ctx) }); err != nil {
		return err
	}

	go s.pass(ctx)
	s.cron.Start()
	s.log.WithField("cron", s.spec).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop; running jobs are not interrupted
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// OnQueueEvent clears a shop's pending marker when its job ends. Wire
// this as a queue subscriber.
func (s *CronScheduler) OnQueueEvent(ev queue.Event) {
	if ev.Type != queue.EventCompleted && ev.Type != queue.EventFailed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, jobID := range s.currentJobs {
		if jobID == ev.JobID {
			delete(s.currentJobs, ref)
			return
		}
	}
}

// pass enqueues one collection job per active shop. Overlapping passes
// collapse: a pass that starts while another runs returns immediately.
func (s *CronScheduler) pass(ctx context.Context) {
	s.mu.Lock()
	if s.passRunning {
		s.mu.Unlock()
		s.log.Debug("Fan-out pass already running, skipping")
		return
	}
	s.passRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.passRunning = false
		s.mu.Unlock()
	}()

	shops, err := s.service.ActiveShops(ctx)
	if err != nil {
		s.log.WithField("error", err).Error("Failed to list active shops")
		return
	}

	enqueued := 0
	for _, sh := range shops {
		ref := sh.ID

		s.mu.Lock()
		_, pending := s.currentJobs[ref]
		s.mu.Unlock()
		if pending {
			continue
		}

		jobID, err := s.service.EnqueueCollect(ctx, ref, false)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"shop_id": sh.ShopID,
				"error":   err,
			}).Error("Failed to enqueue collection")
			continue
		}

		s.mu.Lock()
		s.currentJobs[ref] = jobID
		s.mu.Unlock()
		enqueued++
	}

	s.log.WithFields(logrus.Fields{
		"shops":    len(shops),
		"enqueued": enqueued,
	}).Info("Fan-out pass finished")
}
