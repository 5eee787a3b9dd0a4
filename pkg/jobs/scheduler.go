package jobs

import (
	"context"
	"time"

	"github.com/cuemby/hutch/pkg/log"
)

// Scheduler enqueues the periodic sweeps: health detection, machine
// restore and certificate renewal. It only produces jobs; all execution
// happens in the runner's worker pool.
type Scheduler struct {
	queue Queue

	HealthInterval  time.Duration
	RestoreInterval time.Duration
	RenewalInterval time.Duration

	stopCh chan struct{}
}

// NewScheduler creates a scheduler with default intervals.
func NewScheduler(queue Queue) *Scheduler {
	return &Scheduler{
		queue:           queue,
		HealthInterval:  time.Minute,
		RestoreInterval: time.Minute,
		RenewalInterval: 24 * time.Hour,
		stopCh:          make(chan struct{}),
	}
}

// Start begins the scheduling loop
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// run is the main scheduling loop
func (s *Scheduler) run() {
	healthTicker := time.NewTicker(s.HealthInterval)
	defer healthTicker.Stop()
	restoreTicker := time.NewTicker(s.RestoreInterval)
	defer restoreTicker.Stop()
	renewalTicker := time.NewTicker(s.RenewalInterval)
	defer renewalTicker.Stop()

	for {
		select {
		case <-healthTicker.C:
			s.enqueue(JobMachineHealthSweep)
		case <-restoreTicker.C:
			s.enqueue(JobMachineRestoreSweep)
		case <-renewalTicker.C:
			s.enqueue(JobCertificateRenewalSweep)
		case <-s.stopCh:
			return
		}
	}
}

// enqueue submits one sweep job, logging rather than failing on a full
// queue: a missed sweep tick is made up by the next one.
func (s *Scheduler) enqueue(name string) {
	schedLog := log.WithComponent("scheduler")
	job, err := NewJob(name, nil)
	if err != nil {
		schedLog.Error().Err(err).Str("job", name).Msg("Failed to build sweep job")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.queue.Enqueue(ctx, job); err != nil {
		schedLog.Error().Err(err).Str("job", name).Msg("Failed to enqueue sweep job")
	}
}
