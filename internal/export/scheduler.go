package export

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const scheduledRunTimeout = 2 * time.Minute

// Scheduler writes a summary report on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	log     *logrus.Logger
}

// NewScheduler registers the summary job for spec, a standard five-field
// cron expression or a descriptor such as "@daily".
func NewScheduler(service *Service, spec string, log *logrus.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(log)),
	))
	s := &Scheduler{cron: c, service: service, log: log}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid export schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("export scheduler started")
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("export scheduler did not stop in time")
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()

	res, err := s.service.summaryReport(ctx)
	if err != nil {
		s.log.WithError(err).Error("scheduled summary report failed")
		return
	}
	s.log.WithField("filename", res.Filename).Info("scheduled summary report written")
}
