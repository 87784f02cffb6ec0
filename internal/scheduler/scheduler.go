// Package scheduler drives the engine's background work: periodic accrual
// passes and snapshots.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/obs"
)

const DefaultInterval = time.Minute

// Target is the engine surface the accrual loop needs.
type Target interface {
	Accrue() engine.AccrualReport
	Wakeups() <-chan struct{}
	Done() <-chan struct{}
}

var _ Target = (*engine.Engine)(nil)

type Scheduler struct {
	target   Target
	interval time.Duration
	log      *logrus.Entry
}

func New(target Target, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{target: target, interval: interval, log: obs.Component("scheduler")}
}

// Run performs an accrual pass right away and then whenever the interval
// elapses or the clock is advanced. It returns when ctx is cancelled or the
// engine is closed.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.WithField("interval", s.interval.String()).Info("scheduler started")
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		rep := s.target.Accrue()
		s.log.WithFields(logrus.Fields{
			"at":       rep.At,
			"payments": rep.Payments,
			"failures": rep.Failures,
		}).Debug("accrual tick")

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped: context done")
			return
		case <-s.target.Done():
			s.log.Info("scheduler stopped: engine closed")
			return
		case <-s.target.Wakeups():
			timer.Reset(s.interval)
		case <-timer.C:
			timer.Reset(s.interval)
		}
	}
}
