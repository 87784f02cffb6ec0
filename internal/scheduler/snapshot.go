package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/engine"
	"bankmesh.org/internal/obs"
)

const (
	DefaultSnapshotInterval = 5 * time.Minute
	finalSaveTimeout        = 5 * time.Second
)

type SnapshotSource interface {
	Export() engine.Snapshot
	Done() <-chan struct{}
}

type SnapshotSink interface {
	Save(ctx context.Context, snap engine.Snapshot) error
}

var _ SnapshotSource = (*engine.Engine)(nil)

// SnapshotJob periodically persists the engine state. A last snapshot is
// written when the engine closes.
type SnapshotJob struct {
	src      SnapshotSource
	sink     SnapshotSink
	interval time.Duration
	log      *logrus.Entry
}

func NewSnapshotJob(src SnapshotSource, sink SnapshotSink, interval time.Duration) *SnapshotJob {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &SnapshotJob{src: src, sink: sink, interval: interval, log: obs.Component("snapshot")}
}

func (j *SnapshotJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.src.Done():
			sctx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
			j.save(sctx)
			cancel()
			return
		case <-ticker.C:
			j.save(ctx)
		}
	}
}

func (j *SnapshotJob) save(ctx context.Context) {
	snap := j.src.Export()
	err := j.sink.Save(ctx, snap)
	obs.SnapshotSaved(err)
	if err != nil {
		j.log.WithError(err).Error("snapshot save failed")
		return
	}
	j.log.WithFields(logrus.Fields{
		"taken_at":     snap.TakenAt,
		"transactions": len(snap.Journal.Transactions),
	}).Info("snapshot saved")
}
