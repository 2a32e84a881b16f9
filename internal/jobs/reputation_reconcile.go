package jobs

import (
	"context"

	"anoa.com/unimarket/pkg/logger"
)

// ReputationRecomputer is the part of the reputation engine the nightly job drives.
type ReputationRecomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// ReputationReconcileJob recomputes every stored reputation score from the ratings table.
type ReputationReconcileJob struct {
	reputation ReputationRecomputer
	schedule   string
}

func NewReputationReconcileJob(reputation ReputationRecomputer, schedule string) *ReputationReconcileJob {
	return &ReputationReconcileJob{reputation: reputation, schedule: schedule}
}

func (j *ReputationReconcileJob) Name() string     { return "reputation-reconcile" }
func (j *ReputationReconcileJob) Schedule() string { return j.schedule }

func (j *ReputationReconcileJob) Execute(ctx context.Context) error {
	n, err := j.reputation.RecomputeAll(ctx)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).WithField("students", n).Info("reputation scores reconciled")
	return nil
}
