package jobs

import (
	"context"

	view "anoa.com/unimarket/internal/modules/view/service"
	"anoa.com/unimarket/pkg/logger"
)

// ViewSyncJob flushes buffered product view counters to the database.
type ViewSyncJob struct {
	views    view.ViewService
	schedule string
}

func NewViewSyncJob(views view.ViewService, schedule string) *ViewSyncJob {
	return &ViewSyncJob{views: views, schedule: schedule}
}

func (j *ViewSyncJob) Name() string     { return "view-sync" }
func (j *ViewSyncJob) Schedule() string { return j.schedule }

func (j *ViewSyncJob) Execute(ctx context.Context) error {
	synced, err := j.views.SyncViews(ctx)
	if err != nil {
		return err
	}
	if synced > 0 {
		logger.FromContext(ctx).WithField("products", synced).Info("synced product views")
	}
	return nil
}
