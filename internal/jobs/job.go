package jobs

import "context"

// Job is a unit of background work. Jobs with an empty Schedule are registered
// for on-demand runs only.
type Job interface {
	Name() string
	// Schedule is a robfig/cron spec, e.g. "@every 1m" or "30 3 * * *".
	Schedule() string
	Execute(ctx context.Context) error
}
