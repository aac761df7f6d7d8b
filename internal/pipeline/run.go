package pipeline

import (
	"context"
	"time"

	"github.com/mlcrowe/geocode-reconciler/internal/domain"
)

// Job is one deferred geocode request pulled from the jobs topic.
type Job struct {
	Components domain.Components
	// Commit acknowledges the job with the source once it has been
	// handled. Nil when the source does not track offsets.
	Commit func(ctx context.Context) error
}

// Result is the outcome of one deferred job, published to the results
// topic for the surrounding application to consume asynchronously.
type Result struct {
	Request    domain.RequestKey  `json:"request"`
	Candidates []domain.Candidate `json:"candidates"`
	Error      string             `json:"error,omitempty"`
}

// JobSource supplies deferred jobs. FetchJob blocks until a job arrives,
// the context is cancelled, or the source fails.
type JobSource interface {
	FetchJob(ctx context.Context) (Job, error)
}

// ResultSink receives finished results.
type ResultSink interface {
	PublishResult(ctx context.Context, result Result) error
}

// Run executes the deferred-mode loop until the context is cancelled:
// fetch a job, run the same lookup immediate mode uses, publish the
// ranked candidates, commit. Source failures back off exponentially so a
// broker outage does not turn into a tight loop.
func (p *Pipeline) Run(ctx context.Context, jobs JobSource, results ResultSink) error {
	p.logger.Info("deferred pipeline started", "providers", len(p.clients))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := p.retryBaseDelay
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("deferred pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		job, err := jobs.FetchJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("fetch job failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = p.retryBaseDelay
		p.metrics.JobsConsumed.Inc()

		p.handleJob(ctx, job, results)
	}
}

// handleJob runs one job end to end. Validation failures produce an error
// result rather than dropping the job silently; publish failures leave the
// job uncommitted so it is redelivered.
func (p *Pipeline) handleJob(ctx context.Context, job Job, results ResultSink) {
	result := Result{}

	candidates, err := p.Lookup(ctx, job.Components)
	if err != nil {
		p.logger.Warn("deferred lookup failed", "error", err)
		result.Error = err.Error()
	} else {
		result.Candidates = candidates
	}
	if raw, entityType, ferr := domain.FormatComponents(job.Components); ferr == nil {
		result.Request = domain.RequestKey{RawAddress: raw, EntityType: entityType}
	}

	if err := results.PublishResult(ctx, result); err != nil {
		p.logger.Error("publish result failed", "error", err)
		return
	}
	p.metrics.ResultsProduced.Inc()

	if job.Commit != nil {
		if err := job.Commit(ctx); err != nil {
			p.logger.Warn("commit job failed", "error", err)
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
