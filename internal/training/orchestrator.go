package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// Defaults for the poll loop. Total wait is roughly PollInterval * MaxPolls.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultMaxPolls     = 60
)

// Orchestrator submits or reuses a named model and polls it to a terminal state.
type Orchestrator struct {
	service       Service
	pollInterval  time.Duration
	maxPolls      int
	retrainFailed bool

	// sleep waits between polls; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures an Orchestrator. Zero values take the defaults.
type Options struct {
	PollInterval  time.Duration
	MaxPolls      int
	RetrainFailed bool // drop and resubmit a model found in the error state
}

// NewOrchestrator creates an orchestrator over svc.
func NewOrchestrator(svc Service, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}

	return &Orchestrator{
		service:       svc,
		pollInterval:  opts.PollInterval,
		maxPolls:      opts.MaxPolls,
		retrainFailed: opts.RetrainFailed,
		sleep:         sleepContext,
	}
}

// EnsureTrained makes sure a model called name exists and has finished training.
//
//   - complete: reused as-is, no create and no polling
//   - generating/training: polling resumes, no create
//   - error: reported as Failed, or dropped and resubmitted when RetrainFailed is set
//   - absent: created from dataset, then polled
//
// The returned error is reserved for remote call failures and context
// cancellation; training failure and budget exhaustion are Outcome kinds.
func (o *Orchestrator) EnsureTrained(ctx context.Context, name string, dataset DatasetRef, targetColumn string) (Outcome, error) {
	existing, found, err := o.lookup(ctx, name)
	if err != nil {
		return Outcome{}, err
	}

	if found {
		switch {
		case existing.Status == StatusComplete:
			log.Printf("[Training] Reusing complete model %s", name)
			return Outcome{Kind: Complete, Model: existing}, nil

		case existing.Status.IsInProgress():
			log.Printf("[Training] Model %s already %s, resuming poll", name, existing.Status)
			return o.poll(ctx, existing, false)

		case existing.Status == StatusError && !o.retrainFailed:
			log.Printf("[Training] Model %s is in error state: %s", name, existing.Error)
			return Outcome{Kind: Failed, Model: existing, Detail: existing.Error}, nil

		case existing.Status == StatusError:
			log.Printf("[Training] Dropping failed model %s before resubmitting", name)
			if err := o.service.DropModel(ctx, name); err != nil {
				return Outcome{}, wrapRemote(err)
			}

		default:
			detail := fmt.Sprintf("unexpected model status %q", existing.Status)
			return Outcome{Kind: Failed, Model: existing, Detail: detail}, nil
		}
	}

	model, err := o.service.CreateModel(ctx, CreateRequest{Name: name, TargetColumn: targetColumn, Dataset: dataset})
	if err != nil {
		return Outcome{}, wrapRemote(err)
	}
	if model.Status == "" {
		model.Status = StatusSubmitted
	}
	log.Printf("[Training] Submitted model %s: target=%s dataset=%s", name, targetColumn, dataset.Name)

	return o.poll(ctx, model, true)
}

// lookup finds the model by name in the project listing.
func (o *Orchestrator) lookup(ctx context.Context, name string) (Model, bool, error) {
	models, err := o.service.ListModels(ctx)
	if err != nil {
		return Model{}, false, wrapRemote(err)
	}
	for _, m := range models {
		if m.Name == name {
			return m, true, nil
		}
	}
	return Model{}, false, nil
}

// poll queries status at most maxPolls times, sleeping pollInterval between
// queries, and stops as soon as the model leaves the in-progress states.
func (o *Orchestrator) poll(ctx context.Context, model Model, created bool) (Outcome, error) {
	last := model

	for polls := 1; polls <= o.maxPolls; polls++ {
		if polls > 1 {
			if err := o.sleep(ctx, o.pollInterval); err != nil {
				return Outcome{}, err
			}
		}

		m, err := o.service.GetModel(ctx, model.Name)
		if err != nil {
			return Outcome{}, wrapRemote(err)
		}
		last = m
		log.Printf("[Training] Poll %d/%d: model=%s status=%s", polls, o.maxPolls, m.Name, m.Status)

		switch {
		case m.Status == StatusComplete:
			return Outcome{Kind: Complete, Model: m, Polls: polls, Created: created}, nil
		case m.Status == StatusError:
			log.Printf("[Training] Model %s failed: %s", m.Name, m.Error)
			return Outcome{Kind: Failed, Model: m, Detail: m.Error, Polls: polls, Created: created}, nil
		case !m.Status.IsInProgress():
			detail := fmt.Sprintf("unexpected model status %q", m.Status)
			return Outcome{Kind: Failed, Model: m, Detail: detail, Polls: polls, Created: created}, nil
		}
	}

	log.Printf("[Training] Poll budget exhausted: model=%s status=%s polls=%d", last.Name, last.Status, o.maxPolls)
	return Outcome{Kind: TimedOut, Model: last, Polls: o.maxPolls, Created: created}, nil
}

// wrapRemote tags service errors with ErrRemoteService unless they already
// carry a more specific classification.
func wrapRemote(err error) error {
	if errors.Is(err, bioactivity.ErrRemoteService) ||
		errors.Is(err, bioactivity.ErrModelNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", bioactivity.ErrRemoteService, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Inspect classifies the named model's current state with a single status
// query and no create or polling. A model still in progress is reported as
// TimedOut after one poll.
func Inspect(ctx context.Context, svc Service, name string) (Outcome, error) {
	m, err := svc.GetModel(ctx, name)
	if err != nil {
		return Outcome{}, wrapRemote(err)
	}

	switch {
	case m.Status == StatusComplete:
		return Outcome{Kind: Complete, Model: m, Polls: 1}, nil
	case m.Status == StatusError:
		return Outcome{Kind: Failed, Model: m, Detail: m.Error, Polls: 1}, nil
	case m.Status.IsInProgress():
		return Outcome{Kind: TimedOut, Model: m, Polls: 1}, nil
	default:
		return Outcome{Kind: Failed, Model: m, Detail: fmt.Sprintf("unexpected model status %q", m.Status), Polls: 1}, nil
	}
}
