// Package jobs records submissions in the journal and keeps their status in
// step with the API.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/storage"
	"github.com/rossigee/irp-integration/internal/workflow"
	"github.com/rossigee/irp-integration/pkg/types"
)

// DefaultConcurrency bounds concurrent status fetches during Refresh.
const DefaultConcurrency = 2

// Journal persists submissions.
type Journal interface {
	SaveSubmission(ctx context.Context, record *storage.SubmissionRecord) error
	UpdateStatus(ctx context.Context, kind string, remoteID int64, update storage.StatusUpdate) error
	ListSubmissions(ctx context.Context, filter storage.ListSubmissionsFilter) ([]*storage.SubmissionRecord, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}

// Tracker writes submissions and their outcomes to a Journal. A nil
// *Tracker records nothing. Journal failures are logged, never returned to
// the caller of a submission.
type Tracker struct {
	journal   Journal
	fetchers  map[string]workflow.Fetcher
	semaphore chan struct{} // Limits concurrent status fetches
	log       *logrus.Entry
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithFetcher registers how Refresh reads the status of kind.
func WithFetcher(kind string, fetch workflow.Fetcher) Option {
	return func(t *Tracker) { t.fetchers[kind] = fetch }
}

// WithConcurrency sets how many statuses Refresh fetches at once.
func WithConcurrency(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.semaphore = make(chan struct{}, n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(t *Tracker) { t.log = log }
}

// NewTracker creates a tracker over journal.
func NewTracker(journal Journal, opts ...Option) *Tracker {
	t := &Tracker{
		journal:   journal,
		fetchers:  make(map[string]workflow.Fetcher),
		semaphore: make(chan struct{}, DefaultConcurrency),
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submitted records a new submission with its request body.
func (t *Tracker) Submitted(ctx context.Context, kind string, remoteID int64, name string, request any) {
	if t == nil {
		return
	}
	body, err := json.Marshal(request)
	if err != nil {
		t.log.WithError(err).WithField("kind", kind).Warn("Failed to encode submission request")
		body = []byte("null")
	}
	record := &storage.SubmissionRecord{
		Kind:        kind,
		RemoteID:    remoteID,
		Name:        name,
		Status:      storage.StatusSubmitted,
		RequestJSON: string(body),
	}
	if err := t.journal.SaveSubmission(ctx, record); err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{"kind": kind, "remote_id": remoteID}).Warn("Failed to record submission")
		return
	}
	t.log.WithFields(logrus.Fields{"kind": kind, "remote_id": remoteID, "id": record.ID}).Debug("Recorded submission")
}

// Settled records the statuses a poll returned.
func (t *Tracker) Settled(ctx context.Context, kind, strategy string, statuses []types.WorkflowStatus) {
	if t == nil {
		return
	}
	for _, s := range statuses {
		t.update(ctx, kind, s.ID, storage.StatusUpdate{
			Status:     s.Status,
			Strategy:   strategy,
			ResultJSON: string(s.Raw),
		})
	}
}

// Failed records err against every remote ID.
func (t *Tracker) Failed(ctx context.Context, kind string, remoteIDs []int64, err error) {
	if t == nil || err == nil {
		return
	}
	for _, id := range remoteIDs {
		t.update(ctx, kind, id, storage.StatusUpdate{Status: storage.StatusError, ErrorMessage: err.Error()})
	}
}

func (t *Tracker) update(ctx context.Context, kind string, remoteID int64, u storage.StatusUpdate) {
	if err := t.journal.UpdateStatus(ctx, kind, remoteID, u); err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{"kind": kind, "remote_id": remoteID}).Warn("Failed to record submission status")
	}
}

// Active returns how many journalled submissions are not settled yet.
func (t *Tracker) Active(ctx context.Context) (int, error) {
	if t == nil {
		return 0, nil
	}
	total := 0
	for _, status := range openStatuses() {
		n, err := t.journal.CountByStatus(ctx, status)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func openStatuses() []string {
	return append([]string{storage.StatusSubmitted}, types.InProgressStatuses.ToSlice()...)
}

// Refresh fetches the current status of every unsettled submission that
// has a registered fetcher and records it. It returns how many records were
// updated; fetch failures are collected and returned together.
func (t *Tracker) Refresh(ctx context.Context) (int, error) {
	if t == nil {
		return 0, nil
	}

	var open []*storage.SubmissionRecord
	for _, status := range openStatuses() {
		records, err := t.journal.ListSubmissions(ctx, storage.ListSubmissionsFilter{Status: status, Limit: 10000})
		if err != nil {
			return 0, err
		}
		open = append(open, records...)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    *multierror.Error
		updated int
	)
	for _, record := range open {
		fetch, ok := t.fetchers[record.Kind]
		if !ok {
			continue
		}

		select {
		case t.semaphore <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return updated, ctx.Err()
		}

		wg.Add(1)
		go func(record *storage.SubmissionRecord) {
			defer wg.Done()
			defer func() { <-t.semaphore }()

			status, err := fetch(ctx, record.RemoteID)
			if err == nil {
				err = t.journal.UpdateStatus(ctx, record.Kind, record.RemoteID, storage.StatusUpdate{
					Status:     status.Status,
					Strategy:   record.Strategy,
					ResultJSON: string(status.Raw),
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s %d: %w", record.Kind, record.RemoteID, err))
				return
			}
			updated++
		}(record)
	}
	wg.Wait()

	t.log.WithField("updated", updated).Info("Refreshed journalled submissions")
	return updated, errs.ErrorOrNil()
}
