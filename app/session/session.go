// Package session provides the top-level apply loop. Combines the board iteration,
// the easy-apply modal walk, the applied-jobs store and the human-in-the-loop prompts.
package session

import (
	"context"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/autoapply/app/config"
	"github.com/umputun/autoapply/app/store"
)

// Runner is the top-level service wiring the board, modal, stores and prompter,
// providing the main entry point (blocking) to run the apply session
type Runner struct {
	Board         Board
	Modal         Modal
	Applied       AppliedStore
	History       History // optional, nil disables history recording
	InFlight      InFlightTracker
	Prompter      Prompter
	Notifier      Notifier // optional, nil disables notifications
	Behavior      config.Behavior
	Answers       map[string]string
	NotifyTimeout time.Duration

	stats map[string]int
}

// Board defines the job search results surface used by the loop
type Board interface {
	CardCount() (int, error)
	CardID(idx int) string
	OpenCard(idx int) error
	JobTitle() string
	JobCompany() string
	PageURL() string
	StartEasyApply() (bool, error)
	LoadMore() error
}

// Modal defines the easy-apply dialog surface
type Modal interface {
	Visible() (bool, error)
	ButtonVisible(name string) (bool, error)
	ClickButton(name string) error
	HasValidationError() (bool, error)
	FillKnownFields(answers map[string]string) (int, error)
}

// AppliedStore defines the persisted set of processed jobs
type AppliedStore interface {
	Seen(id string) bool
	Record(id string, rec store.Record) error
}

// History defines optional application history recording
type History interface {
	RecordApplication(app store.ApplicationInfo) error
}

// InFlightTracker marks applications in progress so interrupted ones are visible after restart
type InFlightTracker interface {
	OnStart(jobID string) (string, error)
	OnFinish(fname string) error
	List() []Marker
}

// Prompter asks the user to act and waits for confirmation
type Prompter interface {
	Confirm(msg string)
}

// Notifier defines notification delivery for ready-to-submit and session summary
type Notifier interface {
	Send(ctx context.Context, subj, text string) error
	IsOnReady() bool
	IsOnSummary() bool
	MakeReadyHTML(title, company, url string) (string, error)
	MakeSummaryHTML(stats map[string]int) (string, error)
}

const (
	idleCheckInterval = 500 * time.Millisecond
	noCardsPause      = 3 * time.Second
	batchPause        = time.Second
)

// Do runs the blocking apply session until the context is canceled or the
// configured application cap is reached. Jobs recorded before are skipped.
func (r *Runner) Do(ctx context.Context) error {
	if r.NotifyTimeout == 0 {
		r.NotifyTimeout = 30 * time.Second
	}
	r.stats = map[string]int{}

	r.recoverInterrupted()
	defer r.sendSummary()

	submitted := 0
	for {
		if ctx.Err() != nil {
			log.Print("[DEBUG] session terminated")
			return nil
		}

		count, err := r.Board.CardCount()
		if err != nil {
			return fmt.Errorf("failed to list job cards: %w", err)
		}
		if count == 0 {
			log.Print("[WARN] no job cards found, make sure the search results list is visible")
			if !sleep(ctx, noCardsPause) {
				return nil
			}
			continue
		}

		for i := 0; i < count; i++ {
			if ctx.Err() != nil {
				return nil
			}

			done, err := r.processCard(ctx, i)
			if err != nil {
				log.Printf("[WARN] card %d failed, %v", i, err)
				continue
			}
			if done == store.StatusSubmitted {
				submitted++
				if r.Behavior.MaxApplications > 0 && submitted >= r.Behavior.MaxApplications {
					log.Printf("[INFO] reached %d applications, stopping", submitted)
					return nil
				}
			}
		}

		if err := r.Board.LoadMore(); err != nil {
			log.Printf("[DEBUG] can't load more results, %v", err)
		}
		if !sleep(ctx, batchPause) {
			return nil
		}
	}
}

// processCard handles a single job card, returns the resulting status
// or empty string when the card was skipped without recording
func (r *Runner) processCard(ctx context.Context, idx int) (string, error) {
	id := r.Board.CardID(idx)
	if id == "" {
		// no stable id, make one up so the card is not reprocessed within this run
		id = fmt.Sprintf("idx-%d-%d", idx, time.Now().Unix())
	}
	if r.Applied.Seen(id) {
		return "", nil
	}

	if err := r.Board.OpenCard(idx); err != nil {
		return "", fmt.Errorf("can't open card: %w", err)
	}

	title, company := r.Board.JobTitle(), r.Board.JobCompany()
	startedAt := time.Now()

	ok, err := r.Board.StartEasyApply()
	if err != nil {
		return "", fmt.Errorf("can't start easy apply: %w", err)
	}
	if !ok {
		r.record(id, store.StatusSkipped, title, company, startedAt)
		return store.StatusSkipped, nil
	}

	marker, err := r.InFlight.OnStart(id)
	if err != nil {
		log.Printf("[WARN] can't mark %s in-flight, %v", id, err)
	}

	status := r.walkModal(ctx, title, company)
	r.record(id, status, title, company, startedAt)

	if marker != "" {
		if err := r.InFlight.OnFinish(marker); err != nil {
			log.Printf("[WARN] can't remove in-flight marker for %s, %v", id, err)
		}
	}
	return status, nil
}

// walkModal steps through the multi-page easy apply form. Never clicks Submit,
// announces readiness and waits for the human to do it.
func (r *Runner) walkModal(ctx context.Context, title, company string) string {
	lastAction := time.Now()
	maxIdle := r.Behavior.MaxIdle.Value()
	announced := false

	for {
		if ctx.Err() != nil {
			return store.StatusInterrupted
		}

		visible, err := r.Modal.Visible()
		if err != nil || !visible {
			return store.StatusClosed
		}

		if n, err := r.Modal.FillKnownFields(r.Answers); err == nil && n > 0 {
			lastAction = time.Now()
		}

		if vis, _ := r.Modal.ButtonVisible("Submit"); vis {
			if !announced {
				log.Printf("[INFO] ready to submit %q at %s, review and click Submit in the modal", title, company)
				r.notifyReady(ctx, title, company)
				announced = true
			}
			if !r.waitModalClose(ctx, maxIdle) {
				log.Print("[WARN] timed out waiting for submit, leaving modal open")
				return store.StatusTimeout
			}
			if vis, _ := r.Modal.ButtonVisible("Done"); vis {
				_ = r.Modal.ClickButton("Done")
			}
			return store.StatusSubmitted
		}

		if vis, _ := r.Modal.ButtonVisible("Review"); vis {
			if err := r.Modal.ClickButton("Review"); err == nil {
				lastAction = time.Now()
				continue
			}
		}

		if vis, _ := r.Modal.ButtonVisible("Next"); vis {
			if err := r.Modal.ClickButton("Next"); err == nil {
				lastAction = time.Now()
				if hasErr, _ := r.Modal.HasValidationError(); hasErr && r.Behavior.PauseOnUnfilled {
					r.Prompter.Confirm("validation error, fill required fields in the modal")
				}
				continue
			}
		}

		// none of the expected buttons present, hand over to the human
		if r.Behavior.PauseOnUnfilled {
			r.Prompter.Confirm("complete this step manually in the modal")
			lastAction = time.Now()
			continue
		}

		if time.Since(lastAction) > maxIdle {
			return store.StatusTimeout
		}
		if !sleep(ctx, idleCheckInterval) {
			return store.StatusInterrupted
		}
	}
}

// waitModalClose polls the dialog until it is closed by the user or maxIdle passes
func (r *Runner) waitModalClose(ctx context.Context, maxIdle time.Duration) bool {
	deadline := time.Now().Add(maxIdle)
	for {
		visible, err := r.Modal.Visible()
		if err != nil || !visible {
			return true
		}
		if maxIdle > 0 && time.Now().After(deadline) {
			return false
		}
		if !sleep(ctx, idleCheckInterval) {
			return false
		}
	}
}

// record stores the outcome in the applied set and the history, failures are logged only:
// losing one record should not kill the session
func (r *Runner) record(id, status, title, company string, startedAt time.Time) {
	r.stats[status]++
	rec := store.Record{Status: status, Title: title, Company: company, URL: r.Board.PageURL()}
	if err := r.Applied.Record(id, rec); err != nil {
		log.Printf("[ERROR] can't record %s, %v", id, err)
	}
	if r.History != nil {
		app := store.ApplicationInfo{JobID: id, Title: title, Company: company, URL: rec.URL,
			Status: status, StartedAt: startedAt, FinishedAt: time.Now()}
		if err := r.History.RecordApplication(app); err != nil {
			log.Printf("[WARN] can't record history for %s, %v", id, err)
		}
	}
	log.Printf("[INFO] %s: %q at %s -> %s", id, title, company, status)
}

// recoverInterrupted reports jobs left mid-application by a previous run
func (r *Runner) recoverInterrupted() {
	for _, m := range r.InFlight.List() {
		if !r.Applied.Seen(m.JobID) {
			log.Printf("[WARN] job %s was interrupted mid-application", m.JobID)
			if err := r.Applied.Record(m.JobID, store.Record{Status: store.StatusInterrupted}); err != nil {
				log.Printf("[ERROR] can't record interrupted %s, %v", m.JobID, err)
			}
			r.stats[store.StatusInterrupted]++
		}
		if err := r.InFlight.OnFinish(m.Fname); err != nil {
			log.Printf("[WARN] can't remove stale marker %s, %v", m.Fname, err)
		}
	}
}

// notifyReady sends the ready-to-submit notification if enabled
func (r *Runner) notifyReady(ctx context.Context, title, company string) {
	if r.Notifier == nil || !r.Notifier.IsOnReady() {
		return
	}
	msg, err := r.Notifier.MakeReadyHTML(title, company, r.Board.PageURL())
	if err != nil {
		log.Printf("[WARN] can't make ready notification, %v", err)
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.NotifyTimeout)
	defer cancel()
	if err := r.Notifier.Send(nctx, fmt.Sprintf("ready to submit: %s at %s", title, company), msg); err != nil {
		log.Printf("[WARN] can't send ready notification, %v", err)
	}
}

// sendSummary sends the session summary notification if enabled
func (r *Runner) sendSummary() {
	if r.Notifier == nil || !r.Notifier.IsOnSummary() || len(r.stats) == 0 {
		return
	}
	msg, err := r.Notifier.MakeSummaryHTML(r.stats)
	if err != nil {
		log.Printf("[WARN] can't make summary notification, %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.NotifyTimeout)
	defer cancel()
	if err := r.Notifier.Send(ctx, "apply session finished", msg); err != nil {
		log.Printf("[WARN] can't send summary notification, %v", err)
	}
}

// sleep waits for duration or context cancellation, returns false when canceled
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
