package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/autoapply/app/config"
	"github.com/umputun/autoapply/app/store"
)

// mocks for the runner collaborators, function fields in moq style

type boardMock struct {
	CardCountFunc      func() (int, error)
	CardIDFunc         func(idx int) string
	OpenCardFunc       func(idx int) error
	StartEasyApplyFunc func() (bool, error)
	LoadMoreFunc       func() error

	openedCards []int
}

func (m *boardMock) CardCount() (int, error) { return m.CardCountFunc() }
func (m *boardMock) CardID(idx int) string   { return m.CardIDFunc(idx) }
func (m *boardMock) OpenCard(idx int) error {
	m.openedCards = append(m.openedCards, idx)
	if m.OpenCardFunc != nil {
		return m.OpenCardFunc(idx)
	}
	return nil
}
func (m *boardMock) JobTitle() string   { return "Go Developer" }
func (m *boardMock) JobCompany() string { return "Acme" }
func (m *boardMock) PageURL() string    { return "https://www.linkedin.com/jobs/view/42" }
func (m *boardMock) StartEasyApply() (bool, error) {
	if m.StartEasyApplyFunc != nil {
		return m.StartEasyApplyFunc()
	}
	return true, nil
}
func (m *boardMock) LoadMore() error {
	if m.LoadMoreFunc != nil {
		return m.LoadMoreFunc()
	}
	return nil
}

type modalMock struct {
	VisibleFunc            func() (bool, error)
	ButtonVisibleFunc      func(name string) (bool, error)
	ClickButtonFunc        func(name string) error
	HasValidationErrorFunc func() (bool, error)
	FillKnownFieldsFunc    func(answers map[string]string) (int, error)

	clicked []string
}

func (m *modalMock) Visible() (bool, error) {
	if m.VisibleFunc != nil {
		return m.VisibleFunc()
	}
	return true, nil
}
func (m *modalMock) ButtonVisible(name string) (bool, error) { return m.ButtonVisibleFunc(name) }
func (m *modalMock) ClickButton(name string) error {
	m.clicked = append(m.clicked, name)
	if m.ClickButtonFunc != nil {
		return m.ClickButtonFunc(name)
	}
	return nil
}
func (m *modalMock) HasValidationError() (bool, error) {
	if m.HasValidationErrorFunc != nil {
		return m.HasValidationErrorFunc()
	}
	return false, nil
}
func (m *modalMock) FillKnownFields(answers map[string]string) (int, error) {
	if m.FillKnownFieldsFunc != nil {
		return m.FillKnownFieldsFunc(answers)
	}
	return 0, nil
}

type appliedMock struct {
	lock    sync.Mutex
	seen    map[string]bool
	records map[string]store.Record
	onWrite func(id string)
}

func newAppliedMock(seen ...string) *appliedMock {
	m := &appliedMock{seen: map[string]bool{}, records: map[string]store.Record{}}
	for _, id := range seen {
		m.seen[id] = true
	}
	return m
}

func (m *appliedMock) Seen(id string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.seen[id]
}

func (m *appliedMock) Record(id string, rec store.Record) error {
	m.lock.Lock()
	m.seen[id] = true
	m.records[id] = rec
	m.lock.Unlock()
	if m.onWrite != nil {
		m.onWrite(id)
	}
	return nil
}

type promptMock struct{ msgs []string }

func (m *promptMock) Confirm(msg string) { m.msgs = append(m.msgs, msg) }

type notifierMock struct {
	onReady   bool
	onSummary bool
	sent      []string
}

func (m *notifierMock) Send(_ context.Context, subj, _ string) error {
	m.sent = append(m.sent, subj)
	return nil
}
func (m *notifierMock) IsOnReady() bool   { return m.onReady }
func (m *notifierMock) IsOnSummary() bool { return m.onSummary }
func (m *notifierMock) MakeReadyHTML(title, company, _ string) (string, error) {
	return "ready " + title + " " + company, nil
}
func (m *notifierMock) MakeSummaryHTML(map[string]int) (string, error) { return "summary", nil }

type historyMock struct {
	lock sync.Mutex
	apps []store.ApplicationInfo
}

func (m *historyMock) RecordApplication(app store.ApplicationInfo) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.apps = append(m.apps, app)
	return nil
}

// submitthen closes: Submit visible, then the dialog goes away as if the user clicked it
func submitFlowModal() *modalMock {
	m := &modalMock{}
	visibleCalls := 0
	m.VisibleFunc = func() (bool, error) {
		visibleCalls++
		return visibleCalls == 1, nil // open on the first check, closed when polled again
	}
	m.ButtonVisibleFunc = func(name string) (bool, error) { return name == "Submit", nil }
	return m
}

func TestRunner_SkipsAlreadyApplied(t *testing.T) {
	board := &boardMock{
		CardCountFunc: func() (int, error) { return 2, nil },
		CardIDFunc:    func(idx int) string { return []string{"100", "200"}[idx] },
	}
	applied := newAppliedMock("100")
	hist := &historyMock{}

	r := Runner{
		Board:    board,
		Modal:    submitFlowModal(),
		Applied:  applied,
		History:  hist,
		InFlight: NewInFlight(t.TempDir(), true),
		Prompter: &promptMock{},
		Behavior: config.Behavior{MaxIdle: config.Duration(time.Minute), MaxApplications: 1},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Do(ctx))

	assert.Equal(t, []int{1}, board.openedCards, "seen card not opened")
	assert.Equal(t, store.StatusSubmitted, applied.records["200"].Status)
	_, seenRecorded := applied.records["100"]
	assert.False(t, seenRecorded, "already applied job should not be re-recorded")

	require.Len(t, hist.apps, 1)
	assert.Equal(t, "200", hist.apps[0].JobID)
	assert.Equal(t, "Go Developer", hist.apps[0].Title)
}

func TestRunner_RecordsSkippedWithoutEasyApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board := &boardMock{
		CardCountFunc:      func() (int, error) { return 2, nil },
		CardIDFunc:         func(idx int) string { return []string{"1", "2"}[idx] },
		StartEasyApplyFunc: func() (bool, error) { return false, nil },
	}
	applied := newAppliedMock()
	applied.onWrite = func(string) {
		if len(applied.records) == 2 {
			cancel() // both cards processed, stop the session
		}
	}

	r := Runner{
		Board:    board,
		Modal:    &modalMock{ButtonVisibleFunc: func(string) (bool, error) { return false, nil }},
		Applied:  applied,
		InFlight: NewInFlight(t.TempDir(), false),
		Prompter: &promptMock{},
		Behavior: config.Behavior{MaxIdle: config.Duration(time.Minute)},
	}

	require.NoError(t, r.Do(ctx))
	assert.Equal(t, store.StatusSkipped, applied.records["1"].Status)
	assert.Equal(t, store.StatusSkipped, applied.records["2"].Status)
}

func TestRunner_WalkModalNextReviewFlow(t *testing.T) {
	step := 0
	modal := &modalMock{}
	modal.VisibleFunc = func() (bool, error) { return step < 4, nil }
	modal.ButtonVisibleFunc = func(name string) (bool, error) {
		switch {
		case step <= 1 && name == "Next":
			return true, nil
		case step == 2 && name == "Review":
			return true, nil
		case step == 3 && name == "Submit":
			step = 4 // dialog closes right away, as if the user clicked Submit
			return true, nil
		}
		return false, nil
	}
	modal.ClickButtonFunc = func(string) error { step++; return nil }
	modal.HasValidationErrorFunc = func() (bool, error) { return step == 2, nil }

	prompter := &promptMock{}
	r := Runner{
		Modal:    modal,
		Prompter: prompter,
		Behavior: config.Behavior{MaxIdle: config.Duration(time.Minute), PauseOnUnfilled: true},
	}

	status := r.walkModal(context.Background(), "Go Developer", "Acme")
	assert.Equal(t, store.StatusSubmitted, status)
	assert.Equal(t, []string{"Next", "Next", "Review"}, modal.clicked)
	require.Len(t, prompter.msgs, 1, "validation error prompts once")
	assert.Contains(t, prompter.msgs[0], "validation error")
}

func TestRunner_WalkModalTimeout(t *testing.T) {
	modal := &modalMock{
		ButtonVisibleFunc: func(string) (bool, error) { return false, nil },
	}
	r := Runner{
		Modal:    modal,
		Prompter: &promptMock{},
		Behavior: config.Behavior{MaxIdle: config.Duration(100 * time.Millisecond), PauseOnUnfilled: false},
	}

	status := r.walkModal(context.Background(), "t", "c")
	assert.Equal(t, store.StatusTimeout, status)
}

func TestRunner_WalkModalClosedByUser(t *testing.T) {
	modal := &modalMock{VisibleFunc: func() (bool, error) { return false, nil }}
	r := Runner{Modal: modal, Prompter: &promptMock{}, Behavior: config.Behavior{MaxIdle: config.Duration(time.Minute)}}
	assert.Equal(t, store.StatusClosed, r.walkModal(context.Background(), "t", "c"))
}

func TestRunner_RecoversInterrupted(t *testing.T) {
	dir := t.TempDir()
	inflight := NewInFlight(dir, true)
	_, err := inflight.OnStart("555")
	require.NoError(t, err)

	applied := newAppliedMock()
	r := Runner{
		Board:    &boardMock{CardCountFunc: func() (int, error) { return 0, nil }},
		Modal:    &modalMock{},
		Applied:  applied,
		InFlight: inflight,
		Prompter: &promptMock{},
		Behavior: config.Behavior{MaxIdle: config.Duration(time.Minute)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // only the recovery pass should run
	require.NoError(t, r.Do(ctx))

	assert.Equal(t, store.StatusInterrupted, applied.records["555"].Status)
	assert.Empty(t, inflight.List(), "marker removed after recovery")
}

func TestRunner_Notifications(t *testing.T) {
	notifier := &notifierMock{onReady: true, onSummary: true}
	r := Runner{
		Board: &boardMock{
			CardCountFunc: func() (int, error) { return 1, nil },
			CardIDFunc:    func(int) string { return "42" },
		},
		Modal:    submitFlowModal(),
		Applied:  newAppliedMock(),
		InFlight: NewInFlight(t.TempDir(), false),
		Prompter: &promptMock{},
		Notifier: notifier,
		Behavior: config.Behavior{MaxIdle: config.Duration(time.Minute), MaxApplications: 1},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Do(ctx))

	require.Len(t, notifier.sent, 2)
	assert.Contains(t, notifier.sent[0], "ready to submit")
	assert.Contains(t, notifier.sent[0], "Go Developer")
	assert.Equal(t, "apply session finished", notifier.sent[1])
}

func TestRunner_MadeUpIDForCardWithoutOne(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := newAppliedMock()
	applied.onWrite = func(string) { cancel() }

	r := Runner{
		Board: &boardMock{
			CardCountFunc:      func() (int, error) { return 1, nil },
			CardIDFunc:         func(int) string { return "" },
			StartEasyApplyFunc: func() (bool, error) { return false, nil },
		},
		Modal:    &modalMock{},
		Applied:  applied,
		InFlight: NewInFlight(t.TempDir(), false),
		Prompter: &promptMock{},
		Behavior: config.Behavior{MaxIdle: config.Duration(time.Minute)},
	}
	require.NoError(t, r.Do(ctx))

	require.Len(t, applied.records, 1)
	for id := range applied.records {
		assert.True(t, strings.HasPrefix(id, "idx-0-"), "synthetic id for card without one, got %s", id)
	}
}
