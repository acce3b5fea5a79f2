package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/service"
	"github.com/xolan/wogger/internal/timerange"
)

func segmentAt(h1, m1, h2, m2 int) entry.ScheduledSegment {
	return entry.NewSegment(timerange.MustNew(at(h1, m1), at(h2, m2)))
}

// newTestWatchModel returns a model subscribed to fresh services. Printed
// lines go to the returned buffer.
func newTestWatchModel(t *testing.T, seed ...entry.Entry) (watchModel, *service.Services, *bytes.Buffer) {
	t.Helper()
	_, services, stdout, _ := testDeps(t)
	seedEntries(t, services, seed...)
	events := newWatchEvents()
	t.Cleanup(events.close)
	services.Reconciler.Subscribe(events)

	m := newWatchModel(services, events, newStyles(stdout))
	m.print = func(line string) tea.Cmd {
		_, _ = fmt.Fprintln(stdout, line)
		return nil
	}
	return m, services, stdout
}

func update(t *testing.T, m watchModel, msg tea.Msg) (watchModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(watchModel)
	if !ok {
		t.Fatalf("Update() returned %T, expected watchModel", next)
	}
	return wm, cmd
}

// deliver hands queued reconciler events to the model.
func deliver(t *testing.T, m watchModel) watchModel {
	t.Helper()
	m, _ = update(t, m, watchEventMsg{})
	return m
}

// answer types text and presses enter.
func answer(t *testing.T, m watchModel, text string) watchModel {
	t.Helper()
	if text != "" {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	return m
}

func handle(t *testing.T, services *service.Services, seg entry.ScheduledSegment) {
	t.Helper()
	if err := services.Reconciler.HandleSegment(seg); err != nil {
		t.Fatalf("HandleSegment() returned unexpected error: %v", err)
	}
}

func storedTasks(t *testing.T, services *service.Services) []string {
	t.Helper()
	all, err := services.Store.All()
	if err != nil {
		t.Fatalf("All() returned unexpected error: %v", err)
	}
	var tasks []string
	for _, e := range all {
		tasks = append(tasks, e.Task)
	}
	return tasks
}

func TestWatchModel_Answers(t *testing.T) {
	tests := []struct {
		name      string
		seed      []entry.Entry
		answers   []string
		wantTasks []string
		wantOut   string
	}{
		{
			name:      "task",
			answers:   []string{"standup"},
			wantTasks: []string{"standup"},
			wantOut:   "Logged: standup 09:00 - 10:00 (1h)",
		},
		{
			name:      "empty answer repeats last task",
			seed:      []entry.Entry{logged("review", 8, 0, 8, 30)},
			answers:   []string{""},
			wantTasks: []string{"review", "review"},
			wantOut:   "Logged: review 09:00 - 10:00 (1h)",
		},
		{
			name:      "empty answer without last task asks again",
			answers:   []string{"", "mail"},
			wantTasks: []string{"mail"},
			wantOut:   "Enter a task",
		},
		{
			name:      "split",
			answers:   []string{"split review=30m mail=30m"},
			wantTasks: []string{"review", "mail"},
			wantOut:   "Logged: mail 09:30 - 10:00 (30m)",
		},
		{
			name:      "split that does not add up asks again",
			answers:   []string{"split review=30m mail=29m", "skip"},
			wantTasks: nil,
			wantOut:   "split minutes sum to 59, segment is 60",
		},
		{
			name:      "malformed split asks again",
			answers:   []string{"split review", "standup"},
			wantTasks: []string{"standup"},
			wantOut:   "expected task=duration",
		},
		{
			name:      "skip",
			answers:   []string{"SKIP"},
			wantTasks: nil,
			wantOut:   "Skipped 09:00 - 10:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, services, stdout := newTestWatchModel(t, tt.seed...)
			handle(t, services, segmentAt(9, 0, 10, 0))
			m = deliver(t, m)
			if !strings.Contains(m.View(), "09:00 - 10:00 (1h) What did you work on?") {
				t.Fatalf("Unexpected view: %s", m.View())
			}

			for _, a := range tt.answers {
				m = answer(t, m, a)
			}

			if !strings.Contains(stdout.String(), tt.wantOut) {
				t.Errorf("Expected %q in output, got: %s", tt.wantOut, stdout.String())
			}
			if tasks := storedTasks(t, services); strings.Join(tasks, ",") != strings.Join(tt.wantTasks, ",") {
				t.Errorf("stored tasks = %v, expected %v", tasks, tt.wantTasks)
			}
			if len(services.Reconciler.Pending()) != 0 {
				t.Errorf("segment still pending: %v", services.Reconciler.Pending())
			}
			if m.current != nil {
				t.Errorf("model still asking: %s", m.View())
			}
		})
	}
}

func TestWatchModel_LastTaskIsDefault(t *testing.T) {
	m, services, _ := newTestWatchModel(t, logged("review", 8, 0, 8, 30))
	handle(t, services, segmentAt(9, 0, 10, 0))
	m = deliver(t, m)

	if !strings.Contains(m.View(), "[review]") {
		t.Errorf("Expected last task in the question, got: %s", m.View())
	}
	if m.input.Placeholder != "review" {
		t.Errorf("Placeholder = %q, expected review", m.input.Placeholder)
	}
}

func TestWatchModel_TabCompletesKnownTask(t *testing.T) {
	m, services, _ := newTestWatchModel(t, logged("code review", 8, 0, 8, 30), logged("mail", 8, 30, 8, 45))
	handle(t, services, segmentAt(9, 0, 10, 0))
	m = deliver(t, m)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("code")})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if got := m.input.Value(); got != "code review" {
		t.Fatalf("input after tab = %q, expected code review", got)
	}
	m = answer(t, m, "")

	tasks := storedTasks(t, services)
	if len(tasks) != 3 || tasks[2] != "code review" {
		t.Errorf("stored tasks = %v", tasks)
	}
}

func TestWatchModel_QueuedPromptsInOrder(t *testing.T) {
	m, services, _ := newTestWatchModel(t)
	handle(t, services, segmentAt(9, 0, 9, 30))
	handle(t, services, segmentAt(9, 30, 10, 0))
	m = deliver(t, m)

	m = answer(t, m, "first")
	if !strings.Contains(m.View(), "09:30 - 10:00 (30m)") {
		t.Fatalf("Expected second segment asked, got: %s", m.View())
	}
	m = answer(t, m, "second")

	if tasks := storedTasks(t, services); strings.Join(tasks, ",") != "first,second" {
		t.Errorf("stored tasks = %v", tasks)
	}
	if !strings.Contains(m.View(), "Waiting for the next interval") {
		t.Errorf("Expected idle view, got: %s", m.View())
	}
}

func TestWatchModel_GroupOfRemainders(t *testing.T) {
	m, services, stdout := newTestWatchModel(t, logged("call", 9, 20, 9, 40))
	handle(t, services, segmentAt(9, 0, 10, 0))
	m = deliver(t, m)

	if !strings.Contains(stdout.String(), "09:00 - 10:00 is partly logged; 2 unlogged pieces:") {
		t.Errorf("Expected group header, got: %s", stdout.String())
	}
	if !strings.Contains(m.View(), "[1/2] 09:00 - 09:20 (20m)") {
		t.Fatalf("Expected first remainder asked, got: %s", m.View())
	}
	m = answer(t, m, "prep")
	if !strings.Contains(m.View(), "[2/2] 09:40 - 10:00 (20m)") || !strings.Contains(m.View(), "[prep]") {
		t.Fatalf("Expected second remainder asked with prep as default, got: %s", m.View())
	}
	if tasks := storedTasks(t, services); len(tasks) != 1 {
		t.Fatalf("remainder logged before the group was complete: %v", tasks)
	}

	// The second remainder defaults to the first answer.
	m = answer(t, m, "")

	all, _ := services.Store.All()
	if len(all) != 3 || all[1].Task != "prep" || all[2].Task != "prep" || !all[2].Start.Equal(at(9, 40)) {
		t.Errorf("store = %+v", all)
	}
	if m.current != nil {
		t.Errorf("model still asking: %s", m.View())
	}
}

func TestWatchModel_GroupSkip(t *testing.T) {
	m, services, _ := newTestWatchModel(t, logged("call", 9, 20, 9, 40))
	handle(t, services, segmentAt(9, 0, 10, 0))
	m = deliver(t, m)

	m = answer(t, m, "prep")
	m = answer(t, m, "skip")

	if tasks := storedTasks(t, services); len(tasks) != 1 {
		t.Errorf("skipped group was logged: %v", tasks)
	}
	if len(services.Reconciler.Pending()) != 0 {
		t.Errorf("group still pending: %v", services.Reconciler.Pending())
	}
}

func TestWatchModel_AlreadyLoggedIsNotAsked(t *testing.T) {
	m, services, stdout := newTestWatchModel(t, logged("call", 9, 0, 10, 0))
	handle(t, services, segmentAt(9, 0, 10, 0))
	m = deliver(t, m)

	if m.current != nil {
		t.Errorf("Asked about a logged segment: %s", m.View())
	}
	m = answer(t, m, "")
	if !strings.Contains(stdout.String(), "Nothing to answer yet") {
		t.Errorf("Expected idle notice, got: %s", stdout.String())
	}
}

func TestWatchModel_PrintsQueuedErrors(t *testing.T) {
	m, _, stdout := newTestWatchModel(t)
	m.events.Error(errors.New("disk full"))

	deliver(t, m)

	if !strings.Contains(stdout.String(), "Error: disk full") {
		t.Errorf("Expected queued error, got: %s", stdout.String())
	}
}

func TestWatchModel_QuitKeys(t *testing.T) {
	for _, keyType := range []tea.KeyType{tea.KeyCtrlC, tea.KeyCtrlD} {
		m, services, _ := newTestWatchModel(t)
		handle(t, services, segmentAt(9, 0, 10, 0))
		m = deliver(t, m)

		_, cmd := update(t, m, tea.KeyMsg{Type: keyType})
		if cmd == nil {
			t.Fatalf("%v: expected a quit command", keyType)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%v: expected tea.QuitMsg", keyType)
		}
		if len(services.Reconciler.Pending()) != 1 {
			t.Errorf("%v: quitting should leave the segment pending", keyType)
		}
	}
}

func TestWatchEvents_Wait(t *testing.T) {
	events := newWatchEvents()
	wait := events.wait()
	events.SegmentReady(segmentAt(9, 0, 10, 0), nil)

	if _, ok := wait().(watchEventMsg); !ok {
		t.Error("wait() should report queued events")
	}
	prompts, errs := events.drain()
	if len(prompts) != 1 || len(errs) != 0 {
		t.Errorf("drain() = %d prompts, %d errors", len(prompts), len(errs))
	}

	events.close()
	events.close()
	if msg := events.wait()(); msg != nil {
		t.Errorf("wait() after close = %v, expected nil", msg)
	}
}

func TestRunWatch(t *testing.T) {
	d, services, stdout, _ := testDeps(t)
	exitCalled := false
	d.Exit = func(code int) { exitCalled = true }
	SetDeps(d)
	defer ResetDeps()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runWatch(ctx)

	if !strings.Contains(stdout.String(), "Watching with schedule '0,15,30,45 * * * *'") {
		t.Errorf("Unexpected output: %s", stdout.String())
	}
	if exitCalled {
		t.Error("cancelling the watch should not be an error")
	}
	if _, armed := services.Scheduler.NextFire(); armed {
		t.Error("scheduler left running after watch returned")
	}
}
