package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/xolan/wogger/internal/apperr"
	"github.com/xolan/wogger/internal/entry"
	"github.com/xolan/wogger/internal/reconciler"
	"github.com/xolan/wogger/internal/service"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Prompt for what you worked on at each scheduled interval",
	Long: `Run the prompt scheduler in the foreground. Whenever an interval ends,
wogger asks what you worked on. Time you already logged is left out, and an
interval that is fully logged is not asked about.

Answers:
  <task>                      Log the whole interval to <task>
  (empty)                     Repeat the last task
  split review=30m mail=15m   Divide the interval; the parts must add up
  skip                        Do not log this interval

Tab completes a task you logged before. Stop with Ctrl-D or Ctrl-C.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runWatch(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// prompt is one question for the user: a ready segment and, when it is
// partly logged already, the remainders to be filled together.
type prompt struct {
	seg        entry.ScheduledSegment
	remainders []entry.ScheduledSegment
}

// watchEvents collects reconciler events raised on the scheduler's
// goroutine until the program picks them up.
type watchEvents struct {
	reconciler.NopListener

	mu     sync.Mutex
	queue  []prompt
	errs   []error
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newWatchEvents() *watchEvents {
	return &watchEvents{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// SegmentReady only queues; it may run inside the program's own Update.
func (w *watchEvents) SegmentReady(seg entry.ScheduledSegment, remainders []entry.ScheduledSegment) {
	w.mu.Lock()
	w.queue = append(w.queue, prompt{seg: seg, remainders: remainders})
	w.mu.Unlock()
	w.wake()
}

func (w *watchEvents) Error(err error) {
	w.mu.Lock()
	w.errs = append(w.errs, err)
	w.mu.Unlock()
	w.wake()
}

func (w *watchEvents) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// close ends pending waits.
func (w *watchEvents) close() {
	w.once.Do(func() { close(w.done) })
}

// drain returns and clears everything queued so far.
func (w *watchEvents) drain() ([]prompt, []error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prompts, errs := w.queue, w.errs
	w.queue, w.errs = nil, nil
	return prompts, errs
}

// watchEventMsg tells the model that events are queued.
type watchEventMsg struct{}

// wait blocks until events are queued or the watch ends.
func (w *watchEvents) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.notify:
			return watchEventMsg{}
		case <-w.done:
			return nil
		}
	}
}

type watchKeys struct {
	Submit key.Binding
	Quit   key.Binding
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "answer")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c", "ctrl+d"), key.WithHelp("ctrl+d", "stop")),
	}
}

// watchModel asks for a task per ready segment, one prompt at a time.
type watchModel struct {
	rec    *reconciler.Reconciler
	events *watchEvents
	st     styles
	keys   watchKeys
	print  func(line string) tea.Cmd

	input   textinput.Model
	queue   []prompt
	current *prompt
	tasks   []string // answers collected for the remainders of current
	last    string
}

func newWatchModel(services *service.Services, events *watchEvents, st styles) watchModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.Width = 50
	ti.ShowSuggestions = true

	return watchModel{
		rec:    services.Reconciler,
		events: events,
		st:     st,
		keys:   defaultWatchKeys(),
		print:  func(line string) tea.Cmd { return tea.Println(line) },
		input:  ti,
	}
}

// Init implements tea.Model
func (m watchModel) Init() tea.Cmd {
	return m.events.wait()
}

// Update implements tea.Model
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Submit):
			if m.current == nil {
				return m, m.print(m.st.Muted.Render("Nothing to answer yet; waiting for the next interval."))
			}
			return m.submit()
		}
		if m.current == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case watchEventMsg:
		prompts, errs := m.events.drain()
		var cmds []tea.Cmd
		for _, err := range errs {
			cmds = append(cmds, m.print(m.st.Error.Render("Error: "+err.Error())))
		}
		m.queue = append(m.queue, prompts...)
		if m.current == nil {
			var cmd tea.Cmd
			m, cmd = m.advance()
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, m.events.wait())
		return m, tea.Sequence(cmds...)
	}

	if m.current != nil {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m watchModel) View() string {
	if m.current == nil {
		return m.st.Muted.Render("Waiting for the next interval. Stop with Ctrl-D or Ctrl-C.") + "\n"
	}
	return m.question() + "\n" + m.input.View() + "\n"
}

func (m watchModel) question() string {
	var q string
	if rems := m.current.remainders; len(rems) > 0 {
		i := len(m.tasks)
		q = fmt.Sprintf("  [%d/%d] %s (%s)", i+1, len(rems), rems[i].Label(), formatDuration(rems[i].Minutes))
	} else {
		seg := m.current.seg
		q = fmt.Sprintf("%s (%s) What did you work on?", seg.Label(), formatDuration(seg.Minutes))
	}
	q = m.st.Prompt.Render(q)
	if m.last != "" {
		q += " " + m.st.Muted.Render("["+m.last+"]")
	}
	return q
}

// advance moves to the next queued prompt that still needs an answer.
func (m watchModel) advance() (watchModel, tea.Cmd) {
	m.current = nil
	m.tasks = nil
	for len(m.queue) > 0 {
		p := m.queue[0]
		m.queue = m.queue[1:]

		if len(p.remainders) > 0 {
			remainders, ok := m.rec.Group(p.seg.ID)
			if !ok {
				continue
			}
			p.remainders = remainders
			m.current = &p
			var focus tea.Cmd
			m, focus = m.reset()
			header := m.print(m.st.Title.Render(fmt.Sprintf("%s is partly logged; %d unlogged %s:",
				p.seg.Label(), len(remainders), pluralize("piece", len(remainders)))))
			return m, tea.Sequence(header, focus)
		}
		if m.isPending(p.seg.ID) {
			m.current = &p
			return m.reset()
		}
	}
	m.input.Blur()
	return m, nil
}

// reset clears the input and refreshes the default and the suggestions.
func (m watchModel) reset() (watchModel, tea.Cmd) {
	m.last = m.lastTask()
	m.input.SetValue("")
	m.input.Placeholder = m.last
	if counts, err := m.rec.TaskSuggestions(); err == nil {
		suggestions := make([]string, 0, len(counts))
		for _, c := range counts {
			suggestions = append(suggestions, c.Task)
		}
		m.input.SetSuggestions(suggestions)
	}
	return m, m.input.Focus()
}

func (m watchModel) isPending(id string) bool {
	for _, seg := range m.rec.Pending() {
		if seg.ID == id {
			return true
		}
	}
	return false
}

func (m watchModel) lastTask() string {
	task, err := m.rec.LastTask()
	if err != nil {
		return ""
	}
	return task
}

// submit applies the typed answer to the current prompt.
func (m watchModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if len(m.current.remainders) > 0 {
		return m.answerGroup(line)
	}
	seg := m.current.seg
	cmd := m.answerSegment(seg, line)
	if m.isPending(seg.ID) {
		return m, cmd
	}
	m, next := m.advance()
	return m, tea.Sequence(cmd, next)
}

// answerSegment applies one answer. Errors are printed and leave the
// segment pending, so it is asked again.
func (m watchModel) answerSegment(seg entry.ScheduledSegment, line string) tea.Cmd {
	switch {
	case line == "" && m.last == "":
		return m.print(m.st.Warning.Render("Enter a task, 'split task=30m task=15m' or 'skip'"))

	case strings.EqualFold(line, "skip"):
		m.rec.Dismiss(seg.ID, reconciler.ReasonUser)
		return m.print(m.st.Muted.Render("Skipped " + seg.Label()))

	case strings.HasPrefix(strings.ToLower(line), "split "):
		parts, err := entry.ParseSplitParts(strings.Fields(line)[1:])
		if err != nil {
			return m.print(m.st.Error.Render("Error: " + err.Error()))
		}
		entries, err := m.rec.Split(seg.ID, parts)
		if err != nil {
			return m.answerError(err)
		}
		cmds := make([]tea.Cmd, 0, len(entries))
		for _, e := range entries {
			cmds = append(cmds, m.printLogged(e))
		}
		return tea.Sequence(cmds...)

	default:
		task := line
		if task == "" {
			task = m.last
		}
		e, err := m.rec.Complete(seg.ID, task)
		if err != nil {
			return m.answerError(err)
		}
		return m.printLogged(e)
	}
}

// answerGroup collects one task per remainder and logs them together.
// Answering skip to any remainder drops the whole group.
func (m watchModel) answerGroup(line string) (tea.Model, tea.Cmd) {
	p := m.current
	if strings.EqualFold(line, "skip") {
		m.rec.Dismiss(p.seg.ID, reconciler.ReasonUser)
		skipped := m.print(m.st.Muted.Render("Skipped " + p.seg.Label()))
		m, next := m.advance()
		return m, tea.Sequence(skipped, next)
	}
	if line == "" {
		line = m.last
	}
	if line == "" {
		return m, m.print(m.st.Warning.Render("Enter a task or 'skip'"))
	}
	m.tasks = append(m.tasks, line)
	m.last = line
	m.input.Placeholder = line
	if len(m.tasks) < len(p.remainders) {
		return m, nil
	}

	entries, err := m.rec.CompleteRemainders(p.seg.ID, m.tasks)
	if err != nil {
		m.tasks = nil
		return m, m.answerError(err)
	}
	cmds := make([]tea.Cmd, 0, len(entries)+1)
	for _, e := range entries {
		cmds = append(cmds, m.printLogged(e))
	}
	m, next := m.advance()
	return m, tea.Sequence(append(cmds, next)...)
}

func (m watchModel) printLogged(e entry.Entry) tea.Cmd {
	return m.print(fmt.Sprintf("%s %s %s (%s)",
		m.st.Success.Render("Logged:"), m.st.Task.Render(e.Task),
		m.st.Time.Render(timeSpan(e.Start, e.End, false)), m.st.Duration.Render(formatDuration(e.Minutes))))
}

func (m watchModel) answerError(err error) tea.Cmd {
	cmd := m.print(m.st.Error.Render("Error: " + err.Error()))
	if apperr.Is(err, apperr.KindPersistence) {
		return tea.Sequence(cmd, m.print(m.st.Muted.Render("Nothing was saved; answer again or 'skip'.")))
	}
	return cmd
}

// runWatch starts the scheduler and answers prompts until the user quits
// or the process is interrupted.
func runWatch(ctx context.Context) {
	services, ok := loadServices()
	if !ok {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := newWatchEvents()
	defer events.close()
	services.Reconciler.Subscribe(events)
	services.Scheduler.Start()
	defer services.Scheduler.Stop()

	st := newStyles(deps.Stdout)
	_, _ = fmt.Fprintln(deps.Stdout, st.Title.Render("Watching with schedule '"+services.Scheduler.Expression()+"'"))
	if next, ok := services.Scheduler.NextFire(); ok {
		_, _ = fmt.Fprintln(deps.Stdout, st.Muted.Render("Next prompt at "+next.Format("15:04")+"."))
	}

	program := tea.NewProgram(newWatchModel(services, events, st),
		tea.WithContext(ctx),
		tea.WithInput(deps.Stdin),
		tea.WithOutput(deps.Stdout),
		tea.WithoutSignalHandler(),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		_, _ = fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		deps.Exit(1)
	}
}
