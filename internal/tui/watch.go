// ABOUTME: Live session watch screen built on bubbletea
// ABOUTME: Renders session state, device identity and a rolling event log

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bloomapp/bloom/internal/events"
	"github.com/bloomapp/bloom/internal/models"
	"github.com/bloomapp/bloom/internal/session"
	"github.com/bloomapp/bloom/internal/tui/styles"
)

// SessionSource is the slice of the session manager the watch screen reads.
type SessionSource interface {
	State() session.State
	Session() models.Session
}

// DeviceSource is the slice of the device manager the watch screen reads.
type DeviceSource interface {
	DeviceID() string
	Rotation() models.RotationSettings
}

// eventMsg carries one bus event into the bubbletea update loop.
type eventMsg struct {
	event events.Event
}

type logEntry struct {
	at   time.Time
	text string
}

// maxLogEntries bounds the rolling activity log.
const maxLogEntries = 12

// Watch is a read-only live view of the session and device state. Bus events
// are forwarded through a channel so handlers never block a publisher.
type Watch struct {
	session SessionSource
	device  DeviceSource
	backend string

	eventCh     chan events.Event
	done        chan struct{}
	unsubscribe []func()

	spin    spinner.Model
	entries []logEntry
	width   int
	height  int
}

// NewWatch creates the watch screen and subscribes it to the bus.
func NewWatch(sess SessionSource, dev DeviceSource, bus *events.Bus, backend string) *Watch {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	w := &Watch{
		session: sess,
		device:  dev,
		backend: backend,
		eventCh: make(chan events.Event, 32),
		done:    make(chan struct{}),
		spin:    sp,
	}
	w.unsubscribe = []func(){
		events.Subscribe(bus, func(e events.SessionRestored) { w.forward(e) }),
		events.Subscribe(bus, func(e events.Authenticated) { w.forward(e) }),
		events.Subscribe(bus, func(e events.LoginFailed) { w.forward(e) }),
		events.Subscribe(bus, func(e events.LoggedOut) { w.forward(e) }),
		events.Subscribe(bus, func(e events.SessionExpired) { w.forward(e) }),
		events.Subscribe(bus, func(e events.DeviceRotated) { w.forward(e) }),
		events.Subscribe(bus, func(e events.RotationFailed) { w.forward(e) }),
	}
	return w
}

// Run starts the watch screen and blocks until the user quits.
func Run(w *Watch) error {
	p := tea.NewProgram(w, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (w *Watch) forward(e events.Event) {
	select {
	case w.eventCh <- e:
	default:
		// UI is behind; dropping beats blocking the publisher.
	}
}

// Close detaches the watch from the bus.
func (w *Watch) Close() {
	for _, unsub := range w.unsubscribe {
		unsub()
	}
	close(w.done)
}

// Init implements tea.Model
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spin.Tick, w.waitForEvent())
}

func (w *Watch) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-w.eventCh:
			return eventMsg{event: e}
		case <-w.done:
			return nil
		}
	}
}

// Update implements tea.Model
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		return w, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return w, tea.Quit
		}
		return w, nil

	case eventMsg:
		w.record(msg.event)
		return w, w.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spin, cmd = w.spin.Update(msg)
		return w, cmd
	}
	return w, nil
}

func (w *Watch) record(e events.Event) {
	w.entries = append(w.entries, logEntry{at: e.Timestamp(), text: describe(e)})
	if len(w.entries) > maxLogEntries {
		w.entries = w.entries[len(w.entries)-maxLogEntries:]
	}
}

// describe renders one event for the activity log. Token values never appear
// here.
func describe(e events.Event) string {
	switch e := e.(type) {
	case events.SessionRestored:
		if e.Username == "" {
			return fmt.Sprintf("session restored on %s", e.ServerURL)
		}
		return fmt.Sprintf("session restored for %s on %s", e.Username, e.ServerURL)
	case events.Authenticated:
		return fmt.Sprintf("logged in as %s on %s", e.Username, e.ServerURL)
	case events.LoginFailed:
		return "login failed: " + e.Message
	case events.LoggedOut:
		return "logged out"
	case events.SessionExpired:
		if e.Deferred {
			return "session expired (deferred notification)"
		}
		return "session expired"
	case events.DeviceRotated:
		return fmt.Sprintf("device id rotated to %s", e.NewID)
	case events.RotationFailed:
		return "token migration failed during rotation: " + e.Reason
	default:
		return e.Type()
	}
}

// View implements tea.Model
func (w *Watch) View() string {
	state := w.session.State()
	sess := w.session.Session()

	stateLine := styles.StateBadge(state.String())
	if state == session.StateRestoring {
		stateLine = w.spin.View() + " " + stateLine
	}

	var info strings.Builder
	info.WriteString(fmt.Sprintf("%s  %s\n", styles.Label.Render("State"), stateLine))
	info.WriteString(fmt.Sprintf("%s  %s\n", styles.Label.Render("Server"), valueOrDash(sess.ServerURL)))
	info.WriteString(fmt.Sprintf("%s  %s\n", styles.Label.Render("User"), valueOrDash(sess.Username)))
	info.WriteString(fmt.Sprintf("%s  %s\n", styles.Label.Render("Token"), tokenPresence(sess.AccessToken)))
	info.WriteString("\n")
	info.WriteString(fmt.Sprintf("%s  %s\n", styles.Label.Render("Device"), valueOrDash(w.device.DeviceID())))
	info.WriteString(fmt.Sprintf("%s  %s\n", styles.Label.Render("Rotation"), rotationSummary(w.device.Rotation())))
	info.WriteString(fmt.Sprintf("%s  %s", styles.Label.Render("Store"), styles.Value.Render(w.backend)))

	var sb strings.Builder
	sb.WriteString(styles.Title.Render("Bloom session watch"))
	sb.WriteString("\n")
	sb.WriteString(styles.Panel.Render(info.String()))
	sb.WriteString("\n")

	if len(w.entries) > 0 {
		sb.WriteString(styles.Subtitle.Render("Recent activity"))
		sb.WriteString("\n")
		for _, entry := range w.entries {
			sb.WriteString(fmt.Sprintf("  %s %s\n", styles.EventTime.Render(entry.at.Format("15:04:05")), entry.text))
		}
	}

	sb.WriteString(styles.Help.Render("q: quit"))
	return sb.String()
}

func valueOrDash(s string) string {
	if s == "" {
		return styles.Label.Render("-")
	}
	return styles.Value.Render(s)
}

func tokenPresence(token string) string {
	if token == "" {
		return styles.Label.Render("none")
	}
	return styles.Value.Render("present")
}

func rotationSummary(r models.RotationSettings) string {
	if !r.AutoRotation || r.IntervalDays <= 0 {
		return styles.Value.Render("manual")
	}
	summary := fmt.Sprintf("every %d days", r.IntervalDays)
	if !r.LastRotation.IsZero() {
		summary += ", last " + r.LastRotation.Format("2006-01-02")
	}
	return styles.Value.Render(summary)
}
