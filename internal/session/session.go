// Package session drives the news pages through the panel: one page per
// document title or entry summary, a fixed dwell with abort polling between
// pages, and a clean shutdown that leaves the panel blank and asleep.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"periph.io/x/conn/v3/display"

	"epdnews/internal/button"
	"epdnews/internal/epd"
	"epdnews/internal/framebuf"
	"epdnews/internal/layout"
	appLog "epdnews/internal/log"
	"epdnews/internal/model"
	"epdnews/internal/render"
)

// Panel is the display the session drives. *epd.Driver and *epd.Console
// implement it.
type Panel interface {
	Init() error
	Clear(color byte) error
	DisplayPartial(f epd.Frame) error
	Sleep() error
}

// Source produces the document to show.
type Source interface {
	Document(ctx context.Context) (*model.Document, error)
}

// Clock abstracts time so the dwell and shutdown timings can be tested.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Defaults.
const (
	DefaultPollInterval  = time.Second
	DefaultPollCount     = 10
	DefaultShutdownDelay = 2 * time.Second
)

// Options configures a Session.
type Options struct {
	// MaxWidth and MaxHeight are the text grid in characters.
	MaxWidth  int
	MaxHeight int

	// PollInterval and PollCount define the dwell per page: the abort
	// signal is checked PollCount times, PollInterval apart.
	PollInterval time.Duration
	PollCount    int

	// ClearEachPage runs a full refresh to white before every page,
	// removing partial-refresh ghosting at the cost of a flash.
	ClearEachPage bool

	// ShutdownDelay is the pause between the final clear and deep sleep.
	ShutdownDelay time.Duration

	// Refresh, if set, delays each re-fetch to its next activation.
	// Otherwise the document is re-fetched as soon as a pass completes.
	Refresh cron.Schedule

	// Once stops after a single pass over the document.
	Once bool

	// Mirror, if set, receives a copy of every rendered page.
	Mirror display.Drawer

	// DumpDir, if set, receives a PNG and the raw plane of every page.
	DumpDir string

	// OnPage is called after a page is shown.
	OnPage func(index int, text string, lines []string)

	Clock Clock
}

// Phase describes what the session is doing.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseFetching Phase = "fetching"
	PhaseShowing  Phase = "showing"
	PhaseWaiting  Phase = "waiting"
	PhaseStopped  Phase = "stopped"
)

// Status is a snapshot of the session for observers.
type Status struct {
	Phase     Phase     `json:"phase"`
	Page      int       `json:"page"`
	Pages     int       `json:"pages"`
	Text      string    `json:"text"`
	Lines     []string  `json:"lines"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	NextFetch *time.Time `json:"next_fetch,omitempty"`
	LastError string    `json:"last_error,omitempty"`

	// Frame is a copy of the last rendered page.
	Frame *framebuf.Framebuffer `json:"-"`
}

// Session owns the panel and the frame for its lifetime. Run, ShowDocument
// and Shutdown must be called from one goroutine; Status and Document are
// safe for concurrent use.
type Session struct {
	panel    Panel
	source   Source
	button   button.Reader
	fb       *framebuf.Framebuffer
	renderer *render.Renderer
	opts     Options

	mu     sync.Mutex
	status Status
	doc    *model.Document
}

// New returns a Session drawing into fb with r.
func New(panel Panel, source Source, btn button.Reader, fb *framebuf.Framebuffer, r *render.Renderer, opts Options) (*Session, error) {
	if panel == nil || fb == nil {
		return nil, errors.New("session: panel and framebuffer are required")
	}
	if btn == nil {
		btn = button.None()
	}
	if r == nil {
		r = render.New(nil, 0)
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = layout.DefaultMaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = layout.DefaultMaxHeight
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollCount <= 0 {
		opts.PollCount = DefaultPollCount
	}
	if opts.ShutdownDelay <= 0 {
		opts.ShutdownDelay = DefaultShutdownDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	s := &Session{
		panel:    panel,
		source:   source,
		button:   btn,
		fb:       fb,
		renderer: r,
		opts:     opts,
	}
	s.status = Status{Phase: PhaseStarting, UpdatedAt: opts.Clock.Now()}
	return s, nil
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Lines = append([]string(nil), st.Lines...)
	if st.NextFetch != nil {
		next := *st.NextFetch
		st.NextFetch = &next
	}
	return st
}

// Document returns the document being shown, if any.
func (s *Session) Document() *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

func (s *Session) update(fn func(st *Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.status.UpdatedAt = s.opts.Clock.Now()
	s.mu.Unlock()
}

// Run initializes and clears the panel, then shows the document from the
// source page by page, re-fetching after every pass, until the abort signal
// fires or ctx is done. Either way the panel is shut down before Run
// returns nil. Panel errors are returned as is; the caller should still
// attempt Shutdown.
func (s *Session) Run(ctx context.Context) error {
	if s.source == nil {
		return errors.New("session: no source")
	}
	if err := s.panel.Init(); err != nil {
		return s.fail(err)
	}
	if err := s.panel.Clear(framebuf.White); err != nil {
		return s.fail(err)
	}

	for {
		s.update(func(st *Status) { st.Phase = PhaseFetching })
		doc, err := s.source.Document(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.Shutdown()
			}
			prev := s.Document()
			if prev == nil {
				return s.fail(err)
			}
			appLog.Error("document fetch failed; showing previous document", err)
			s.update(func(st *Status) { st.LastError = err.Error() })
			doc = prev
		}

		aborted, err := s.ShowDocument(ctx, doc)
		if err != nil {
			return s.fail(err)
		}
		if aborted || s.opts.Once {
			return s.Shutdown()
		}

		if s.opts.Refresh != nil {
			aborted, err := s.waitNextFetch(ctx)
			if err != nil {
				return s.fail(err)
			}
			if aborted {
				return s.Shutdown()
			}
		}
	}
}

func (s *Session) fail(err error) error {
	s.update(func(st *Status) { st.LastError = err.Error() })
	return err
}

// ShowDocument shows every page of doc in order, dwelling on each. It
// reports whether the abort signal fired or ctx ended during a dwell; the
// remaining pages are not shown in that case.
func (s *Session) ShowDocument(ctx context.Context, doc *model.Document) (aborted bool, err error) {
	if doc == nil {
		return false, errors.New("session: nil document")
	}
	pages := doc.Pages()
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	s.update(func(st *Status) {
		st.Title = doc.Title
		st.Pages = len(pages)
	})
	appLog.Info("showing document", "title", doc.Title, "pages", len(pages))

	for i, text := range pages {
		if err := s.showPage(i, text); err != nil {
			return false, fmt.Errorf("session: page %d: %w", i, err)
		}
		aborted, err := s.dwell(ctx)
		if err != nil {
			return false, err
		}
		if aborted {
			appLog.Info("abort requested", "page", i)
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) showPage(i int, text string) error {
	s.update(func(st *Status) {
		st.Phase = PhaseShowing
		st.Page = i
		st.Text = text
	})

	if s.opts.ClearEachPage {
		if err := s.panel.Clear(framebuf.White); err != nil {
			return err
		}
	}

	s.fb.Clear(framebuf.White)
	if err := s.panel.DisplayPartial(s.fb); err != nil {
		return err
	}

	lines := layout.Wrap(text, s.opts.MaxWidth, s.opts.MaxHeight)
	s.renderer.DrawLines(s.fb, lines)
	if err := s.panel.DisplayPartial(s.fb); err != nil {
		return err
	}

	frame := s.fb.Clone()
	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.Draw(frame.Bounds(), frame, image.Point{}); err != nil {
			appLog.Error("mirror draw failed", err, "page", i)
		}
	}
	if s.opts.DumpDir != "" {
		if err := dumpPage(s.opts.DumpDir, i, frame); err != nil {
			appLog.Error("page dump failed", err, "page", i, "dir", s.opts.DumpDir)
		}
	}
	s.update(func(st *Status) {
		st.Lines = lines
		st.Frame = frame
	})
	if s.opts.OnPage != nil {
		s.opts.OnPage(i, text, lines)
	}
	appLog.Debug("page shown", "page", i, "lines", len(lines))
	return nil
}

// dwell checks the abort signal PollCount times, sleeping PollInterval
// before each check. A done ctx counts as an abort.
func (s *Session) dwell(ctx context.Context) (bool, error) {
	for n := 0; n < s.opts.PollCount; n++ {
		if err := s.opts.Clock.Sleep(ctx, s.opts.PollInterval); err != nil {
			return true, nil
		}
		if s.pressed(ctx) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) pressed(ctx context.Context) bool {
	pressed, err := s.button.Pressed(ctx)
	if err != nil {
		appLog.Error("button read failed", err)
		return false
	}
	return pressed
}

// waitNextFetch sleeps until the next Refresh activation, still polling the
// abort signal every PollInterval.
func (s *Session) waitNextFetch(ctx context.Context) (bool, error) {
	next := s.opts.Refresh.Next(s.opts.Clock.Now())
	if next.IsZero() {
		return false, errors.New("session: refresh schedule has no next activation")
	}
	s.update(func(st *Status) {
		st.Phase = PhaseWaiting
		st.NextFetch = &next
	})
	appLog.Info("waiting for next fetch", "at", next.Format(time.RFC3339))

	for {
		remaining := next.Sub(s.opts.Clock.Now())
		if remaining <= 0 {
			return false, nil
		}
		if remaining > s.opts.PollInterval {
			remaining = s.opts.PollInterval
		}
		if err := s.opts.Clock.Sleep(ctx, remaining); err != nil {
			return true, nil
		}
		if s.pressed(ctx) {
			return true, nil
		}
	}
}

// Shutdown leaves the panel blank and asleep: full init, clear to white,
// ShutdownDelay, deep sleep. It does not depend on any context so it also
// runs after cancellation.
func (s *Session) Shutdown() error {
	appLog.Info("session shutting down")
	defer s.update(func(st *Status) { st.Phase = PhaseStopped })

	if err := s.panel.Init(); err != nil {
		return s.fail(err)
	}
	if err := s.panel.Clear(framebuf.White); err != nil {
		return s.fail(err)
	}
	_ = s.opts.Clock.Sleep(context.Background(), s.opts.ShutdownDelay)
	if err := s.panel.Sleep(); err != nil {
		return s.fail(err)
	}
	return nil
}
