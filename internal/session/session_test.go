package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/robfig/cron/v3"
	"periph.io/x/devices/v3/videosink"

	"epdnews/internal/button"
	"epdnews/internal/epd"
	"epdnews/internal/framebuf"
	"epdnews/internal/model"
	"epdnews/internal/news"
)

// fakeClock advances virtual time on Sleep.
type fakeClock struct {
	now     time.Time
	elapsed time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.elapsed += d
	return nil
}

// fakePanel records the calls made by the session.
type fakePanel struct {
	calls  []string
	frames [][]byte
	failOn string
}

func (p *fakePanel) do(call string) error {
	p.calls = append(p.calls, call)
	if call == p.failOn {
		return epd.ErrBusyTimeout
	}
	return nil
}

func (p *fakePanel) Init() error           { return p.do("init") }
func (p *fakePanel) Clear(color byte) error { return p.do("clear") }
func (p *fakePanel) Sleep() error           { return p.do("sleep") }

func (p *fakePanel) DisplayPartial(f epd.Frame) error {
	p.frames = append(p.frames, f.Transfer())
	return p.do("partial")
}

type staticSource struct {
	doc   *model.Document
	err   error
	calls int
}

func (s *staticSource) Document(context.Context) (*model.Document, error) {
	s.calls++
	return s.doc, s.err
}

func sampleDocument(t *testing.T) *model.Document {
	t.Helper()
	doc, err := news.Parse([]byte(`{"title":"T","entries":[{"title":"A","link":"u","summary":"S1"},{"title":"B","link":"v","summary":"S2"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

type shown struct {
	index int
	text  string
}

func newTestSession(t *testing.T, panel Panel, src Source, btn button.Reader, opts Options) (*Session, *fakeClock, *[]shown) {
	t.Helper()
	clock := newFakeClock()
	var pages []shown
	opts.Clock = clock
	opts.MaxWidth = 32
	opts.MaxHeight = 12
	opts.OnPage = func(i int, text string, _ []string) {
		pages = append(pages, shown{i, text})
	}
	s, err := New(panel, src, btn, framebuf.New(122, 250, framebuf.Landscape), nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	return s, clock, &pages
}

// pressedOnCheck returns a button that fires on the nth check.
func pressedOnCheck(n int) (button.Reader, *int) {
	checks := 0
	return button.Func(func(context.Context) (bool, error) {
		checks++
		return checks == n, nil
	}), &checks
}

func TestShowDocumentPages(t *testing.T) {
	panel := &fakePanel{}
	s, clock, pages := newTestSession(t, panel, nil, nil, Options{})

	aborted, err := s.ShowDocument(context.Background(), sampleDocument(t))
	if err != nil {
		t.Fatal(err)
	}
	if aborted {
		t.Fatal("ShowDocument() aborted without a button press")
	}

	want := []shown{{0, "T"}, {1, "S1"}, {2, "S2"}}
	if diff := cmp.Diff(*pages, want, cmp.AllowUnexported(shown{})); diff != "" {
		t.Errorf("pages difference (-got +want):\n%s", diff)
	}
	// Two partial refreshes per page: blank, then text.
	if got := strings.Count(strings.Join(panel.calls, ","), "partial"); got != 6 {
		t.Errorf("partial refreshes = %d, want 6", got)
	}
	if want := 3 * 10 * time.Second; clock.elapsed != want {
		t.Errorf("dwell = %s, want %s", clock.elapsed, want)
	}

	blank := framebuf.New(122, 250, framebuf.Landscape).Transfer()
	if diff := cmp.Diff(panel.frames[0], blank); diff != "" {
		t.Error("first refresh of a page is not blank")
	}
	if cmp.Equal(panel.frames[1], blank) {
		t.Error("second refresh of a page has no text")
	}

	st := s.Status()
	if st.Page != 2 || st.Pages != 3 || st.Text != "S2" || st.Title != "T" || st.Frame == nil {
		t.Errorf("Status() = %+v", st)
	}
}

func TestShowDocumentClearEachPage(t *testing.T) {
	panel := &fakePanel{}
	s, _, _ := newTestSession(t, panel, nil, nil, Options{ClearEachPage: true, PollCount: 1})

	if _, err := s.ShowDocument(context.Background(), sampleDocument(t)); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"clear", "partial", "partial",
		"clear", "partial", "partial",
		"clear", "partial", "partial",
	}
	if diff := cmp.Diff(panel.calls, want); diff != "" {
		t.Errorf("calls difference (-got +want):\n%s", diff)
	}
}

func TestAbortOnFourthCheck(t *testing.T) {
	panel := &fakePanel{}
	btn, checks := pressedOnCheck(4)
	s, clock, pages := newTestSession(t, panel, nil, btn, Options{})

	aborted, err := s.ShowDocument(context.Background(), sampleDocument(t))
	if err != nil {
		t.Fatal(err)
	}
	if !aborted {
		t.Fatal("ShowDocument() did not abort")
	}
	if clock.elapsed != 4*time.Second {
		t.Errorf("stopped after %s, want 4s", clock.elapsed)
	}
	if *checks != 4 {
		t.Errorf("button checked %d times, want 4", *checks)
	}
	if len(*pages) != 1 {
		t.Errorf("%d pages shown, want 1", len(*pages))
	}
}

func TestRunAbortShutsDown(t *testing.T) {
	panel := &fakePanel{}
	btn, _ := pressedOnCheck(4)
	src := &staticSource{doc: sampleDocument(t)}
	s, clock, _ := newTestSession(t, panel, src, btn, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	want := []string{
		"init", "clear", // startup
		"partial", "partial", // page 0
		"init", "clear", "sleep", // shutdown
	}
	if diff := cmp.Diff(panel.calls, want); diff != "" {
		t.Errorf("calls difference (-got +want):\n%s", diff)
	}
	if want := 4*time.Second + DefaultShutdownDelay; clock.elapsed != want {
		t.Errorf("elapsed = %s, want %s", clock.elapsed, want)
	}
	if st := s.Status(); st.Phase != PhaseStopped {
		t.Errorf("Phase = %s, want %s", st.Phase, PhaseStopped)
	}
}

func TestRunRefetchesAfterPass(t *testing.T) {
	panel := &fakePanel{}
	// 3 pages x 10 checks on the first pass, abort on the first check of
	// the second pass.
	btn, _ := pressedOnCheck(31)
	src := &staticSource{doc: sampleDocument(t)}
	s, _, pages := newTestSession(t, panel, src, btn, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("source fetched %d times, want 2", src.calls)
	}
	if len(*pages) != 4 {
		t.Errorf("%d pages shown, want 4", len(*pages))
	}
}

func TestRunWaitsForRefreshSchedule(t *testing.T) {
	panel := &fakePanel{}
	// Abort during the wait for the next fetch.
	btn, _ := pressedOnCheck(3*10 + 5)
	src := &staticSource{doc: sampleDocument(t)}
	sched, err := cron.ParseStandard("*/15 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	s, clock, _ := newTestSession(t, panel, src, btn, Options{Refresh: sched})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source fetched %d times, want 1", src.calls)
	}
	if want := 35*time.Second + DefaultShutdownDelay; clock.elapsed != want {
		t.Errorf("elapsed = %s, want %s", clock.elapsed, want)
	}
	if st := s.Status(); st.NextFetch == nil || !st.NextFetch.Equal(time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC)) {
		t.Errorf("NextFetch = %v", st.NextFetch)
	}
}

func TestRunOnce(t *testing.T) {
	panel := &fakePanel{}
	src := &staticSource{doc: sampleDocument(t)}
	s, _, pages := newTestSession(t, panel, src, nil, Options{Once: true, PollCount: 1})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(*pages) != 3 {
		t.Errorf("%d pages shown, want 3", len(*pages))
	}
	if last := panel.calls[len(panel.calls)-1]; last != "sleep" {
		t.Errorf("last call = %s, want sleep", last)
	}
}

func TestRunCanceled(t *testing.T) {
	panel := &fakePanel{}
	src := &staticSource{doc: sampleDocument(t)}
	s, _, pages := newTestSession(t, panel, src, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(*pages) != 1 {
		t.Errorf("%d pages shown, want 1", len(*pages))
	}
	if last := panel.calls[len(panel.calls)-1]; last != "sleep" {
		t.Errorf("last call = %s, want sleep", last)
	}
}

func TestRunPanelError(t *testing.T) {
	panel := &fakePanel{failOn: "partial"}
	src := &staticSource{doc: sampleDocument(t)}
	s, _, _ := newTestSession(t, panel, src, nil, Options{})

	err := s.Run(context.Background())
	if !errors.Is(err, epd.ErrBusyTimeout) {
		t.Fatalf("Run() = %v, want ErrBusyTimeout", err)
	}
	if st := s.Status(); st.LastError == "" {
		t.Error("Status().LastError not set")
	}
}

// flakySource succeeds on the first fetch and fails afterwards.
type flakySource struct {
	doc   *model.Document
	calls int
}

func (s *flakySource) Document(context.Context) (*model.Document, error) {
	s.calls++
	if s.calls > 1 {
		return nil, errors.New("connection refused")
	}
	return s.doc, nil
}

func TestRunReusesPreviousDocument(t *testing.T) {
	panel := &fakePanel{}
	// Both passes run to completion; abort on the first check of the third.
	btn, _ := pressedOnCheck(2*3*10 + 1)
	src := &flakySource{doc: sampleDocument(t)}
	s, _, pages := newTestSession(t, panel, src, btn, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if src.calls != 3 {
		t.Errorf("source fetched %d times, want 3", src.calls)
	}
	want := []shown{{0, "T"}, {1, "S1"}, {2, "S2"}, {0, "T"}, {1, "S1"}, {2, "S2"}, {0, "T"}}
	if diff := cmp.Diff(*pages, want, cmp.AllowUnexported(shown{})); diff != "" {
		t.Errorf("pages difference (-got +want):\n%s", diff)
	}
	st := s.Status()
	if st.LastError != "connection refused" {
		t.Errorf("Status().LastError = %q", st.LastError)
	}
	if st.Phase != PhaseStopped {
		t.Errorf("Status().Phase = %s, want %s", st.Phase, PhaseStopped)
	}
}

func TestStatusJSONOmitsNextFetch(t *testing.T) {
	s, _, _ := newTestSession(t, &fakePanel{}, nil, nil, Options{})
	b, err := json.Marshal(s.Status())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "next_fetch") {
		t.Errorf("Status JSON = %s, want no next_fetch", b)
	}
}

func TestRunFetchError(t *testing.T) {
	panel := &fakePanel{}
	src := &staticSource{err: news.ErrMalformedDocument}
	s, _, pages := newTestSession(t, panel, src, nil, Options{})

	if err := s.Run(context.Background()); !errors.Is(err, news.ErrMalformedDocument) {
		t.Fatalf("Run() = %v, want ErrMalformedDocument", err)
	}
	if len(*pages) != 0 {
		t.Errorf("%d pages shown, want 0", len(*pages))
	}
}

func TestShutdownSequence(t *testing.T) {
	panel := &fakePanel{}
	s, clock, _ := newTestSession(t, panel, nil, nil, Options{})

	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(panel.calls, []string{"init", "clear", "sleep"}); diff != "" {
		t.Errorf("calls difference (-got +want):\n%s", diff)
	}
	if clock.elapsed != 2*time.Second {
		t.Errorf("shutdown delay = %s, want 2s", clock.elapsed)
	}
}

func TestMirrorAndDump(t *testing.T) {
	panel := &fakePanel{}
	sink := videosink.New(&videosink.Options{Width: 250, Height: 128})
	dir := t.TempDir()
	s, _, _ := newTestSession(t, panel, nil, nil, Options{PollCount: 1, Mirror: sink, DumpDir: dir})

	if _, err := s.ShowDocument(context.Background(), sampleDocument(t)); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"page-00.png", "page-02.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing dump: %v", err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, "page-02.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 4000 {
		t.Errorf("raw plane is %d bytes, want 4000", len(raw))
	}
	if diff := cmp.Diff(raw, panel.frames[len(panel.frames)-1]); diff != "" {
		t.Error("dumped plane differs from the last transferred frame")
	}
}
