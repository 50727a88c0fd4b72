package sessioncore

import (
	"context"
	"testing"
	"time"

	"mediahub.app/sessioncore/internal/core"
	"mediahub.app/sessioncore/internal/ports"
)

type fakeTimerFactory struct {
	timers []*fakeTimer
}

type fakeTimer struct {
	interval time.Duration
	fn       func()
	stopped  bool
}

func (f *fakeTimerFactory) StartRepeating(interval time.Duration, fn func()) func() {
	t := &fakeTimer{interval: interval, fn: fn}
	f.timers = append(f.timers, t)
	return func() { t.stopped = true }
}

// fire invokes every still-running timer once, as a manual tick.
func (f *fakeTimerFactory) fire() {
	for _, t := range f.timers {
		if !t.stopped {
			t.fn()
		}
	}
}

type fakeController struct {
	id   string
	live bool

	activityCalls int
	disposeCalls  int

	playbackStartCalls    int
	playbackStoppedCalls  int
	sessionEndedCalls     int
}

func (c *fakeController) ID() string      { return c.id }
func (c *fakeController) OnActivity()      { c.activityCalls++ }
func (c *fakeController) IsLive() bool     { return c.live }
func (c *fakeController) Dispose() error   { c.disposeCalls++; c.live = false; return nil }
func (c *fakeController) SendGeneralCommand(context.Context, core.GeneralCommand) error   { return nil }
func (c *fakeController) SendPlaystateCommand(context.Context, core.PlaystateRequest) error { return nil }
func (c *fakeController) SendPlayCommand(context.Context, core.PlayRequest) error         { return nil }
func (c *fakeController) SendMessage(context.Context, string, any) error                  { return nil }
func (c *fakeController) SendPlaybackStartNotification(context.Context, core.SessionDto) error {
	c.playbackStartCalls++
	return nil
}
func (c *fakeController) SendPlaybackStoppedNotification(context.Context, core.SessionDto) error {
	c.playbackStoppedCalls++
	return nil
}
func (c *fakeController) SendSessionEndedNotification(context.Context, core.SessionDto) error {
	c.sessionEndedCalls++
	return nil
}
func (c *fakeController) SendServerShutdownNotification(context.Context) error    { return nil }
func (c *fakeController) SendServerRestartNotification(context.Context) error     { return nil }
func (c *fakeController) SendRestartRequiredNotification(context.Context) error   { return nil }

var _ ports.SessionController = (*fakeController)(nil)

type fakeControllerFactory struct {
	next *fakeController
}

func (f *fakeControllerFactory) GetSessionController(sessionID, _ string, _ core.CapabilitiesInfo) ports.SessionController {
	if f.next == nil {
		return nil
	}
	f.next.id = sessionID
	return f.next
}

type fakeLibrary struct {
	items map[string]core.BaseItem
}

func (l *fakeLibrary) GetItemByID(id string) (*core.BaseItem, bool) {
	item, ok := l.items[id]
	if !ok {
		return nil, false
	}
	return &item, true
}

func (l *fakeLibrary) GetPlayableDescendants(context.Context, core.BaseItem) ([]core.BaseItem, error) {
	return nil, nil
}

func (l *fakeLibrary) GetSeriesEpisodes(context.Context, string) ([]core.BaseItem, error) {
	return nil, nil
}

func newTestManager(t *testing.T, ctrl *fakeController, clock *time.Time) (*Manager, *fakeTimerFactory) {
	t.Helper()
	timers := &fakeTimerFactory{}
	cfg := Config{
		TimerFactory: timers,
		LibraryManager: &fakeLibrary{items: map[string]core.BaseItem{
			"movie-1": {ID: "movie-1", Name: "Movie", MediaType: "Video", RunTimeTicks: 100_000_000, SupportsPlayedStatus: true},
		}},
		ControllerFactories: []ports.SessionControllerFactory{&fakeControllerFactory{next: ctrl}},
		Now: func() time.Time {
			if clock != nil {
				return *clock
			}
			return time.Now()
		},
	}
	return NewManager(cfg), timers
}

func TestLogSessionActivity_CreatesAndReusesSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeController{live: true}, nil)

	sess1, err := m.LogSessionActivity(context.Background(), "Jellyfin Web", "1.0", "device-1", "My Browser", "10.0.0.1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess2, err := m.LogSessionActivity(context.Background(), "Jellyfin Web", "1.0", "device-1", "My Browser", "10.0.0.1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess1.ID != sess2.ID {
		t.Fatalf("expected same session to be reused, got %s and %s", sess1.ID, sess2.ID)
	}
	if got := len(m.Sessions()); got != 1 {
		t.Fatalf("expected 1 session in registry, got %d", got)
	}
}

func TestLogSessionActivity_RequiresAllFields(t *testing.T) {
	m, _ := newTestManager(t, &fakeController{live: true}, nil)
	if _, err := m.LogSessionActivity(context.Background(), "", "1.0", "device-1", "name", "10.0.0.1", nil); core.KindOf(err) != core.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestLogSessionActivity_RejectsOnClosedManager(t *testing.T) {
	m, _ := newTestManager(t, &fakeController{live: true}, nil)
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := m.LogSessionActivity(context.Background(), "app", "1.0", "device-1", "name", "10.0.0.1", nil); core.KindOf(err) != core.KindDisposed {
		t.Fatalf("expected Disposed, got %v", err)
	}
}

func TestReportSessionEnded_RemovesSessionAndNotifiesOthers(t *testing.T) {
	m, _ := newTestManager(t, &fakeController{live: true}, nil)

	ending, err := m.LogSessionActivity(context.Background(), "App A", "1.0", "device-1", "name", "1.1.1.1", nil)
	if err != nil {
		t.Fatalf("log activity: %v", err)
	}

	surviving, err := m.LogSessionActivity(context.Background(), "App B", "1.0", "device-2", "name", "1.1.1.2", nil)
	if err != nil {
		t.Fatalf("log activity: %v", err)
	}

	if err := m.ReportSessionEnded(context.Background(), ending.ID); err != nil {
		t.Fatalf("report session ended: %v", err)
	}

	if got := len(m.Sessions()); got != 1 {
		t.Fatalf("expected 1 remaining session, got %d", got)
	}
	if m.SessionByID(surviving.ID) == nil {
		t.Fatalf("expected surviving session to remain registered")
	}
	if m.SessionByID(ending.ID) != nil {
		t.Fatalf("expected ended session to be removed")
	}
}

func TestReportSessionEnded_NotFound(t *testing.T) {
	m, _ := newTestManager(t, &fakeController{live: true}, nil)
	if err := m.ReportSessionEnded(context.Background(), "nonexistent"); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestOnPlaybackStart_BindsNowPlayingAndArmsTimer(t *testing.T) {
	ctrl := &fakeController{live: true}
	m, timers := newTestManager(t, ctrl, nil)

	sess, err := m.LogSessionActivity(context.Background(), "app", "1.0", "device-1", "name", "1.1.1.1", nil)
	if err != nil {
		t.Fatalf("log activity: %v", err)
	}

	if err := m.OnPlaybackStart(context.Background(), core.PlaybackStartInfo{
		SessionID: sess.ID,
		ItemID:    "movie-1",
	}); err != nil {
		t.Fatalf("on playback start: %v", err)
	}

	dto := m.Sessions()[0]
	if dto.NowPlayingItem == nil || dto.NowPlayingItem.ItemID != "movie-1" {
		t.Fatalf("expected now playing item bound, got %+v", dto.NowPlayingItem)
	}
	if len(timers.timers) != 2 {
		t.Fatalf("expected auto-progress and idle-sweep timers armed, got %d timers", len(timers.timers))
	}
}

func TestOnPlaybackStopped_RejectsNegativePosition(t *testing.T) {
	m, _ := newTestManager(t, &fakeController{live: true}, nil)
	sess, err := m.LogSessionActivity(context.Background(), "app", "1.0", "device-1", "name", "1.1.1.1", nil)
	if err != nil {
		t.Fatalf("log activity: %v", err)
	}
	negative := int64(-1)
	err = m.OnPlaybackStopped(context.Background(), core.PlaybackStopInfo{SessionID: sess.ID, PositionTicks: &negative})
	if core.KindOf(err) != core.KindOutOfRange {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
}

func TestOnPlaybackStopped_ClearsNowPlayingAndFansOut(t *testing.T) {
	ctrl := &fakeController{live: true}
	m, _ := newTestManager(t, ctrl, nil)
	sess, err := m.LogSessionActivity(context.Background(), "app", "1.0", "device-1", "name", "1.1.1.1", nil)
	if err != nil {
		t.Fatalf("log activity: %v", err)
	}
	if err := m.OnPlaybackStart(context.Background(), core.PlaybackStartInfo{SessionID: sess.ID, ItemID: "movie-1"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.OnPlaybackStopped(context.Background(), core.PlaybackStopInfo{SessionID: sess.ID, ItemID: "movie-1"}); err != nil {
		t.Fatalf("stop: %v", err)
	}

	dto := m.Sessions()[0]
	if dto.NowPlayingItem != nil {
		t.Fatalf("expected now playing item cleared, got %+v", dto.NowPlayingItem)
	}

	// fan-out runs on per-controller goroutines joined (errgroup) before
	// OnPlaybackStopped returns; the bounded poll is only a safety margin.
	deadline := time.Now().Add(time.Second)
	for ctrl.playbackStoppedCalls == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ctrl.playbackStoppedCalls == 0 {
		t.Fatalf("expected a playback-stopped notification to be delivered")
	}
}

func TestIdleSweep_ForceStopsStaleSession(t *testing.T) {
	now := time.Now()
	ctrl := &fakeController{live: true}
	m, timers := newTestManager(t, ctrl, &now)

	sess, err := m.LogSessionActivity(context.Background(), "app", "1.0", "device-1", "name", "1.1.1.1", nil)
	if err != nil {
		t.Fatalf("log activity: %v", err)
	}
	if err := m.OnPlaybackStart(context.Background(), core.PlaybackStartInfo{SessionID: sess.ID, ItemID: "movie-1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	// OnPlaybackStart and real (non-automated) progress reports advance the
	// idle check-in clock; automated progress ticks never do.
	position := int64(1_000_000)
	if err := m.OnPlaybackProgress(context.Background(), core.PlaybackProgressInfo{SessionID: sess.ID, ItemID: "movie-1", PositionTicks: &position}, false); err != nil {
		t.Fatalf("progress: %v", err)
	}

	// Advance the clock past the idle threshold, then fire every armed
	// timer — the idle sweep ticker among them.
	now = now.Add(defaultIdleThreshold + time.Minute)
	timers.fire()

	dto := m.Sessions()[0]
	if dto.NowPlayingItem != nil {
		t.Fatalf("expected idle sweep to force-stop playback, got %+v", dto.NowPlayingItem)
	}
}

func TestIdleSweep_DisarmsOnceNothingIsPlaying(t *testing.T) {
	now := time.Now()
	ctrl := &fakeController{live: true}
	m, timers := newTestManager(t, ctrl, &now)

	sess, err := m.LogSessionActivity(context.Background(), "app", "1.0", "device-1", "name", "1.1.1.1", nil)
	if err != nil {
		t.Fatalf("log activity: %v", err)
	}
	if err := m.OnPlaybackStart(context.Background(), core.PlaybackStartInfo{SessionID: sess.ID, ItemID: "movie-1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Timer 0 is the auto-progress timer armed by OnPlaybackStart; timer 1
	// is the idle-sweep ticker armIdleSweep starts right after.
	if len(timers.timers) != 2 {
		t.Fatalf("expected auto-progress and idle-sweep timers armed, got %d", len(timers.timers))
	}
	idleSweepTimer := timers.timers[1]

	position := int64(1_000_000)
	if err := m.OnPlaybackProgress(context.Background(), core.PlaybackProgressInfo{SessionID: sess.ID, ItemID: "movie-1", PositionTicks: &position}, false); err != nil {
		t.Fatalf("progress: %v", err)
	}

	now = now.Add(defaultIdleThreshold + time.Minute)
	timers.fire()

	if !idleSweepTimer.stopped {
		t.Fatalf("expected the idle-sweep timer to stop once no session is playing")
	}
	if m.idleSweepRunning {
		t.Fatalf("expected idleSweepRunning to be cleared after disarming")
	}
}

func TestSessionsByDeviceAndClient_FiltersToMatchingClient(t *testing.T) {
	ctrl := &fakeController{live: true}
	m, _ := newTestManager(t, ctrl, nil)

	sonos, err := m.LogSessionActivity(context.Background(), "sonos-app", "1.0", "device-1", "name", "1.1.1.1", nil)
	if err != nil {
		t.Fatalf("log activity sonos: %v", err)
	}
	if _, err := m.LogSessionActivity(context.Background(), "webui", "1.0", "device-1", "name", "1.1.1.1", nil); err != nil {
		t.Fatalf("log activity webui: %v", err)
	}

	found := m.SessionsByDeviceAndClient("device-1", "sonos-app")
	if len(found) != 1 || found[0].ID != sonos.ID {
		t.Fatalf("expected only the sonos-app session on device-1, got %+v", found)
	}

	if got := m.SessionsByDeviceAndClient("device-1", "no-such-client"); len(got) != 0 {
		t.Fatalf("expected no sessions for an unmatched client, got %+v", got)
	}
}
