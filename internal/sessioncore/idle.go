package sessioncore

import (
	"context"
	"log/slog"

	"mediahub.app/sessioncore/internal/core"
)

// armIdleSweep starts the idle sweep ticker the first time anything begins
// playing. Once armed it keeps running until a sweep finds nothing playing,
// at which point disarmIdleSweepIfNothingPlaying stops it; the next
// playback start arms it again.
func (m *Manager) armIdleSweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.idleSweepRunning {
		return
	}
	m.idleSweepRunning = true
	m.idleSweepStop = m.timerFactory.StartRepeating(m.idleSweepInterval, m.idleSweepTick)
}

// idleSweepTick force-stops any session whose last real playback check-in is
// older than idleThreshold, as if the client itself had reported playback
// stopped.
func (m *Manager) idleSweepTick() {
	cutoff := m.now().Add(-m.idleThreshold)
	for _, sess := range m.reg.snapshot() {
		sess.mu.Lock()
		playing := sess.nowPlayingItem != nil
		checkIn := sess.lastPlaybackCheckIn
		itemID := ""
		if sess.nowPlayingItem != nil {
			itemID = sess.nowPlayingItem.ItemID
		}
		mediaSourceID := sess.playState.MediaSourceID
		positionTicks := sess.playState.PositionTicks
		sess.mu.Unlock()

		if !playing || checkIn.IsZero() || checkIn.After(cutoff) {
			continue
		}

		m.logger.Info("idle_session_force_stopped", slog.String("session_id", sess.ID), slog.Time("last_check_in", checkIn))

		position := positionTicks
		info := core.PlaybackStopInfo{
			SessionID:     sess.ID,
			ItemID:        itemID,
			MediaSourceID: mediaSourceID,
			PositionTicks: &position,
		}
		if err := m.OnPlaybackStopped(context.Background(), info); err != nil {
			m.logger.Error("idle_sweep_stop_failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
		}
	}

	m.disarmIdleSweepIfNothingPlaying()
}

// disarmIdleSweepIfNothingPlaying re-snapshots the registry after a sweep
// and stops the timer once no session has anything playing, so the sweep
// goroutine does not run forever once playback has gone quiet.
func (m *Manager) disarmIdleSweepIfNothingPlaying() {
	for _, sess := range m.reg.snapshot() {
		sess.mu.Lock()
		playing := sess.nowPlayingItem != nil
		sess.mu.Unlock()
		if playing {
			return
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.idleSweepRunning {
		return
	}
	if m.idleSweepStop != nil {
		m.idleSweepStop()
	}
	m.idleSweepStop = nil
	m.idleSweepRunning = false
}
