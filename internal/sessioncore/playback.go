package sessioncore

import (
	"context"
	"log/slog"
	"strings"

	"mediahub.app/sessioncore/internal/core"
)

// OnPlaybackStart binds the now-playing item to the session, arms the
// auto-progress timer, and publishes the start event and notification.
func (m *Manager) OnPlaybackStart(ctx context.Context, info core.PlaybackStartInfo) error {
	if m.isClosed() {
		return core.NewDisposed("session manager is closed")
	}
	sess := m.reg.getByID(info.SessionID)
	if sess == nil {
		return core.NewNotFound("session not found: %s", info.SessionID)
	}

	item := m.resolveItem(info.ItemID)
	nowPlaying, transcodingInfo := m.updateNowPlayingItem(ctx, sess, item, info.MediaSourceID, info.ItemID, info.PlayMethod)

	sess.mu.Lock()
	sess.nowPlayingItem = nowPlaying
	sess.fullNowPlayingItem = item
	sess.transcodingInfo = transcodingInfo
	sess.playState = core.PlayState{
		MediaSourceID:       info.MediaSourceID,
		CanSeek:             info.CanSeek,
		PlayMethod:          info.PlayMethod,
		AudioStreamIndex:    info.AudioStreamIndex,
		SubtitleStreamIndex: info.SubtitleStreamIndex,
	}
	if info.PositionTicks != nil {
		sess.playState.PositionTicks = *info.PositionTicks
	}
	sess.lastPlaybackCheckIn = m.now()
	sess.mu.Unlock()

	sess.StartAutomaticProgress(m.timerFactory, m.autoProgressInterval, func() {
		m.onAutoProgressTick(sess)
	})

	if item != nil && m.userDataManager != nil {
		_, userIDs := sess.userIDs()
		isVideo := strings.EqualFold(item.MediaType, "Video")
		for _, uid := range userIDs {
			data := m.userDataManager.GetUserData(uid, *item)
			data.PlayCount++
			data.LastPlayedDate = m.now()
			if item.SupportsPlayedStatus && !isVideo {
				data.Played = true
			}
			if err := m.userDataManager.SaveUserData(ctx, uid, *item, data, core.SaveReasonPlaybackStart); err != nil {
				m.logger.Error("save_user_data_failed", slog.String("user_id", uid), slog.String("error", err.Error()))
			}
		}
	}

	dto := sess.Snapshot()
	m.bus.Publish(core.Event{Kind: core.EventPlaybackStart, At: m.now(), Session: &dto})
	m.fanoutActive(ctx, core.NotificationPlaybackStart, dto)
	m.armIdleSweep()
	return nil
}

// OnPlaybackProgress updates the session's play state and, for non-automated
// reports, advances the idle-detection clock and re-arms the auto-progress
// timer.
func (m *Manager) OnPlaybackProgress(ctx context.Context, info core.PlaybackProgressInfo, isAutomated bool) error {
	if m.isClosed() {
		return core.NewDisposed("session manager is closed")
	}
	sess := m.reg.getByID(info.SessionID)
	if sess == nil {
		return core.NewNotFound("session not found: %s", info.SessionID)
	}

	item := m.resolveItem(info.ItemID)
	nowPlaying, _ := m.updateNowPlayingItem(ctx, sess, item, info.MediaSourceID, info.ItemID, info.PlayMethod)

	activityDate := m.now()
	sess.mu.Lock()
	sess.nowPlayingItem = nowPlaying
	sess.playState.MediaSourceID = info.MediaSourceID
	sess.playState.IsPaused = info.IsPaused
	sess.playState.IsMuted = info.IsMuted
	sess.playState.VolumeLevel = info.VolumeLevel
	sess.playState.AudioStreamIndex = info.AudioStreamIndex
	sess.playState.SubtitleStreamIndex = info.SubtitleStreamIndex
	sess.playState.PlayMethod = info.PlayMethod
	sess.playState.RepeatMode = info.RepeatMode
	if info.PositionTicks != nil {
		sess.playState.PositionTicks = *info.PositionTicks
	}
	if !isAutomated {
		// Only real client reports advance the idle-detection clock.
		sess.lastPlaybackCheckIn = activityDate
	}
	sess.mu.Unlock()

	if item != nil && info.PositionTicks != nil && m.userDataManager != nil {
		_, userIDs := sess.userIDs()
		for _, uid := range userIDs {
			data := m.userDataManager.GetUserData(uid, *item)
			data.PlaybackPositionTicks = *info.PositionTicks
			if m.userManager != nil {
				if user, ok := m.userManager.GetUserByID(uid); ok {
					if user.RememberAudioSelections {
						idx := info.AudioStreamIndex
						data.AudioStreamIndex = &idx
					} else {
						data.AudioStreamIndex = nil
					}
					if user.RememberSubtitleSelections {
						idx := info.SubtitleStreamIndex
						data.SubtitleStreamIndex = &idx
					} else {
						data.SubtitleStreamIndex = nil
					}
				}
			}
			if err := m.userDataManager.SaveUserData(ctx, uid, *item, data, core.SaveReasonPlaybackProgress); err != nil {
				m.logger.Error("save_user_data_failed", slog.String("user_id", uid), slog.String("error", err.Error()))
			}
		}
	}

	dto := sess.Snapshot()
	m.bus.Publish(core.Event{Kind: core.EventPlaybackProgress, At: activityDate, Session: &dto, IsAutomated: isAutomated})

	if !isAutomated {
		sess.StartAutomaticProgress(m.timerFactory, m.autoProgressInterval, func() {
			m.onAutoProgressTick(sess)
		})
	}
	m.armIdleSweep()
	return nil
}

// OnPlaybackStopped clears the session's now-playing state, persists final
// play-state/completion bookkeeping per user, and publishes the stop event
// and notification.
func (m *Manager) OnPlaybackStopped(ctx context.Context, info core.PlaybackStopInfo) error {
	if m.isClosed() {
		return core.NewDisposed("session manager is closed")
	}
	if info.PositionTicks != nil && *info.PositionTicks < 0 {
		return core.NewOutOfRange("positionTicks must be >= 0")
	}
	sess := m.reg.getByID(info.SessionID)
	if sess == nil {
		return core.NewNotFound("session not found: %s", info.SessionID)
	}

	sess.StopAutomaticProgress()

	item := m.resolveItem(info.ItemID)

	positionMs := "unknown"
	if info.PositionTicks != nil {
		positionMs = formatMillis(*info.PositionTicks)
	}
	m.logger.Info("playback_stopped", slog.String("session_id", sess.ID), slog.String("item_id", info.ItemID), slog.String("position_ms", positionMs))

	if item != nil && m.userDataManager != nil {
		_, userIDs := sess.userIDs()
		for _, uid := range userIDs {
			data := m.userDataManager.GetUserData(uid, *item)
			var playedToCompletion bool
			if info.PositionTicks != nil {
				playedToCompletion = m.userDataManager.UpdatePlayState(*item, data, *info.PositionTicks)
			} else {
				data.Played = item.SupportsPlayedStatus
				data.PlaybackPositionTicks = 0
				data.PlayCount++
				playedToCompletion = true
			}
			data.PlayedToCompletion = playedToCompletion
			if err := m.userDataManager.SaveUserData(ctx, uid, *item, data, core.SaveReasonPlaybackFinished); err != nil {
				m.logger.Error("save_user_data_failed", slog.String("user_id", uid), slog.String("error", err.Error()))
			}
		}
	}

	if info.LiveStreamID != "" && m.mediaSourceManager != nil {
		if err := m.mediaSourceManager.CloseLiveStream(ctx, info.LiveStreamID); err != nil {
			m.logger.Error("close_live_stream_failed", slog.String("live_stream_id", info.LiveStreamID), slog.String("error", err.Error()))
		}
	}

	sess.mu.Lock()
	sess.nowPlayingItem = nil
	sess.fullNowPlayingItem = nil
	sess.playState = core.PlayState{}
	sess.transcodingInfo = nil
	sess.mu.Unlock()

	dto := sess.Snapshot()
	m.bus.Publish(core.Event{Kind: core.EventPlaybackStopped, At: m.now(), Session: &dto})
	m.fanoutActive(ctx, core.NotificationPlaybackStopped, dto)
	return nil
}

func (m *Manager) onAutoProgressTick(sess *Session) {
	dto := sess.Snapshot()
	if dto.NowPlayingItem == nil {
		return
	}
	positionTicks := dto.PlayState.PositionTicks
	info := core.PlaybackProgressInfo{
		SessionID:           sess.ID,
		ItemID:              dto.NowPlayingItem.ItemID,
		MediaSourceID:       dto.PlayState.MediaSourceID,
		PositionTicks:       &positionTicks,
		IsPaused:            dto.PlayState.IsPaused,
		IsMuted:             dto.PlayState.IsMuted,
		VolumeLevel:         dto.PlayState.VolumeLevel,
		AudioStreamIndex:    dto.PlayState.AudioStreamIndex,
		SubtitleStreamIndex: dto.PlayState.SubtitleStreamIndex,
		PlayMethod:          dto.PlayState.PlayMethod,
		RepeatMode:          dto.PlayState.RepeatMode,
	}
	if err := m.OnPlaybackProgress(context.Background(), info, true); err != nil {
		m.logger.Error("auto_progress_tick_failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
	}
}

func (m *Manager) resolveItem(itemID string) *core.BaseItem {
	if itemID == "" || m.libraryManager == nil {
		return nil
	}
	item, ok := m.libraryManager.GetItemByID(itemID)
	if !ok {
		return nil
	}
	return item
}

// updateNowPlayingItem applies the now-playing normalization rules: an
// unchanged item id keeps the existing snapshot, otherwise a fresh one is
// built from the resolved library item.
func (m *Manager) updateNowPlayingItem(ctx context.Context, sess *Session, item *core.BaseItem, mediaSourceID, itemID string, playMethod core.PlayMethod) (*core.NowPlayingItemDto, any) {
	if mediaSourceID == "" {
		mediaSourceID = itemID
	}

	sess.mu.Lock()
	existing := sess.nowPlayingItem
	existingTranscoding := sess.transcodingInfo
	sess.mu.Unlock()

	if item == nil {
		return existing, nil
	}
	if existing != nil && existing.ItemID == item.ID {
		transcoding := existingTranscoding
		if playMethod != core.PlayMethodTranscode {
			transcoding = nil
		}
		return existing, transcoding
	}

	runTimeTicks := item.RunTimeTicks
	if item.HasMediaSources() && m.mediaSourceManager != nil {
		if src, err := m.mediaSourceManager.GetMediaSource(ctx, *item, mediaSourceID, ""); err == nil && src != nil {
			runTimeTicks = src.RunTimeTicks
		}
	}

	var transcoding any
	if playMethod == core.PlayMethodTranscode {
		transcoding = existingTranscoding
	}
	return itemToDto(item, runTimeTicks), transcoding
}

func itemToDto(item *core.BaseItem, runTimeTicks int64) *core.NowPlayingItemDto {
	return &core.NowPlayingItemDto{
		ItemID:       item.ID,
		Name:         item.Name,
		MediaType:    item.MediaType,
		RunTimeTicks: runTimeTicks,
	}
}

func formatMillis(ticks int64) string {
	ms := ticks / 10000
	return itoa(ms)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
