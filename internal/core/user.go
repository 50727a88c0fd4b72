package core

import "time"

// User is the facet of a user-manager entity the Session Manager actually
// reads. The real object (parental controls, avatar, etc.) is owned by the
// user manager collaborator; this is the read-only projection passed back
// into the core.
type User struct {
	ID       string
	Name     string
	LastActivityDate time.Time

	EnableNextEpisodeAutoPlay  bool
	RememberAudioSelections    bool
	RememberSubtitleSelections bool
}

// UserItemData is the per-user, per-item play-state record.
type UserItemData struct {
	UserID             string
	ItemID             string
	Played             bool
	PlayCount          int
	PlaybackPositionTicks int64
	PlayedToCompletion bool
	LastPlayedDate     time.Time
	AudioStreamIndex    *int
	SubtitleStreamIndex *int
}

// SaveReason names why UserDataManager.SaveUserData was called.
type SaveReason string

const (
	SaveReasonPlaybackStart    SaveReason = "PlaybackStart"
	SaveReasonPlaybackProgress SaveReason = "PlaybackProgress"
	SaveReasonPlaybackFinished SaveReason = "PlaybackFinished"
)
