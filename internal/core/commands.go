package core

// PlaybackStartInfo carries the fields OnPlaybackStart needs to
// resolve, normalize and persist a new now-playing item.
type PlaybackStartInfo struct {
	SessionID           string
	ItemID               string
	MediaSourceID         string
	LiveStreamID          string
	PositionTicks         *int64
	CanSeek               bool
	PlayMethod            PlayMethod
	AudioStreamIndex      int
	SubtitleStreamIndex   int
	Item                  *NowPlayingItemDto
}

// PlaybackProgressInfo carries the fields OnPlaybackProgress needs.
type PlaybackProgressInfo struct {
	SessionID           string
	ItemID              string
	MediaSourceID       string
	PositionTicks       *int64
	IsPaused            bool
	IsMuted             bool
	VolumeLevel         int
	AudioStreamIndex    int
	SubtitleStreamIndex int
	PlayMethod          PlayMethod
	RepeatMode          RepeatMode
	Item                *NowPlayingItemDto
}

// PlaybackStopInfo carries the fields OnPlaybackStopped needs.
type PlaybackStopInfo struct {
	SessionID     string
	ItemID        string
	MediaSourceID string
	LiveStreamID  string
	PositionTicks *int64
	Item          *NowPlayingItemDto
}

// PlayCommandKind is the PlayCommand enum.
type PlayCommandKind string

const (
	PlayCommandPlayNow       PlayCommandKind = "PlayNow"
	PlayCommandPlayNext      PlayCommandKind = "PlayNext"
	PlayCommandPlayLast      PlayCommandKind = "PlayLast"
	PlayCommandPlayInstantMix PlayCommandKind = "PlayInstantMix"
	PlayCommandPlayShuffle   PlayCommandKind = "PlayShuffle"
)

// PlayRequest is the payload for SendPlayCommand.
type PlayRequest struct {
	ItemIDs            []string
	StartPositionTicks int64
	PlayCommand        PlayCommandKind
	ControllingUserID  string
}

// PlaystateCommandKind is the command name for SendPlaystateCommand.
type PlaystateCommandKind string

const (
	PlaystatePlay        PlaystateCommandKind = "Unpause"
	PlaystatePause       PlaystateCommandKind = "Pause"
	PlaystateStop        PlaystateCommandKind = "Stop"
	PlaystateSeek        PlaystateCommandKind = "Seek"
	PlaystateNextTrack   PlaystateCommandKind = "NextTrack"
	PlaystatePrevTrack   PlaystateCommandKind = "PreviousTrack"
)

// PlaystateRequest is the payload for SendPlaystateCommand.
type PlaystateRequest struct {
	Command           PlaystateCommandKind
	SeekPositionTicks int64
	ControllingUserID string
}

// BrowseRequest is the payload for SendBrowseCommand, lowered to a general
// "DisplayContent" command.
type BrowseRequest struct {
	ItemID            string
	ItemName          string
	ItemType          string
	ControllingUserID string
}

// MessageRequest is the payload for SendMessageCommand, lowered to a general
// "DisplayMessage" command.
type MessageRequest struct {
	Header            string
	Text              string
	TimeoutMs         int64
	ControllingUserID string
}

// GeneralCommand is the lowered form every browse/message command becomes
// before reaching a SessionController.
type GeneralCommand struct {
	Name              string
	Arguments         map[string]string
	ControllingUserID string
}
