package youtube

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	VideoThumbnailHost   = "i.ytimg.com"
	ChannelThumbnailHost = "yt3.ggpht.com"
)

type Kind int

const (
	KindUndefined Kind = iota
	KindVideo
	KindLive
	KindChannel
	KindPlaylist
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindLive:
		return "live"
	case KindChannel:
		return "channel"
	case KindPlaylist:
		return "playlist"
	default:
		return "undefined"
	}
}

// Result is a single search result. Which of the media-specific fields are
// set depends on Kind.
type Result struct {
	Kind Kind
	// ID is the video, channel or playlist id.
	ID     string
	Title  string
	Author string

	// Views is the formatted view count of videos, or the number of viewers
	// of live streams.
	Views     string
	Published string
	Duration  string

	Subscribers string
	VideoCount  string

	// ThumbnailPath is relative to ThumbnailHost.
	ThumbnailPath string
}

// Valid reports whether the result may be added to a results list.
func (r Result) Valid() bool {
	return r.Kind != KindUndefined && r.ID != ""
}

// ThumbnailHost returns the host serving the result's thumbnail.
func (r Result) ThumbnailHost() string {
	if r.Kind == KindChannel {
		return ChannelThumbnailHost
	}
	return VideoThumbnailHost
}

// FormatViews formats a raw view count such as "1,234,567 views" to a
// compact form such as "1.2M". Non-digit characters are ignored.
//
//	FormatViews("999")     // 999
//	FormatViews("1500")    // 1.5k
//	FormatViews("150000")  // 150k
//	FormatViews("2500000") // 2.5M
func FormatViews(raw string) string {
	var digits strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits.WriteByte(raw[i])
		}
	}

	views, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		views = 0
	}

	var formatted string
	switch {
	case views < 1e3:
		formatted = strconv.FormatInt(views, 10)
	case views < 1e5:
		formatted = fmt.Sprintf("%.1fk", float64(views)/1e3)
	case views < 1e6:
		formatted = fmt.Sprintf("%dk", views/1e3)
	case views < 1e8:
		formatted = fmt.Sprintf("%.1fM", float64(views)/1e6)
	case views < 1e9:
		formatted = fmt.Sprintf("%dM", views/1e6)
	case views < 1e11:
		formatted = fmt.Sprintf("%.1fB", float64(views)/1e9)
	default:
		formatted = fmt.Sprintf("%dB", views/1e9)
	}

	return strings.Replace(formatted, ".0", "", 1)
}
