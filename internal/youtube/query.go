package youtube

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Sort int

const (
	SortRelevance Sort = iota
	SortUploadDate
	SortViewCount
	SortRating
)

var sortCodes = map[Sort]string{
	SortRelevance:  "CAA",
	SortUploadDate: "CAI",
	SortViewCount:  "CAM",
	SortRating:     "CAE",
}

var sortNames = map[Sort]string{
	SortRelevance:  "relevance",
	SortUploadDate: "upload-date",
	SortViewCount:  "view-count",
	SortRating:     "rating",
}

func (s Sort) String() string {
	if name, ok := sortNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Sort(%d)", int(s))
}

// ParseSort parses a sort mode by name, such as "upload-date".
func ParseSort(name string) (Sort, error) {
	for sort, candidate := range sortNames {
		if strings.EqualFold(candidate, name) {
			return sort, nil
		}
	}
	return SortRelevance, fmt.Errorf("unknown sort mode %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Sort) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Sort) UnmarshalText(text []byte) error {
	sort, err := ParseSort(string(text))
	if err != nil {
		return err
	}
	*s = sort
	return nil
}

type Media int

const (
	MediaAny Media = iota
	MediaVideo
	MediaChannel
	MediaPlaylist
	MediaLive
)

var mediaCodes = map[Media]string{
	MediaAny:      "%253D",
	MediaVideo:    "SAhAB",
	MediaChannel:  "SAhAC",
	MediaPlaylist: "SAhAD",
	MediaLive:     "SBBABQAE",
}

var mediaNames = map[Media]string{
	MediaAny:      "any",
	MediaVideo:    "video",
	MediaChannel:  "channel",
	MediaPlaylist: "playlist",
	MediaLive:     "live",
}

func (m Media) String() string {
	if name, ok := mediaNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Media(%d)", int(m))
}

// ParseMedia parses a media type filter by name, such as "playlist".
func ParseMedia(name string) (Media, error) {
	for media, candidate := range mediaNames {
		if strings.EqualFold(candidate, name) {
			return media, nil
		}
	}
	return MediaAny, fmt.Errorf("unknown media type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (m Media) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Media) UnmarshalText(text []byte) error {
	media, err := ParseMedia(string(text))
	if err != nil {
		return err
	}
	*m = media
	return nil
}

// Query describes a single search. It is passed by value to search jobs.
type Query struct {
	Text        string
	Sort        Sort
	Media       Media
	AllowShorts bool
}

// Path returns the path of the search results page for the query.
func (q Query) Path() string {
	return "/results?search_query=" + Escape(q.Text) + "&sp=" + sortCodes[q.Sort] + mediaCodes[q.Media]
}

// Escape percent-encodes s. Alphanumerics and "-_.~" are kept as is, every
// other byte is encoded as %XX using upper case hex digits.
func Escape(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

func shouldKeep(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	default:
		return false
	}
}

type continuationRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
		} `json:"client"`
	} `json:"context"`
	Continuation string `json:"continuation"`
}

// ContinuationBody returns the JSON body of the request for the page
// identified by token.
func ContinuationBody(clientVersion string, token string) ([]byte, error) {
	var request continuationRequest
	request.Context.Client.ClientName = "WEB"
	request.Context.Client.ClientVersion = clientVersion
	request.Continuation = token
	return json.Marshal(&request)
}
