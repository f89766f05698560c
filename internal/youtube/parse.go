package youtube

import (
	"net/url"
	"strings"
)

// text is YouTube's representation of a possibly formatted string.
type text struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

// String returns the simple text, or all runs joined.
func (t *text) String() string {
	if t == nil {
		return ""
	}
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var builder strings.Builder
	for _, run := range t.Runs {
		builder.WriteString(run.Text)
	}
	return builder.String()
}

// first returns the simple text, or the first run.
func (t *text) first() string {
	if t == nil {
		return ""
	}
	if t.SimpleText != "" {
		return t.SimpleText
	}
	if len(t.Runs) > 0 {
		return t.Runs[0].Text
	}
	return ""
}

type thumbnails struct {
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type videoRenderer struct {
	VideoID            string `json:"videoId"`
	Title              *text  `json:"title"`
	OwnerText          *text  `json:"ownerText"`
	ViewCountText      *text  `json:"viewCountText"`
	PublishedTimeText  *text  `json:"publishedTimeText"`
	LengthText         *text  `json:"lengthText"`
	NavigationEndpoint struct {
		CommandMetadata struct {
			WebCommandMetadata struct {
				URL string `json:"url"`
			} `json:"webCommandMetadata"`
		} `json:"commandMetadata"`
	} `json:"navigationEndpoint"`
}

type channelRenderer struct {
	ChannelID           string     `json:"channelId"`
	Title               *text      `json:"title"`
	SubscriberCountText *text      `json:"subscriberCountText"`
	VideoCountText      *text      `json:"videoCountText"`
	Thumbnail           thumbnails `json:"thumbnail"`
}

type lockupViewModel struct {
	ContentID string `json:"contentId"`
	Metadata  struct {
		LockupMetadataViewModel struct {
			Title struct {
				Content string `json:"content"`
			} `json:"title"`
			Metadata struct {
				ContentMetadataViewModel struct {
					MetadataRows []struct {
						MetadataParts []struct {
							Text struct {
								Content string `json:"content"`
							} `json:"text"`
						} `json:"metadataParts"`
					} `json:"metadataRows"`
				} `json:"contentMetadataViewModel"`
			} `json:"metadata"`
		} `json:"lockupMetadataViewModel"`
	} `json:"metadata"`
	ContentImage struct {
		CollectionThumbnailViewModel struct {
			PrimaryThumbnail struct {
				ThumbnailViewModel struct {
					Image struct {
						Sources []struct {
							URL string `json:"url"`
						} `json:"sources"`
					} `json:"image"`
					Overlays []struct {
						ThumbnailOverlayBadgeViewModel struct {
							ThumbnailBadges []struct {
								ThumbnailBadgeViewModel struct {
									Text string `json:"text"`
								} `json:"thumbnailBadgeViewModel"`
							} `json:"thumbnailBadges"`
						} `json:"thumbnailOverlayBadgeViewModel"`
					} `json:"overlays"`
				} `json:"thumbnailViewModel"`
			} `json:"primaryThumbnail"`
		} `json:"collectionThumbnailViewModel"`
	} `json:"contentImage"`
}

// Item is a single entry of a search results section. At most one of the
// renderers is expected to be set.
type Item struct {
	VideoRenderer   *videoRenderer   `json:"videoRenderer"`
	ChannelRenderer *channelRenderer `json:"channelRenderer"`
	LockupViewModel *lockupViewModel `json:"lockupViewModel"`
}

// ParseItem converts an item to a result. The renderers are tried in the
// order video, channel, playlist. The returned result is of kind
// KindUndefined if no renderer matched, if the matching renderer lacks an
// id or if the item is a short and shorts are not allowed.
func ParseItem(item Item, allowShorts bool) Result {
	switch {
	case item.VideoRenderer != nil:
		return parseVideo(item.VideoRenderer, allowShorts)
	case item.ChannelRenderer != nil:
		return parseChannel(item.ChannelRenderer)
	case item.LockupViewModel != nil:
		return parsePlaylist(item.LockupViewModel)
	default:
		return Result{}
	}
}

func parseVideo(renderer *videoRenderer, allowShorts bool) Result {
	if renderer.VideoID == "" {
		return Result{}
	}

	if !allowShorts && strings.Contains(renderer.NavigationEndpoint.CommandMetadata.WebCommandMetadata.URL, "/shorts/") {
		return Result{}
	}

	result := Result{
		Kind:          KindVideo,
		ID:            renderer.VideoID,
		Title:         renderer.Title.first(),
		Author:        renderer.OwnerText.first(),
		Published:     renderer.PublishedTimeText.String(),
		Duration:      renderer.LengthText.String(),
		ThumbnailPath: "/vi/" + renderer.VideoID + "/mqdefault.jpg",
	}

	// Live streams report viewers as runs ("1,234" "watching") rather than a
	// simple count
	if renderer.ViewCountText != nil {
		if renderer.ViewCountText.SimpleText == "" && len(renderer.ViewCountText.Runs) > 0 {
			result.Kind = KindLive
		}
		result.Views = FormatViews(renderer.ViewCountText.String())
	}

	return result
}

func parseChannel(renderer *channelRenderer) Result {
	if renderer.ChannelID == "" {
		return Result{}
	}

	result := Result{
		Kind:  KindChannel,
		ID:    renderer.ChannelID,
		Title: renderer.Title.String(),
	}

	// Newer layouts put the handle in subscriberCountText and the subscriber
	// count in videoCountText
	handle := renderer.SubscriberCountText.String()
	subscribers := renderer.VideoCountText.String()
	if strings.HasPrefix(handle, "@") {
		result.Author = handle
		result.Subscribers = subscribers
	} else {
		result.Author = result.Title
		result.Subscribers = handle
		result.VideoCount = subscribers
	}

	if len(renderer.Thumbnail.Thumbnails) > 0 {
		result.ThumbnailPath = hostRelative(renderer.Thumbnail.Thumbnails[0].URL)
	}

	return result
}

func parsePlaylist(model *lockupViewModel) Result {
	if model.ContentID == "" {
		return Result{}
	}

	metadata := model.Metadata.LockupMetadataViewModel
	thumbnail := model.ContentImage.CollectionThumbnailViewModel.PrimaryThumbnail.ThumbnailViewModel

	result := Result{
		Kind:  KindPlaylist,
		ID:    model.ContentID,
		Title: metadata.Title.Content,
	}

	rows := metadata.Metadata.ContentMetadataViewModel.MetadataRows
	if len(rows) > 0 && len(rows[0].MetadataParts) > 0 {
		result.Author = rows[0].MetadataParts[0].Text.Content
	}

	if len(thumbnail.Image.Sources) > 0 {
		result.ThumbnailPath = hostRelative(thumbnail.Image.Sources[0].URL)
	}

	for _, overlay := range thumbnail.Overlays {
		for _, badge := range overlay.ThumbnailOverlayBadgeViewModel.ThumbnailBadges {
			if badge.ThumbnailBadgeViewModel.Text != "" {
				result.VideoCount = badge.ThumbnailBadgeViewModel.Text
				return result
			}
		}
	}

	return result
}

// hostRelative returns the path and query of a possibly scheme-relative URL
// such as "//yt3.ggpht.com/abc=s88".
func hostRelative(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.RequestURI()
}
