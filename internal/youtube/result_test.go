package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatViews(t *testing.T) {
	testCases := []struct {
		Input    string
		Expected string
	}{
		{Input: "", Expected: "0"},
		{Input: "No views", Expected: "0"},
		{Input: "999", Expected: "999"},
		{Input: "1000", Expected: "1k"},
		{Input: "1500", Expected: "1.5k"},
		{Input: "2000", Expected: "2k"},
		{Input: "99,949 views", Expected: "99.9k"},
		{Input: "150000", Expected: "150k"},
		{Input: "999999", Expected: "999k"},
		{Input: "1,000,000 views", Expected: "1M"},
		{Input: "2500000", Expected: "2.5M"},
		{Input: "150000000", Expected: "150M"},
		{Input: "3,000,000,000", Expected: "3B"},
		{Input: "12500000000", Expected: "12.5B"},
		{Input: "250000000000", Expected: "250B"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Input, func(t *testing.T) {
			formatted := FormatViews(testCase.Input)
			assert.Equal(t, testCase.Expected, formatted)
			assert.NotContains(t, formatted, ".0")
		})
	}
}

func TestResultThumbnailHost(t *testing.T) {
	assert.Equal(t, VideoThumbnailHost, Result{Kind: KindVideo}.ThumbnailHost())
	assert.Equal(t, VideoThumbnailHost, Result{Kind: KindLive}.ThumbnailHost())
	assert.Equal(t, VideoThumbnailHost, Result{Kind: KindPlaylist}.ThumbnailHost())
	assert.Equal(t, ChannelThumbnailHost, Result{Kind: KindChannel}.ThumbnailHost())
}

func TestResultValid(t *testing.T) {
	assert.False(t, Result{}.Valid())
	assert.False(t, Result{Kind: KindVideo}.Valid())
	assert.False(t, Result{ID: "abc"}.Valid())
	assert.True(t, Result{Kind: KindVideo, ID: "abc"}.Valid())
}
