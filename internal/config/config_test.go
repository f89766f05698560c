package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AlexGustafsson/metube/internal/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 4, config.Workers)
	assert.Equal(t, "www.youtube.com", config.YouTube.Host)
	assert.Equal(t, 120*time.Second, config.Thumbnail.TTL)
	assert.Equal(t, time.Duration(0), config.Transport.IOTimeout)
	assert.Equal(t, slog.LevelInfo, config.LogLevel)
}

func TestStoreAndReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	config := DefaultConfig()
	config.Workers = 8
	config.Thumbnail.TTL = 3 * time.Minute
	config.Search.Sort = youtube.SortUploadDate
	config.Search.Media = youtube.MediaPlaylist
	config.LogLevel = slog.LevelDebug
	require.NoError(t, config.Store(path))

	read, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config, read)

	// No temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\nthumbnail:\n  ttl: 90s\nsearch:\n  media: live\nlogLevel: debug\n"), 0644))

	config, err := ReadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, config.Workers)
	assert.Equal(t, 90*time.Second, config.Thumbnail.TTL)
	assert.Equal(t, youtube.MediaLive, config.Search.Media)
	assert.Equal(t, slog.LevelDebug, config.LogLevel)

	// Unset values keep their defaults
	assert.Equal(t, youtube.DefaultHost, config.YouTube.Host)
	assert.Equal(t, youtube.SortRelevance, config.Search.Sort)
}

func TestReadConfigErrors(t *testing.T) {
	testCases := []struct {
		Name    string
		Content string
	}{
		{Name: "unknown field", Content: "workerz: 2\n"},
		{Name: "invalid sort", Content: "search:\n  sort: newest\n"},
		{Name: "invalid duration", Content: "thumbnail:\n  ttl: soon\n"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(testCase.Content), 0644))

			_, err := ReadConfig(path)
			assert.Error(t, err)
		})
	}

	_, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateConfigIfNotExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, CreateConfigIfNotExists(path))

	config, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)

	// An existing file is left untouched
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\n"), 0644))
	require.NoError(t, CreateConfigIfNotExists(path))
	config, err = ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, config.Workers)
}

func TestPopulateFromEnvironment(t *testing.T) {
	t.Setenv("METUBE_WORKERS", "6")
	t.Setenv("METUBE_THUMBNAIL_TTL", "45s")
	t.Setenv("METUBE_SORT", "view-count")
	t.Setenv("METUBE_ALLOW_SHORTS", "true")
	t.Setenv("METUBE_LOG_LEVEL", "warn")

	config := DefaultConfig()
	require.NoError(t, config.PopulateFromEnvironment())

	assert.Equal(t, 6, config.Workers)
	assert.Equal(t, 45*time.Second, config.Thumbnail.TTL)
	assert.Equal(t, youtube.SortViewCount, config.Search.Sort)
	assert.True(t, config.Search.AllowShorts)
	assert.Equal(t, slog.LevelWarn, config.LogLevel)
}

func TestValidate(t *testing.T) {
	config := DefaultConfig()
	config.Workers = 0
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.YouTube.Host = ""
	assert.Error(t, config.Validate())

	config = DefaultConfig()
	config.Thumbnail.TTL = -time.Second
	assert.Error(t, config.Validate())
}
