package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/AlexGustafsson/metube/internal/pipeline"
	"github.com/AlexGustafsson/metube/internal/thumbnail"
	"github.com/AlexGustafsson/metube/internal/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0644))
	t.Setenv("METUBE_SORT", "rating")

	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, youtube.SortRating, cfg.Search.Sort)

	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0644))
	_, err = loadConfig(path)
	assert.Error(t, err)
}

func TestPrintResults(t *testing.T) {
	results := []pipeline.Result{
		{
			Result: youtube.Result{Kind: youtube.KindVideo, ID: "video0001", Title: "Synth basics", Author: "Knob Twiddler", Views: "2.5M", Duration: "12:34"},
		},
		{
			Result: youtube.Result{Kind: youtube.KindChannel, ID: "UC1", Title: "Synth Channel", Author: "@synth", Subscribers: "150K subscribers"},
		},
	}

	var out bytes.Buffer
	require.NoError(t, printResults(&out, results))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "KIND")
	assert.Contains(t, string(lines[1]), "video0001")
	assert.Contains(t, string(lines[1]), "2.5M, 12:34")
	assert.Contains(t, string(lines[2]), "150K subscribers")
	assert.Contains(t, string(lines[2]), "channel")
}

func TestPrintResultsThumbnail(t *testing.T) {
	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, image.NewRGBA(image.Rect(0, 0, 4, 2))))

	decoder := &thumbnail.ImageDecoder{}
	texture, err := decoder.Decode(encoded.Bytes())
	require.NoError(t, err)

	results := []pipeline.Result{
		{
			Result:    youtube.Result{Kind: youtube.KindVideo, ID: "video0001", ThumbnailPath: "/vi/video0001/mqdefault.jpg"},
			Thumbnail: texture,
		},
	}

	var out bytes.Buffer
	require.NoError(t, printResults(&out, results))
	assert.Contains(t, out.String(), "png 4x2")

	texture.Release()
	out.Reset()
	require.NoError(t, printResults(&out, results))
	assert.NotContains(t, out.String(), "png")
}
