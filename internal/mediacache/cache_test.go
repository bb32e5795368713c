package mediacache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arena/internal/competition"
)

func testItem() competition.MediaItem {
	return competition.MediaItem{Name: "v001", Path: "v001.mp4"}
}

func await(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(time.Second):
		t.Fatal("preview lookup did not complete")
		return Result{}
	}
}

func TestPreviewImageServesPreRenderedAsset(t *testing.T) {
	media, previews := t.TempDir(), t.TempDir()
	rendered := filepath.Join(previews, "v001_5000.jpg")
	require.NoError(t, os.WriteFile(rendered, []byte("jpg"), 0o644))

	c := NewFileCache(media, previews)
	res := await(t, c.AsyncPreviewImage(testItem(), 5000))
	require.NoError(t, res.Err)
	assert.Equal(t, rendered, res.Path)
}

func TestPreviewVideoFallsBackToSource(t *testing.T) {
	media, previews := t.TempDir(), t.TempDir()
	source := filepath.Join(media, "v001.mp4")
	require.NoError(t, os.WriteFile(source, []byte("mp4"), 0o644))

	c := NewFileCache(media, previews)
	res := await(t, c.AsyncPreviewVideo(testItem(), 1000, 2000))
	require.NoError(t, res.Err)
	assert.Equal(t, source, res.Path)
}

func TestPreviewErrorsWhenNothingExists(t *testing.T) {
	c := NewFileCache(t.TempDir(), t.TempDir())
	res := await(t, c.AsyncPreviewImage(testItem(), 5000))
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "v001")
}

func TestConcurrentRequestsAllReceiveTheResult(t *testing.T) {
	media, previews := t.TempDir(), t.TempDir()
	rendered := filepath.Join(previews, "v001_5000.jpg")
	require.NoError(t, os.WriteFile(rendered, []byte("jpg"), 0o644))

	c := NewFileCache(media, previews)
	channels := make([]<-chan Result, 8)
	for i := range channels {
		channels[i] = c.AsyncPreviewImage(testItem(), 5000)
	}
	for _, ch := range channels {
		res := await(t, ch)
		require.NoError(t, res.Err)
		assert.Equal(t, rendered, res.Path)
	}
}
