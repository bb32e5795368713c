package mediacache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openvbs/arena/internal/competition"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Result is the outcome of an asynchronous preview request.
type Result struct {
	Path string
	Err  error
}

// PreviewCache materializes renderable hint/target assets. Callers await the
// returned channel only when displaying content, never inside the submission
// pipeline.
type PreviewCache interface {
	AsyncPreviewImage(item competition.MediaItem, timeMS int64) <-chan Result
	AsyncPreviewVideo(item competition.MediaItem, startMS, endMS int64) <-chan Result
}

// FileCache resolves previews against a directory of pre-rendered assets
// keyed by deterministic filenames, falling back to the source media file
// when no pre-rendered asset exists. Transcoding itself is out of scope; an
// external worker fills the preview directory.
type FileCache struct {
	mediaRoot   string
	previewRoot string
	inflight    *xsync.MapOf[string, *lookup]
}

// lookup is a single in-flight resolution shared by every caller that asked
// for the same asset while it was pending.
type lookup struct {
	done   chan struct{}
	result Result
}

func NewFileCache(mediaRoot, previewRoot string) *FileCache {
	return &FileCache{
		mediaRoot:   mediaRoot,
		previewRoot: previewRoot,
		inflight:    xsync.NewMapOf[string, *lookup](),
	}
}

func (c *FileCache) AsyncPreviewImage(item competition.MediaItem, timeMS int64) <-chan Result {
	name := fmt.Sprintf("%s_%d.jpg", item.Name, timeMS)
	return c.resolve(name, item)
}

func (c *FileCache) AsyncPreviewVideo(item competition.MediaItem, startMS, endMS int64) <-chan Result {
	name := fmt.Sprintf("%s_%d_%d.mp4", item.Name, startMS, endMS)
	return c.resolve(name, item)
}

// resolve deduplicates concurrent requests for the same asset: the first
// caller spawns the lookup, later callers wait on the same pending one.
func (c *FileCache) resolve(name string, item competition.MediaItem) <-chan Result {
	l := &lookup{done: make(chan struct{})}
	if existing, loaded := c.inflight.LoadOrStore(name, l); loaded {
		l = existing
	} else {
		go func() {
			l.result = c.lookupAsset(name, item)
			close(l.done)
			c.inflight.Delete(name)
		}()
	}

	ch := make(chan Result, 1)
	go func() {
		<-l.done
		ch <- l.result
	}()
	return ch
}

func (c *FileCache) lookupAsset(name string, item competition.MediaItem) Result {
	preview := filepath.Join(c.previewRoot, name)
	if _, err := os.Stat(preview); err == nil {
		return Result{Path: preview}
	}

	source := filepath.Join(c.mediaRoot, item.Path)
	if _, err := os.Stat(source); err != nil {
		return Result{Err: fmt.Errorf("media item %s not found: %w", item.Name, err)}
	}
	zap.S().Debugf("no pre-rendered preview %s, serving source media", name)
	return Result{Path: source}
}
