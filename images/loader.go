// Package images resolves, fetches, decodes, and caches page images.
//
// Synchronous loads serve data: URLs and local files; everything else
// should go through LoadAsync, which fetches bytes on the scheduler's
// worker pool and lands the decoded image in the cache from a Drain
// callback on the render goroutine.
package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"perch/network"
	"perch/tasks"
)

// Loader turns img src attributes into decoded RGBA images.
type Loader struct {
	cache     *Cache
	fetcher   network.Fetcher
	scheduler *tasks.Scheduler
	assetsDir string
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFetcher sets the fetcher used for http and https locators.
func WithFetcher(f network.Fetcher) Option {
	return func(l *Loader) {
		l.fetcher = f
	}
}

// WithAssetsDir sets the directory that about: pages resolve their
// relative references into.
func WithAssetsDir(dir string) Option {
	return func(l *Loader) {
		l.assetsDir = dir
	}
}

// WithScheduler sets the scheduler used by LoadAsync.
func WithScheduler(s *tasks.Scheduler) Option {
	return func(l *Loader) {
		l.scheduler = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader with an empty cache.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		cache:  NewCache(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache exposes the underlying cache.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Resolve turns a src reference into the locator used as the cache
// key. Absolute references pass through; relative references under an
// about: base land in the assets directory; everything else joins
// onto the base URL.
func (l *Loader) Resolve(base, src string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("empty image source")
	}
	if network.IsDataURL(src) {
		return src, nil
	}
	if network.IsAbsolute(src) {
		return l.normalize(src), nil
	}
	if strings.HasPrefix(base, "about:") {
		if l.assetsDir == "" {
			return "", fmt.Errorf("no assets directory for about: page reference %q", src)
		}
		return "file://" + filepath.Join(l.assetsDir, filepath.FromSlash(path.Clean("/"+src))), nil
	}
	resolved, err := network.Resolve(base, src)
	if err != nil {
		return "", err
	}
	return l.normalize(resolved), nil
}

func (l *Loader) normalize(locator string) string {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		if n, err := network.Normalize(locator); err == nil {
			return n
		}
	}
	return locator
}

// Lookup returns the cached state for an already-resolved locator.
func (l *Loader) Lookup(locator string) (State, *image.RGBA) {
	return l.cache.Lookup(locator)
}

// Load fetches and decodes a locator synchronously, consulting and
// filling the cache. A locator that previously failed returns its
// recorded error without refetching; a locator some other caller is
// already loading returns no image rather than duplicating the fetch.
func (l *Loader) Load(ctx context.Context, locator string) (*image.RGBA, error) {
	switch state, img := l.cache.Lookup(locator); state {
	case StateLoaded:
		return img, nil
	case StateFailed:
		return nil, l.cache.Err(locator)
	case StatePending:
		return nil, nil
	}

	// Claim the miss before any I/O so concurrent loads of one
	// locator issue exactly one fetch.
	if !l.cache.MarkPending(locator) {
		switch state, img := l.cache.Lookup(locator); state {
		case StateLoaded:
			return img, nil
		case StateFailed:
			return nil, l.cache.Err(locator)
		default:
			return nil, nil
		}
	}

	img, err := l.fetchAndDecode(ctx, locator)
	if err != nil {
		l.cache.StoreFailed(locator, err)
		return nil, err
	}
	l.cache.StoreLoaded(locator, img)
	return img, nil
}

// LoadAsync starts loading a locator in the background. Only the byte
// fetch runs on the worker pool; decoding and the cache insert happen
// on the draining goroutine, together with onUpdate. onUpdate runs
// once the cache has been updated, whether the load succeeded or
// failed; use it to invalidate layout. If the locator is already
// settled, or another load is in flight, onUpdate is posted
// immediately (loads are never duplicated). Returns the handle of the
// spawned task, or nil when none was needed.
func (l *Loader) LoadAsync(locator string, onUpdate func()) *tasks.Handle {
	if l.scheduler == nil {
		// No scheduler wired; fall back to a blocking load.
		if _, err := l.Load(context.Background(), locator); err != nil {
			l.logger.Warn("image load failed", "locator", locator, "error", err)
		}
		if onUpdate != nil {
			onUpdate()
		}
		return nil
	}

	if !l.cache.MarkPending(locator) {
		if onUpdate != nil {
			l.scheduler.Post(onUpdate)
		}
		return nil
	}

	return l.scheduler.Submit(
		func() (any, error) {
			return l.fetchBytes(context.Background(), locator)
		},
		func(result any) {
			l.decodeAndStore(locator, result.([]byte))
			if onUpdate != nil {
				onUpdate()
			}
		},
		func(err error) {
			l.logger.Warn("image load failed", "locator", locator, "error", err)
			l.cache.StoreFailed(locator, err)
			if onUpdate != nil {
				onUpdate()
			}
		},
	)
}

// decodeAndStore decodes fetched bytes and records the outcome. It
// runs on the draining goroutine so decoded pixels land in the cache
// without crossing threads.
func (l *Loader) decodeAndStore(locator string, data []byte) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		err = fmt.Errorf("decode %s: %w", locator, err)
		l.logger.Warn("image load failed", "locator", locator, "error", err)
		l.cache.StoreFailed(locator, err)
		return
	}
	l.cache.StoreLoaded(locator, toRGBA(img))
}

// Preload inserts a decoded image directly. Tests and snapshot tools
// use it to avoid network access.
func (l *Loader) Preload(locator string, img image.Image) {
	l.cache.MarkPending(locator)
	l.cache.StoreLoaded(locator, toRGBA(img))
}

func (l *Loader) fetchAndDecode(ctx context.Context, locator string) (*image.RGBA, error) {
	data, err := l.fetchBytes(ctx, locator)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", locator, err)
	}
	return toRGBA(img), nil
}

func (l *Loader) fetchBytes(ctx context.Context, locator string) ([]byte, error) {
	switch {
	case network.IsDataURL(locator):
		d, err := network.ParseDataURL(locator)
		if err != nil {
			return nil, err
		}
		return d.Data, nil

	case strings.HasPrefix(locator, "file://"):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("invalid file locator: %w", err)
		}
		return os.ReadFile(filepath.FromSlash(u.Path))

	case strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://"):
		if l.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for %s", locator)
		}
		resp, err := l.fetcher.Fetch(ctx, locator)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("fetch %s: %s", locator, resp.Status)
		}
		return resp.Body, nil

	default:
		// Bare paths are treated as local files.
		return os.ReadFile(locator)
	}
}

// toRGBA copies any decoded image into a self-contained RGBA buffer
// so cached pixels never alias decoder state.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
