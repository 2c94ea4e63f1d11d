package videofx

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	apperrors "studiocast/pkg/errors"
)

// ImageCache fetches and decodes background images, keyed by URL, so effect
// changes never refetch an image already in memory.
type ImageCache struct {
	client *http.Client

	mu     sync.Mutex
	images map[string]*image.RGBA
}

// NewImageCache creates an empty cache with a bounded fetch timeout.
func NewImageCache() *ImageCache {
	return &ImageCache{
		client: &http.Client{Timeout: 10 * time.Second},
		images: make(map[string]*image.RGBA),
	}
}

// Get returns the decoded image for url, fetching it on first use.
func (c *ImageCache) Get(ctx context.Context, url string) (*image.RGBA, error) {
	c.mu.Lock()
	if img, ok := c.images[url]; ok {
		c.mu.Unlock()
		return img, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid background image url: %v", err))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError("image-fetch", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamError("image-fetch", fmt.Sprintf("status %d fetching %s", resp.StatusCode, url))
	}

	decoded, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamError("image-fetch", fmt.Sprintf("decode %s: %v", url, err))
	}

	rgba := image.NewRGBA(decoded.Bounds())
	draw.Draw(rgba, rgba.Bounds(), decoded, decoded.Bounds().Min, draw.Src)

	c.mu.Lock()
	c.images[url] = rgba
	c.mu.Unlock()
	return rgba, nil
}

// Scaled returns the cached image resampled to width×height. Scaled copies
// are cached separately per size.
func (c *ImageCache) Scaled(ctx context.Context, url string, width, height int) (*image.RGBA, error) {
	key := fmt.Sprintf("%s@%dx%d", url, width, height)
	c.mu.Lock()
	if img, ok := c.images[key]; ok {
		c.mu.Unlock()
		return img, nil
	}
	c.mu.Unlock()

	src, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	c.mu.Lock()
	c.images[key] = scaled
	c.mu.Unlock()
	return scaled, nil
}

// Put seeds the cache directly. Tests and local file loaders use this to
// bypass the network.
func (c *ImageCache) Put(url string, img *image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[url] = img
}
