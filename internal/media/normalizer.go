// Package media fetches a post's featured image and normalizes it into a
// format the delivery path accepts. Every failure here is absorbed locally:
// the worst outcome is a message sent without an attachment.
package media

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/gif" // GIF decoder registration
	"image/jpeg"
	_ "image/png" // PNG decoder registration
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/postgram/postgram/internal/config"
	"github.com/postgram/postgram/internal/feed"

	_ "golang.org/x/image/webp" // WebP decoder registration
)

const (
	jpegQuality   = 85
	maxImageBytes = 20 << 20 // refuse to buffer images past 20 MiB
)

// Normalizer resolves a featured image URL into binary attachment bytes.
type Normalizer struct {
	client       *http.Client
	cacheDir     string
	cacheBaseURL string
	logger       *slog.Logger
}

// NewNormalizer creates a Normalizer. Converted artifacts are written under
// cfg.CacheDir; when cfg.CacheBaseURL is set each artifact is probed over
// HTTP before its bytes are used.
func NewNormalizer(client *http.Client, cfg *config.Config, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		client:       client,
		cacheDir:     cfg.CacheDir,
		cacheBaseURL: strings.TrimSuffix(cfg.CacheBaseURL, "/"),
		logger:       logger,
	}
}

// strategy is one attempt at producing an attachment. A nil error means the
// attachment is final; an error moves resolution to the next strategy.
type strategy func(ctx context.Context, url string) (*feed.ImageAttachment, error)

// Resolve fetches and normalizes the image at url. It returns nil — never an
// error — when no usable attachment can be produced: the caller sends the
// message text-only.
func (n *Normalizer) Resolve(ctx context.Context, url string, cfg *config.Config) *feed.ImageAttachment {
	if !cfg.IncludeFeaturedImage || url == "" {
		return nil
	}

	var strategies []strategy
	if ClassifyFormat(url) == FormatWebP && cfg.ConvertUnsupportedImages {
		strategies = append(strategies, n.tryConvert)
	}
	strategies = append(strategies, n.tryOriginalFetch)

	for _, try := range strategies {
		att, err := try(ctx, url)
		if err != nil {
			n.logger.Warn("image strategy failed", "url", url, "error", err)
			continue
		}
		return att
	}

	n.logger.Info("featured image unavailable, sending text-only", "url", url)
	return nil
}

// tryConvert downloads the image, re-encodes it as JPEG, persists the result
// to the cache directory, and returns the artifact bytes read back from disk.
// When a cache base URL is configured the artifact must also survive a remote
// accessibility probe before it is trusted.
func (n *Normalizer) tryConvert(ctx context.Context, url string) (*feed.ImageAttachment, error) {
	raw, _, err := n.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("media: download: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("media: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("media: encode jpeg: %w", err)
	}

	if err := os.MkdirAll(n.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create cache dir: %w", err)
	}

	name := artifactName(url)
	path := filepath.Join(n.cacheDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("media: write artifact: %w", err)
	}

	// The payload is the artifact as persisted, not the in-memory buffer.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("media: read artifact back: %w", err)
	}

	if n.cacheBaseURL != "" {
		if err := n.probe(ctx, n.cacheBaseURL+"/"+name); err != nil {
			return nil, fmt.Errorf("media: converted artifact not accessible: %w", err)
		}
	}

	return &feed.ImageAttachment{
		Bytes:    data,
		MIMEType: "image/jpeg",
		Size:     len(data),
	}, nil
}

// tryOriginalFetch downloads the original URL and accepts the bytes as-is,
// provided the server reports an image content type.
func (n *Normalizer) tryOriginalFetch(ctx context.Context, url string) (*feed.ImageAttachment, error) {
	raw, contentType, err := n.fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("media: download: %w", err)
	}

	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("media: not an image: content type %q", contentType)
	}

	return &feed.ImageAttachment{
		Bytes:    raw,
		MIMEType: contentType,
		Size:     len(raw),
	}, nil
}

// fetch GETs a URL and returns the body bytes and the media type portion of
// the Content-Type header.
func (n *Normalizer) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}

	return body, mediaType(resp.Header.Get("Content-Type")), nil
}

// probe issues a HEAD request and requires a 2xx status with an image
// content type.
func (n *Normalizer) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	if ct := mediaType(resp.Header.Get("Content-Type")); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("probe content type %q", ct)
	}
	return nil
}

// artifactName derives a stable, filesystem-safe name for a converted image.
// The timestamp keeps re-conversions of a republished URL distinct.
func artifactName(url string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(url))
	return fmt.Sprintf("converted-%x-%d.jpg", h.Sum64(), time.Now().Unix())
}

// mediaType strips any parameters (e.g. "; charset=utf-8") from a
// Content-Type header value.
func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}
