package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"yatube/internal/config"
	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/validation"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaRoot            = "media"
	DefaultImageMaxUploadSizeMB = 5
	// RenditionMaxSize bounds the longest side of the WebP rendition.
	RenditionMaxSize = 960
	WebPQuality      = 75
	// PostImageDir is the media sub-directory for post images.
	PostImageDir = "posts"
	// MaxImagePixels bounds width*height of an upload. Headers are checked
	// before the pixels are decoded.
	MaxImagePixels = 40_000_000
)

// ImageInput is one uploaded file.
type ImageInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// StoredImage points at the files written for an upload, relative to the media root.
type StoredImage struct {
	Path     string
	WebPPath string
	Width    int
	Height   int

	// existed is set when identical content was already stored.
	existed bool
}

// ImageStore persists post images.
type ImageStore interface {
	Save(ctx context.Context, in ImageInput) (*StoredImage, error)
	Remove(img *StoredImage)
}

// ImageService validates uploads by decoding them, stores the original bytes
// under a content hash and writes a bounded WebP rendition alongside.
type ImageService struct {
	mediaRoot          string
	maxUploadSizeBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	root := DefaultMediaRoot
	maxMB := DefaultImageMaxUploadSizeMB
	if cfg != nil {
		if cfg.MediaRoot != "" {
			root = cfg.MediaRoot
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxMB = cfg.ImageMaxUploadSizeMB
		}
	}
	return &ImageService{
		mediaRoot:          root,
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
	}
}

// MediaRoot is the directory uploads are written to.
func (s *ImageService) MediaRoot() string {
	return s.mediaRoot
}

// Save rejects anything that does not decode as GIF, PNG, JPEG or WebP with a
// form error on the image field.
func (s *ImageService) Save(ctx context.Context, in ImageInput) (*StoredImage, error) {
	invalid := models.NewFormError(map[string]string{"image": validation.MsgInvalidImage})
	if len(in.Content) == 0 {
		return nil, invalid
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewFormError(map[string]string{
			"image": fmt.Sprintf("Размер файла не должен превышать %d МБ.", s.maxUploadSizeBytes/(1024*1024)),
		})
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil || header.Width <= 0 || header.Height <= 0 {
		return nil, invalid
	}
	if int64(header.Width)*int64(header.Height) > MaxImagePixels {
		return nil, invalid
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, invalid
	}
	ext, ok := extensionFor(format)
	if !ok {
		return nil, invalid
	}

	hash := contentHash(in.Content)
	stored := &StoredImage{
		Path:   path.Join(PostImageDir, hash+ext),
		Width:  decoded.Bounds().Dx(),
		Height: decoded.Bounds().Dy(),
	}

	if _, err := os.Stat(s.abs(stored.Path)); err == nil {
		stored.existed = true
	} else if err := writeBytesToFile(s.abs(stored.Path), in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}

	rendition, err := encodeWebP(resizeToFit(decoded, RenditionMaxSize, RenditionMaxSize), WebPQuality)
	if err != nil {
		// The original is still usable without a rendition.
		middleware.Logger.WarnContext(ctx, "webp rendition failed",
			slog.String("path", stored.Path), slog.String("error", err.Error()))
		return stored, nil
	}
	stored.WebPPath = path.Join(PostImageDir, fmt.Sprintf("%s_%d.webp", hash, RenditionMaxSize))
	if err := writeBytesToFile(s.abs(stored.WebPPath), rendition); err != nil {
		s.Remove(stored)
		return nil, models.NewInternalError(err)
	}
	return stored, nil
}

// Remove deletes the files of an upload that was not persisted. Content that
// was already on disk before Save is kept.
func (s *ImageService) Remove(img *StoredImage) {
	if img == nil || img.existed {
		return
	}
	for _, rel := range []string{img.Path, img.WebPPath} {
		if rel != "" {
			_ = os.Remove(s.abs(rel))
		}
	}
}

func (s *ImageService) abs(rel string) string {
	return filepath.Join(s.mediaRoot, filepath.FromSlash(rel))
}

func extensionFor(format string) (string, bool) {
	switch strings.ToLower(format) {
	case "jpeg":
		return ".jpg", true
	case "png":
		return ".png", true
	case "gif":
		return ".gif", true
	case "webp":
		return ".webp", true
	default:
		return "", false
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:16])
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBytesToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
