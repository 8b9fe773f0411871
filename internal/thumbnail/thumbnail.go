// Package thumbnail produces preview artifacts for drive files.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/abduss/driveingest/internal/fileinfo"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Bounding box for raster previews.
const (
	MaxWidth    = 250
	MaxHeight   = 160
	jpegQuality = 85
)

// Thumbnail is a derived preview artifact.
type Thumbnail struct {
	Data []byte
	Type string
	Ext  string
}

// FrameExtractor pulls a representative still out of a video as JPEG bytes.
type FrameExtractor interface {
	Extract(ctx context.Context, path string) ([]byte, error)
}

// Generator dispatches on media type. It never returns an error.
type Generator struct {
	log    *zap.Logger
	frames FrameExtractor
}

// NewGenerator constructs a generator; frames may be nil to disable video previews.
func NewGenerator(log *zap.Logger, frames FrameExtractor) *Generator {
	return &Generator{log: log.Named("thumbnail"), frames: frames}
}

// Generate returns nil when the type is unsupported or conversion fails.
func (g *Generator) Generate(ctx context.Context, path, mediaType string) *Thumbnail {
	thumb, err := g.generate(ctx, path, mediaType)
	if err != nil {
		g.log.Warn("thumbnail not created", zap.String("type", mediaType), zap.Error(err))
		return nil
	}
	return thumb
}

func (g *Generator) generate(ctx context.Context, path, mediaType string) (*Thumbnail, error) {
	switch {
	case mediaType == "image/jpeg" || mediaType == "image/webp":
		return convertToJPEG(path, MaxWidth, MaxHeight)
	case mediaType == "image/png":
		return convertToPNG(path, MaxWidth, MaxHeight)
	case mediaType == "image/gif":
		return convertToGIF(path)
	case mediaType == "image/apng" || mediaType == "image/vnd.mozilla.apng":
		return convertToAPNG(path)
	case strings.HasPrefix(mediaType, "video/"):
		return g.videoThumbnail(ctx, path)
	default:
		return nil, nil
	}
}

func (g *Generator) videoThumbnail(ctx context.Context, path string) (*Thumbnail, error) {
	if g.frames == nil {
		return nil, nil
	}
	data, err := g.frames.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract video frame: %w", err)
	}
	return &Thumbnail{Data: data, Type: "image/jpeg", Ext: "jpg"}, nil
}

func convertToJPEG(path string, width, height int) (*Thumbnail, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fit(img, width, height), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return &Thumbnail{Data: buf.Bytes(), Type: "image/jpeg", Ext: "jpg"}, nil
}

func convertToPNG(path string, width, height int) (*Thumbnail, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, fit(img, width, height)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &Thumbnail{Data: buf.Bytes(), Type: "image/png", Ext: "png"}, nil
}

// convertToGIF keeps the animation intact.
func convertToGIF(path string) (*Thumbnail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gif: %w", err)
	}
	if _, err := gif.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	return &Thumbnail{Data: data, Type: "image/gif", Ext: "gif"}, nil
}

// convertToAPNG keeps the animation intact.
func convertToAPNG(path string) (*Thumbnail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read apng: %w", err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode apng: %w", err)
	}
	return &Thumbnail{Data: data, Type: "image/apng", Ext: "apng"}, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > fileinfo.MaxDecodePixels {
		return nil, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind image: %w", err)
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// fit scales img down to fit inside the box, preserving aspect ratio. It never enlarges.
func fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := fitInside(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func fitInside(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(math.Round(float64(w)*ratio)))
	nh := max(1, int(math.Round(float64(h)*ratio)))
	return nw, nh
}
