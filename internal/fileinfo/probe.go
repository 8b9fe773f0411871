// Package fileinfo inspects raw file bytes: digest, detected media type,
// size and, for raster images, dimensions and average color.
package fileinfo

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// OctetStream is reported when the content type cannot be recognized.
const OctetStream = "application/octet-stream"

// Type is a detected media type with its conventional extension.
type Type struct {
	Mime string `json:"mime"`
	Ext  string `json:"ext,omitempty"`
}

// RGB is an average color.
type RGB struct {
	R, G, B uint8
}

// String renders the color the way drive properties store it.
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Info is the result of probing a file.
type Info struct {
	MD5    string `json:"md5"`
	Type   Type   `json:"type"`
	Size   int64  `json:"size"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	// AvgColor is nil when the content is not a decodable raster image.
	AvgColor *RGB `json:"avgColor,omitempty"`
}

// HasDimensions reports whether intrinsic pixel dimensions were found.
func (i Info) HasDimensions() bool {
	return i.Width > 0 && i.Height > 0
}

var rasterTypes = map[string]bool{
	"image/jpeg":             true,
	"image/png":              true,
	"image/gif":              true,
	"image/webp":             true,
	"image/apng":             true,
	"image/vnd.mozilla.apng": true,
}

// avgSampleGrid bounds how many pixels are visited per axis when averaging.
const avgSampleGrid = 64

// MaxDecodePixels caps the area of images that are fully decoded. Larger
// images keep their header dimensions but get no pixel-derived data.
const MaxDecodePixels = 40_000_000

// Prober derives file identity and properties from content.
type Prober struct{}

// NewProber constructs a prober.
func NewProber() *Prober {
	return &Prober{}
}

// Probe hashes the whole file and detects its type from content. Only an
// unreadable path is an error; a corrupt file yields a best-effort Info.
func (p *Prober) Probe(ctx context.Context, path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, &ProbeError{Path: path, Err: err}
	}
	defer f.Close()

	hasher := md5.New()
	size, err := io.Copy(hasher, f)
	if err != nil {
		return Info{}, &ProbeError{Path: path, Err: err}
	}

	info := Info{
		MD5:  hex.EncodeToString(hasher.Sum(nil)),
		Size: size,
		Type: Type{Mime: OctetStream},
	}

	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Info{}, &ProbeError{Path: path, Err: err}
	}
	if size > 0 {
		if detected, err := mimetype.DetectReader(f); err == nil {
			info.Type = typeOf(detected)
		}
	}

	if rasterTypes[info.Type.Mime] {
		probeRaster(f, &info)
	}
	return info, nil
}

func typeOf(m *mimetype.MIME) Type {
	mime, _, _ := strings.Cut(m.String(), ";")
	return Type{
		Mime: strings.TrimSpace(mime),
		Ext:  strings.TrimPrefix(m.Extension(), "."),
	}
}

// probeRaster fills dimensions and average color; failures leave them unset.
func probeRaster(f io.ReadSeeker, info *Info) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return
	}
	info.Width, info.Height = cfg.Width, cfg.Height
	if int64(cfg.Width)*int64(cfg.Height) > MaxDecodePixels {
		return
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return
	}
	avg := averageColor(img)
	info.AvgColor = &avg
}

func averageColor(img image.Image) RGB {
	b := img.Bounds()
	stepX := max(1, b.Dx()/avgSampleGrid)
	stepY := max(1, b.Dy()/avgSampleGrid)

	var r, g, bl, n uint64
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += uint64(pr >> 8)
			g += uint64(pg >> 8)
			bl += uint64(pb >> 8)
			n++
		}
	}
	if n == 0 {
		return RGB{}
	}
	return RGB{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n)}
}
