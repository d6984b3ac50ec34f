package host

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.design/x/clipboard"
	"golang.org/x/image/draw"

	"github.com/user-none/emuframework/storage"
)

// frameImage wraps an RGBA framebuffer and, for non-square pixels, scales
// it horizontally so the image has the displayed aspect ratio.
func frameImage(pixels []byte, stride, height int, par float64) (image.Image, error) {
	if stride <= 0 || height <= 0 || len(pixels) < stride*height {
		return nil, fmt.Errorf("invalid framebuffer %d bytes, stride %d, height %d", len(pixels), stride, height)
	}
	src := &image.RGBA{
		Pix:    pixels[:stride*height],
		Stride: stride,
		Rect:   image.Rect(0, 0, stride/4, height),
	}
	if par <= 0 || par == 1 {
		return src, nil
	}

	w := int(float64(src.Rect.Dx())*par + 0.5)
	dst := image.NewRGBA(image.Rect(0, 0, w, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// EncodeScreenshot returns the frame as PNG data.
func EncodeScreenshot(pixels []byte, stride, height int, par float64) ([]byte, error) {
	img, err := frameImage(pixels, stride, height, par)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveScreenshot writes the frame as a PNG named after the current time
// into the content's screenshot directory and returns its path.
func SaveScreenshot(dirs *storage.Dirs, crc uint32, pixels []byte, stride, height int, par float64, now time.Time) (string, error) {
	data, err := EncodeScreenshot(pixels, stride, height, par)
	if err != nil {
		return "", err
	}

	dir := dirs.ScreenshotDir(crc)
	if err := dirs.Fs().MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.png", now.Unix()))
	if err := afero.WriteFile(dirs.Fs(), path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// clipboardState initialises the system clipboard on first use.
type clipboardState struct {
	inited bool
	err    error
}

// CopyImage places PNG data on the system clipboard.
func (c *clipboardState) CopyImage(data []byte) error {
	if !c.inited {
		c.err = clipboard.Init()
		c.inited = true
	}
	if c.err != nil {
		return fmt.Errorf("clipboard unavailable: %w", c.err)
	}
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}
