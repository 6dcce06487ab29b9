package thumb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/webp"
)

// RenderFunc produces an encoded PNG no larger than target on either side.
type RenderFunc func(ctx context.Context, class Class, path string, target int) ([]byte, error)

type renderer struct {
	helpers Helpers
}

func (r renderer) render(ctx context.Context, class Class, path string, target int) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	switch class {
	case Raster:
		img, err = decodeRaster(path)
	case Vector:
		img, err = rasterizeSVG(path, target)
	case Video:
		img, err = r.videoFrame(ctx, path)
	case PDF:
		img, err = r.pdfPage(ctx, path, target)
	case EPUB:
		img, err = r.epubCover(ctx, path, target)
	default:
		return nil, fmt.Errorf("no renderer for %s files", class)
	}
	if err != nil {
		return nil, err
	}
	return encodeFit(img, target)
}

// encodeFit scales img down to fit a target square and encodes it as PNG.
func encodeFit(img image.Image, target int) ([]byte, error) {
	thumb := imaging.Fit(img, target, target, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRaster(path string) (image.Image, error) {
	if isHEIF(path) {
		if !heicSupported() {
			return nil, fmt.Errorf("decode %s: HEIC is not supported on this platform", path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, err := decodeHEIC(f)
		if err != nil {
			return nil, fmt.Errorf("decode heic %s: %w", path, err)
		}
		return img, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func rasterizeSVG(path string, target int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	icon, err := oksvg.ReadIconStream(f, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg %s: %w", path, err)
	}

	w, h := icon.ViewBox.W, icon.ViewBox.H
	if w <= 0 || h <= 0 {
		w, h = float64(target), float64(target)
	}
	scale := math.Min(float64(target)/w, float64(target)/h)
	pw := max(1, int(math.Round(w*scale)))
	ph := max(1, int(math.Round(h*scale)))

	icon.SetTarget(0, 0, float64(pw), float64(ph))
	rgba := image.NewRGBA(image.Rect(0, 0, pw, ph))
	scanner := rasterx.NewScannerGV(pw, ph, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(pw, ph, scanner), 1.0)
	return rgba, nil
}

func (r renderer) helper(h Helper) (string, error) {
	path, ok := r.helpers[h]
	if !ok || path == "" {
		return "", fmt.Errorf("%s: %w", h, ErrHelperUnavailable)
	}
	return path, nil
}

// videoFrame grabs the first frame of the clip.
func (r renderer) videoFrame(ctx context.Context, path string) (image.Image, error) {
	ffmpeg, err := r.helper(HelperFFmpeg)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, ffmpeg, "-v", "error", "-i", path,
		"-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	out := stdout.Bytes()
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg output: %w", err)
	}
	return img, nil
}

func (r renderer) pdfPage(ctx context.Context, path string, target int) (image.Image, error) {
	pdftoppm, err := r.helper(HelperPdftoppm)
	if err != nil {
		return nil, err
	}
	return runToFile(ctx, "page", func(out string) *exec.Cmd {
		// pdftoppm appends .png to the output root
		return exec.CommandContext(ctx, pdftoppm, "-png", "-singlefile",
			"-scale-to", strconv.Itoa(target), "-f", "1", "-l", "1",
			path, out[:len(out)-len(".png")])
	})
}

func (r renderer) epubCover(ctx context.Context, path string, target int) (image.Image, error) {
	thumbnailer, err := r.helper(HelperEpubThumbnailer)
	if err != nil {
		return nil, err
	}
	return runToFile(ctx, "cover", func(out string) *exec.Cmd {
		return exec.CommandContext(ctx, thumbnailer, "-s", strconv.Itoa(target), path, out)
	})
}

// runToFile runs a helper that writes a PNG to a path of our choosing and
// decodes the result.
func runToFile(ctx context.Context, name string, build func(out string) *exec.Cmd) (image.Image, error) {
	dir, err := os.MkdirTemp("", "pikeru-thumb-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, name+".png")
	cmd := build(out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %v, stderr: %s", filepath.Base(cmd.Path), err, stderr.String())
	}

	img, err := imaging.Open(out)
	if err != nil {
		return nil, fmt.Errorf("read helper output: %w", err)
	}
	return img, nil
}
