package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/wuffsgo/puffs/pixel"
)

// writePNG snapshots the current state of a decoded pixel buffer to
// "<pngDir>/<basename>.frameNNNN.png". decodeImage reuses one pixel.Buffer
// across every frame of a file exactly as a real caller would: the
// decoder itself blends frame N+1 onto whatever frame N left in that
// buffer, honoring fcfg.Blend (pixel.BlendSrcOver vs pixel.BlendSrc)
// internally. What lands here is already-composited pixel data; draw.Src
// is used only for the final format conversion onto a plain image.NRGBA
// canvas suitable for png.Encode, not for cross-frame blending.
func writePNG(dir, sourcePath string, frameIndex int, buf *pixel.Buffer) error {
	src, err := toImage(buf)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	canvas := image.NewNRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, image.Point{}, draw.Src)

	name := fmt.Sprintf("%s.frame%04d.png", filepath.Base(sourcePath), frameIndex)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, canvas)
}

// toImage converts a decoded pixel.Buffer to a stdlib image.Image, reading
// its single plane row by row through Table2D.Row -- this repository keeps
// rows byte-oriented and caller-owned, so the conversion does the same
// interleave math the pixel package's own Format.BytesPerPixel documents.
func toImage(buf *pixel.Buffer) (image.Image, error) {
	w, h := int(buf.Config.Width), int(buf.Config.Height)
	switch buf.Config.Format {
	case pixel.FormatBGRA8888, pixel.FormatBGRA8888Premul, pixel.FormatBGRX8888:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		bpp := buf.Config.Format.BytesPerPixel()
		for y := 0; y < h; y++ {
			row, ok := buf.Planes[0].Row(y)
			if !ok {
				return nil, fmt.Errorf("row %d out of range for a %dx%d buffer", y, w, h)
			}
			for x := 0; x < w; x++ {
				o := x * bpp
				b, g, r, a := row[o], row[o+1], row[o+2], byte(0xff)
				if bpp == 4 {
					a = row[o+3]
				}
				img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
			}
		}
		return img, nil

	case pixel.FormatGray8:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			row, ok := buf.Planes[0].Row(y)
			if !ok {
				return nil, fmt.Errorf("row %d out of range for a %dx%d buffer", y, w, h)
			}
			copy(img.Pix[y*img.Stride:y*img.Stride+w], row[:w])
		}
		return img, nil

	case pixel.FormatBGRIndexed:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			row, ok := buf.Planes[0].Row(y)
			if !ok {
				return nil, fmt.Errorf("row %d out of range for a %dx%d buffer", y, w, h)
			}
			for x := 0; x < w; x++ {
				b, g, r, a := buf.PaletteColor(int(row[x]))
				img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("unsupported pixel format %v for PNG export", buf.Config.Format)
	}
}
