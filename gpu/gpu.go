// Package gpu implements the raster frame buffer of the simco system.
package gpu

import (
	"bufio"
	"fmt"
	"io"
)

const (
	GPU_DEFAULT_WIDTH  = 32 // Default frame buffer width, in pixels.
	GPU_DEFAULT_HEIGHT = 16 // Default frame buffer height, in pixels.
)

// Color is a 24-bit RGB pixel.
type Color struct {
	R, G, B uint8
}

var (
	BLACK = Color{0, 0, 0}
	WHITE = Color{255, 255, 255}
	RED   = Color{255, 0, 0}
	GREEN = Color{0, 255, 0}
	BLUE  = Color{0, 0, 255}
)

// Gpu is a width x height frame buffer, stored row major.
type Gpu struct {
	Width  int
	Height int
	Frame  []Color
}

// NewGpu creates a frame buffer cleared to black.
func NewGpu(width, height int) (gpu *Gpu) {
	width = max(width, 0)
	height = max(height, 0)

	gpu = &Gpu{
		Width:  width,
		Height: height,
		Frame:  make([]Color, width*height),
	}

	return
}

// Clear fills the frame buffer with a single color.
func (gpu *Gpu) Clear(color Color) {
	for n := range gpu.Frame {
		gpu.Frame[n] = color
	}
}

// DrawPixel sets a pixel. Coordinates outside the frame are ignored, and
// false is returned.
func (gpu *Gpu) DrawPixel(x, y int, color Color) bool {
	if x < 0 || x >= gpu.Width || y < 0 || y >= gpu.Height {
		return false
	}

	gpu.Frame[y*gpu.Width+x] = color
	return true
}

// Pixel returns the color of a pixel, or black outside of the frame.
func (gpu *Gpu) Pixel(x, y int) (color Color) {
	if x < 0 || x >= gpu.Width || y < 0 || y >= gpu.Height {
		return
	}

	color = gpu.Frame[y*gpu.Width+x]
	return
}

// Display renders the frame buffer as 24-bit ANSI colored cells, two
// columns per pixel and one text line per row.
func (gpu *Gpu) Display(out io.Writer) (err error) {
	w := bufio.NewWriter(out)

	for y := range gpu.Height {
		for x := range gpu.Width {
			if x > 0 {
				w.WriteByte(' ')
			}
			c := gpu.Frame[y*gpu.Width+x]
			fmt.Fprintf(w, "\033[48;2;%d;%d;%dm  \033[0m", c.R, c.G, c.B)
		}
		w.WriteByte('\n')
	}

	err = w.Flush()
	return
}
