package pptx

import "math"

// EMUPerCm is the number of English Metric Units in a centimeter.
const EMUPerCm = 360000

// Cm converts centimeters to EMU.
func Cm(v float64) int64 { return int64(math.Round(v * EMUPerCm)) }

// Size is an image size in pixels.
type Size struct {
	Width, Height int
}

// Rect is a shape frame in EMU.
type Rect struct {
	X, Y, CX, CY int64
}

// Stack lays images out in a right-aligned column. Every image gets the
// same height and keeps its aspect ratio; the column is spread evenly over
// the slide height with equal gaps above, between and below the images.
func Stack(slideW, slideH, height, margin int64, sizes []Size) []Rect {
	n := int64(len(sizes))
	if n == 0 {
		return nil
	}
	spacing := (slideH - height*n) / (n + 1)

	rects := make([]Rect, 0, n)
	top := spacing
	for _, s := range sizes {
		aspect := 1.0
		if s.Height != 0 {
			aspect = float64(s.Width) / float64(s.Height)
		}
		width := int64(float64(height) * aspect)
		rects = append(rects, Rect{
			X:  slideW - margin - width,
			Y:  top,
			CX: width,
			CY: height,
		})
		top += height + spacing
	}
	return rects
}
