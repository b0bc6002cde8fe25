package comp

import (
	"fmt"
	"image"
)

// An Output describes one rendering target. Clients can look at it
// but never change it.
type Output struct {
	Name string

	// Pos is the output's logical origin in the global coordinate
	// space.
	Pos image.Point

	// Size is the output's logical size in protocol pixels.
	Size image.Point

	// Scale is the display scale factor host coordinates are divided
	// by.
	Scale float64
}

func (out *Output) String() string {
	return fmt.Sprintf("%v (%vx%v @%v,%v scale %v)", out.Name, out.Size.X, out.Size.Y, out.Pos.X, out.Pos.Y, out.Scale)
}
