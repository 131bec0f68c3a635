package renderer

import (
	"fmt"
	"image"
)

// DefaultTileSize is the edge length of a square tile in pixels
const DefaultTileSize = 32

// Kernel computes one pixel of a stage's destination buffer. Kernels of one
// stage run concurrently on disjoint tiles and must only write pixel (x, y).
type Kernel func(x, y int)

// Tile represents a rectangular region of the image processed by one task
type Tile struct {
	ID     int             // Unique tile identifier
	Bounds image.Rectangle // Pixel bounds (x0,y0,x1,y1)
}

// NewTile creates a new tile with the specified bounds
func NewTile(id int, bounds image.Rectangle) *Tile {
	return &Tile{ID: id, Bounds: bounds}
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int) []*Tile {
	var tiles []*Tile
	tileID := 0

	// Calculate number of tiles in each dimension
	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1)))
			tileID++
		}
	}

	return tiles
}

// renderTile runs kernel over every pixel within bounds and returns the
// number of pixels processed. A panicking kernel is reported as an error.
func renderTile(bounds image.Rectangle, kernel Kernel) (pixels int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tile %v: %v", bounds, r)
		}
	}()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			kernel(x, y)
			pixels++
		}
	}
	return pixels, nil
}
