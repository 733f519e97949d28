package sprite

import "fmt"

// Geometry describes how tiles are laid out on a sheet
type Geometry struct {
	Columns    int
	Rows       int
	TileWidth  int
	TileHeight int
}

// Capacity is the number of tiles one sheet holds
func (g Geometry) Capacity() int {
	return g.Columns * g.Rows
}

// SheetCount returns how many sheets n frames need
func (g Geometry) SheetCount(n int) int {
	c := g.Capacity()
	if n <= 0 || c <= 0 {
		return 0
	}
	return (n + c - 1) / c
}

// SheetSize returns the pixel dimensions of one sheet
func (g Geometry) SheetSize() (int, int) {
	return g.Columns * g.TileWidth, g.Rows * g.TileHeight
}

// Cell returns the 0-based sheet index and the top-left pixel of frame i.
// Coordinates are relative to the sheet the frame lands on.
func (g Geometry) Cell(i int) (sheet, x, y int) {
	c := g.Capacity()
	sheet = i / c
	j := i % c
	x = (j % g.Columns) * g.TileWidth
	y = (j / g.Columns) * g.TileHeight
	return sheet, x, y
}

// Validate rejects layouts that cannot hold a tile
func (g Geometry) Validate() error {
	if g.Columns <= 0 || g.Rows <= 0 {
		return fmt.Errorf("invalid grid %dx%d", g.Columns, g.Rows)
	}
	if g.TileWidth <= 0 || g.TileHeight <= 0 {
		return fmt.Errorf("invalid tile size %dx%d", g.TileWidth, g.TileHeight)
	}
	return nil
}

// SheetName returns the base name of the 0-based sheet, numbered from 1
func SheetName(sheet int) string {
	return fmt.Sprintf("sprite_%04d", sheet+1)
}

// SheetFileName is SheetName with the format extension
func SheetFileName(sheet int, ext string) string {
	return SheetName(sheet) + "." + ext
}
