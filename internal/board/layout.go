package board

// Cell maps a tile number to its grid position.
// Row 0 is the bottom row and column 0 the left edge; tile 1 sits at (0,0)
// and rows alternate direction, so tile 11 is directly above tile 10.
func Cell(tile int) (row, col int, ok bool) {
	if !InRange(tile) {
		return 0, 0, false
	}
	row = (tile - 1) / Cols
	col = (tile - 1) % Cols
	if row%2 == 1 {
		col = Cols - 1 - col
	}
	return row, col, true
}

// Square is one tile with its grid position, as served to renderers.
type Square struct {
	Tile int `json:"tile"`
	Row  int `json:"row"`
	Col  int `json:"col"`
}

// Squares lists every tile in ascending order.
func Squares() []Square {
	out := make([]Square, 0, LastTile)
	for tile := FirstTile; tile <= LastTile; tile++ {
		row, col, _ := Cell(tile)
		out = append(out, Square{Tile: tile, Row: row, Col: col})
	}
	return out
}
