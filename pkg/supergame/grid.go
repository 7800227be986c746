package supergame

import "fmt"

// MapSize selects one of the diamond layouts.
type MapSize string

const (
	Small MapSize = "small"
	Large MapSize = "large"
)

// RowWidths returns the number of populated tiles in each row of the layout.
func (m MapSize) RowWidths() []int {
	switch m {
	case Small:
		return []int{3, 5, 7, 7, 7, 5, 3}
	case Large:
		return []int{3, 5, 7, 9, 9, 9, 7, 5, 3}
	}
	return nil
}

// Dimension is the side of the square matrix the diamond is drawn in.
func (m MapSize) Dimension() int {
	switch m {
	case Small:
		return 7
	case Large:
		return 9
	}
	return 0
}

// Valid reports whether m is a known layout.
func (m MapSize) Valid() bool {
	return m.Dimension() > 0
}

// BasePositions returns the fixed base coordinates in seat order.
func (m MapSize) BasePositions() []Coord {
	switch m {
	case Small:
		return []Coord{{1, 1}, {5, 5}, {1, 5}, {5, 1}}
	case Large:
		return []Coord{{1, 2}, {7, 6}, {1, 6}, {7, 2}}
	}
	return nil
}

// Coord addresses a position in the grid matrix.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Adjacency selects which neighbours a tile has.
type Adjacency int

const (
	// Orthogonal connects the four edge neighbours.
	Orthogonal Adjacency = iota
	// Diagonal adds the four corner neighbours, which cost more stamina to reach.
	Diagonal
)

// neighborOffsets are listed in row-major order.
var neighborOffsets = [8]Coord{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

const (
	orthogonalCost uint8 = 1
	diagonalCost   uint8 = 2
)

// Cell is one position of the matrix. It is either Empty or holds a Tile.
type Cell struct {
	tile     Tile
	occupied bool
}

// EmptyCell returns a cell without a tile.
func EmptyCell() Cell { return Cell{} }

// OccupiedCell returns a cell holding t.
func OccupiedCell(t Tile) Cell { return Cell{tile: t, occupied: true} }

// Occupied reports whether the cell holds a tile.
func (c Cell) Occupied() bool { return c.occupied }

// Tile returns the tile held by the cell and whether there is one.
func (c Cell) Tile() (Tile, bool) { return c.tile, c.occupied }

// Grid is the dense square board. Positions outside the diamond, and positions wiped when their
// owner was eliminated, are Empty cells.
type Grid struct {
	size  MapSize
	dim   int
	cells []Cell
}

// NewGrid returns a grid whose diamond positions are filled by fill and whose corners are Empty.
// fill receives the coordinate and the running index of the populated tile.
func NewGrid(size MapSize, fill func(c Coord, index int) Tile) *Grid {
	dim := size.Dimension()
	g := &Grid{size: size, dim: dim, cells: make([]Cell, dim*dim)}
	index := 0
	for row, width := range size.RowWidths() {
		offset := (dim - width) / 2
		for col := offset; col < offset+width; col++ {
			c := Coord{row, col}
			g.cells[g.index(c)] = OccupiedCell(fill(c, index))
			index++
		}
	}
	return g
}

// Size returns the layout the grid was built from.
func (g *Grid) Size() MapSize { return g.size }

// Dimension returns the side of the matrix.
func (g *Grid) Dimension() int { return g.dim }

func (g *Grid) index(c Coord) int {
	return c.Row*g.dim + c.Col
}

// InBounds reports whether c lies inside the matrix.
func (g *Grid) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < g.dim && c.Col >= 0 && c.Col < g.dim
}

// Cell returns the cell at c. Out of bounds coordinates yield an Empty cell.
func (g *Grid) Cell(c Coord) Cell {
	if !g.InBounds(c) {
		return EmptyCell()
	}
	return g.cells[g.index(c)]
}

// Tile returns a copy of the tile at c.
func (g *Grid) Tile(c Coord) (Tile, error) {
	if !g.InBounds(c) {
		return Tile{}, fmt.Errorf("%w: %s", ErrOutOfBounds, c)
	}
	t, ok := g.cells[g.index(c)].Tile()
	if !ok {
		return Tile{}, fmt.Errorf("%w: %s", ErrInvalidTile, c)
	}
	return t, nil
}

// set writes t into c. Callers must have checked that c holds a tile.
func (g *Grid) set(c Coord, t Tile) {
	g.cells[g.index(c)] = OccupiedCell(t)
}

// clear turns the cell at c into an Empty cell.
func (g *Grid) clear(c Coord) {
	g.cells[g.index(c)] = EmptyCell()
}

// writeBack stores the results of a two-tile computation. Both tiles were read by value, so
// a and b never alias even when they share a row or column.
func (g *Grid) writeBack(a Coord, ta Tile, b Coord, tb Tile) {
	g.set(a, ta)
	g.set(b, tb)
}

// Neighbors returns the populated neighbours of c in row-major order.
func (g *Grid) Neighbors(c Coord, adj Adjacency) []Coord {
	out := make([]Coord, 0, 8)
	for _, off := range neighborOffsets {
		if adj == Orthogonal && off.Row != 0 && off.Col != 0 {
			continue
		}
		n := Coord{c.Row + off.Row, c.Col + off.Col}
		if g.Cell(n).Occupied() {
			out = append(out, n)
		}
	}
	return out
}

// Each calls fn for every populated tile in row-major order.
func (g *Grid) Each(fn func(c Coord, t Tile)) {
	for i, cell := range g.cells {
		if t, ok := cell.Tile(); ok {
			fn(Coord{i / g.dim, i % g.dim}, t)
		}
	}
}

// TilesOwnedBy returns the coordinates of every tile owned by id in row-major order.
func (g *Grid) TilesOwnedBy(id PlayerID) []Coord {
	var out []Coord
	g.Each(func(c Coord, t Tile) {
		if t.Owner == id {
			out = append(out, c)
		}
	})
	return out
}

// PopulatedCount returns the number of cells that hold a tile.
func (g *Grid) PopulatedCount() int {
	n := 0
	for _, cell := range g.cells {
		if cell.Occupied() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	cells := make([]Cell, len(g.cells))
	copy(cells, g.cells)
	return &Grid{size: g.size, dim: g.dim, cells: cells}
}

// MoveCost returns the stamina needed to step from a to b, or ok=false when b is not adjacent
// to a under adj.
func MoveCost(a, b Coord, adj Adjacency) (cost uint8, ok bool) {
	dr, dc := abs(a.Row-b.Row), abs(a.Col-b.Col)
	switch {
	case dr+dc == 1:
		return orthogonalCost, true
	case dr == 1 && dc == 1 && adj == Diagonal:
		return diagonalCost, true
	}
	return 0, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
