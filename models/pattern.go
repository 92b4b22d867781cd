// models/pattern.go
package models

import (
	"encoding/json"
	"time"
)

const (
	PatternTypeLine      = "line"       // any full row, column or diagonal
	PatternTypeDiagonal  = "diagonal"   // either diagonal
	PatternTypeCorners   = "corners"    // the four corner cells
	PatternTypeFullHouse = "full_house" // every cell
	PatternTypeCross     = "cross"      // center row + center column (odd grids)
)

// CellPos addresses one cell inside a shape.
type CellPos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// WinningPattern is one seeded shape catalog entry: all the ways to win
// for a (pattern type, dimension) pair. Immutable at runtime.
type WinningPattern struct {
	ID          string `json:"id" gorm:"primaryKey"`
	PatternType string `json:"pattern_type" gorm:"uniqueIndex:idx_pattern_type_dim;not null"`
	Dimension   int    `json:"dimension" gorm:"uniqueIndex:idx_pattern_type_dim;not null"`
	Name        string `json:"name"`

	// Set of cell-position-sets, JSON-encoded. Each inner set is one way
	// to win on its own.
	ShapesJSON string `json:"-" gorm:"column:shapes;type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (p *WinningPattern) Shapes() ([][]CellPos, error) {
	if p.ShapesJSON == "" {
		return nil, nil
	}
	var shapes [][]CellPos
	if err := json.Unmarshal([]byte(p.ShapesJSON), &shapes); err != nil {
		return nil, err
	}
	return shapes, nil
}

func (p *WinningPattern) SetShapes(shapes [][]CellPos) error {
	b, err := json.Marshal(shapes)
	if err != nil {
		return err
	}
	p.ShapesJSON = string(b)
	return nil
}
