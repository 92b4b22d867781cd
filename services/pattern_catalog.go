// services/pattern_catalog.go
package services

import (
	"fmt"

	"game-session-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dimensions the catalog pre-builds shapes for. Sessions outside this
// range are rejected at creation.
const (
	MinDimension = 3
	MaxDimension = 7
)

// PatternCatalog is the immutable lookup of winning shapes keyed by
// (pattern type, grid dimension). Built once at construction, read-only
// afterwards, so it needs no locking.
type PatternCatalog struct {
	shapes map[string]map[int][][]models.CellPos
}

func NewPatternCatalog() *PatternCatalog {
	catalog := &PatternCatalog{shapes: make(map[string]map[int][][]models.CellPos)}

	for dim := MinDimension; dim <= MaxDimension; dim++ {
		catalog.add(models.PatternTypeLine, dim, lineShapes(dim))
		catalog.add(models.PatternTypeDiagonal, dim, diagonalShapes(dim))
		catalog.add(models.PatternTypeCorners, dim, [][]models.CellPos{cornerShape(dim)})
		catalog.add(models.PatternTypeFullHouse, dim, [][]models.CellPos{fullShape(dim)})
		if dim%2 == 1 {
			catalog.add(models.PatternTypeCross, dim, [][]models.CellPos{crossShape(dim)})
		}
	}

	return catalog
}

func (pc *PatternCatalog) add(patternType string, dim int, shapes [][]models.CellPos) {
	if pc.shapes[patternType] == nil {
		pc.shapes[patternType] = make(map[int][][]models.CellPos)
	}
	pc.shapes[patternType][dim] = shapes
}

// Shapes returns every way to win for the pair, or nil when the pair is
// not in the catalog.
func (pc *PatternCatalog) Shapes(patternType string, dim int) [][]models.CellPos {
	byDim, ok := pc.shapes[patternType]
	if !ok {
		return nil
	}
	return byDim[dim]
}

// Supports reports whether the pair has at least one shape.
func (pc *PatternCatalog) Supports(patternType string, dim int) bool {
	return len(pc.Shapes(patternType, dim)) > 0
}

// HasFreeCenter reports whether cards for this pair get a pre-claimed
// center square. Full house keeps every cell claimable; every other type
// designates the free center on odd grids.
func (pc *PatternCatalog) HasFreeCenter(patternType string, dim int) bool {
	return dim%2 == 1 && patternType != models.PatternTypeFullHouse
}

// SeedPatterns persists the catalog as WinningPattern rows. Idempotent:
// existing (type, dimension) rows are left untouched.
func (pc *PatternCatalog) SeedPatterns(db *gorm.DB) error {
	for patternType, byDim := range pc.shapes {
		for dim, shapes := range byDim {
			pattern := models.WinningPattern{
				ID:          uuid.NewString(),
				PatternType: patternType,
				Dimension:   dim,
				Name:        fmt.Sprintf("%s %dx%d", patternType, dim, dim),
			}
			if err := pattern.SetShapes(shapes); err != nil {
				return err
			}

			err := db.Where("pattern_type = ? AND dimension = ?", patternType, dim).
				FirstOrCreate(&pattern).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func lineShapes(dim int) [][]models.CellPos {
	var shapes [][]models.CellPos

	for row := 0; row < dim; row++ {
		shape := make([]models.CellPos, 0, dim)
		for col := 0; col < dim; col++ {
			shape = append(shape, models.CellPos{Row: row, Col: col})
		}
		shapes = append(shapes, shape)
	}

	for col := 0; col < dim; col++ {
		shape := make([]models.CellPos, 0, dim)
		for row := 0; row < dim; row++ {
			shape = append(shape, models.CellPos{Row: row, Col: col})
		}
		shapes = append(shapes, shape)
	}

	return append(shapes, diagonalShapes(dim)...)
}

func diagonalShapes(dim int) [][]models.CellPos {
	main := make([]models.CellPos, 0, dim)
	anti := make([]models.CellPos, 0, dim)
	for i := 0; i < dim; i++ {
		main = append(main, models.CellPos{Row: i, Col: i})
		anti = append(anti, models.CellPos{Row: i, Col: dim - 1 - i})
	}
	return [][]models.CellPos{main, anti}
}

func cornerShape(dim int) []models.CellPos {
	return []models.CellPos{
		{Row: 0, Col: 0},
		{Row: 0, Col: dim - 1},
		{Row: dim - 1, Col: 0},
		{Row: dim - 1, Col: dim - 1},
	}
}

func fullShape(dim int) []models.CellPos {
	shape := make([]models.CellPos, 0, dim*dim)
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			shape = append(shape, models.CellPos{Row: row, Col: col})
		}
	}
	return shape
}

// crossShape is the center row plus center column as one shape. Odd
// dimensions only.
func crossShape(dim int) []models.CellPos {
	center := dim / 2
	var shape []models.CellPos
	for col := 0; col < dim; col++ {
		shape = append(shape, models.CellPos{Row: center, Col: col})
	}
	for row := 0; row < dim; row++ {
		if row == center {
			continue
		}
		shape = append(shape, models.CellPos{Row: row, Col: center})
	}
	return shape
}
