// services/win_service.go
package services

import "game-session-engine/models"

// WinService evaluates a card snapshot against the pattern catalog. Pure
// reads, no side effects; safe to call repeatedly and concurrently.
type WinService struct {
	Catalog *PatternCatalog
}

func NewWinService(catalog *PatternCatalog) *WinService {
	return &WinService{Catalog: catalog}
}

// Evaluate returns true as soon as any shape for (patternType, dimension)
// is fully claimed on the card. OR semantics across shapes.
func (s *WinService) Evaluate(card *models.Card, patternType string) (bool, error) {
	squares, err := card.Squares()
	if err != nil {
		return false, err
	}

	claimed := make(map[models.CellPos]bool, len(squares))
	for _, sq := range squares {
		if sq.Claimed {
			claimed[models.CellPos{Row: sq.Row, Col: sq.Col}] = true
		}
	}

	for _, shape := range s.Catalog.Shapes(patternType, card.Dimension) {
		satisfied := true
		for _, pos := range shape {
			if !claimed[pos] {
				satisfied = false
				break
			}
		}
		if satisfied {
			return true, nil
		}
	}

	return false, nil
}
