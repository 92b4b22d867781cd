// services/card_service.go
package services

import (
	"hash/fnv"
	"math/rand"
	"time"

	"game-session-engine/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssetSource is the reference-data collaborator that supplies the content
// pool card squares are filled from.
type AssetSource interface {
	Assets(poolID string) ([]string, error)
}

// StaticAssetSource serves a fixed in-memory pool. Used in tests and as a
// fallback when no object storage is configured.
type StaticAssetSource struct {
	Pools map[string][]string
}

func (s *StaticAssetSource) Assets(poolID string) ([]string, error) {
	return s.Pools[poolID], nil
}

type CardService struct {
	DB      *gorm.DB
	Catalog *PatternCatalog
}

func NewCardService(db *gorm.DB, catalog *PatternCatalog) *CardService {
	return &CardService{DB: db, Catalog: catalog}
}

// Generate builds and persists the player's card for the session. Content
// is pseudo-random and collision-free within the card while the pool is
// large enough; a pool smaller than the grid falls back to sampling with
// replacement rather than erroring. If a card already exists for the
// (session, player) pair it is returned unchanged.
func (s *CardService) Generate(session *models.Session, playerID string, pool []string) (*models.Card, error) {
	if len(pool) == 0 {
		return nil, ErrInsufficientAssets
	}

	var existing models.Card
	err := s.DB.Where("session_id = ? AND player_id = ?", session.ID, playerID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	dim := session.Dimension
	cells := dim * dim
	rng := rand.New(rand.NewSource(cardSeed(session.ID, playerID)))

	contents := make([]string, 0, cells)
	if len(pool) >= cells {
		// Without replacement: no repeated content on one card.
		for _, idx := range rng.Perm(len(pool))[:cells] {
			contents = append(contents, pool[idx])
		}
	} else {
		// Degenerate pool: duplicates permitted.
		for i := 0; i < cells; i++ {
			contents = append(contents, pool[rng.Intn(len(pool))])
		}
	}

	freeCenter := s.Catalog.HasFreeCenter(session.PatternType, dim)
	center := dim / 2
	now := time.Now()

	squares := make([]models.Square, 0, cells)
	for row := 0; row < dim; row++ {
		for col := 0; col < dim; col++ {
			sq := models.Square{
				Row:     row,
				Col:     col,
				Content: contents[row*dim+col],
			}
			if freeCenter && row == center && col == center {
				sq.Content = models.FreeSquareContent
				sq.IsFree = true
				sq.Claimed = true
				claimedAt := now
				sq.ClaimedAt = &claimedAt
			}
			squares = append(squares, sq)
		}
	}

	card := models.Card{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		PlayerID:  playerID,
		Dimension: dim,
	}
	if err := card.SetSquares(squares); err != nil {
		return nil, err
	}

	if err := s.DB.Create(&card).Error; err != nil {
		return nil, err
	}

	return &card, nil
}

// cardSeed mixes session, player and wall clock so simultaneously
// generated cards in one session diverge. Fairness, not a uniqueness
// guarantee.
func cardSeed(sessionID, playerID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	h.Write([]byte(playerID))
	return int64(h.Sum64()) ^ time.Now().UnixNano()
}
