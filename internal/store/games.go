package store

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Game is a purchasable catalog entry. PayloadPath points at the packaged
// ZIP on disk; it is empty until a build has been uploaded and packaged.
type Game struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         float64   `json:"price"`
	SizeBytes     int64     `json:"sizeBytes"`
	CategoryIDs   []int     `json:"categoryIds"`
	PayloadPath   string    `json:"payloadPath,omitempty"`
	PayloadSHA256 string    `json:"payloadSha256,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GameFilter narrows ListGames. Zero values mean "no restriction".
type GameFilter struct {
	Name        string  // case-insensitive substring on the game name
	CategoryIDs []int   // match any
	MinPrice    float64 // inclusive; -1 disables
	MaxPrice    float64 // inclusive; -1 disables
	OwnedBy     string  // only games owned by this user id
	NotOwnedBy  string  // only games NOT owned by this user id
	Page        int     // 1-based; <=0 coerced to 1
	PageSize    int     // <=0 coerced to 10
}

// NewGameFilter returns a filter with price bounds disabled.
func NewGameFilter() GameFilter {
	return GameFilter{MinPrice: -1, MaxPrice: -1}
}

// CreateGame assigns an id from the bucket sequence and stores the game.
func (s *Store) CreateGame(g *Game) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		g.ID = int(seq) //nolint:gosec
		g.CreatedAt = time.Now().UTC()
		g.UpdatedAt = g.CreatedAt
		return putJSON(b, itob(g.ID), g)
	})
}

// UpdateGame replaces a stored game, keeping its creation time.
func (s *Store) UpdateGame(g *Game) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		var prev Game
		if err := getJSON(b, itob(g.ID), &prev); err != nil {
			return err
		}
		g.CreatedAt = prev.CreatedAt
		g.UpdatedAt = time.Now().UTC()
		return putJSON(b, itob(g.ID), g)
	})
}

// DeleteGame removes the game, its images, and every ownership edge.
func (s *Store) DeleteGame(id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		if b.Get(itob(id)) == nil {
			return ErrNotFound
		}
		if err := b.Delete(itob(id)); err != nil {
			return err
		}
		if err := deleteImagesForGame(tx, id); err != nil {
			return err
		}
		return removeOwnershipEdges(tx, id)
	})
}

// GetGame fetches one game by id.
func (s *Store) GetGame(id int) (Game, error) {
	var g Game
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketGames), itob(id), &g)
	})
	return g, err
}

// SetPayload records the packaged ZIP location for a game.
func (s *Store) SetPayload(gameID int, path string, sizeBytes int64, sha256Hex string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGames)
		var g Game
		if err := getJSON(b, itob(gameID), &g); err != nil {
			return err
		}
		g.PayloadPath = path
		g.SizeBytes = sizeBytes
		g.PayloadSHA256 = sha256Hex
		g.UpdatedAt = time.Now().UTC()
		return putJSON(b, itob(gameID), g)
	})
}

// ListGames returns the filtered, name-ordered page plus the total count of
// matches before pagination. Page/pageSize are coerced like the presence
// query: never an error, always a sane default.
func (s *Store) ListGames(f GameFilter) ([]Game, int, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}

	var owned map[int]struct{}
	var notOwned map[int]struct{}
	var err error
	if f.OwnedBy != "" {
		if owned, err = s.ownedSet(f.OwnedBy); err != nil {
			return nil, 0, err
		}
	}
	if f.NotOwnedBy != "" {
		if notOwned, err = s.ownedSet(f.NotOwnedBy); err != nil {
			return nil, 0, err
		}
	}

	var matches []Game
	nameQ := strings.ToLower(strings.TrimSpace(f.Name))
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGames).ForEach(func(_, v []byte) error {
			var g Game
			if err := json.Unmarshal(v, &g); err != nil {
				return err
			}
			if nameQ != "" && !strings.Contains(strings.ToLower(g.Name), nameQ) {
				return nil
			}
			if f.MinPrice >= 0 && g.Price < f.MinPrice {
				return nil
			}
			if f.MaxPrice >= 0 && g.Price > f.MaxPrice {
				return nil
			}
			if len(f.CategoryIDs) > 0 && !hasAnyCategory(g.CategoryIDs, f.CategoryIDs) {
				return nil
			}
			if owned != nil {
				if _, ok := owned[g.ID]; !ok {
					return nil
				}
			}
			if notOwned != nil {
				if _, ok := notOwned[g.ID]; ok {
					return nil
				}
			}
			matches = append(matches, g)
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})

	total := len(matches)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []Game{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

// ownedSet builds the set of game ids owned by a user.
func (s *Store) ownedSet(userID string) (map[int]struct{}, error) {
	u, err := s.GetUser(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return map[int]struct{}{}, nil
		}
		return nil, err
	}
	set := make(map[int]struct{}, len(u.OwnedGameIDs))
	for _, id := range u.OwnedGameIDs {
		set[id] = struct{}{}
	}
	return set, nil
}

func hasAnyCategory(have, want []int) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
