package store

import (
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// GameImage is a stored image blob for a game. At most one image per game is
// primary; the storefront falls back to the lowest sort order otherwise.
type GameImage struct {
	ID          int    `json:"id"`
	GameID      int    `json:"gameId"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
	IsPrimary   bool   `json:"isPrimary"`
	SortOrder   int    `json:"sortOrder"`
}

// AddImage stores an image blob. setPrimary demotes any previous primary;
// sortOrder positions the image within the game's gallery.
func (s *Store) AddImage(gameID int, contentType string, data []byte, setPrimary bool, sortOrder int) (int, error) {
	var id int
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketGames).Get(itob(gameID)) == nil {
			return ErrNotFound
		}
		b := tx.Bucket(bucketImages)
		if setPrimary {
			if err := clearPrimary(b, gameID); err != nil {
				return err
			}
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int(seq) //nolint:gosec
		img := GameImage{
			ID:          id,
			GameID:      gameID,
			ContentType: contentType,
			Data:        data,
			IsPrimary:   setPrimary,
			SortOrder:   sortOrder,
		}
		return putJSON(b, itob(id), &img)
	})
	return id, err
}

// GetImage fetches one image blob by id.
func (s *Store) GetImage(id int) (GameImage, error) {
	var img GameImage
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketImages), itob(id), &img)
	})
	return img, err
}

// ListImages returns image metadata for a game (data included), primary
// first, then by sort order.
func (s *Store) ListImages(gameID int) ([]GameImage, error) {
	var out []GameImage
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(_, v []byte) error {
			var img GameImage
			if err := json.Unmarshal(v, &img); err != nil {
				return err
			}
			if img.GameID == gameID {
				out = append(out, img)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SetPrimaryImage marks one image as primary within its game.
func (s *Store) SetPrimaryImage(imageID int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketImages)
		var img GameImage
		if err := getJSON(b, itob(imageID), &img); err != nil {
			return err
		}
		if err := clearPrimary(b, img.GameID); err != nil {
			return err
		}
		img.IsPrimary = true
		return putJSON(b, itob(imageID), &img)
	})
}

// PrimaryImageID returns the id of the game's display image, 0 when none.
func (s *Store) PrimaryImageID(gameID int) int {
	imgs, err := s.ListImages(gameID)
	if err != nil || len(imgs) == 0 {
		return 0
	}
	return imgs[0].ID
}

func clearPrimary(b *bolt.Bucket, gameID int) error {
	type patch struct {
		key []byte
		img GameImage
	}
	var patches []patch
	err := b.ForEach(func(k, v []byte) error {
		var img GameImage
		if err := json.Unmarshal(v, &img); err != nil {
			return err
		}
		if img.GameID == gameID && img.IsPrimary {
			img.IsPrimary = false
			patches = append(patches, patch{key: append([]byte(nil), k...), img: img})
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range patches {
		if err := putJSON(b, p.key, &p.img); err != nil {
			return err
		}
	}
	return nil
}

func deleteImagesForGame(tx *bolt.Tx, gameID int) error {
	b := tx.Bucket(bucketImages)
	var doomed [][]byte
	err := b.ForEach(func(k, v []byte) error {
		var img GameImage
		if err := json.Unmarshal(v, &img); err != nil {
			return err
		}
		if img.GameID == gameID {
			doomed = append(doomed, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range doomed {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
