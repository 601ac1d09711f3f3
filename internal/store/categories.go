package store

import (
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// Category groups games on the storefront.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateCategory assigns an id and stores the category.
func (s *Store) CreateCategory(c *Category) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCategories)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		c.ID = int(seq) //nolint:gosec
		return putJSON(b, itob(c.ID), c)
	})
}

// UpdateCategory replaces a stored category.
func (s *Store) UpdateCategory(c *Category) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCategories)
		if b.Get(itob(c.ID)) == nil {
			return ErrNotFound
		}
		return putJSON(b, itob(c.ID), c)
	})
}

// GetCategory fetches one category by id.
func (s *Store) GetCategory(id int) (Category, error) {
	var c Category
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketCategories), itob(id), &c)
	})
	return c, err
}

// ListCategories returns every category ordered by name.
func (s *Store) ListCategories() ([]Category, error) {
	var out []Category
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCategories).ForEach(func(_, v []byte) error {
			var c Category
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteCategory removes the category and detaches it from every game.
func (s *Store) DeleteCategory(id int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCategories)
		if b.Get(itob(id)) == nil {
			return ErrNotFound
		}
		if err := b.Delete(itob(id)); err != nil {
			return err
		}

		games := tx.Bucket(bucketGames)
		type patch struct {
			key []byte
			g   Game
		}
		var patches []patch
		err := games.ForEach(func(k, v []byte) error {
			var g Game
			if err := json.Unmarshal(v, &g); err != nil {
				return err
			}
			kept := g.CategoryIDs[:0]
			changed := false
			for _, cid := range g.CategoryIDs {
				if cid == id {
					changed = true
					continue
				}
				kept = append(kept, cid)
			}
			if changed {
				g.CategoryIDs = kept
				patches = append(patches, patch{key: append([]byte(nil), k...), g: g})
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, p := range patches {
			if err := putJSON(games, p.key, &p.g); err != nil {
				return err
			}
		}
		return nil
	})
}
