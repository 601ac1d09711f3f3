package store

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

// Dev credentials seeded when no ldflags hash is provided. Matches the demo
// accounts the web dashboard documents.
const (
	SeedAdminEmail  = "admin@ludostore.dev"
	SeedPlayerEmail = "test@ludostore.dev"
	devAdminPass    = "admin123"
	devPlayerPass   = "password"
)

// Seed creates the baseline accounts, categories, and demo games on first
// run. adminHash, when non-nil, is the bcrypt hash injected at build time
// for the admin account. Re-running is a no-op for existing records.
func (s *Store) Seed(adminHash []byte) error {
	seeded := false

	if _, err := s.GetUserByEmail(SeedAdminEmail); errors.Is(err, ErrNotFound) {
		if err := s.seedUser(SeedAdminEmail, "Admin", devAdminPass, adminHash, RoleAdmin, RolePlayer); err != nil {
			return err
		}
		seeded = true
	}
	if _, err := s.GetUserByEmail(SeedPlayerEmail); errors.Is(err, ErrNotFound) {
		if err := s.seedUser(SeedPlayerEmail, "Test Player", devPlayerPass, nil, RolePlayer); err != nil {
			return err
		}
		seeded = true
	}

	cats, err := s.ListCategories()
	if err != nil {
		return err
	}
	catIDs := make(map[string]int, len(cats))
	for _, c := range cats {
		catIDs[c.Name] = c.ID
	}
	for _, c := range []Category{
		{Name: "Action", Description: "Fast reflexes required"},
		{Name: "Puzzle", Description: "Think before you click"},
		{Name: "Strategy", Description: "Plan ten turns ahead"},
	} {
		if _, ok := catIDs[c.Name]; ok {
			continue
		}
		c := c
		if err := s.CreateCategory(&c); err != nil {
			return err
		}
		catIDs[c.Name] = c.ID
		seeded = true
	}

	games, _, err := s.ListGames(NewGameFilter())
	if err != nil {
		return err
	}
	if len(games) == 0 {
		for _, g := range []Game{
			{Name: "Asteroid Rush", Description: "Dodge rocks, collect ore.", Price: 9.99, CategoryIDs: []int{catIDs["Action"]}},
			{Name: "Grid Lock", Description: "Sliding-tile puzzles with a timer.", Price: 4.99, CategoryIDs: []int{catIDs["Puzzle"]}},
			{Name: "Border Lords", Description: "Turn-based territory control.", Price: 14.99, CategoryIDs: []int{catIDs["Strategy"], catIDs["Action"]}},
		} {
			g := g
			if err := s.CreateGame(&g); err != nil {
				return err
			}
		}
		seeded = true
	}

	if seeded {
		log.Println("[STORE] 🌱 Seeded baseline accounts and catalog")
	}
	return nil
}

// seedUser creates an account, preferring a precomputed hash over the dev
// password when one was injected at build time.
func (s *Store) seedUser(email, displayName, devPassword string, hash []byte, roles ...string) error {
	if hash == nil {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(devPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		log.Printf("[STORE] ⚠️ Dev password in use for %s", email)
	}
	u := User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		if emails.Get([]byte(u.Email)) != nil {
			return ErrEmailTaken
		}
		if err := emails.Put([]byte(u.Email), []byte(u.ID)); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketUsers), []byte(u.ID), &u)
	})
}
