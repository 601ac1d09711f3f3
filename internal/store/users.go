package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

// Role names used by the storefront.
const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

// User is an account record. Ownership edges live on the user, mirroring the
// purchase flow: buying a game appends its id to OwnedGameIDs.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash []byte    `json:"passwordHash"`
	Roles        []string  `json:"roles"`
	OwnedGameIDs []int     `json:"ownedGameIds"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasRole reports whether the user holds the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Owns reports whether the user owns the given game.
func (u User) Owns(gameID int) bool {
	for _, id := range u.OwnedGameIDs {
		if id == gameID {
			return true
		}
	}
	return false
}

// CreateUser hashes the password and stores a new account with the player
// role. The email is unique; ErrEmailTaken otherwise.
func (s *Store) CreateUser(email, displayName, password string, roles ...string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	if len(roles) == 0 {
		roles = []string{RolePlayer}
	}
	u := User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		emails := tx.Bucket(bucketUserEmails)
		if emails.Get([]byte(email)) != nil {
			return ErrEmailTaken
		}
		if err := emails.Put([]byte(email), []byte(u.ID)); err != nil {
			return err
		}
		return putJSON(tx.Bucket(bucketUsers), []byte(u.ID), &u)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUser fetches an account by id.
func (s *Store) GetUser(id string) (User, error) {
	var u User
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketUsers), []byte(id), &u)
	})
	return u, err
}

// GetUserByEmail fetches an account through the email index.
func (s *Store) GetUserByEmail(email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketUserEmails).Get([]byte(email))
		if id == nil {
			return ErrNotFound
		}
		return getJSON(tx.Bucket(bucketUsers), id, &u)
	})
	return u, err
}

// CheckPassword compares the stored bcrypt hash against a candidate.
func (s *Store) CheckPassword(email, password string) (User, bool) {
	u, err := s.GetUserByEmail(email)
	if err != nil {
		// Burn a comparison anyway so unknown emails cost the same.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva"), []byte(password))
		return User{}, false
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return User{}, false
	}
	return u, true
}

// GrantRole adds a role to an account if missing.
func (s *Store) GrantRole(userID, role string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		var u User
		if err := getJSON(b, []byte(userID), &u); err != nil {
			return err
		}
		if u.HasRole(role) {
			return nil
		}
		u.Roles = append(u.Roles, role)
		return putJSON(b, []byte(userID), &u)
	})
}

// UsersInRole returns the ids of every account holding the role. The
// presence query endpoint uses it to scope the eligible id set.
func (s *Store) UsersInRole(role string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var u User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}
			if u.HasRole(role) {
				ids[u.ID] = struct{}{}
			}
			return nil
		})
	})
	return ids, err
}

// Purchase appends the ownership edge. ErrAlreadyOwned when the user already
// owns the game; ErrNotFound when either side is missing.
func (s *Store) Purchase(userID string, gameID int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketGames).Get(itob(gameID)) == nil {
			return ErrNotFound
		}
		users := tx.Bucket(bucketUsers)
		var u User
		if err := getJSON(users, []byte(userID), &u); err != nil {
			return err
		}
		if u.Owns(gameID) {
			return ErrAlreadyOwned
		}
		u.OwnedGameIDs = append(u.OwnedGameIDs, gameID)
		return putJSON(users, []byte(userID), &u)
	})
}

// removeOwnershipEdges strips a deleted game from every account.
func removeOwnershipEdges(tx *bolt.Tx, gameID int) error {
	users := tx.Bucket(bucketUsers)
	type patch struct {
		key []byte
		u   User
	}
	var patches []patch
	err := users.ForEach(func(k, v []byte) error {
		var u User
		if err := json.Unmarshal(v, &u); err != nil {
			return err
		}
		if !u.Owns(gameID) {
			return nil
		}
		kept := u.OwnedGameIDs[:0]
		for _, id := range u.OwnedGameIDs {
			if id != gameID {
				kept = append(kept, id)
			}
		}
		u.OwnedGameIDs = kept
		patches = append(patches, patch{key: append([]byte(nil), k...), u: u})
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range patches {
		if err := putJSON(users, p.key, &p.u); err != nil {
			return err
		}
	}
	return nil
}
