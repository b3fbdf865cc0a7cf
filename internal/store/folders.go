package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// User is a mailbox owner.
type User struct {
	ID    int64
	Email string
}

// EnsureUser returns the user with email, creating it if needed.
func (s *Store) EnsureUser(email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO users (email) VALUES (?)`, email); err != nil {
		return nil, fmt.Errorf("ensure user %q: %w", email, err)
	}
	return s.GetUserByEmail(email)
}

// GetUserByEmail looks a user up by address.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, email FROM users WHERE email = ?`, strings.TrimSpace(email)).Scan(&u.ID, &u.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", email, err)
	}
	return &u, nil
}

// GetUser looks a user up by id.
func (s *Store) GetUser(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, email FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// ListFolders returns the owner's custom folder names in creation order.
func (s *Store) ListFolders(ownerID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM folders WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// CreateFolder adds a custom folder. A duplicate name returns ErrExists.
func (s *Store) CreateFolder(ownerID int64, name string) error {
	_, err := s.db.Exec(`INSERT INTO folders (owner_id, name) VALUES (?, ?)`, ownerID, name)
	if isUniqueViolation(err) {
		return fmt.Errorf("folder %q: %w", name, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("create folder %q: %w", name, err)
	}
	return nil
}

// RenameFolder renames a custom folder and re-files its messages.
func (s *Store) RenameFolder(ownerID int64, oldName, newName string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE folders SET name = ? WHERE owner_id = ? AND name = ?`, newName, ownerID, oldName)
		if isUniqueViolation(err) {
			return fmt.Errorf("folder %q: %w", newName, ErrExists)
		}
		if err != nil {
			return fmt.Errorf("rename folder %q: %w", oldName, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("folder %q: %w", oldName, ErrNotFound)
		}
		if _, err := tx.Exec(`UPDATE messages SET folder = ? WHERE owner_id = ? AND folder = ?`, newName, ownerID, oldName); err != nil {
			return fmt.Errorf("re-file messages: %w", err)
		}
		return nil
	})
}

// DeleteFolder removes a custom folder and every message in it.
func (s *Store) DeleteFolder(ownerID int64, name string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM folders WHERE owner_id = ? AND name = ?`, ownerID, name)
		if err != nil {
			return fmt.Errorf("delete folder %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("folder %q: %w", name, ErrNotFound)
		}
		if _, err := tx.Exec(`DELETE FROM messages WHERE owner_id = ? AND folder = ?`, ownerID, name); err != nil {
			return fmt.Errorf("delete folder messages: %w", err)
		}
		return nil
	})
}
