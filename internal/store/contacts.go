package store

import (
	"database/sql"
	"fmt"
)

// Contact is an address book entry with its emails in entry order.
type Contact struct {
	ID      int64
	OwnerID int64
	Name    string
	Emails  []string
}

// ListContacts returns the owner's contacts ordered by name.
func (s *Store) ListContacts(ownerID int64, ascending bool) ([]Contact, error) {
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	rows, err := s.db.Query(`SELECT id, owner_id, name FROM contacts WHERE owner_id = ?
		ORDER BY name COLLATE NOCASE `+dir+`, id `+dir, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	list := []Contact{}
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name); err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, c := range list {
		ids[i] = c.ID
		index[c.ID] = i
	}
	err = queryInChunks(s.db, ids,
		`SELECT contact_id, email FROM contact_emails WHERE contact_id IN (%s) ORDER BY contact_id, position`,
		func(rows *sql.Rows) error {
			var id int64
			var email string
			if err := rows.Scan(&id, &email); err != nil {
				return err
			}
			i := index[id]
			list[i].Emails = append(list[i].Emails, email)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("load contact emails: %w", err)
	}
	return list, nil
}

// GetContact returns one contact.
func (s *Store) GetContact(id int64) (*Contact, error) {
	var c Contact
	err := s.db.QueryRow(`SELECT id, owner_id, name FROM contacts WHERE id = ?`, id).Scan(&c.ID, &c.OwnerID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get contact %d: %w", id, err)
	}
	rows, err := s.db.Query(`SELECT email FROM contact_emails WHERE contact_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		c.Emails = append(c.Emails, e)
	}
	return &c, rows.Err()
}

// AddContact stores a new contact and returns its id.
func (s *Store) AddContact(c *Contact) (int64, error) {
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO contacts (owner_id, name) VALUES (?, ?)`, c.OwnerID, c.Name)
		if err != nil {
			return err
		}
		c.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return insertEmails(tx, c.ID, c.Emails)
	})
	if err != nil {
		return 0, fmt.Errorf("add contact: %w", err)
	}
	return c.ID, nil
}

// UpdateContact replaces the name and emails of an existing contact.
func (s *Store) UpdateContact(c *Contact) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE contacts SET name = ? WHERE id = ?`, c.Name, c.ID)
		if err != nil {
			return fmt.Errorf("update contact %d: %w", c.ID, err)
		}
		if err := requireAffected(res, "contact", c.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM contact_emails WHERE contact_id = ?`, c.ID); err != nil {
			return err
		}
		return insertEmails(tx, c.ID, c.Emails)
	})
}

// DeleteContact removes a contact.
func (s *Store) DeleteContact(id int64) error {
	res, err := s.db.Exec(`DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", id, err)
	}
	return requireAffected(res, "contact", id)
}

func insertEmails(tx *sql.Tx, contactID int64, emails []string) error {
	if len(emails) == 0 {
		return nil
	}
	return insertInChunks(tx, len(emails), 3,
		`INSERT INTO contact_emails (contact_id, position, email) VALUES `,
		func(start, end int) ([]string, []interface{}) {
			values := make([]string, 0, end-start)
			args := make([]interface{}, 0, (end-start)*3)
			for i := start; i < end; i++ {
				values = append(values, "(?, ?, ?)")
				args = append(args, contactID, i, emails[i])
			}
			return values, args
		})
}
