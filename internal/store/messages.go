package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Message is one stored copy of a mail item.
type Message struct {
	ID          int64
	OwnerID     int64
	Folder      string
	Sender      string
	Receivers   []string
	Subject     string
	Body        string
	Priority    int
	IsRead      bool
	CreatedAt   time.Time
	Attachments []Attachment
}

// Attachment is a stored file. Data is only populated by GetAttachment.
type Attachment struct {
	ID          int64
	MessageID   int64
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// MessageUpdate holds the editable fields of a draft.
type MessageUpdate struct {
	Receivers []string
	Subject   string
	Body      string
	Priority  int
}

// sortColumns maps sort criteria to their ORDER BY expressions.
var sortColumns = map[string]string{
	"date":     "created_at",
	"sender":   "sender COLLATE NOCASE",
	"subject":  "subject COLLATE NOCASE",
	"priority": "priority",
}

const messageColumns = `id, owner_id, folder, sender, receivers, subject, body, priority, is_read, created_at`

func joinReceivers(list []string) string {
	return strings.Join(list, ",")
}

func splitReceivers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func scanMessage(scan func(dest ...interface{}) error) (Message, error) {
	var m Message
	var receivers string
	err := scan(&m.ID, &m.OwnerID, &m.Folder, &m.Sender, &receivers, &m.Subject, &m.Body, &m.Priority, &m.IsRead, &m.CreatedAt)
	m.Receivers = splitReceivers(receivers)
	return m, err
}

// InsertMessage stores m and its attachments (with Data) in one transaction
// and returns the new id. A zero CreatedAt is set to now.
func (s *Store) InsertMessage(m *Message) (int64, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		id, err = insertMessageTx(tx, m)
		if err != nil {
			return err
		}
		for i := range m.Attachments {
			a := &m.Attachments[i]
			if a.Size == 0 {
				a.Size = int64(len(a.Data))
			}
			res, err := tx.Exec(`
				INSERT INTO attachments (message_id, filename, content_type, size, data)
				VALUES (?, ?, ?, ?, ?)`,
				id, a.Filename, a.ContentType, a.Size, a.Data)
			if err != nil {
				return fmt.Errorf("insert attachment %q: %w", a.Filename, err)
			}
			a.ID, _ = res.LastInsertId()
			a.MessageID = id
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	m.ID = id
	return id, nil
}

func insertMessageTx(tx *sql.Tx, m *Message) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO messages (owner_id, folder, sender, receivers, subject, body, priority, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.OwnerID, m.Folder, m.Sender, joinReceivers(m.Receivers), m.Subject, m.Body, m.Priority, m.IsRead, m.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetMessage returns one message with its attachment references.
func (s *Store) GetMessage(id int64) (*Message, error) {
	row := s.db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	list := []Message{m}
	if err := s.attachAttachments(list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ListFolder returns the owner's messages in folder, newest first.
func (s *Store) ListFolder(ownerID int64, folder string) ([]Message, error) {
	return s.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE owner_id = ? AND folder = ? ORDER BY created_at DESC, id DESC`, ownerID, folder)
}

// ListSorted returns the owner's messages in folder ordered by criterion.
func (s *Store) ListSorted(ownerID int64, folder, criterion string, ascending bool) ([]Message, error) {
	col, ok := sortColumns[strings.ToLower(criterion)]
	if !ok {
		return nil, fmt.Errorf("unknown sort criterion %q", criterion)
	}
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM messages WHERE owner_id = ? AND folder = ?
		ORDER BY %s %s, id %s`, messageColumns, col, dir, dir)
	return s.queryMessages(query, ownerID, folder)
}

// ListOwned returns every message the owner holds in any folder, newest
// first. When ownerID is 0 all messages are returned.
func (s *Store) ListOwned(ownerID int64) ([]Message, error) {
	if ownerID == 0 {
		return s.queryMessages(`SELECT ` + messageColumns + ` FROM messages ORDER BY created_at DESC, id DESC`)
	}
	return s.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

func (s *Store) queryMessages(query string, args ...interface{}) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachAttachments(msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// attachAttachments fills the attachment references of msgs.
func (s *Store) attachAttachments(msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int64, len(msgs))
	index := make(map[int64]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		index[m.ID] = i
	}
	err := queryInChunks(s.db, ids,
		`SELECT id, message_id, filename, content_type, size FROM attachments
		 WHERE message_id IN (%s) ORDER BY id`,
		func(rows *sql.Rows) error {
			var a Attachment
			if err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.ContentType, &a.Size); err != nil {
				return err
			}
			i := index[a.MessageID]
			msgs[i].Attachments = append(msgs[i].Attachments, a)
			return nil
		})
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	return nil
}

// SetRead sets the read flag.
func (s *Store) SetRead(id int64, read bool) error {
	res, err := s.db.Exec(`UPDATE messages SET is_read = ? WHERE id = ?`, read, id)
	if err != nil {
		return fmt.Errorf("set read %d: %w", id, err)
	}
	return requireAffected(res, "message", id)
}

// MoveMessage changes the folder of an existing copy.
func (s *Store) MoveMessage(id int64, folder string) error {
	res, err := s.db.Exec(`UPDATE messages SET folder = ? WHERE id = ?`, folder, id)
	if err != nil {
		return fmt.Errorf("move message %d: %w", id, err)
	}
	return requireAffected(res, "message", id)
}

// CopyMessage duplicates a message and its attachments into folder and
// returns the id of the copy. The source is left in place.
func (s *Store) CopyMessage(id int64, folder string) (int64, error) {
	var newID int64
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO messages (owner_id, folder, sender, receivers, subject, body, priority, is_read, created_at)
			SELECT owner_id, ?, sender, receivers, subject, body, priority, is_read, created_at
			FROM messages WHERE id = ?`, folder, id)
		if err != nil {
			return err
		}
		if err := requireAffected(res, "message", id); err != nil {
			return err
		}
		newID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO attachments (message_id, filename, content_type, size, data)
			SELECT ?, filename, content_type, size, data FROM attachments WHERE message_id = ? ORDER BY id`,
			newID, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("copy message %d: %w", id, err)
	}
	return newID, nil
}

// UpdateMessage replaces the editable fields of a message.
func (s *Store) UpdateMessage(id int64, u MessageUpdate) error {
	res, err := s.db.Exec(`
		UPDATE messages SET receivers = ?, subject = ?, body = ?, priority = ?, created_at = ?
		WHERE id = ?`,
		joinReceivers(u.Receivers), u.Subject, u.Body, u.Priority, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update message %d: %w", id, err)
	}
	return requireAffected(res, "message", id)
}

// DeleteMessage removes a message and its attachments permanently.
func (s *Store) DeleteMessage(id int64) error {
	res, err := s.db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", id, err)
	}
	return requireAffected(res, "message", id)
}

// GetAttachment returns an attachment with its content.
func (s *Store) GetAttachment(id int64) (*Attachment, error) {
	var a Attachment
	err := s.db.QueryRow(`
		SELECT id, message_id, filename, content_type, size, data FROM attachments WHERE id = ?`, id).
		Scan(&a.ID, &a.MessageID, &a.Filename, &a.ContentType, &a.Size, &a.Data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment %d: %w", id, err)
	}
	return &a, nil
}
