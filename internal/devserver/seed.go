package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/store"
)

// SeedResult counts what Seed inserted.
type SeedResult struct {
	Messages int
	Contacts int
}

type seedMessage struct {
	from     string
	subject  string
	body     string
	priority int
	read     bool
	age      time.Duration
	attach   string
}

var seedInbox = []seedMessage{
	{"carol@example.com", "Quarterly report", "The Q3 numbers are attached.\n\nCarol", 1, false, 2 * time.Hour, "q3.csv"},
	{"dave@example.com", "Lunch on Friday?", "Thai place around the corner?", 3, false, 5 * time.Hour, ""},
	{"erin@example.com", "Re: design review", "Looks good to me, ship it.", 2, true, 26 * time.Hour, ""},
	{"newsletter@example.org", "Weekly digest", "Top stories this week.", 5, true, 3 * 24 * time.Hour, ""},
	{"carol@example.com", "Offsite agenda", "Draft agenda for the offsite.", 2, false, 40 * 24 * time.Hour, "agenda.txt"},
}

var seedContacts = []mail.Contact{
	{Name: "Carol Danvers", Emails: []string{"carol@example.com"}},
	{Name: "Dave Lister", Emails: []string{"dave@example.com", "dave.l@example.net"}},
	{Name: "Erin Brockovich", Emails: []string{"erin@example.com"}},
}

// Seed provisions email and fills its mailbox with demo messages, a
// custom folder and a few contacts. Running it twice duplicates the
// messages.
func Seed(st *store.Store, email string, now time.Time) (SeedResult, error) {
	var res SeedResult
	u, err := st.EnsureUser(email)
	if err != nil {
		return res, err
	}
	if err := st.CreateFolder(u.ID, "Projects"); err != nil && !errors.Is(err, store.ErrExists) {
		return res, fmt.Errorf("seed folder: %w", err)
	}

	for _, sm := range seedInbox {
		m := &store.Message{
			OwnerID:   u.ID,
			Folder:    mail.FolderInbox,
			Sender:    sm.from,
			Receivers: []string{u.Email},
			Subject:   sm.subject,
			Body:      sm.body,
			Priority:  sm.priority,
			IsRead:    sm.read,
			CreatedAt: now.Add(-sm.age),
		}
		if sm.attach != "" {
			m.Attachments = []store.Attachment{{
				Filename:    sm.attach,
				ContentType: "text/plain",
				Data:        []byte("demo attachment " + sm.attach + "\n"),
			}}
		}
		if _, err := st.InsertMessage(m); err != nil {
			return res, fmt.Errorf("seed message %q: %w", sm.subject, err)
		}
		res.Messages++
	}

	sent := &store.Message{
		OwnerID:   u.ID,
		Folder:    mail.FolderSent,
		Sender:    u.Email,
		Receivers: []string{"dave@example.com"},
		Subject:   "Re: Lunch on Friday?",
		Body:      "Sounds good.",
		Priority:  mail.DefaultPriority,
		IsRead:    true,
		CreatedAt: now.Add(-4 * time.Hour),
	}
	if _, err := st.InsertMessage(sent); err != nil {
		return res, fmt.Errorf("seed sent message: %w", err)
	}
	res.Messages++

	for _, c := range seedContacts {
		if _, err := st.AddContact(&store.Contact{OwnerID: u.ID, Name: c.Name, Emails: c.Emails}); err != nil {
			return res, fmt.Errorf("seed contact %q: %w", c.Name, err)
		}
		res.Contacts++
	}
	return res, nil
}
