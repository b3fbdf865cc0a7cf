package mail_test

import (
	"errors"
	"testing"

	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/testutil"
)

func TestValidateFolderName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"custom", "Work", nil},
		{"custom with spaces", "  Receipts ", nil},
		{"blank", "   ", mail.ErrEmptyFolderName},
		{"inbox", "inbox", mail.ErrReservedFolder},
		{"trash mixed case", "Trash", mail.ErrReservedFolder},
		{"search pseudo-folder", "search", mail.ErrReservedFolder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mail.ValidateFolderName(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateFolderName(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFolderName(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestContactValidate(t *testing.T) {
	valid := mail.Contact{Name: "Ada", Emails: []string{"ada@example.com"}}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	for _, c := range []mail.Contact{
		{Name: "", Emails: []string{"a@b.com"}},
		{Name: "Ada"},
		{Name: "Ada", Emails: []string{"  "}},
	} {
		if err := c.Validate(); !errors.Is(err, mail.ErrInvalidContact) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidContact", c, err)
		}
	}
}

func TestParseList(t *testing.T) {
	testutil.AssertStrings(t, mail.ParseList(" a@b.com, ,c@d.org ,"), "a@b.com", "c@d.org")
	if got := mail.ParseList(" , "); got != nil {
		t.Errorf("ParseList of blanks = %v, want nil", got)
	}
}

func TestValidatePriority(t *testing.T) {
	for p := mail.MinPriority; p <= mail.MaxPriority; p++ {
		if err := mail.ValidatePriority(p); err != nil {
			t.Errorf("ValidatePriority(%d) = %v", p, err)
		}
	}
	for _, p := range []int{0, 6, -1} {
		if err := mail.ValidatePriority(p); !errors.Is(err, mail.ErrInvalidPriority) {
			t.Errorf("ValidatePriority(%d) = %v, want ErrInvalidPriority", p, err)
		}
	}
}
