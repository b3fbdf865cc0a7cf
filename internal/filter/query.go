package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidQuery is returned for an operator with a value it cannot use.
var ErrInvalidQuery = errors.New("invalid query")

// Query is a parsed search line.
type Query struct {
	Criteria Criteria
	Terms    []string // free text and subject words, for highlighting
}

// operatorFn applies one operator:value pair.
type operatorFn func(q *Query, value string, now time.Time) error

// operators maps operator names to handlers. BeforeDate holds the earliest
// accepted time and AfterDate the latest, so after: and newer_than: set
// BeforeDate.
var operators = map[string]operatorFn{
	"from": func(q *Query, v string, _ time.Time) error {
		q.Criteria.Sender = append(q.Criteria.Sender, strings.ToLower(v))
		return nil
	},
	"to": func(q *Query, v string, _ time.Time) error {
		q.Criteria.Receiver = append(q.Criteria.Receiver, strings.ToLower(v))
		return nil
	},
	"subject": func(q *Query, v string, _ time.Time) error {
		q.Criteria.Subject = joinTerm(q.Criteria.Subject, v)
		q.Terms = append(q.Terms, strings.Fields(v)...)
		return nil
	},
	"has": func(q *Query, v string, _ time.Time) error {
		switch strings.ToLower(v) {
		case "attachment", "attachments":
			t := true
			q.Criteria.HasAttachment = &t
			return nil
		}
		return fmt.Errorf("%w: has:%s", ErrInvalidQuery, v)
	},
	"is": func(q *Query, v string, _ time.Time) error {
		var read bool
		switch strings.ToLower(v) {
		case "read":
			read = true
		case "unread":
		default:
			return fmt.Errorf("%w: is:%s", ErrInvalidQuery, v)
		}
		q.Criteria.IsRead = &read
		return nil
	},
	"on": func(q *Query, v string, _ time.Time) error {
		t, err := parseDate(v)
		if err != nil {
			return err
		}
		q.Criteria.ExactDate = &t
		return nil
	},
	"after": func(q *Query, v string, _ time.Time) error {
		t, err := parseDate(v)
		if err != nil {
			return err
		}
		q.Criteria.BeforeDate = &t
		return nil
	},
	"before": func(q *Query, v string, _ time.Time) error {
		t, err := parseDate(v)
		if err != nil {
			return err
		}
		q.Criteria.AfterDate = &t
		return nil
	},
	"newer_than": func(q *Query, v string, now time.Time) error {
		t, err := parseRelativeDate(v, now)
		if err != nil {
			return err
		}
		q.Criteria.BeforeDate = &t
		return nil
	},
	"older_than": func(q *Query, v string, now time.Time) error {
		t, err := parseRelativeDate(v, now)
		if err != nil {
			return err
		}
		q.Criteria.AfterDate = &t
		return nil
	},
}

// ParseQuery parses a search line such as
//
//	from:carol subject:"q3 report" has:attachment newer_than:2w budget
//
// Supported operators:
//   - from:, to: - address filters, repeatable
//   - subject: - subject text
//   - has:attachment
//   - is:read, is:unread
//   - on:, after:, before: - dates (YYYY-MM-DD)
//   - newer_than:, older_than: - relative dates (7d, 2w, 1m, 1y)
//   - Bare words and "quoted phrases" - body text
//
// Unknown operators are kept as body text.
func ParseQuery(userID int64, line string, now time.Time) (Query, error) {
	q := Query{Criteria: Criteria{UserID: userID}}
	for _, token := range tokenize(line) {
		if isQuotedPhrase(token) {
			q.addText(unquote(token))
			continue
		}
		if idx := strings.Index(token, ":"); idx > 0 {
			op := strings.ToLower(token[:idx])
			if handler, ok := operators[op]; ok {
				value := unquote(token[idx+1:])
				if value == "" {
					return Query{}, fmt.Errorf("%w: %s: needs a value", ErrInvalidQuery, op)
				}
				if err := handler(&q, value, now); err != nil {
					return Query{}, err
				}
				continue
			}
		}
		q.addText(token)
	}
	return q, nil
}

// HasOperators reports whether line uses at least one known operator.
func HasOperators(line string) bool {
	for _, token := range tokenize(line) {
		if isQuotedPhrase(token) {
			continue
		}
		if idx := strings.Index(token, ":"); idx > 0 {
			if _, ok := operators[strings.ToLower(token[:idx])]; ok {
				return true
			}
		}
	}
	return false
}

func (q *Query) addText(s string) {
	q.Criteria.Body = joinTerm(q.Criteria.Body, s)
	q.Terms = append(q.Terms, strings.Fields(s)...)
}

func joinTerm(existing, term string) string {
	if existing == "" {
		return term
	}
	return existing + " " + term
}

// unquote removes surrounding double quotes from a string if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// isQuotedPhrase returns true if the token is a double-quoted phrase.
func isQuotedPhrase(token string) bool {
	return len(token) > 2 && token[0] == '"' && token[len(token)-1] == '"'
}

// tokenize splits a query string, preserving quoted phrases and
// operator:value pairs such as subject:"foo bar".
func tokenize(line string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)
	afterColon := false // previous rune was ':'
	opQuoted := false   // the open quote directly followed a colon

	for _, char := range line {
		switch {
		case (char == '"' || char == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = char
			opQuoted = afterColon
			if !afterColon && current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			if afterColon {
				current.WriteRune('"')
			}
			afterColon = false
		case char == quoteChar && inQuotes:
			inQuotes = false
			if opQuoted {
				current.WriteRune('"')
				tokens = append(tokens, current.String())
				current.Reset()
			} else if current.Len() > 0 {
				tokens = append(tokens, "\""+current.String()+"\"")
				current.Reset()
			}
			quoteChar = 0
			opQuoted = false
		case (char == ' ' || char == '\t') && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			afterColon = false
		default:
			current.WriteRune(char)
			afterColon = char == ':'
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

var relativeDateRe = regexp.MustCompile(`^(\d+)([dwmy])$`)

// parseRelativeDate moves now back by values like 7d, 2w, 1m or 1y.
func parseRelativeDate(value string, now time.Time) (time.Time, error) {
	match := relativeDateRe.FindStringSubmatch(strings.TrimSpace(strings.ToLower(value)))
	if match == nil {
		return time.Time{}, fmt.Errorf("%w: relative date %q", ErrInvalidQuery, value)
	}
	amount, _ := strconv.Atoi(match[1])
	switch match[2] {
	case "d":
		return now.AddDate(0, 0, -amount), nil
	case "w":
		return now.AddDate(0, 0, -amount*7), nil
	case "m":
		return now.AddDate(0, -amount, 0), nil
	default:
		return now.AddDate(-amount, 0, 0), nil
	}
}
