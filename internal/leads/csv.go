package leads

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"itracksy/internal/database"
	"itracksy/internal/models"
)

// Columns is the header row of lead CSV files, in export order
var Columns = []string{"name", "email", "phone", "message", "group", "submitted_at"}

// ErrMissingEmailColumn is returned when the header row has no email column
var ErrMissingEmailColumn = errors.New("csv has no email column")

// Accepted submitted_at layouts, tried in order
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseResult is the outcome of parsing a lead CSV
type ParseResult struct {
	Leads   []models.Lead
	Rows    int      // data rows read
	Skipped []string // per-row reasons for rows that were dropped
}

// ValidEmail reports whether s parses as a single bare address
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Name == "" && strings.EqualFold(addr.Address, strings.TrimSpace(s))
}

// ParseCSV reads leads with a header row. Columns are matched case-insensitively
// and may appear in any order; only email is required. Rows sharing an email
// collapse to the one with the latest submitted_at, ties going to the later row.
func ParseCSV(r io.Reader) (*ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &ParseResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	if _, ok := index["email"]; !ok {
		return nil, ErrMissingEmailColumn
	}

	field := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	res := &ParseResult{}
	byEmail := make(map[string]int)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		res.Rows++
		line, _ := cr.FieldPos(0)

		email := database.NormalizeEmail(field(rec, "email"))
		if !ValidEmail(email) {
			res.Skipped = append(res.Skipped, fmt.Sprintf("line %d: invalid email %q", line, email))
			continue
		}

		lead := models.Lead{
			Name:    field(rec, "name"),
			Email:   email,
			Phone:   field(rec, "phone"),
			Message: field(rec, "message"),
		}
		if g := field(rec, "group"); g != "" {
			lead.GroupTag = &g
		}
		if raw := field(rec, "submitted_at"); raw != "" {
			t, err := parseTime(raw)
			if err != nil {
				res.Skipped = append(res.Skipped, fmt.Sprintf("line %d: %v", line, err))
				continue
			}
			lead.SubmittedAt = &t
		}

		if i, seen := byEmail[email]; seen {
			if !before(lead.SubmittedAt, res.Leads[i].SubmittedAt) {
				res.Leads[i] = lead
			}
			continue
		}
		byEmail[email] = len(res.Leads)
		res.Leads = append(res.Leads, lead)
	}

	return res, nil
}

// WriteCSV exports leads in the format ParseCSV reads
func WriteCSV(w io.Writer, leads []models.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, l := range leads {
		var group, submitted string
		if l.GroupTag != nil {
			group = *l.GroupTag
		}
		if l.SubmittedAt != nil {
			submitted = l.SubmittedAt.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{l.Name, l.Email, l.Phone, l.Message, group, submitted}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised submitted_at %q", raw)
}

// before reports whether a is strictly earlier than b; a missing time is earliest
func before(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}
