package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"itracksy/internal/threads"
)

// Email is one message read from an EML file or an MBOX archive
type Email struct {
	MessageID  string // Without angle brackets
	From       string // Lower-cased address
	FromName   string
	To         string
	Subject    string
	Text       string
	HTML       string
	InReplyTo  string
	References string // Space separated <id> list
	Date       time.Time
}

// Progress tracks the progress of MBOX parsing
type Progress struct {
	BytesProcessed  int64
	TotalBytes      int64
	EmailsProcessed int
	PercentComplete float64
}

// BatchFunc is called for each batch of parsed emails
type BatchFunc func(batch []*Email, progress Progress) error

// ParseEMLFile parses a single EML file
func ParseEMLFile(filename string) (*Email, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open EML file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Parse(file)
}

// ParseDirectory recursively parses every .eml file under dirPath, oldest first.
// Files that fail to parse are logged and skipped.
func ParseDirectory(dirPath string, logger zerolog.Logger) ([]*Email, error) {
	var emails []*Email

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".eml") {
			return nil
		}

		email, err := ParseEMLFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Skipping unparseable EML file")
			return nil
		}
		emails = append(emails, email)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.SliceStable(emails, func(i, j int) bool { return emails[i].Date.Before(emails[j].Date) })
	return emails, nil
}

// ParseMBOX streams an MBOX archive, handing emails to fn in batches of batchSize.
// Messages that fail to parse are logged and skipped.
func ParseMBOX(r io.Reader, totalBytes int64, batchSize int, fn BatchFunc, logger zerolog.Logger) error {
	if batchSize <= 0 {
		batchSize = 100
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024) // 10MB max line

	var (
		batch          []*Email
		current        bytes.Buffer
		count          int
		bytesProcessed int64
	)

	progress := func(done bool) Progress {
		p := Progress{BytesProcessed: bytesProcessed, TotalBytes: totalBytes, EmailsProcessed: count}
		switch {
		case done:
			p.PercentComplete = 100
		case totalBytes > 0:
			p.PercentComplete = float64(bytesProcessed) / float64(totalBytes) * 100
		}
		return p
	}

	flush := func() {
		if current.Len() == 0 {
			return
		}
		count++
		email, err := Parse(&current)
		if err != nil {
			logger.Warn().Err(err).Int("index", count).Msg("Skipping unparseable MBOX message")
		} else {
			batch = append(batch, email)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		bytesProcessed += int64(len(line) + 1)

		// Each message starts with a "From " separator line
		if strings.HasPrefix(line, "From ") {
			flush()
			if len(batch) >= batchSize {
				if err := fn(batch, progress(false)); err != nil {
					return fmt.Errorf("batch processing error at email %d: %w", count, err)
				}
				batch = nil
			}
			continue
		}

		// Undo mboxrd quoting of body lines that look like separators
		if strings.HasPrefix(line, ">") && strings.HasPrefix(strings.TrimLeft(line, ">"), "From ") {
			line = line[1:]
		}
		current.WriteString(line)
		current.WriteString("\r\n")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading MBOX: %w", err)
	}

	flush()
	if len(batch) > 0 {
		if err := fn(batch, progress(true)); err != nil {
			return fmt.Errorf("final batch processing error: %w", err)
		}
	}
	return nil
}

// Parse reads one RFC 5322 message, decoding transfer encodings and charsets
func Parse(r io.Reader) (*Email, error) {
	mr, err := mail.CreateReader(r)
	if mr == nil {
		return nil, fmt.Errorf("failed to read email message: %w", err)
	}
	defer func() { _ = mr.Close() }()

	h := mr.Header
	email := &Email{
		InReplyTo:  normaliseIDs(h.Get("In-Reply-To")),
		References: normaliseIDs(h.Get("References")),
	}

	if id, err := h.MessageID(); err == nil && id != "" {
		email.MessageID = id
	} else {
		email.MessageID = threads.StripAngles(h.Get("Message-Id"))
	}

	if subject, err := h.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = h.Get("Subject")
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = strings.ToLower(from[0].Address)
		email.FromName = from[0].Name
	} else {
		email.From, email.FromName = threads.ParseSender(h.Get("From"))
	}
	if email.From == "" {
		return nil, errors.New("message has no From address")
	}

	if to, err := h.AddressList("To"); err == nil && len(to) > 0 {
		email.To = strings.ToLower(to[0].Address)
	} else {
		email.To, _ = threads.ParseSender(h.Get("To"))
	}

	if date, err := h.Date(); err == nil && !date.IsZero() {
		email.Date = date.UTC()
	} else {
		email.Date = time.Now().UTC()
	}

	var textParts, htmlParts []string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep what was read before a malformed part
			break
		}

		var header message.Header
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			header = h.Header
		case *mail.AttachmentHeader:
			// Parts without a Content-Type arrive here too
			if disp, _, _ := h.ContentDisposition(); disp == "attachment" {
				continue
			}
			header = h.Header
		default:
			continue
		}
		mediaType, _, _ := header.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case mediaType == "" || mediaType == "text/plain":
			textParts = append(textParts, string(body))
		case mediaType == "text/html":
			htmlParts = append(htmlParts, string(body))
		}
	}

	email.Text = strings.TrimSpace(strings.Join(textParts, "\n\n"))
	email.HTML = strings.Join(htmlParts, "\n")
	if email.Text == "" && email.HTML != "" {
		email.Text = cleanHTML(email.HTML)
	}

	return email, nil
}

// normaliseIDs rewrites a message id list header as space separated <id> values
func normaliseIDs(value string) string {
	ids := threads.ParseMessageIDs(value)
	for i, id := range ids {
		ids[i] = "<" + id + ">"
	}
	return strings.Join(ids, " ")
}

// cleanHTML reduces an HTML body to readable text
func cleanHTML(html string) string {
	html = removeTagsWithContent(html, "script")
	html = removeTagsWithContent(html, "style")

	html = strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</p>", "\n\n", "</div>", "\n",
	).Replace(html)

	var result strings.Builder
	inTag := false
	for _, char := range html {
		switch {
		case char == '<':
			inTag = true
		case char == '>':
			inTag = false
		case !inTag:
			result.WriteRune(char)
		}
	}

	text := strings.NewReplacer(
		"&nbsp;", " ", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&amp;", "&",
	).Replace(result.String())
	text = strings.TrimSpace(text)

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}

// removeTagsWithContent removes every <tag>...</tag> section
func removeTagsWithContent(html, tag string) string {
	openTag := "<" + tag
	closeTag := "</" + tag + ">"

	for {
		lower := strings.ToLower(html)
		start := strings.Index(lower, openTag)
		if start == -1 {
			return html
		}
		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			return html
		}
		html = html[:start] + html[start+end+len(closeTag):]
	}
}
