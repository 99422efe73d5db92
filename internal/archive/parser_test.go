package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainEML = "From: \"Ann Lee\" <Ann@Example.com>\r\n" +
	"To: support@itracksy.com\r\n" +
	"Subject: Re: Focus mode\r\n" +
	"Date: Fri, 10 Apr 2026 12:00:00 +0200\r\n" +
	"Message-ID: <reply-1@example.com>\r\n" +
	"In-Reply-To: <out-1@itracksy.com>\r\n" +
	"References: <fb-root@itracksy.com>\r\n" +
	" <out-1@itracksy.com>\r\n" +
	"\r\n" +
	"Thanks, that fixed it.\r\n"

const multipartEML = "From: bob@example.com\r\n" +
	"To: support@itracksy.com\r\n" +
	"Subject: =?UTF-8?B?w4lsw6h2ZQ==?=\r\n" +
	"Date: Sat, 11 Apr 2026 08:30:00 +0000\r\n" +
	"Message-ID: <mp-1@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Caf=C3=A9 tracking is great\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Café tracking is great</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Disposition: attachment; filename=\"log.txt\"\r\n" +
	"\r\n" +
	"attachment body\r\n" +
	"--outer--\r\n"

const htmlOnlyEML = "From: carol@example.com\r\n" +
	"To: support@itracksy.com\r\n" +
	"Subject: html\r\n" +
	"Date: Sun, 12 Apr 2026 08:30:00 +0000\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<style>p{color:red}</style><p>Hello &amp; welcome</p><p>Line two</p>\r\n"

func TestParse_PlainMessage(t *testing.T) {
	email, err := Parse(strings.NewReader(plainEML))
	require.NoError(t, err)

	assert.Equal(t, "reply-1@example.com", email.MessageID)
	assert.Equal(t, "ann@example.com", email.From)
	assert.Equal(t, "Ann Lee", email.FromName)
	assert.Equal(t, "support@itracksy.com", email.To)
	assert.Equal(t, "Re: Focus mode", email.Subject)
	assert.Equal(t, "<out-1@itracksy.com>", email.InReplyTo)
	assert.Equal(t, "<fb-root@itracksy.com> <out-1@itracksy.com>", email.References)
	assert.Equal(t, time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC), email.Date)
	assert.Equal(t, "Thanks, that fixed it.", email.Text)
	assert.Empty(t, email.HTML)
}

func TestParse_NestedMultipart(t *testing.T) {
	email, err := Parse(strings.NewReader(multipartEML))
	require.NoError(t, err)

	assert.Equal(t, "Élève", email.Subject)
	assert.Equal(t, "Café tracking is great", email.Text)
	assert.Contains(t, email.HTML, "<p>Café tracking is great</p>")
	assert.NotContains(t, email.Text, "attachment body")
}

func TestParse_HTMLOnlyDerivesText(t *testing.T) {
	email, err := Parse(strings.NewReader(htmlOnlyEML))
	require.NoError(t, err)

	assert.Equal(t, "Hello & welcome\n\nLine two", email.Text)
	assert.Contains(t, email.HTML, "<p>Hello &amp; welcome</p>")
}

func TestParse_MissingFrom(t *testing.T) {
	_, err := Parse(strings.NewReader("Subject: orphan\r\n\r\nbody\r\n"))
	assert.Error(t, err)
}

func TestParseMBOX_Batches(t *testing.T) {
	var mbox strings.Builder
	for _, eml := range []string{plainEML, multipartEML, htmlOnlyEML} {
		mbox.WriteString("From MAILER-DAEMON Fri Apr 10 12:00:00 2026\n")
		mbox.WriteString(strings.ReplaceAll(eml, "\r\n", "\n"))
		mbox.WriteString("\n")
	}
	mbox.WriteString("From MAILER-DAEMON Fri Apr 10 12:00:00 2026\nnot a message\n")

	var batches [][]*Email
	var last Progress
	err := ParseMBOX(strings.NewReader(mbox.String()), int64(mbox.Len()), 2, func(batch []*Email, p Progress) error {
		batches = append(batches, batch)
		last = p
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, "reply-1@example.com", batches[0][0].MessageID)
	assert.Equal(t, "carol@example.com", batches[1][0].From)
	assert.Equal(t, 4, last.EmailsProcessed)
	assert.Equal(t, 100.0, last.PercentComplete)
}

func TestParseMBOX_UnquotesFromLines(t *testing.T) {
	mbox := "From x Fri Apr 10 12:00:00 2026\n" +
		"From: a@example.com\nSubject: q\n\n>From the docs, this works\n"

	var got []*Email
	err := ParseMBOX(strings.NewReader(mbox), 0, 10, func(batch []*Email, _ Progress) error {
		got = append(got, batch...)
		return nil
	}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "From the docs, this works", got[0].Text)
}

func TestParseDirectory_SortsOldestFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.eml"), []byte(htmlOnlyEML), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "a.EML"), []byte(plainEML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.eml"), []byte("Subject: x\r\n\r\n"), 0o600))

	emails, err := ParseDirectory(dir, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "ann@example.com", emails[0].From)
	assert.Equal(t, "carol@example.com", emails[1].From)
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs", "<p>One</p><p>Two</p>", "One\n\nTwo"},
		{"breaks", "a<br>b<br />c", "a\nb\nc"},
		{"script removed", "<script>alert(1)</script>safe", "safe"},
		{"entities", "&lt;tag&gt; &amp;amp;", "<tag> &amp;"},
		{"collapses blank lines", "<p>a</p><p></p><p></p><p>b</p>", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanHTML(tt.in))
		})
	}
}
