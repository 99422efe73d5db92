package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Named campaign templates, written in the markdown subset MarkdownToHTML understands
var namedTemplates = map[string]string{
	"welcome": `# Welcome to iTracksy, {{name}}!

Thanks for signing up. iTracksy helps you **track your time**, stay focused and see where your day goes.

- Automatic activity tracking
- Focus sessions with gentle reminders
- Private by default, your data stays on your machine

[Download iTracksy]({{site_url}}/download)`,

	"beta_invite": `# You're invited to the iTracksy beta

Hi {{name}},

We are opening the next beta round and saved you a seat. Beta testers get *early access* to new features and a direct line to the team.

[Join the beta]({{site_url}}/beta?email={{email}})

Reply to this email with anything you notice, we read every message.`,

	"download_reminder": `# Ready to get focused, {{name}}?

You showed interest in iTracksy but have not downloaded it yet.

[Download iTracksy]({{site_url}}/download)

It takes less than a minute to set up.`,
}

// TemplateKeys returns the names of the built-in templates
func TemplateKeys() []string {
	keys := make([]string, 0, len(namedTemplates))
	for k := range namedTemplates {
		keys = append(keys, k)
	}
	return keys
}

// Vars are the placeholder values substituted into a campaign body
type Vars struct {
	Name    string
	Email   string
	SiteURL string
}

// Rendered is a campaign body ready to send
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; color: #1f2937; line-height: 1.6; max-width: 600px; margin: 0 auto; padding: 24px;">
{{.Body}}
<hr style="border: none; border-top: 1px solid #e5e7eb; margin-top: 32px;">
<p style="font-size: 12px; color: #6b7280;">You are receiving this email from <a href="{{.SiteURL}}">iTracksy</a>.</p>
</body>
</html>`))

// Render builds a campaign email from a named template or literal markdown.
// An unknown template key is an error; an empty body is an error.
func Render(subject string, templateKey, content *string, vars Vars) (*Rendered, error) {
	var body string
	switch {
	case templateKey != nil && *templateKey != "":
		tpl, ok := namedTemplates[*templateKey]
		if !ok {
			return nil, fmt.Errorf("unknown email template %q", *templateKey)
		}
		body = tpl
	case content != nil && strings.TrimSpace(*content) != "":
		body = *content
	default:
		return nil, fmt.Errorf("campaign has neither a template nor content")
	}

	md := substitute(body, vars)
	htmlBody, err := wrap(MarkdownToHTML(md), vars.SiteURL)
	if err != nil {
		return nil, err
	}

	return &Rendered{
		Subject: substitute(subject, vars),
		Text:    md,
		HTML:    htmlBody,
	}, nil
}

// RenderReply builds the HTML of an admin reply to a feedback submission
func RenderReply(message, userName, originalMessage, siteURL string) (string, error) {
	var b strings.Builder
	b.WriteString(MarkdownToHTML(substitute(message, Vars{Name: userName, SiteURL: siteURL})))
	if strings.TrimSpace(originalMessage) != "" {
		b.WriteString("\n<blockquote style=\"border-left: 3px solid #e5e7eb; margin: 24px 0 0; padding-left: 12px; color: #6b7280;\">")
		b.WriteString(MarkdownToHTML(originalMessage))
		b.WriteString("</blockquote>")
	}
	return wrap(b.String(), siteURL)
}

func substitute(s string, vars Vars) string {
	name := strings.TrimSpace(vars.Name)
	if name == "" {
		name = "there"
	} else if strings.ToLower(name) == name {
		// Mixed case is kept as entered so names like DeShawn survive
		name = cases.Title(language.English).String(name)
	}
	return strings.NewReplacer(
		"{{name}}", name,
		"{{email}}", vars.Email,
		"{{site_url}}", strings.TrimRight(vars.SiteURL, "/"),
	).Replace(s)
}

func wrap(body, siteURL string) (string, error) {
	var buf bytes.Buffer
	err := layout.Execute(&buf, struct {
		Body    template.HTML
		SiteURL string
	}{template.HTML(body), siteURL})
	if err != nil {
		return "", fmt.Errorf("failed to render email layout: %w", err)
	}
	return buf.String(), nil
}
