package email

import (
	"html"
	"regexp"
	"strings"
)

// Supported grammar, applied after HTML-escaping the input:
//
//	# h1, ## h2, ### h3        header lines
//	- item / * item            single-level unordered list
//	**bold**                   <strong>
//	*italic* / _italic_        <em>
//	[text](url)                link, http(s) and mailto only
//	blank line                 paragraph break, single newlines become <br>
//
// Anything else passes through as escaped text.
var (
	headerRe = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)
	listRe   = regexp.MustCompile(`^[-*]\s+(.+)$`)
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*\s][^*]*)\*|\b_([^_]+)_\b`)
)

// MarkdownToHTML renders the markdown subset above
func MarkdownToHTML(md string) string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")

	var (
		out       strings.Builder
		paragraph []string
		items     []string
	)

	flushParagraph := func() {
		if len(paragraph) > 0 {
			out.WriteString("<p>" + strings.Join(paragraph, "<br>") + "</p>\n")
			paragraph = nil
		}
	}
	flushList := func() {
		if len(items) > 0 {
			out.WriteString("<ul>")
			for _, item := range items {
				out.WriteString("<li>" + item + "</li>")
			}
			out.WriteString("</ul>\n")
			items = nil
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(html.EscapeString(raw))

		switch {
		case line == "":
			flushParagraph()
			flushList()
		case headerRe.MatchString(line):
			flushParagraph()
			flushList()
			m := headerRe.FindStringSubmatch(line)
			level := string('0' + rune(len(m[1])))
			out.WriteString("<h" + level + ">" + inline(m[2]) + "</h" + level + ">\n")
		case listRe.MatchString(line):
			flushParagraph()
			items = append(items, inline(listRe.FindStringSubmatch(line)[1]))
		default:
			flushList()
			paragraph = append(paragraph, inline(line))
		}
	}
	flushParagraph()
	flushList()

	return strings.TrimSuffix(out.String(), "\n")
}

// inline applies link, bold and italic rules to already escaped text.
// Emphasis never reaches inside a link target.
func inline(s string) string {
	var out strings.Builder
	last := 0
	for _, m := range linkRe.FindAllStringSubmatchIndex(s, -1) {
		out.WriteString(emphasis(s[last:m[0]]))
		text, target := s[m[2]:m[3]], s[m[4]:m[5]]
		if safeURL(target) {
			out.WriteString(`<a href="` + target + `">` + emphasis(text) + `</a>`)
		} else {
			out.WriteString(emphasis(text))
		}
		last = m[1]
	}
	out.WriteString(emphasis(s[last:]))
	return out.String()
}

func emphasis(s string) string {
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	return italicRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := italicRe.FindStringSubmatch(m)
		text := parts[1]
		if text == "" {
			text = parts[2]
		}
		return "<em>" + text + "</em>"
	})
}

func safeURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "mailto:")
}
