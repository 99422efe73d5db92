package threads

import (
	"strings"

	"github.com/emersion/go-message/mail"
)

// ParseMessageIDs returns the message ids of an In-Reply-To or References value
// in header order, without angle brackets. Values that are not RFC 5322
// msg-id lists are split on whitespace instead.
func ParseMessageIDs(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	var h mail.Header
	h.Set("References", value)
	if ids, err := h.MsgIDList("References"); err == nil && len(ids) > 0 {
		return ids
	}

	var ids []string
	for _, field := range strings.Fields(value) {
		if id := StripAngles(field); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// StripAngles removes surrounding whitespace and angle brackets from a message id
func StripAngles(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(id), "<"), ">")
}

// Candidates returns the stored forms a message id may take, bare and bracketed
func Candidates(ids ...string) []string {
	out := make([]string, 0, len(ids)*2)
	for _, id := range ids {
		if id = StripAngles(id); id != "" {
			out = append(out, id, "<"+id+">")
		}
	}
	return out
}

// ParseSender splits a From value into a lower-cased address and display name
func ParseSender(from string) (address, name string) {
	from = strings.TrimSpace(from)
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address), addr.Name
	}

	if i := strings.LastIndex(from, "<"); i >= 0 && strings.HasSuffix(from, ">") {
		return strings.ToLower(strings.TrimSpace(from[i+1 : len(from)-1])), strings.Trim(strings.TrimSpace(from[:i]), `"`)
	}
	return strings.ToLower(from), ""
}
