package mail

import (
	"regexp"
	"strings"
)

// Message is one outbound mail. To entries use the "name<address>" form.
type Message struct {
	To      []string
	From    string
	Subject string
	HTML    string
}

var placeholder = regexp.MustCompile(`\[([A-Za-z0-9_]+)\]`)

// Replace substitutes [key] placeholders in tpl with values from data. Keys
// match case-insensitively. When data has a "name" entry, [fname] and [lname]
// resolve to its first word and the remainder. Placeholders with no value
// are left untouched.
func Replace(tpl string, data map[string]string) string {
	if tpl == "" || len(data) == 0 {
		return tpl
	}

	values := make(map[string]string, len(data)+2)
	for k, v := range data {
		values[strings.ToLower(k)] = v
	}
	if name, ok := values["name"]; ok {
		first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
		if _, set := values["fname"]; !set {
			values["fname"] = first
		}
		if _, set := values["lname"]; !set {
			values["lname"] = strings.TrimSpace(last)
		}
	}

	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		key := strings.ToLower(m[1 : len(m)-1])
		if v, ok := values[key]; ok {
			return v
		}
		return m
	})
}

// Address extracts the bare address from a "name<address>" recipient.
func Address(recipient string) string {
	open := strings.LastIndexByte(recipient, '<')
	end := strings.LastIndexByte(recipient, '>')
	if open >= 0 && end > open {
		return strings.TrimSpace(recipient[open+1 : end])
	}
	return strings.TrimSpace(recipient)
}
