// Package format provides display helpers for contacts and their links.
package format

import (
	"fmt"
	"strings"

	"github.com/taxilian/portal/internal/model"
)

// NoRole is shown in place of an empty role.
const NoRole = "-"

// RoleDisplay returns the role label, or NoRole if it is empty.
func RoleDisplay(role string) string {
	if strings.TrimSpace(role) == "" {
		return NoRole
	}
	return role
}

// MainDisplay renders the main-contact flag.
func MainDisplay(main bool) string {
	if main {
		return "main"
	}
	return ""
}

// Emails joins a contact's addresses for single-line display.
func Emails(c model.Contact) string {
	return strings.Join(c.Emails, ", ")
}

// LinkSummary describes a link from the contact's point of view.
func LinkSummary(l model.ContactProject) string {
	s := fmt.Sprintf("project %d role %s", l.ProjectID, RoleDisplay(l.Role))
	if l.Main {
		s += " (main)"
	}
	return s
}

// Truncate shortens s to width runes, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
