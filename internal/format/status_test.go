package format

import (
	"testing"

	"github.com/taxilian/portal/internal/model"
)

func TestRoleDisplay(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{"", NoRole},
		{"  ", NoRole},
		{"billing", "billing"},
	}
	for _, tt := range tests {
		if got := RoleDisplay(tt.role); got != tt.want {
			t.Errorf("RoleDisplay(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestMainDisplay(t *testing.T) {
	if MainDisplay(true) != "main" || MainDisplay(false) != "" {
		t.Errorf("MainDisplay = %q/%q", MainDisplay(true), MainDisplay(false))
	}
}

func TestEmails(t *testing.T) {
	c := model.Contact{Emails: []string{"a@example.com", "b@example.com"}}
	if got, want := Emails(c), "a@example.com, b@example.com"; got != want {
		t.Errorf("Emails = %q, want %q", got, want)
	}
}

func TestLinkSummary(t *testing.T) {
	got := LinkSummary(model.ContactProject{ProjectID: 367316, Main: true})
	if want := "project 367316 role - (main)"; got != want {
		t.Errorf("LinkSummary = %q, want %q", got, want)
	}
	got = LinkSummary(model.ContactProject{ProjectID: 5, Role: "pm"})
	if want := "project 5 role pm"; got != want {
		t.Errorf("LinkSummary = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s     string
		width int
		want  string
	}{
		{"Jane Doe", 20, "Jane Doe"},
		{"Jane Doe", 5, "Jane…"},
		{"Jane", 1, "…"},
		{"Jane", 0, "Jane"},
		{"Zoë Ångström", 4, "Zoë…"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.s, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.width, got, tt.want)
		}
	}
}
