package markdown

import (
	"strings"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```\nINT. HOUSE - DAY\n```", "INT. HOUSE - DAY"},
		{"```markdown\n# Act One\nFADE IN:\n```\n", "# Act One\nFADE IN:"},
		{"plain text", "plain text"},
		{"before\n```\ncode\n```", "before\n```\ncode\n```"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToHTML(t *testing.T) {
	html := ToHTML("```\n# The Long Night\n\n**MARA** enters.\n```")

	if !strings.Contains(html, "<h1") || !strings.Contains(html, "The Long Night</h1>") {
		t.Errorf("heading not rendered: %q", html)
	}
	if !strings.Contains(html, "<strong>MARA</strong>") {
		t.Errorf("emphasis not rendered: %q", html)
	}
	if strings.Contains(html, "```") || strings.Contains(html, "<pre>") {
		t.Errorf("wrapping fence should be removed: %q", html)
	}
	if ToHTML("   ") != "" {
		t.Error("blank input should render empty")
	}
}
