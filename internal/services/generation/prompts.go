package generation

import (
	"fmt"
	"strings"

	"github.com/cf-ai-screenwriter-go/internal/models"
)

// ScriptPrompt asks for a screenplay built around title
func ScriptPrompt(title string) string {
	return fmt.Sprintf(`Create a script with the following requirements:
Title: %s
Format: Standard screenplay format
Include:
- Scene descriptions
- Character dialogue
- Action sequences
- Emotional beats`, strings.TrimSpace(title))
}

// AnalysisPrompt asks for craft notes on an existing script
func AnalysisPrompt(script string) string {
	return fmt.Sprintf(`Analyze the following script and give concise notes on:
- Structure and pacing
- Character arcs
- Dialogue
- Continuity problems

Script:
%s`, strings.TrimSpace(script))
}

// CharacterPrompt asks for a character profile. Empty fields fall back to
// placeholders.
func CharacterPrompt(c models.CharacterRequest) string {
	var b strings.Builder
	b.WriteString("Create a detailed character profile for:\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Role: %s\n", orDefault(c.Role, "Unknown"))
	fmt.Fprintf(&b, "Description: %s\n", orDefault(c.Description, "Not provided"))
	if c.Background != "" {
		fmt.Fprintf(&b, "Known background: %s\n", c.Background)
	}
	if c.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", c.Personality)
	}
	if c.Goals != "" {
		fmt.Fprintf(&b, "Goals: %s\n", c.Goals)
	}
	b.WriteString(`Include:
- Backstory
- Personality traits
- Motivations
- Goals
- Conflicts`)
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
