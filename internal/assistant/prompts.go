package assistant

import (
	"fmt"
	"strings"

	"github.com/thebtf/devdeck/pkg/models"
)

// SystemPrompt frames every request sent to the model.
const SystemPrompt = "You are the assistant of a browser-based developer workspace. " +
	"Answer concisely and use Markdown code blocks for commands and code."

const (
	maxCommandLen = 2000
	maxOutputLen  = 6000
)

// BuildExplainPrompt builds a prompt asking the model to explain one
// command execution of a terminal session.
func BuildExplainPrompt(sessionName string, rec models.ExecutionRecord) string {
	var sb strings.Builder
	sb.WriteString("Explain the following terminal command execution")
	if sessionName != "" {
		sb.WriteString(fmt.Sprintf(" from the terminal %q", sessionName))
	}
	sb.WriteString(".\n\n")

	sb.WriteString("<execution>\n")
	sb.WriteString(fmt.Sprintf("  <command>%s</command>\n", truncate(rec.Command, maxCommandLen)))
	sb.WriteString(fmt.Sprintf("  <exit_code>%d</exit_code>\n", rec.ExitCode))
	sb.WriteString(fmt.Sprintf("  <finished_at>%s</finished_at>\n", rec.Timestamp))
	sb.WriteString(fmt.Sprintf("  <output>%s</output>\n", truncate(rec.Output, maxOutputLen)))
	sb.WriteString("</execution>\n\n")

	if rec.Succeeded() {
		sb.WriteString("Describe what the command did and summarize its output.")
	} else {
		sb.WriteString("The command failed. Explain the most likely cause and suggest a fix.")
	}
	return sb.String()
}

// truncate truncates a string to the specified length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
