package manager

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"streamd/pkg/types"
)

// systemRules opens every chat prompt.
const systemRules = "System: You are a helpful AI assistant. Follow these rules:\n" +
	"1. Do not generate additional questions or conversation turns\n" +
	"2. Respond only to the current question\n" +
	"3. Stop immediately once you've sufficiently answered the question\n" +
	"Remember: Be direct and stay focused on the current question only.\n"

// responseCue ends the prompt so the model continues with its answer.
const responseCue = "Response: "

// RenderPrompt flattens a chat transcript into the single prompt string fed to
// the model: the system rules block, then one line per message (system
// content verbatim, user as "Question: ", assistant as "Response: "), then an
// open "Response: " cue. Messages with other roles are skipped; an empty
// transcript yields only the rules block and the cue.
func RenderPrompt(messages []types.Message) (string, error) {
	var b strings.Builder
	b.WriteString(systemRules)
	for i, msg := range messages {
		if !utf8.ValidString(msg.Content) {
			return "", promptFormattingError{msg: fmt.Sprintf("message %d is not valid UTF-8", i)}
		}
		switch msg.Role {
		case "system":
			b.WriteString(msg.Content)
		case "user":
			b.WriteString("Question: ")
			b.WriteString(msg.Content)
		case "assistant":
			b.WriteString(responseCue)
			b.WriteString(msg.Content)
		default:
			continue
		}
		b.WriteByte('\n')
	}
	b.WriteString(responseCue)
	return b.String(), nil
}
