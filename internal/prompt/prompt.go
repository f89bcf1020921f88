// Package prompt assembles the messages sent to the generation backend.
// Everything here is pure: no I/O, no side effects.
package prompt

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// maxHTMLRunes caps the HTML sample embedded in a generation prompt.
// Independent of the capture-time cap: this one bounds prompt payload
// size, the other bounds the stored sample.
const maxHTMLRunes = 30000

// GenerationSystem constrains initial generation output.
const GenerationSystem = `You are an expert frontend developer. Your task is to generate a complete, self-contained HTML file that serves as a prototype/demo based on a screenshot and HTML of an existing website.

Requirements:
- Output a single, complete HTML file with inline styles and scripts
- Use the Tailwind CSS CDN via <script src="https://cdn.tailwindcss.com"></script>
- Match the visual style, color scheme, and layout patterns from the screenshot
- Use realistic, contextually appropriate content (not lorem ipsum)
- Make it responsive and visually polished
- Include hover states, transitions, and interactive elements where appropriate
- The HTML must be fully self-contained, with no external dependencies besides the Tailwind CDN

Output format:
- Return ONLY the HTML code wrapped in ` + "```html" + ` code fences
- No explanations, no commentary, just the code`

// IterationSystem constrains change-request output.
const IterationSystem = `You are an expert frontend developer. You will receive the current HTML of a prototype and a change request from the user.

Requirements:
- Return the complete modified HTML file with the requested changes applied
- Preserve all existing functionality and styling unless the change specifically requires modifications
- Use the Tailwind CSS CDN via <script src="https://cdn.tailwindcss.com"></script>
- Keep the HTML fully self-contained
- Apply changes precisely as described

Output format:
- Return ONLY the complete modified HTML code wrapped in ` + "```html" + ` code fences
- No explanations, no commentary, just the code`

// GenerationMessages builds the multimodal user message for initial
// generation: the screenshot as an inline PNG data URL, then a text
// block holding the capped HTML sample and the literal user goal.
func GenerationMessages(screenshot, html, goal string) []openai.ChatCompletionMessage {
	sample := html
	if runes := []rune(sample); len(runes) > maxHTMLRunes {
		sample = string(runes[:maxHTMLRunes])
	}
	return []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/png;base64," + screenshot,
					Detail: openai.ImageURLDetailHigh,
				},
			},
			{
				Type: openai.ChatMessagePartTypeText,
				Text: fmt.Sprintf("Here is the HTML structure of the website (truncated):\n\n%s\n\nUser request: %s", sample, goal),
			},
		},
	}}
}

// IterationMessages builds the text-only user message for a change
// request: the full current HTML (uncapped) fenced, then the literal
// instruction.
func IterationMessages(currentHTML, instruction string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("Here is the current HTML prototype:\n\n```html\n%s\n```\n\nPlease make the following changes: %s",
			currentHTML, instruction),
	}}
}
