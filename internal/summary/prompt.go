package summary

import (
	"fmt"
	"strings"
)

const (
	summarySystemPrompt   = "You summarize books clearly and concisely."
	translateSystemPrompt = "You are a professional translator."

	summaryTemperature   = 0.7
	translateTemperature = 0.3
)

// PromptInput is the book context sent to the summarization backend.
type PromptInput struct {
	Title       string
	Authors     []string
	Language    string
	Description string
	Category    string
}

// BuildPrompt asks for the three labeled sections ParseSections understands.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional book summarizer. Please summarize the book %q by %s.\n\n",
		in.Title, strings.Join(in.Authors, ", "))
	b.WriteString("Return content in 3 clearly separated sections:\n")
	fmt.Fprintf(&b, "## %s (1–2 sentences)\n", markerShort)
	fmt.Fprintf(&b, "## %s (4–6 paragraphs)\n", markerDetailed)
	fmt.Fprintf(&b, "## %s (5–10 bullet points)\n\n", markerTakeaways)
	fmt.Fprintf(&b, "The summary should be in %s.\n", in.Language)

	if in.Description != "" {
		fmt.Fprintf(&b, "\nHere's a description to help you: %s\n", in.Description)
	}
	if in.Category != "" {
		fmt.Fprintf(&b, "\nThis book is categorized as: %s\n", in.Category)
	}
	return b.String()
}

// BuildTranslatePrompt asks for a plain translation of text.
func BuildTranslatePrompt(text, language string) string {
	return fmt.Sprintf("Translate the following text to %s:\n\n%s", language, text)
}
