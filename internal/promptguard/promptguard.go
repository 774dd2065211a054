// Package promptguard detects prompt-injection attempts in user queries and
// escapes untrusted text before it is embedded into a model prompt.
//
// The query channel is attacker-controlled and is rejected outright on any
// pattern match. Document bodies arrive from files rather than the direct
// attacker channel, so they are sanitized but never rejected.
package promptguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Detection is one matched injection pattern.
type Detection struct {
	Match    string `json:"match"`
	Category string `json:"category"`
}

// InjectionError reports a rejected query. It is fail-closed: callers must
// never retry it or partially honor the request.
type InjectionError struct {
	Detections []Detection
}

func (e *InjectionError) Error() string {
	parts := make([]string, len(e.Detections))
	for i, d := range e.Detections {
		parts[i] = fmt.Sprintf("%q (%s)", d.Match, d.Category)
	}
	return "potential prompt injection detected: " + strings.Join(parts, ", ")
}

// pattern pairs a compiled regexp with the category it evidences.
type pattern struct {
	re       *regexp.Regexp
	category string
}

var patterns = compilePatterns([]struct{ expr, category string }{
	// Direct instruction override.
	{`ignore\s+(all\s+)?(previous|prior|above)\s+instructions?`, "instruction override"},
	{`disregard\s+(all\s+)?(previous|prior|above)`, "instruction override"},
	{`forget\s+(all\s+)?(previous|prior|above)`, "instruction override"},
	// System prompt manipulation.
	{`system\s*:`, "system prompt injection"},
	{`<\|im_start\|>`, "chat template injection"},
	{`<\|im_end\|>`, "chat template injection"},
	{`###\s*system`, "system delimiter injection"},
	// Role confusion.
	{`you\s+are\s+now`, "role confusion"},
	{`act\s+as\s+(if\s+)?you\s+(are|were)`, "role confusion"},
	{`pretend\s+you\s+are`, "role confusion"},
	// Jailbreak attempts.
	{`developer\s+mode`, "jailbreak attempt"},
	{`DAN\s+mode`, "jailbreak attempt (DAN)"},
	{`sudo\s+mode`, "jailbreak attempt"},
	// Prompt leakage.
	{`print\s+your\s+(system\s+)?(prompt|instructions)`, "prompt leakage"},
	{`show\s+me\s+your\s+(system\s+)?(prompt|instructions)`, "prompt leakage"},
	{`what\s+(are|were)\s+your\s+(original\s+)?(instructions|rules)`, "prompt leakage"},
})

func compilePatterns(specs []struct{ expr, category string }) []pattern {
	out := make([]pattern, len(specs))
	for i, s := range specs {
		out[i] = pattern{re: regexp.MustCompile(`(?i)` + s.expr), category: s.category}
	}
	return out
}

// DefaultSystemInstruction is used when the caller supplies none.
const DefaultSystemInstruction = "You are a helpful document analysis assistant. " +
	"Analyze the provided documents and answer the user's query accurately. " +
	"Base your response only on the information in the documents. " +
	"If the documents don't contain relevant information, say so."

// Scan returns every injection pattern matched by input, in pattern order.
// Blank input matches nothing.
func Scan(input string) []Detection {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	var detections []Detection
	for _, p := range patterns {
		if m := p.re.FindString(input); m != "" {
			detections = append(detections, Detection{Match: m, Category: p.category})
		}
	}
	return detections
}

// Validate returns an *InjectionError if input matches any injection
// pattern, nil otherwise. It scans the raw, unsanitized input.
func Validate(input string) error {
	if detections := Scan(input); len(detections) > 0 {
		return &InjectionError{Detections: detections}
	}
	return nil
}

// Sanitize escapes the structural characters the prompt template relies on:
// angle brackets (tag delimiters) and backticks (fenced-code delimiters).
// Untrusted content therefore cannot forge a template boundary.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}
	s := strings.ReplaceAll(input, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "`", "\\`")
	return s
}

// BuildSafePrompt validates the raw query, sanitizes the query and every
// document body, and renders the structured prompt. Validation happens
// before any document content is touched, so an injected query fails closed.
func BuildSafePrompt(query string, documents []string, systemInstruction string) (string, error) {
	if err := Validate(query); err != nil {
		return "", err
	}
	if systemInstruction == "" {
		systemInstruction = DefaultSystemInstruction
	}

	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n<documents>\n")
	for _, doc := range documents {
		b.WriteString("<document>")
		b.WriteString(Sanitize(doc))
		b.WriteString("</document>\n")
	}
	b.WriteString("</documents>\n\n<user_query>\n")
	b.WriteString(Sanitize(query))
	b.WriteString("\n</user_query>\n\n")
	b.WriteString("Please analyze the documents above and answer the user's query. " +
		"Base your response only on the provided documents.")

	return b.String(), nil
}
