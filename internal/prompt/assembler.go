// Package prompt assembles guarded model prompts from loaded documents and
// a user query.
package prompt

import (
	"errors"
	"fmt"

	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/promptguard"
)

// ErrNoReadableDocuments is returned when every supplied record carries an
// error. It is distinct from an injection failure: the query was fine, the
// input set was not.
var ErrNoReadableDocuments = errors.New("prompt: no readable documents available")

// TruncationMarker is appended to a document body cut at the per-file limit.
const TruncationMarker = "\n\n[Document truncated...]"

// Assemble filters out failed records, truncates each remaining document to
// maxCharsPerFile, and delegates rendering and query validation to the
// injection guard. Injection errors propagate unchanged.
func Assemble(documents []model.FileRecord, query string, maxCharsPerFile int, systemInstruction string) (string, error) {
	valid := documents[:0:0]
	for _, doc := range documents {
		if doc.Error == "" {
			valid = append(valid, doc)
		}
	}
	if len(valid) == 0 {
		return "", ErrNoReadableDocuments
	}

	bodies := make([]string, len(valid))
	for i, doc := range valid {
		content := truncate(doc.Content, maxCharsPerFile)
		// The header travels inside the sanitized body so provenance
		// cannot be used to forge template structure.
		bodies[i] = fmt.Sprintf("path=%s name=%s kind=%s\n%s", doc.Path, doc.Name, doc.Kind, content)
	}

	return promptguard.BuildSafePrompt(query, bodies, systemInstruction)
}

// truncate cuts s to at most max runes, appending the truncation marker
// when anything was cut. max <= 0 means no limit.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + TruncationMarker
}
