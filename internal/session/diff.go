package session

import (
	"context"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// UnifiedDiff returns a unified diff of two texts, empty when they match
func UnifiedDiff(oldLabel, newLabel, oldText, newText string) string {
	oldText = ensureTrailingNewline(oldText)
	newText = ensureTrailingNewline(newText)
	if oldText == newText {
		return ""
	}
	return udiff.Unified(oldLabel, newLabel, oldText, newText)
}

func ensureTrailingNewline(content string) string {
	if strings.HasSuffix(content, "\n") {
		return content
	}
	return content + "\n"
}

// Diff compares the buffer against the pretty-printed response it was seeded with
func (b *EditBuffer) Diff() string {
	return UnifiedDiff("response", "edited", b.original, b.text)
}

// CompareHistory diffs the pretty-printed bodies of two history entries
func (s *Session) CompareHistory(ctx context.Context, oldKey, newKey string) (string, error) {
	oldRec, err := s.history.Get(ctx, oldKey)
	if err != nil {
		return "", err
	}
	newRec, err := s.history.Get(ctx, newKey)
	if err != nil {
		return "", err
	}

	oldText, err := PrettyJSON(oldRec.Response)
	if err != nil {
		return "", err
	}
	newText, err := PrettyJSON(newRec.Response)
	if err != nil {
		return "", err
	}
	return UnifiedDiff(oldRec.FormattedTime(), newRec.FormattedTime(), oldText, newText), nil
}
