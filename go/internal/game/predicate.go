package game

import (
	"strings"

	"github.com/encorequiz/encore/go/internal/models"
)

// CorrectAnswer is the per-kind correctness predicate. Trivia answers match by
// case-insensitive containment in the answer key, so "paris" and "Paris!"
// both hit a key of "The correct answer is C) Paris". Track answers must equal
// the title, case-insensitively, after trimming.
func CorrectAnswer(kind models.QuestionKind, answerKey, submission string) bool {
	submission = strings.TrimSpace(submission)
	if submission == "" || answerKey == "" {
		return false
	}
	switch kind {
	case models.QuestionKindTrack:
		return strings.EqualFold(submission, strings.TrimSpace(answerKey))
	default:
		return strings.Contains(strings.ToLower(answerKey), strings.ToLower(submission)) ||
			strings.Contains(strings.ToLower(submission), strings.ToLower(answerKey))
	}
}
