package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/encorequiz/encore/go/internal/models"
)

func TestCorrectAnswer(t *testing.T) {
	tests := []struct {
		name       string
		kind       models.QuestionKind
		key        string
		submission string
		want       bool
	}{
		{name: "trivia exact", kind: models.QuestionKindTrivia, key: "Paris", submission: "Paris", want: true},
		{name: "trivia case insensitive", kind: models.QuestionKindTrivia, key: "Paris", submission: "paris", want: true},
		{name: "trivia trailing punctuation", kind: models.QuestionKindTrivia, key: "Paris", submission: "Paris!", want: true},
		{name: "trivia within answer line", kind: models.QuestionKindTrivia, key: "Correct answer: C) Paris", submission: "paris", want: true},
		{name: "trivia wrong", kind: models.QuestionKindTrivia, key: "Paris", submission: "London", want: false},
		{name: "trivia empty submission", kind: models.QuestionKindTrivia, key: "Paris", submission: "   ", want: false},
		{name: "track exact", kind: models.QuestionKindTrack, key: "Bohemian Rhapsody", submission: "bohemian rhapsody", want: true},
		{name: "track partial rejected", kind: models.QuestionKindTrack, key: "Bohemian Rhapsody", submission: "Bohemian", want: false},
		{name: "track trimmed", kind: models.QuestionKindTrack, key: "Bohemian Rhapsody", submission: "  Bohemian Rhapsody  ", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CorrectAnswer(tt.kind, tt.key, tt.submission))
		})
	}
}
