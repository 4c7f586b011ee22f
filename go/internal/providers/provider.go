// Package providers adapts the external content clients to the round content
// interface the coordinator consumes.
package providers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/encorequiz/encore/go/clients/spotify_client"
	"github.com/encorequiz/encore/go/clients/trivia_client"
	"github.com/encorequiz/encore/go/internal/models"
)

// QuestionGenerator produces trivia questions.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, topic, subtopic, country string) (string, error)
}

// TrackPicker produces music tracks.
type TrackPicker interface {
	RandomTrack(ctx context.Context, genre string) (*spotify_client.Track, error)
}

// Provider is the round content supplier. It routes trivia selections to the
// question generator and track selections to the track picker.
type Provider struct {
	questions QuestionGenerator
	tracks    TrackPicker
}

func New(questions QuestionGenerator, tracks TrackPicker) *Provider {
	return &Provider{questions: questions, tracks: tracks}
}

func (p *Provider) NextRound(ctx context.Context, sel models.RoundSelection) (*models.RoundContent, error) {
	switch sel.Kind {
	case models.QuestionKindTrack:
		return p.nextTrack(ctx, sel.Genre)
	default:
		return p.nextQuestion(ctx, sel)
	}
}

func (p *Provider) nextQuestion(ctx context.Context, sel models.RoundSelection) (*models.RoundContent, error) {
	question, err := p.questions.GenerateQuestion(ctx, sel.Topic, sel.Subtopic, sel.Country)
	if err != nil {
		return nil, fmt.Errorf("failed to generate question: %w", err)
	}
	key := trivia_client.AnswerKey(question)
	if key == "" {
		return nil, fmt.Errorf("generated question has no answer line")
	}
	log.Debug().Str("topic", sel.Topic).Str("country", sel.Country).Msg("trivia question generated")
	return &models.RoundContent{
		Kind:      models.QuestionKindTrivia,
		Question:  question,
		AnswerKey: key,
	}, nil
}

func (p *Provider) nextTrack(ctx context.Context, genre string) (*models.RoundContent, error) {
	track, err := p.tracks.RandomTrack(ctx, genre)
	if err != nil {
		return nil, fmt.Errorf("failed to pick track: %w", err)
	}
	log.Debug().Str("genre", genre).Str("title", track.Title).Msg("track picked")
	return &models.RoundContent{
		Kind:      models.QuestionKindTrack,
		Question:  "Guess the song title",
		AnswerKey: track.Title,
		Track: &models.Track{
			Title:      track.Title,
			Artist:     track.Artist,
			Album:      track.Album,
			PreviewURL: track.PreviewURL,
		},
	}, nil
}
