package models

// QuestionKind selects the correctness predicate for a round.
type QuestionKind string

const (
	// QuestionKindTrivia matches answers by case-insensitive containment in
	// the answer key.
	QuestionKindTrivia QuestionKind = "trivia"
	// QuestionKindTrack matches answers by case-insensitive equality with the
	// track title.
	QuestionKindTrack QuestionKind = "track"
)

// RoundSelection is the topic/track choice a round is generated from.
type RoundSelection struct {
	Kind     QuestionKind `json:"kind"`
	Topic    string       `json:"topic,omitempty"`
	Subtopic string       `json:"subtopic,omitempty"`
	Country  string       `json:"country,omitempty"`
	Genre    string       `json:"genre,omitempty"`
}

// Track is the display payload of a music round.
type Track struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	PreviewURL string `json:"preview_url"`
}

// RoundContent is what the content source returns for one round: the text
// shown to players, the key answers are checked against, and, for music
// rounds, the track payload.
type RoundContent struct {
	Kind      QuestionKind `json:"kind"`
	Question  string       `json:"question"`
	AnswerKey string       `json:"answer_key"`
	Track     *Track       `json:"track,omitempty"`
}
