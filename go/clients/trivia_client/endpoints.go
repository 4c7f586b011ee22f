package trivia_client

const (
	// Base URL
	BaseURL = "https://api.openai.com"

	// API Endpoints
	ChatCompletionsEndpoint = "/v1/chat/completions"

	// Model used for question generation
	Model = "gpt-3.5-turbo"

	// Headers
	AuthorizationHeader = "Authorization"
	ContentTypeHeader   = "Content-Type"
	ContentTypeJSON     = "application/json"
)
