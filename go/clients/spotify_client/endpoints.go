package spotify_client

const (
	// Base URLs
	AccountsBaseURL = "https://accounts.spotify.com"
	APIBaseURL      = "https://api.spotify.com"

	// API Endpoints
	TokenEndpoint           = "/api/token"
	RecommendationsEndpoint = "/v1/recommendations"

	// Headers
	AuthorizationHeader = "Authorization"
	ContentTypeHeader   = "Content-Type"
	ContentTypeForm     = "application/x-www-form-urlencoded"
)
