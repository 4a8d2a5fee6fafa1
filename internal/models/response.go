package models

// QueryRequest is the body posted to /query
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse holds the fields the widget reads from a /query reply
type QueryResponse struct {
	ResponseMessage string
	// Error is set when the backend answered with an error object
	Error      string
	StatusCode int
	// Matches counts retrieved_jobs or trending entries, when present
	Matches int
	Raw     []byte
}
