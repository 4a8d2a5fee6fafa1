// Package models contains data types and constants for the query backend.
package models

// Endpoints and defaults for the query backend
const (
	// DefaultBaseURL matches the port the backend listens on when PORT is unset.
	DefaultBaseURL = "http://localhost:5000"

	// PathQuery is the single endpoint the widget posts to.
	PathQuery = "/query"

	// PathHealth is probed by Ping.
	PathHealth = "/"

	// ContentTypeJSON is sent on every query request.
	ContentTypeJSON = "application/json"
)

// Wire field names in query requests and responses
const (
	FieldQuery           = "query"
	FieldResponseMessage = "response_message"
	FieldError           = "error"
	FieldRetrievedJobs   = "retrieved_jobs"
	FieldTrending        = "trending"
)

// DefaultHeaders returns the headers sent with every query request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": ContentTypeJSON,
		"Accept":       ContentTypeJSON,
		"User-Agent":   "querychat/" + Version,
	}
}

// Version is reported in the User-Agent header (set at build time)
var Version = "0.1.0"
