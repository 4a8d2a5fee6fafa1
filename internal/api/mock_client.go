package api

import (
	"context"
	"sync"

	"github.com/diogo/querychat/internal/models"
)

// MockClient is a mock implementation of ClientInterface for testing
type MockClient struct {
	// QueryFunc, when set, answers queries; otherwise QueryVal/QueryErr are returned
	QueryFunc  func(ctx context.Context, text string) (*models.QueryResponse, error)
	QueryVal   *models.QueryResponse
	QueryErr   error
	PingErr    error
	BaseURLVal string

	mu          sync.Mutex
	queries     []string
	closeCalled bool
}

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)

// Query records text and returns the configured reply
func (m *MockClient) Query(ctx context.Context, text string) (*models.QueryResponse, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	fn := m.QueryFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return m.QueryVal, m.QueryErr
}

// Ping returns PingErr
func (m *MockClient) Ping(ctx context.Context) error {
	return m.PingErr
}

// BaseURL returns BaseURLVal or the default base URL
func (m *MockClient) BaseURL() string {
	if m.BaseURLVal != "" {
		return m.BaseURLVal
	}
	return models.DefaultBaseURL
}

// Endpoint returns the query URL for BaseURL
func (m *MockClient) Endpoint() string {
	return m.BaseURL() + models.PathQuery
}

// Close records the call
func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalled = true
}

// IsClosed reports whether Close was called
func (m *MockClient) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalled
}

// Queries returns the texts sent so far, in order
func (m *MockClient) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// Reply builds a successful QueryResponse for text
func Reply(text string) *models.QueryResponse {
	return &models.QueryResponse{ResponseMessage: text, StatusCode: 200}
}
