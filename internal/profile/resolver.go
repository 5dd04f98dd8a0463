// Package profile resolves subject display names from the profile service
// (wisefido-data) for alert titles and messages.
package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// NameResolver looks up the human-readable name of an elder or caregiver.
type NameResolver interface {
	ResolveDisplayName(ctx context.Context, subjectID string) (string, error)
}

// profileResponse mirrors the Result envelope of the profile service.
type profileResponse struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  struct {
		SubjectID   string `json:"subject_id"`
		DisplayName string `json:"display_name"`
	} `json:"result"`
}

// codeSuccess is the envelope code the profile service uses for success.
const codeSuccess = 2000

// HTTPResolver calls GET /admin/api/v1/profiles/{id} with retries.
type HTTPResolver struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewHTTPResolver(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPResolver {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPResolver{
		httpClient: client,
		logger:     logger,
	}
}

var _ NameResolver = (*HTTPResolver)(nil)

func (r *HTTPResolver) ResolveDisplayName(ctx context.Context, subjectID string) (string, error) {
	if subjectID == "" {
		return "", fmt.Errorf("subject_id is required")
	}

	var response profileResponse
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", subjectID).
		SetResult(&response).
		Get("/admin/api/v1/profiles/{id}")
	if err != nil {
		return "", fmt.Errorf("failed to call profile service: %w", err)
	}
	if resp.IsError() {
		r.logger.Warn("Profile service returned error status",
			zap.String("subject_id", subjectID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", fmt.Errorf("profile service status %d", resp.StatusCode())
	}
	if response.Code != codeSuccess {
		return "", fmt.Errorf("profile service error: %s (code: %d)", response.Message, response.Code)
	}
	if response.Result.DisplayName == "" {
		return "", fmt.Errorf("profile %s has no display name", subjectID)
	}
	return response.Result.DisplayName, nil
}

// StaticResolver serves names from memory; used when no profile service is
// configured.
type StaticResolver struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewStaticResolver(names map[string]string) *StaticResolver {
	cp := make(map[string]string, len(names))
	for k, v := range names {
		cp[k] = v
	}
	return &StaticResolver{names: cp}
}

var _ NameResolver = (*StaticResolver)(nil)

func (r *StaticResolver) Set(subjectID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[subjectID] = name
}

func (r *StaticResolver) ResolveDisplayName(_ context.Context, subjectID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[subjectID]
	if !ok {
		return "", fmt.Errorf("no display name for %s", subjectID)
	}
	return name, nil
}
