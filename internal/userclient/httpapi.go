package userclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"timed-quiz/internal/quiz"
)

var ErrServiceUnavailable = errors.New("quiz service unavailable")

const userIDHeader = "X-User-ID"

type APIError struct {
	StatusCode int
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

type HTTPClient struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

type submitAnswerRequest struct {
	QuestionID        string   `json:"question_id"`
	SelectedOptionIDs []string `json:"selected_option_ids"`
}

type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func NewHTTPClient(baseURL, userID string, httpClient *http.Client) *HTTPClient {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultServer
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPClient{
		baseURL:    baseURL,
		userID:     strings.TrimSpace(userID),
		httpClient: httpClient,
	}
}

func (c *HTTPClient) ValidateStart(ctx context.Context, quizID string) (quiz.StartPlan, error) {
	var plan quiz.StartPlan
	err := c.doJSON(ctx, http.MethodPost, "/quizzes/"+url.PathEscape(quizID)+"/attempts/validate", nil, &plan)
	return plan, err
}

func (c *HTTPClient) StartAttempt(ctx context.Context, quizID string) (quiz.StartResult, error) {
	var result quiz.StartResult
	err := c.doJSON(ctx, http.MethodPost, "/quizzes/"+url.PathEscape(quizID)+"/attempts", nil, &result)
	return result, err
}

func (c *HTTPClient) GetAttempt(ctx context.Context, attemptID string) (quiz.AttemptView, error) {
	var view quiz.AttemptView
	err := c.doJSON(ctx, http.MethodGet, "/attempts/"+url.PathEscape(attemptID), nil, &view)
	return view, err
}

func (c *HTTPClient) SubmitAnswer(ctx context.Context, attemptID, questionID string, selected []string) (quiz.SubmitResult, error) {
	var result quiz.SubmitResult
	request := submitAnswerRequest{QuestionID: questionID, SelectedOptionIDs: selected}
	err := c.doJSON(ctx, http.MethodPost, "/attempts/"+url.PathEscape(attemptID)+"/answers", request, &result)
	return result, err
}

func (c *HTTPClient) FinishAttempt(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	var attempt quiz.Attempt
	err := c.doJSON(ctx, http.MethodPost, "/attempts/"+url.PathEscape(attemptID)+"/finish", nil, &attempt)
	return attempt, err
}

func (c *HTTPClient) GetHistory(ctx context.Context, quizID string) (quiz.History, error) {
	var history quiz.History
	err := c.doJSON(ctx, http.MethodGet, "/quizzes/"+url.PathEscape(quizID)+"/history", nil, &history)
	return history, err
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return err
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		request.Header.Set(userIDHeader, c.userID)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{StatusCode: response.StatusCode}
		var payload errorResponse
		if err := json.NewDecoder(response.Body).Decode(&payload); err == nil && strings.TrimSpace(payload.Error) != "" {
			apiErr.Message = payload.Error
			apiErr.Details = payload.Details
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return &apiErr
	}

	if responseBody == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(responseBody)
}
