package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"timed-quiz/internal/quiz"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestDoJSONReturnsServiceUnavailable(t *testing.T) {
	client := NewHTTPClient("http://example.test", "alice", &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial error")
		}),
	})

	err := client.doJSON(context.Background(), http.MethodGet, "/healthz", nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable wrapper, got %v", err)
	}
}

func TestDoJSONReturnsAPIErrorWithDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(errorResponse{
			Error:   "max attempts reached",
			Details: map[string]any{"max_attempts": 1, "user_attempts": 1},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "alice", server.Client())
	_, err := client.StartAttempt(context.Background(), "quiz-1")
	if err == nil {
		t.Fatalf("expected API error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "max attempts reached" {
		t.Fatalf("unexpected API error: %+v", apiErr)
	}
	if apiErr.Details["max_attempts"] != float64(1) {
		t.Fatalf("details = %v", apiErr.Details)
	}
}

func TestSubmitAnswerSendsUserAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/attempts/a-1/answers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get(userIDHeader); got != "alice" {
			t.Errorf("user header = %q", got)
		}

		var request submitAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if request.QuestionID != "q1" || len(request.SelectedOptionIDs) != 2 {
			t.Errorf("unexpected request body: %+v", request)
		}

		_ = json.NewEncoder(w).Encode(quiz.SubmitResult{AttemptID: "a-1", QuestionID: "q1", IsCorrect: true, Marks: 4})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/", " alice ", server.Client())
	result, err := client.SubmitAnswer(context.Background(), "a-1", "q1", []string{"q1_a", "q1_c"})
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if !result.IsCorrect || result.Marks != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
