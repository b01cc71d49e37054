package userclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"timed-quiz/internal/quiz"
)

// fakeQuizServer serves one attempt "a-1" of quiz "quiz-1" with two
// questions, recording every submitted answer.
type fakeQuizServer struct {
	mu         sync.Mutex
	submitted  []submitAnswerRequest
	finished   bool
	expireOn   string
	conflicted bool
}

func (f *fakeQuizServer) handler(t *testing.T) http.Handler {
	end := time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC)
	questions := []quiz.QuestionView{
		{QuestionID: "q1", Text: "2+2?", Options: []quiz.Option{{OptionID: "q1_a", Text: "4"}, {OptionID: "q1_b", Text: "5"}}},
		{QuestionID: "q2", Text: "Primes?", Options: []quiz.Option{{OptionID: "q2_a", Text: "2"}, {OptionID: "q2_b", Text: "4"}, {OptionID: "q2_c", Text: "5"}}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/quizzes/quiz-1/attempts/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(userIDHeader) != "alice" {
			t.Errorf("missing user header")
		}
		if f.conflicted {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "ongoing attempt exists", Details: map[string]any{"attempt_id": "a-1"}})
			return
		}
		_ = json.NewEncoder(w).Encode(quiz.StartPlan{CanStart: true, QuizID: "quiz-1", DurationMinutes: 10, ExpectedEndTime: end})
	})
	mux.HandleFunc("/quizzes/quiz-1/attempts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(quiz.StartResult{AttemptID: "a-1", QuizID: "quiz-1", AttemptNumber: 1, ExpectedEndTime: end})
	})
	mux.HandleFunc("/attempts/a-1", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		view := quiz.AttemptView{
			Attempt:   quiz.Attempt{AttemptID: "a-1", AttemptNumber: 1, Status: quiz.StatusInProgress, TotalMarks: 8},
			Questions: questions,
		}
		if f.finished {
			view.Completed = true
			view.Status = quiz.StatusAutoSubmitted
			view.Score = 4
		} else {
			view.RemainingSeconds = 300
		}
		_ = json.NewEncoder(w).Encode(view)
	})
	mux.HandleFunc("/attempts/a-1/answers", func(w http.ResponseWriter, r *http.Request) {
		var request submitAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode answer: %v", err)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if request.QuestionID == f.expireOn {
			f.finished = true
			w.WriteHeader(http.StatusGone)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "time expired"})
			return
		}
		f.submitted = append(f.submitted, request)
		_ = json.NewEncoder(w).Encode(quiz.SubmitResult{
			AttemptID:  "a-1",
			QuestionID: request.QuestionID,
			IsCorrect:  true,
			Marks:      4,
			Running:    quiz.ScoreSummary{Score: float64(4 * len(f.submitted))},
			TotalMarks: 8,
		})
	})
	mux.HandleFunc("/attempts/a-1/finish", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.finished = true
		_ = json.NewEncoder(w).Encode(quiz.Attempt{
			AttemptID:     "a-1",
			AttemptNumber: 1,
			Status:        quiz.StatusCompleted,
			Completed:     true,
			Score:         float64(4 * len(f.submitted)),
			TotalMarks:    8,
			CorrectCount:  len(f.submitted),
		})
	})
	return mux
}

func runAgainst(t *testing.T, fake *fakeQuizServer, input string) string {
	t.Helper()

	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	var out bytes.Buffer
	err := Run(context.Background(), strings.NewReader(input), &out, Config{UserID: "alice", ServerURL: server.URL})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out.String()
}

func TestPromptAnswer(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader(" b \n"))
	var out bytes.Buffer

	indexes, ok := promptAnswer(reader, &out, 2)
	if !ok || len(indexes) != 1 || indexes[0] != 1 {
		t.Fatalf("promptAnswer single = (%v, %t), want ([1], true)", indexes, ok)
	}

	reader = bufio.NewReader(strings.NewReader("c, a, c\n"))
	indexes, ok = promptAnswer(reader, &out, 3)
	if !ok || len(indexes) != 2 || indexes[0] != 2 || indexes[1] != 0 {
		t.Fatalf("promptAnswer multiple = (%v, %t), want ([2 0], true)", indexes, ok)
	}

	reader = bufio.NewReader(strings.NewReader("z\n"))
	if indexes, ok = promptAnswer(reader, &out, 2); ok || indexes != nil {
		t.Fatalf("promptAnswer invalid = (%v, %t), want (nil, false)", indexes, ok)
	}
}

func TestPromptYesNoRetriesUntilValid(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("maybe\nyes\n"))
	var out bytes.Buffer

	ok, err := promptYesNo(reader, &out, "continue? ")
	if err != nil {
		t.Fatalf("promptYesNo returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected yes result")
	}
	if !strings.Contains(out.String(), "Please answer yes or no.") {
		t.Fatalf("expected retry hint in output, got: %s", out.String())
	}
}

func TestDescribeClientErrorAddsAttemptCounts(t *testing.T) {
	err := describeClientError(&APIError{
		StatusCode: http.StatusForbidden,
		Message:    "max attempts reached",
		Details:    map[string]any{"max_attempts": float64(2), "user_attempts": float64(2)},
	}, "http://x")
	if err.Error() != "max attempts reached (2 of 2 used)" {
		t.Fatalf("message = %q", err.Error())
	}

	err = describeClientError(errors.Join(ErrServiceUnavailable, errors.New("dial")), "http://x")
	if err.Error() != "quiz service unavailable at http://x" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestRunRequiresUserID(t *testing.T) {
	var out bytes.Buffer
	if err := Run(context.Background(), strings.NewReader(""), &out, Config{}); err == nil {
		t.Fatalf("expected error without user id")
	}
}

func TestPlayAnswersEveryQuestionAndFinishes(t *testing.T) {
	fake := &fakeQuizServer{}
	text := runAgainst(t, fake, "play quiz-1\nyes\nA\nA,C\nexit\n")

	if len(fake.submitted) != 2 {
		t.Fatalf("expected two answers, got %+v", fake.submitted)
	}
	if got := fake.submitted[1].SelectedOptionIDs; len(got) != 2 || got[0] != "q2_a" || got[1] != "q2_c" {
		t.Fatalf("unexpected multi-select answer: %v", got)
	}
	if !strings.Contains(text, "Correct!") || !strings.Contains(text, "Running score: 8/8") {
		t.Fatalf("expected feedback in output, got: %s", text)
	}
	if !strings.Contains(text, "Score: 8/8 (correct 2, incorrect 0)") {
		t.Fatalf("expected final score, got: %s", text)
	}
}

func TestPlaySkipsAfterInvalidAnswers(t *testing.T) {
	fake := &fakeQuizServer{}
	text := runAgainst(t, fake, "play quiz-1\nyes\nx\ny\nz\nB\nexit\n")

	if !strings.Contains(text, "Skipping question after multiple invalid responses.") {
		t.Fatalf("expected skip message, got: %s", text)
	}
	if len(fake.submitted) != 1 || fake.submitted[0].QuestionID != "q2" {
		t.Fatalf("expected only q2 answered, got %+v", fake.submitted)
	}
}

func TestPlayStopsWhenTimeExpires(t *testing.T) {
	fake := &fakeQuizServer{expireOn: "q2"}
	text := runAgainst(t, fake, "play quiz-1\nyes\nA\nB\nexit\n")

	if !strings.Contains(text, "Time is up. Your attempt was submitted automatically.") {
		t.Fatalf("expected expiry message, got: %s", text)
	}
	if !strings.Contains(text, "auto-submitted") {
		t.Fatalf("expected final attempt status, got: %s", text)
	}
}

func TestPlayResumesOngoingAttempt(t *testing.T) {
	fake := &fakeQuizServer{conflicted: true}
	text := runAgainst(t, fake, "play quiz-1\nyes\nA\nA\nexit\n")

	if !strings.Contains(text, "attempt a-1 is in progress. resume it?") {
		t.Fatalf("expected resume prompt, got: %s", text)
	}
	if len(fake.submitted) != 2 {
		t.Fatalf("expected both questions answered, got %+v", fake.submitted)
	}
}
