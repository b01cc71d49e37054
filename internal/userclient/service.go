package userclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"timed-quiz/internal/quiz"
)

const (
	defaultServer            = "http://127.0.0.1:8080"
	defaultHTTPTimeout       = 5 * time.Second
	defaultMaxInvalidAnswers = 3
)

type Config struct {
	UserID            string
	ServerURL         string
	MaxInvalidAnswers int
	HTTPTimeout       time.Duration
}

func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		return errors.New("user id is required")
	}

	serverURL := strings.TrimSpace(cfg.ServerURL)
	if serverURL == "" {
		serverURL = defaultServer
	}

	maxInvalidAnswers := cfg.MaxInvalidAnswers
	if maxInvalidAnswers <= 0 {
		maxInvalidAnswers = defaultMaxInvalidAnswers
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := NewHTTPClient(serverURL, userID, &http.Client{Timeout: timeout})
	session := &session{
		client:            client,
		reader:            bufio.NewReader(in),
		out:               out,
		serverURL:         serverURL,
		maxInvalidAnswers: maxInvalidAnswers,
	}

	fmt.Fprintf(out, "quiz-user-service\nuser=%s\nserver=%s\n\n", userID, serverURL)
	printHelp(out)

	for {
		fmt.Fprint(out, "\n> ")
		line, err := session.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		command := strings.ToLower(args[0])

		var commandErr error
		switch command {
		case "help":
			printHelp(out)
		case "exit":
			return nil
		case "play", "show", "finish", "history":
			if len(args) != 2 {
				fmt.Fprintf(out, "usage: %s <id>\n", command)
				continue
			}
			switch command {
			case "play":
				commandErr = session.play(ctx, args[1])
			case "show":
				commandErr = session.show(ctx, args[1])
			case "finish":
				commandErr = session.finish(ctx, args[1])
			case "history":
				commandErr = session.history(ctx, args[1])
			}
		default:
			fmt.Fprintln(out, "unknown command. type 'help' for usage.")
		}
		if commandErr != nil {
			fmt.Fprintf(out, "error: %v\n", describeClientError(commandErr, serverURL))
		}
	}
}

type session struct {
	client            *HTTPClient
	reader            *bufio.Reader
	out               io.Writer
	serverURL         string
	maxInvalidAnswers int
}

func (s *session) play(ctx context.Context, quizID string) error {
	plan, err := s.client.ValidateStart(ctx, quizID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			attemptID, _ := apiErr.Details["attempt_id"].(string)
			if attemptID == "" {
				return err
			}
			resume, promptErr := promptYesNo(s.reader, s.out, fmt.Sprintf("attempt %s is in progress. resume it? (yes/no): ", attemptID))
			if promptErr != nil || !resume {
				return promptErr
			}
			return s.answer(ctx, attemptID)
		}
		return err
	}

	fmt.Fprintf(s.out, "quiz %s: %d minutes, ends at %s\n", plan.QuizID, plan.DurationMinutes, plan.ExpectedEndTime.Local().Format(time.Kitchen))
	start, err := promptYesNo(s.reader, s.out, "start now? (yes/no): ")
	if err != nil || !start {
		return err
	}

	result, err := s.client.StartAttempt(ctx, quizID)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "attempt_id=%s (attempt #%d)\n", result.AttemptID, result.AttemptNumber)
	return s.answer(ctx, result.AttemptID)
}

// answer walks the unanswered questions of an attempt and finishes it.
func (s *session) answer(ctx context.Context, attemptID string) error {
	view, err := s.client.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}

	for _, question := range view.Questions {
		if question.Answer != nil {
			continue
		}

		fmt.Fprintln(s.out)
		fmt.Fprintf(s.out, "%s\n\n", question.Text)
		for idx, option := range question.Options {
			fmt.Fprintf(s.out, "%s. %s\n", optionLetter(idx), option.Text)
		}
		fmt.Fprintln(s.out)

		selected, ok := s.promptOptions(question)
		if !ok {
			fmt.Fprintln(s.out, "Skipping question after multiple invalid responses.")
			continue
		}

		result, err := s.client.SubmitAnswer(ctx, attemptID, question.QuestionID, selected)
		if isExpired(err) {
			fmt.Fprintln(s.out, "Time is up. Your attempt was submitted automatically.")
			return s.show(ctx, attemptID)
		}
		if err != nil {
			return err
		}

		if result.IsCorrect {
			fmt.Fprintln(s.out, "Correct!")
		} else {
			fmt.Fprintln(s.out, "Wrong.")
		}
		fmt.Fprintf(s.out, "Running score: %s/%s\n", formatScore(result.Running.Score), formatScore(result.TotalMarks))
	}

	return s.finish(ctx, attemptID)
}

func (s *session) promptOptions(question quiz.QuestionView) ([]string, bool) {
	for invalid := 0; invalid < s.maxInvalidAnswers; {
		indexes, ok := promptAnswer(s.reader, s.out, len(question.Options))
		if ok {
			selected := make([]string, len(indexes))
			for idx, optionIdx := range indexes {
				selected[idx] = question.Options[optionIdx].OptionID
			}
			return selected, true
		}
		invalid++
		if invalid < s.maxInvalidAnswers {
			fmt.Fprintf(s.out, "Invalid input. Attempts remaining: %d\n", s.maxInvalidAnswers-invalid)
		}
	}
	return nil, false
}

func (s *session) finish(ctx context.Context, attemptID string) error {
	attempt, err := s.client.FinishAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out)
	printSummary(s.out, attempt)
	return nil
}

func (s *session) show(ctx context.Context, attemptID string) error {
	view, err := s.client.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}

	printSummary(s.out, view.Attempt)
	if !view.Completed {
		fmt.Fprintf(s.out, "Time remaining: %s\n", (time.Duration(view.RemainingSeconds) * time.Second).String())
	}
	for idx, question := range view.Questions {
		status := "not answered"
		if question.Answer != nil {
			status = "marks " + formatScore(question.Answer.Marks)
		}
		fmt.Fprintf(s.out, "%d. %s [%s]\n", idx+1, question.Text, status)
		if len(question.CorrectOptionIDs) > 0 {
			fmt.Fprintf(s.out, "   correct: %s\n", correctLetters(question))
		}
	}
	return nil
}

func (s *session) history(ctx context.Context, quizID string) error {
	history, err := s.client.GetHistory(ctx, quizID)
	if err != nil {
		return err
	}

	summary := history.Summary
	fmt.Fprintf(s.out, "History for %s: %d attempts, %d completed\n", history.QuizID, summary.TotalAttempts, summary.CompletedAttempts)
	if summary.MaxAttempts > 0 {
		fmt.Fprintf(s.out, "Attempts remaining: %d of %d\n", summary.RemainingAttempts, summary.MaxAttempts)
	}
	if summary.CompletedAttempts > 0 {
		fmt.Fprintf(s.out, "Best: %s/%s  Average: %s\n",
			formatScore(summary.BestScore),
			formatScore(summary.TotalMarks),
			formatScore(summary.AverageScore),
		)
	}
	for _, attempt := range history.Attempts {
		fmt.Fprintf(s.out, "#%d %s %s score=%s started=%s\n",
			attempt.AttemptNumber,
			attempt.AttemptID,
			attempt.Status,
			formatScore(attempt.Score),
			attempt.StartTime.Format(time.RFC3339),
		)
	}
	return nil
}

func correctLetters(question quiz.QuestionView) string {
	correct := make(map[string]struct{}, len(question.CorrectOptionIDs))
	for _, id := range question.CorrectOptionIDs {
		correct[id] = struct{}{}
	}

	letters := make([]string, 0, len(correct))
	for idx, option := range question.Options {
		if _, ok := correct[option.OptionID]; ok {
			letters = append(letters, optionLetter(idx))
		}
	}
	return strings.Join(letters, ", ")
}
