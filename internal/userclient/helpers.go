package userclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"timed-quiz/internal/quiz"
)

// promptAnswer reads one or more comma separated option letters and returns
// the matching option indexes in input order without duplicates.
func promptAnswer(reader *bufio.Reader, out io.Writer, optionCount int) ([]int, bool) {
	if optionCount < 1 {
		return nil, false
	}

	maxLetter := byte('A' + optionCount - 1)
	fmt.Fprintf(out, "Your answer (A-%c, comma separated for several): ", maxLetter)

	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, false
	}

	seen := make(map[int]struct{})
	indexes := make([]int, 0, 1)
	for _, part := range strings.Split(line, ",") {
		answer := strings.ToUpper(strings.TrimSpace(part))
		if len(answer) != 1 {
			return nil, false
		}
		letter := answer[0]
		if letter < 'A' || letter > maxLetter {
			return nil, false
		}
		index := int(letter - 'A')
		if _, ok := seen[index]; ok {
			continue
		}
		seen[index] = struct{}{}
		indexes = append(indexes, index)
	}
	return indexes, true
}

func optionLetter(index int) string {
	return string(rune('A' + index))
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  play <quiz_id>")
	fmt.Fprintln(out, "  show <attempt_id>")
	fmt.Fprintln(out, "  finish <attempt_id>")
	fmt.Fprintln(out, "  history <quiz_id>")
	fmt.Fprintln(out, "  exit")
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func promptYesNo(reader *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	for {
		fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(out, "Please answer yes or no.")
		}
	}
}

func describeClientError(err error, serverURL string) error {
	if errors.Is(err, ErrServiceUnavailable) {
		return fmt.Errorf("quiz service unavailable at %s", serverURL)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden && apiErr.Details != nil {
		if maxAttempts, ok := apiErr.Details["max_attempts"]; ok {
			return fmt.Errorf("%s (%v of %v used)", apiErr.Message, apiErr.Details["user_attempts"], maxAttempts)
		}
	}
	return err
}

func isExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusGone
}

func printSummary(out io.Writer, attempt quiz.Attempt) {
	fmt.Fprintf(out, "Attempt %s (#%d) %s\n", attempt.AttemptID, attempt.AttemptNumber, attempt.Status)
	fmt.Fprintf(out, "Score: %s/%s (correct %d, incorrect %d)\n",
		formatScore(attempt.Score),
		formatScore(attempt.TotalMarks),
		attempt.CorrectCount,
		attempt.IncorrectCount,
	)
}
