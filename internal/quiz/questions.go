package quiz

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"math/rand"
	"strings"
	"time"

	"timed-quiz/internal/opentdb"
)

// QuizDraft describes a quiz to be assembled from fetched trivia questions.
type QuizDraft struct {
	QuizID         string
	Title          string
	Availability   string
	Window         *Window
	Duration       time.Duration
	MaxAttempts    int
	CorrectMarks   float64
	IncorrectMarks float64
}

// BuildQuiz turns raw trivia questions into a catalog quiz and its questions.
// TotalMarks is the best possible score.
func BuildQuiz(draft QuizDraft, raw []opentdb.RawQuestion, now time.Time) (Quiz, []Question) {
	if draft.Availability == "" {
		draft.Availability = AvailabilityActive
	}
	if draft.CorrectMarks == 0 {
		draft.CorrectMarks = 1
	}

	questions := BuildQuestions(draft.QuizID, raw)
	ids := make([]string, 0, len(questions))
	for idx := range questions {
		questions[idx].CorrectMarks = draft.CorrectMarks
		questions[idx].IncorrectMarks = draft.IncorrectMarks
		ids = append(ids, questions[idx].QuestionID)
	}

	return Quiz{
		QuizID:       draft.QuizID,
		Title:        draft.Title,
		Availability: draft.Availability,
		Window:       draft.Window,
		Duration:     draft.Duration,
		MaxAttempts:  draft.MaxAttempts,
		TotalMarks:   draft.CorrectMarks * float64(len(questions)),
		QuestionIDs:  ids,
		CreatedAt:    now.UTC(),
	}, questions
}

func BuildQuestions(quizID string, raw []opentdb.RawQuestion) []Question {
	questions := make([]Question, 0, len(raw))
	for _, item := range raw {
		question := buildQuestion(item)
		question.QuizID = quizID
		question.QuestionID = MakeQuestionID(question)
		for idx := range question.Options {
			question.Options[idx].OptionID = question.QuestionID + "_" + string(rune('a'+idx))
		}
		questions = append(questions, question)
	}
	return questions
}

// MakeQuestionID derives a stable id from the quiz, prompt and option order.
func MakeQuestionID(question Question) string {
	var keyBuilder strings.Builder
	keyBuilder.WriteString(question.QuizID)
	keyBuilder.WriteString("|")
	keyBuilder.WriteString(question.Text)
	for _, option := range question.Options {
		keyBuilder.WriteString("|")
		keyBuilder.WriteString(option.Text)
	}

	hash := sha1.Sum([]byte(keyBuilder.String()))
	return "q_" + hex.EncodeToString(hash[:])[:12]
}

func buildQuestion(raw opentdb.RawQuestion) Question {
	options := make([]Option, 0, len(raw.IncorrectAnswers)+1)
	for _, incorrect := range raw.IncorrectAnswers {
		options = append(options, Option{Text: html.UnescapeString(incorrect)})
	}
	options = append(options, Option{Text: html.UnescapeString(raw.CorrectAnswer), IsCorrect: true})

	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		Text:    html.UnescapeString(raw.Question),
		Options: options,
	}
}
