package quiz

import "time"

const (
	AvailabilityActive    = "active"
	AvailabilityScheduled = "scheduled"
	AvailabilityInactive  = "inactive"
)

type AttemptStatus string

const (
	StatusInProgress    AttemptStatus = "in-progress"
	StatusCompleted     AttemptStatus = "completed"
	StatusAutoSubmitted AttemptStatus = "auto-submitted"
)

// Window bounds when a scheduled quiz can be taken.
type Window struct {
	StartsAt time.Time `json:"starts_at" bson:"starts_at"`
	EndsAt   time.Time `json:"ends_at" bson:"ends_at"`
}

type UserAttempts struct {
	UserID string `json:"user_id" bson:"user_id"`
	Count  int    `json:"count" bson:"count"`
}

// Quiz is the catalog record the attempt engine reads. It is owned by the
// catalog; the engine only increments per-user attempt counters.
type Quiz struct {
	QuizID       string         `json:"quiz_id"`
	Title        string         `json:"title"`
	Availability string         `json:"availability"`
	Window       *Window        `json:"window,omitempty"`
	Duration     time.Duration  `json:"duration"`
	MaxAttempts  int            `json:"max_attempts"`
	TotalMarks   float64        `json:"total_marks"`
	QuestionIDs  []string       `json:"question_ids"`
	UserAttempts []UserAttempts `json:"user_attempts,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AttemptsBy returns how many attempts userID has started on q.
func (q Quiz) AttemptsBy(userID string) int {
	for _, item := range q.UserAttempts {
		if item.UserID == userID {
			return item.Count
		}
	}
	return 0
}

type Option struct {
	OptionID  string `json:"option_id" bson:"option_id"`
	Text      string `json:"text" bson:"text"`
	IsCorrect bool   `json:"-" bson:"is_correct"`
}

type Question struct {
	QuestionID     string   `json:"question_id"`
	QuizID         string   `json:"quiz_id"`
	Text           string   `json:"text"`
	Options        []Option `json:"options"`
	CorrectMarks   float64  `json:"correct_marks"`
	IncorrectMarks float64  `json:"incorrect_marks"`
}

// CorrectOptionIDs returns the ids of every option flagged correct.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, 1)
	for _, option := range q.Options {
		if option.IsCorrect {
			ids = append(ids, option.OptionID)
		}
	}
	return ids
}

type Answer struct {
	QuestionID        string    `json:"question_id" bson:"question_id"`
	SelectedOptionIDs []string  `json:"selected_option_ids" bson:"selected_option_ids"`
	IsCorrect         bool      `json:"is_correct" bson:"is_correct"`
	Marks             float64   `json:"marks" bson:"marks"`
	AnsweredAt        time.Time `json:"answered_at" bson:"answered_at"`
}

type Attempt struct {
	AttemptID       string        `json:"attempt_id"`
	UserID          string        `json:"user_id"`
	QuizID          string        `json:"quiz_id"`
	AttemptNumber   int           `json:"attempt_number"`
	StartTime       time.Time     `json:"start_time"`
	ExpectedEndTime time.Time     `json:"expected_end_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	TotalMarks      float64       `json:"total_marks"`
	Score           float64       `json:"score"`
	CorrectCount    int           `json:"correct_count"`
	IncorrectCount  int           `json:"incorrect_count"`
	Answers         []Answer      `json:"answers"`
	Completed       bool          `json:"completed"`
	AutoSubmitted   bool          `json:"auto_submitted"`
	Status          AttemptStatus `json:"status"`
}

func (a *Attempt) applyScore(summary ScoreSummary) {
	a.Score = summary.Score
	a.CorrectCount = summary.Correct
	a.IncorrectCount = summary.Incorrect
}
