// Package mongostore is the MongoDB durable store for quizzes and attempts.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"timed-quiz/internal/quiz"
)

type Store struct {
	client    *mongo.Client
	quizzes   *mongo.Collection
	questions *mongo.Collection
	attempts  *mongo.Collection
}

// Connect dials uri, verifies the connection and ensures indexes on dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	store := New(client, client.Database(dbName))
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:    client,
		quizzes:   db.Collection("quizzes"),
		questions: db.Collection("questions"),
		attempts:  db.Collection("attempts"),
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// At most one open attempt per user and quiz.
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "quiz_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_open_attempt").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"completed": false}),
		},
		{
			Keys: bson.D{{Key: "completed", Value: 1}, {Key: "expected_end_time", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "quiz_id", Value: 1}, {Key: "attempt_number", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create attempt indexes: %w", err)
	}

	_, err = s.questions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "quiz_id", Value: 1}, {Key: "position", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create question indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type quizDoc struct {
	ID              string              `bson:"_id"`
	Title           string              `bson:"title"`
	Availability    string              `bson:"availability"`
	Window          *quiz.Window        `bson:"window,omitempty"`
	DurationSeconds int64               `bson:"duration_seconds"`
	MaxAttempts     int                 `bson:"max_attempts"`
	TotalMarks      float64             `bson:"total_marks"`
	QuestionIDs     []string            `bson:"question_ids"`
	UserAttempts    []quiz.UserAttempts `bson:"user_attempts"`
	CreatedAt       time.Time           `bson:"created_at"`
}

func (d quizDoc) toQuiz() quiz.Quiz {
	return quiz.Quiz{
		QuizID:       d.ID,
		Title:        d.Title,
		Availability: d.Availability,
		Window:       d.Window,
		Duration:     time.Duration(d.DurationSeconds) * time.Second,
		MaxAttempts:  d.MaxAttempts,
		TotalMarks:   d.TotalMarks,
		QuestionIDs:  d.QuestionIDs,
		UserAttempts: d.UserAttempts,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

type questionDoc struct {
	ID             string        `bson:"_id"`
	QuizID         string        `bson:"quiz_id"`
	Position       int           `bson:"position"`
	Text           string        `bson:"text"`
	Options        []quiz.Option `bson:"options"`
	CorrectMarks   float64       `bson:"correct_marks"`
	IncorrectMarks float64       `bson:"incorrect_marks"`
}

func (d questionDoc) toQuestion() quiz.Question {
	return quiz.Question{
		QuestionID:     d.ID,
		QuizID:         d.QuizID,
		Text:           d.Text,
		Options:        d.Options,
		CorrectMarks:   d.CorrectMarks,
		IncorrectMarks: d.IncorrectMarks,
	}
}

type attemptDoc struct {
	ID              string        `bson:"_id"`
	UserID          string        `bson:"user_id"`
	QuizID          string        `bson:"quiz_id"`
	AttemptNumber   int           `bson:"attempt_number"`
	StartTime       time.Time     `bson:"start_time"`
	ExpectedEndTime time.Time     `bson:"expected_end_time"`
	EndTime         *time.Time    `bson:"end_time,omitempty"`
	TotalMarks      float64       `bson:"total_marks"`
	Score           float64       `bson:"score"`
	CorrectCount    int           `bson:"correct_count"`
	IncorrectCount  int           `bson:"incorrect_count"`
	Answers         []quiz.Answer `bson:"answers"`
	Completed       bool          `bson:"completed"`
	AutoSubmitted   bool          `bson:"auto_submitted"`
	Status          string        `bson:"status"`
}

func newAttemptDoc(attempt quiz.Attempt) attemptDoc {
	answers := attempt.Answers
	if answers == nil {
		answers = []quiz.Answer{}
	}
	return attemptDoc{
		ID:              attempt.AttemptID,
		UserID:          attempt.UserID,
		QuizID:          attempt.QuizID,
		AttemptNumber:   attempt.AttemptNumber,
		StartTime:       attempt.StartTime.UTC(),
		ExpectedEndTime: attempt.ExpectedEndTime.UTC(),
		EndTime:         attempt.EndTime,
		TotalMarks:      attempt.TotalMarks,
		Score:           attempt.Score,
		CorrectCount:    attempt.CorrectCount,
		IncorrectCount:  attempt.IncorrectCount,
		Answers:         answers,
		Completed:       attempt.Completed,
		AutoSubmitted:   attempt.AutoSubmitted,
		Status:          string(attempt.Status),
	}
}

func (d attemptDoc) toAttempt() quiz.Attempt {
	answers := d.Answers
	if answers == nil {
		answers = []quiz.Answer{}
	}
	var end *time.Time
	if d.EndTime != nil {
		utc := d.EndTime.UTC()
		end = &utc
	}
	return quiz.Attempt{
		AttemptID:       d.ID,
		UserID:          d.UserID,
		QuizID:          d.QuizID,
		AttemptNumber:   d.AttemptNumber,
		StartTime:       d.StartTime.UTC(),
		ExpectedEndTime: d.ExpectedEndTime.UTC(),
		EndTime:         end,
		TotalMarks:      d.TotalMarks,
		Score:           d.Score,
		CorrectCount:    d.CorrectCount,
		IncorrectCount:  d.IncorrectCount,
		Answers:         answers,
		Completed:       d.Completed,
		AutoSubmitted:   d.AutoSubmitted,
		Status:          quiz.AttemptStatus(d.Status),
	}
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return sentinel
	}
	return err
}
