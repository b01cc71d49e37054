package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"timed-quiz/internal/quiz"
)

func (s *Store) CreateAttempt(ctx context.Context, attempt quiz.Attempt) error {
	if _, err := s.attempts.InsertOne(ctx, newAttemptDoc(attempt)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return quiz.ErrAttemptInProgress
		}
		return err
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (quiz.Attempt, error) {
	var doc attemptDoc
	if err := s.attempts.FindOne(ctx, bson.M{"_id": attemptID}).Decode(&doc); err != nil {
		return quiz.Attempt{}, notFound(err, quiz.ErrAttemptNotFound)
	}
	return doc.toAttempt(), nil
}

func (s *Store) FindOpenAttempt(ctx context.Context, userID, quizID string) (quiz.Attempt, error) {
	var doc attemptDoc
	err := s.attempts.FindOne(ctx, bson.M{"user_id": userID, "quiz_id": quizID, "completed": false}).Decode(&doc)
	if err != nil {
		return quiz.Attempt{}, notFound(err, quiz.ErrAttemptNotFound)
	}
	return doc.toAttempt(), nil
}

// UpdateAttempt replaces the whole document, and only while it is still open.
func (s *Store) UpdateAttempt(ctx context.Context, attempt quiz.Attempt) error {
	result, err := s.attempts.ReplaceOne(ctx, bson.M{"_id": attempt.AttemptID, "completed": false}, newAttemptDoc(attempt))
	if err != nil {
		return err
	}
	if result.MatchedCount == 1 {
		return nil
	}

	exists, err := s.attempts.CountDocuments(ctx, bson.M{"_id": attempt.AttemptID})
	if err != nil {
		return err
	}
	if exists == 0 {
		return quiz.ErrAttemptNotFound
	}
	return quiz.ErrAttemptCompleted
}

func (s *Store) ListOverdueAttempts(ctx context.Context, now time.Time) ([]quiz.Attempt, error) {
	return s.findAttempts(
		ctx,
		bson.M{"completed": false, "expected_end_time": bson.M{"$lte": now.UTC()}},
		options.Find().SetSort(bson.D{{Key: "expected_end_time", Value: 1}}),
	)
}

func (s *Store) CountOpenAttempts(ctx context.Context) (int, error) {
	count, err := s.attempts.CountDocuments(ctx, bson.M{"completed": false})
	return int(count), err
}

func (s *Store) ListUserAttempts(ctx context.Context, userID, quizID string) ([]quiz.Attempt, error) {
	return s.findAttempts(
		ctx,
		bson.M{"user_id": userID, "quiz_id": quizID},
		options.Find().SetSort(bson.D{{Key: "attempt_number", Value: -1}, {Key: "start_time", Value: -1}}),
	)
}

func (s *Store) findAttempts(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]quiz.Attempt, error) {
	cursor, err := s.attempts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []attemptDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	attempts := make([]quiz.Attempt, 0, len(docs))
	for _, doc := range docs {
		attempts = append(attempts, doc.toAttempt())
	}
	return attempts, nil
}
