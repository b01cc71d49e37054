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

// CreateQuiz upserts the quiz and replaces its questions. Per-user attempt
// counters survive a reseed.
func (s *Store) CreateQuiz(ctx context.Context, item quiz.Quiz, questions []quiz.Question) error {
	if item.QuizID == "" {
		return errors.New("quiz id is required")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	ids := make([]string, 0, len(questions))
	docs := make([]any, 0, len(questions))
	for idx, question := range questions {
		question.QuizID = item.QuizID
		if question.QuestionID == "" {
			question.QuestionID = quiz.MakeQuestionID(question)
		}
		ids = append(ids, question.QuestionID)
		docs = append(docs, questionDoc{
			ID:             question.QuestionID,
			QuizID:         item.QuizID,
			Position:       idx,
			Text:           question.Text,
			Options:        question.Options,
			CorrectMarks:   question.CorrectMarks,
			IncorrectMarks: question.IncorrectMarks,
		})
	}

	set := bson.M{
		"title":            item.Title,
		"availability":     item.Availability,
		"duration_seconds": int64(item.Duration / time.Second),
		"max_attempts":     item.MaxAttempts,
		"total_marks":      item.TotalMarks,
		"question_ids":     ids,
		"created_at":       item.CreatedAt.UTC(),
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"user_attempts": bson.A{}},
	}
	if item.Window != nil {
		set["window"] = item.Window
	} else {
		update["$unset"] = bson.M{"window": ""}
	}

	if _, err := s.quizzes.UpdateOne(ctx, bson.M{"_id": item.QuizID}, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}

	if _, err := s.questions.DeleteMany(ctx, bson.M{"quiz_id": item.QuizID}); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := s.questions.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (quiz.Quiz, error) {
	var doc quizDoc
	if err := s.quizzes.FindOne(ctx, bson.M{"_id": quizID}).Decode(&doc); err != nil {
		return quiz.Quiz{}, notFound(err, quiz.ErrQuizNotFound)
	}
	return doc.toQuiz(), nil
}

func (s *Store) GetQuestion(ctx context.Context, questionID string) (quiz.Question, error) {
	var doc questionDoc
	if err := s.questions.FindOne(ctx, bson.M{"_id": questionID}).Decode(&doc); err != nil {
		return quiz.Question{}, notFound(err, quiz.ErrQuestionNotFound)
	}
	return doc.toQuestion(), nil
}

// GetQuestions returns the questions found, in the order their ids were given.
func (s *Store) GetQuestions(ctx context.Context, questionIDs []string) ([]quiz.Question, error) {
	if len(questionIDs) == 0 {
		return []quiz.Question{}, nil
	}

	cursor, err := s.questions.Find(ctx, bson.M{"_id": bson.M{"$in": questionIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []questionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	byID := make(map[string]questionDoc, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	ordered := make([]quiz.Question, 0, len(docs))
	for _, id := range questionIDs {
		if doc, ok := byID[id]; ok {
			ordered = append(ordered, doc.toQuestion())
			delete(byID, id)
		}
	}
	return ordered, nil
}

// IncrementUserAttempt bumps an existing counter below the limit, or pushes a
// fresh one. Both are single-document updates, so the limit holds under
// concurrent starts.
func (s *Store) IncrementUserAttempt(ctx context.Context, quizID, userID string, maxAttempts int) (int, error) {
	match := bson.M{"user_id": userID}
	if maxAttempts > 0 {
		match["count"] = bson.M{"$lt": maxAttempts}
	}

	for try := 0; try < 2; try++ {
		var doc quizDoc
		err := s.quizzes.FindOneAndUpdate(
			ctx,
			bson.M{"_id": quizID, "user_attempts": bson.M{"$elemMatch": match}},
			bson.M{"$inc": bson.M{"user_attempts.$.count": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&doc)
		if err == nil {
			return doc.toQuiz().AttemptsBy(userID), nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return 0, err
		}

		result, err := s.quizzes.UpdateOne(
			ctx,
			bson.M{"_id": quizID, "user_attempts.user_id": bson.M{"$ne": userID}},
			bson.M{"$push": bson.M{"user_attempts": quiz.UserAttempts{UserID: userID, Count: 1}}},
		)
		if err != nil {
			return 0, err
		}
		if result.ModifiedCount == 1 {
			return 1, nil
		}
	}

	exists, err := s.quizzes.CountDocuments(ctx, bson.M{"_id": quizID})
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, quiz.ErrQuizNotFound
	}
	return 0, quiz.ErrMaxAttempts
}

func (s *Store) ReleaseUserAttempt(ctx context.Context, quizID, userID string) error {
	_, err := s.quizzes.UpdateOne(
		ctx,
		bson.M{"_id": quizID, "user_attempts": bson.M{"$elemMatch": bson.M{"user_id": userID, "count": bson.M{"$gt": 0}}}},
		bson.M{"$inc": bson.M{"user_attempts.$.count": -1}},
	)
	return err
}
