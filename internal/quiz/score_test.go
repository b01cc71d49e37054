package quiz

import (
	"testing"
	"time"
)

func multiQuestion() Question {
	return Question{
		QuestionID: "q1",
		Options: []Option{
			{OptionID: "a", IsCorrect: true},
			{OptionID: "b"},
			{OptionID: "c", IsCorrect: true},
		},
		CorrectMarks:   4,
		IncorrectMarks: -1,
	}
}

func TestEvaluateAnswerRequiresExactSet(t *testing.T) {
	tests := []struct {
		name      string
		selected  []string
		wantOK    bool
		wantMarks float64
	}{
		{name: "exact set", selected: []string{"a", "c"}, wantOK: true, wantMarks: 4},
		{name: "exact set any order", selected: []string{"c", "a"}, wantOK: true, wantMarks: 4},
		{name: "duplicates ignored", selected: []string{"a", "c", "a"}, wantOK: true, wantMarks: 4},
		{name: "subset is wrong", selected: []string{"a"}, wantOK: false, wantMarks: -1},
		{name: "superset is wrong", selected: []string{"a", "b", "c"}, wantOK: false, wantMarks: -1},
		{name: "empty is wrong", selected: nil, wantOK: false, wantMarks: -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, marks := EvaluateAnswer(multiQuestion(), tc.selected)
			if ok != tc.wantOK || marks != tc.wantMarks {
				t.Fatalf("EvaluateAnswer(%v) = (%v, %v), want (%v, %v)", tc.selected, ok, marks, tc.wantOK, tc.wantMarks)
			}
		})
	}
}

func TestEvaluateAnswerWithoutCorrectOptionIsNeverCorrect(t *testing.T) {
	question := Question{Options: []Option{{OptionID: "a"}}, CorrectMarks: 1}
	if ok, _ := EvaluateAnswer(question, nil); ok {
		t.Fatalf("expected empty selection on a question without correct options to be incorrect")
	}
}

func TestCalculateScoreSumsMarks(t *testing.T) {
	answers := []Answer{
		{QuestionID: "q1", IsCorrect: true, Marks: 4},
		{QuestionID: "q2", IsCorrect: false, Marks: -1},
		{QuestionID: "q3", IsCorrect: true, Marks: 2},
	}

	summary := CalculateScore(answers)
	if summary.Score != 5 {
		t.Fatalf("score = %v, want 5", summary.Score)
	}
	if summary.Correct != 2 || summary.Incorrect != 1 || summary.Answered != 3 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.Correct+summary.Incorrect != len(answers) {
		t.Fatalf("counts do not add up to answers: %+v", summary)
	}
}

func TestMergeAnswersLastWriteWins(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	base := []Answer{
		{QuestionID: "q1", Marks: 1, AnsweredAt: t0},
		{QuestionID: "q2", Marks: 1, AnsweredAt: t0},
	}
	update := []Answer{
		{QuestionID: "q3", Marks: 1, AnsweredAt: t0.Add(time.Minute)},
		{QuestionID: "q1", Marks: -1, AnsweredAt: t0.Add(2 * time.Minute)},
	}
	later := []Answer{
		{QuestionID: "q1", Marks: 3, AnsweredAt: t0.Add(3 * time.Minute)},
	}

	merged := MergeAnswers(base, update, later)
	if len(merged) != 3 {
		t.Fatalf("expected 3 answers, got %d: %+v", len(merged), merged)
	}

	order := []string{"q1", "q2", "q3"}
	for idx, id := range order {
		if merged[idx].QuestionID != id {
			t.Fatalf("answer %d = %q, want %q", idx, merged[idx].QuestionID, id)
		}
	}
	if merged[0].Marks != 3 {
		t.Fatalf("q1 marks = %v, want latest 3", merged[0].Marks)
	}
	if base[0].Marks != 1 {
		t.Fatalf("MergeAnswers must not modify its input")
	}
}

func TestUpsertAnswerReportsReplacement(t *testing.T) {
	answers, replaced := upsertAnswer(nil, Answer{QuestionID: "q1"})
	if replaced || len(answers) != 1 {
		t.Fatalf("first upsert: replaced=%v len=%d", replaced, len(answers))
	}

	answers, replaced = upsertAnswer(answers, Answer{QuestionID: "q1", Marks: 2})
	if !replaced || len(answers) != 1 || answers[0].Marks != 2 {
		t.Fatalf("second upsert: replaced=%v answers=%+v", replaced, answers)
	}
}
