package quiz

// ScoreSummary is the aggregate of a set of answers.
type ScoreSummary struct {
	Score     float64 `json:"score"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Answered  int     `json:"answered"`
}

// EvaluateAnswer grades a selection against a question. A selection is
// correct only when it is exactly the question's correct option set; there is
// no partial credit.
func EvaluateAnswer(question Question, selected []string) (bool, float64) {
	correct := make(map[string]struct{})
	for _, id := range question.CorrectOptionIDs() {
		correct[id] = struct{}{}
	}

	chosen := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		chosen[id] = struct{}{}
	}

	isCorrect := len(correct) > 0 && len(chosen) == len(correct)
	if isCorrect {
		for id := range chosen {
			if _, ok := correct[id]; !ok {
				isCorrect = false
				break
			}
		}
	}

	if isCorrect {
		return true, question.CorrectMarks
	}
	return false, question.IncorrectMarks
}

// CalculateScore sums marks and counts correct and incorrect answers.
func CalculateScore(answers []Answer) ScoreSummary {
	var summary ScoreSummary
	for _, answer := range answers {
		summary.Score += answer.Marks
		if answer.IsCorrect {
			summary.Correct++
		} else {
			summary.Incorrect++
		}
	}
	summary.Answered = len(answers)
	return summary
}

// MergeAnswers upserts every answer of each update batch into base by
// question id. A later answer replaces an earlier one in place, so the result
// keeps first-insertion order and holds one answer per question.
func MergeAnswers(base []Answer, updates ...[]Answer) []Answer {
	merged := make([]Answer, 0, len(base))
	index := make(map[string]int, len(base))

	upsert := func(answer Answer) {
		if idx, ok := index[answer.QuestionID]; ok {
			merged[idx] = answer
			return
		}
		index[answer.QuestionID] = len(merged)
		merged = append(merged, answer)
	}

	for _, answer := range base {
		upsert(answer)
	}
	for _, batch := range updates {
		for _, answer := range batch {
			upsert(answer)
		}
	}
	return merged
}

// upsertAnswer reports whether answer replaced an existing one.
func upsertAnswer(answers []Answer, answer Answer) ([]Answer, bool) {
	for idx := range answers {
		if answers[idx].QuestionID == answer.QuestionID {
			answers[idx] = answer
			return answers, true
		}
	}
	return append(answers, answer), false
}
