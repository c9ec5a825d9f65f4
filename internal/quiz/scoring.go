package quiz

import (
	"math"

	"quizgenius-service/internal/domain"
)

// Result is the outcome of scoring one playthrough.
type Result struct {
	Earned int `json:"score"`
	Total  int `json:"maxScore"`
}

// Score walks every position of questions and awards its points when the recorded
// answer equals the correct answer exactly. Unanswered positions earn nothing.
func Score(questions []domain.Question, answers domain.Answers) Result {
	var res Result
	for i, q := range questions {
		points := q.EffectivePoints()
		res.Total += points
		if answer, ok := answers[i]; ok && answer == q.CorrectAnswer {
			res.Earned += points
		}
	}
	return res
}

// Percentage is round(100*earned/total), or 0 when nothing was at stake.
func (r Result) Percentage() int {
	if r.Total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(r.Earned) / float64(r.Total)))
}

// Message is the headline shown with a finished result.
func (r Result) Message() string {
	switch p := r.Percentage(); {
	case p >= 80:
		return "Excellent work!"
	case p >= 60:
		return "Well done!"
	default:
		return "Good effort!"
	}
}

// Review describes how one position was answered.
type Review struct {
	Position      int    `json:"position"`
	Text          string `json:"text"`
	Points        int    `json:"points"`
	Answer        string `json:"answer,omitempty"`
	Skipped       bool   `json:"skipped"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
}

// Breakdown reports per-position correctness using the same rule as Score.
func Breakdown(questions []domain.Question, answers domain.Answers) []Review {
	out := make([]Review, 0, len(questions))
	for i, q := range questions {
		answer, ok := answers[i]
		out = append(out, Review{
			Position:      i,
			Text:          q.Text,
			Points:        q.EffectivePoints(),
			Answer:        answer,
			Skipped:       !ok,
			Correct:       ok && answer == q.CorrectAnswer,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return out
}
