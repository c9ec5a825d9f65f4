package quiz

import (
	"math/rand"

	"quizgenius-service/internal/domain"
)

// Shuffle returns a uniformly random permutation of questions (Fisher-Yates).
// The input slice is left untouched. A nil rnd uses the global source.
func Shuffle(questions []domain.Question, rnd *rand.Rand) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)

	intn := rand.Intn
	if rnd != nil {
		intn = rnd.Intn
	}
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
