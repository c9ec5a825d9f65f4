package http

import (
	"quizgenius-service/internal/domain"
	"quizgenius-service/internal/quiz"
)

// questionView is the question shown to a participant. It never carries the answer.
type questionView struct {
	ID      string              `json:"id"`
	Text    string              `json:"text"`
	Type    domain.QuestionType `json:"type"`
	Options []string            `json:"options"`
	Points  int                 `json:"points"`
}

type resultView struct {
	Score      int           `json:"score"`
	MaxScore   int           `json:"maxScore"`
	Percentage int           `json:"percentage"`
	Message    string        `json:"message"`
	Review     []quiz.Review `json:"review"`
}

type sessionView struct {
	SessionID      string         `json:"sessionId"`
	QuizID         string         `json:"quizId"`
	Title          string         `json:"title"`
	Phase          quiz.Phase     `json:"phase"`
	CurrentIndex   int            `json:"currentIndex"`
	TotalQuestions int            `json:"totalQuestions"`
	TimeRemaining  int            `json:"timeRemaining"`
	TimeBudget     int            `json:"timeBudget"`
	Question       *questionView  `json:"question,omitempty"`
	SelectedOption string         `json:"selectedOption,omitempty"`
	Answers        domain.Answers `json:"answers"`
	Result         *resultView    `json:"result,omitempty"`
}

func newSessionView(sessionID string, s quiz.Session) sessionView {
	v := sessionView{
		SessionID:      sessionID,
		QuizID:         s.QuizID,
		Title:          s.Title,
		Phase:          s.Phase,
		CurrentIndex:   s.Current,
		TotalQuestions: len(s.Questions),
		TimeRemaining:  s.Timer.Remaining,
		TimeBudget:     s.Timer.Budget,
		Answers:        s.Answers,
	}
	if q, ok := s.CurrentQuestion(); ok {
		v.Question = &questionView{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Options: q.Options,
			Points:  q.EffectivePoints(),
		}
		v.SelectedOption = s.Answers[s.Current]
	}
	if s.Phase == quiz.PhaseFinished {
		v.Result = &resultView{
			Score:      s.Result.Earned,
			MaxScore:   s.Result.Total,
			Percentage: s.Result.Percentage(),
			Message:    s.Result.Message(),
			Review:     quiz.Breakdown(s.Questions, s.Answers),
		}
	}
	return v
}
