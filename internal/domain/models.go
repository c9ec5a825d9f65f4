package domain

import "time"

// QuestionType distinguishes free multiple-choice questions from fixed True/False ones.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "MCQ"
	QuestionTrueFalse QuestionType = "TRUE_FALSE"
)

// DefaultPoints is awarded for a question whose points are unset or non-positive.
const DefaultPoints = 10

// TrueFalseOptions is the fixed option list of a TRUE_FALSE question.
func TrueFalseOptions() []string {
	return []string{"True", "False"}
}

// Question is a single prompt with an ordered option list and one correct answer.
type Question struct {
	ID            string       `json:"id" bson:"id"`
	Text          string       `json:"text" bson:"text" validate:"required"`
	Type          QuestionType `json:"type" bson:"type" validate:"oneof=MCQ TRUE_FALSE"`
	Options       []string     `json:"options" bson:"options" validate:"min=2,dive,required"`
	CorrectAnswer string       `json:"correctAnswer" bson:"correctAnswer" validate:"required"`
	Points        int          `json:"points" bson:"points"` // defaults to 10 if zero
}

// EffectivePoints returns the points used for scoring.
func (q Question) EffectivePoints() int {
	if q.Points > 0 {
		return q.Points
	}
	return DefaultPoints
}

// Quiz is an authored, ordered collection of questions.
type Quiz struct {
	ID          string     `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title" validate:"required"`
	Description string     `json:"description" bson:"description"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	Questions   []Question `json:"questions" bson:"questions" validate:"dive"`
}

// Playable reports whether the quiz has at least one question.
func (q Quiz) Playable() bool {
	return len(q.Questions) > 0
}

// MaxScore sums the effective points of every question.
func (q Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.EffectivePoints()
	}
	return total
}

// Answers maps a zero-based position in the played ordering to the selected option.
// Absent positions are unanswered.
type Answers map[int]string

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Attempt is the persisted record of one completed playthrough.
type Attempt struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	QuizID    string    `json:"quizId"`
	Score     int       `json:"score"`
	MaxScore  int       `json:"maxScore"`
	Timestamp time.Time `json:"timestamp"`
	Answers   Answers   `json:"answers"`
}

// Role is the kind of principal driving a request.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleStudent   Role = "student"
	RoleAnonymous Role = "anonymous"
)

// Principal identifies who is acting.
type Principal struct {
	Role     Role   `json:"role"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

// Anonymous is the principal used when no credentials are presented.
func Anonymous() Principal {
	return Principal{Role: RoleAnonymous}
}

// IsAdmin reports whether the principal may author quizzes.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// RecordsAttempts reports whether finished sessions should be persisted for this principal.
// Admins previewing a quiz and anonymous players never generate attempts.
func (p Principal) RecordsAttempts() bool {
	return p.Role == RoleStudent && p.UserID != ""
}

// User is a registered student account.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}
