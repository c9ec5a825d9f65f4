package quiz

import "quizgenius-service/internal/domain"

// Phase is the lifecycle stage of a playthrough.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
	// PhaseNotFound is terminal and cannot be retaken.
	PhaseNotFound Phase = "not_found"
)

// Session is the state of one playthrough. Values are never mutated in place by Apply:
// Answers is copied on write, Questions is shared read-only, so a Session handed to
// another goroutine stays consistent.
type Session struct {
	QuizID    string            `json:"quizId"`
	Title     string            `json:"title"`
	Questions []domain.Question `json:"-"`
	Current   int               `json:"currentIndex"`
	Answers   domain.Answers    `json:"answers"`
	Phase     Phase             `json:"phase"`
	Timer     Countdown         `json:"timer"`
	Result    Result            `json:"result"`
}

// NewSession starts a playthrough in PhaseLoading.
func NewSession(quizID string, budget int) Session {
	return Session{
		QuizID:  quizID,
		Answers: domain.Answers{},
		Phase:   PhaseLoading,
		Timer:   NewCountdown(budget),
	}
}

// CurrentQuestion returns the question at the current position while in progress.
func (s Session) CurrentQuestion() (domain.Question, bool) {
	if s.Phase != PhaseInProgress || s.Current < 0 || s.Current >= len(s.Questions) {
		return domain.Question{}, false
	}
	return s.Questions[s.Current], true
}

// IsLast reports whether the current position is the final one.
func (s Session) IsLast() bool {
	return s.Current == len(s.Questions)-1
}

type EventType int

const (
	EventLoaded EventType = iota + 1
	EventLoadFailed
	EventSelect
	EventAdvance
	EventBack
	EventTick
	EventRetake
)

func (t EventType) String() string {
	switch t {
	case EventLoaded:
		return "loaded"
	case EventLoadFailed:
		return "load_failed"
	case EventSelect:
		return "select"
	case EventAdvance:
		return "advance"
	case EventBack:
		return "back"
	case EventTick:
		return "tick"
	case EventRetake:
		return "retake"
	default:
		return "unknown"
	}
}

// Event drives a Session transition.
type Event struct {
	Type EventType
	// Title and Questions are set for EventLoaded; Questions are already in play order.
	Title     string
	Questions []domain.Question
	// Option is set for EventSelect.
	Option string
}

func Loaded(title string, ordered []domain.Question) Event {
	return Event{Type: EventLoaded, Title: title, Questions: ordered}
}

func LoadFailed() Event          { return Event{Type: EventLoadFailed} }
func Select(option string) Event { return Event{Type: EventSelect, Option: option} }
func Advance() Event             { return Event{Type: EventAdvance} }
func Back() Event                { return Event{Type: EventBack} }
func Tick() Event                { return Event{Type: EventTick} }
func Retake() Event              { return Event{Type: EventRetake} }

// Effects are the side effects a transition asks its owner to perform, in this order:
// cancel the running timer, arm a new one, persist the result, reload the quiz.
type Effects struct {
	// StopTimer cancels the active countdown.
	StopTimer bool
	// RestartTimer cancels the active countdown and arms a fresh one.
	RestartTimer bool
	// Expired marks an advance forced by the countdown.
	Expired bool
	// Finished marks the transition into PhaseFinished.
	Finished bool
	// Reload asks for the quiz to be fetched and shuffled again.
	Reload bool
}

// Apply is the session transition function. Events that are not valid in the
// current phase leave the session unchanged and request no effects.
func Apply(s Session, ev Event) (Session, Effects) {
	switch ev.Type {
	case EventLoaded:
		if s.Phase != PhaseLoading {
			return s, Effects{}
		}
		if len(ev.Questions) == 0 {
			s.Phase = PhaseNotFound
			return s, Effects{StopTimer: true}
		}
		s.Title = ev.Title
		s.Questions = ev.Questions
		s.Current = 0
		s.Answers = domain.Answers{}
		s.Result = Result{}
		s.Timer = s.Timer.Reset()
		s.Phase = PhaseInProgress
		return s, Effects{RestartTimer: true}

	case EventLoadFailed:
		if s.Phase != PhaseLoading {
			return s, Effects{}
		}
		s.Phase = PhaseNotFound
		return s, Effects{StopTimer: true}

	case EventSelect:
		if s.Phase != PhaseInProgress {
			return s, Effects{}
		}
		answers := s.Answers.Clone()
		answers[s.Current] = ev.Option
		s.Answers = answers
		return s, Effects{}

	case EventAdvance:
		if s.Phase != PhaseInProgress {
			return s, Effects{}
		}
		return advance(s)

	case EventBack:
		if s.Phase != PhaseInProgress || s.Current == 0 {
			return s, Effects{}
		}
		s.Current--
		s.Timer = s.Timer.Reset()
		return s, Effects{RestartTimer: true}

	case EventTick:
		if s.Phase != PhaseInProgress {
			return s, Effects{}
		}
		timer, expired := s.Timer.Tick()
		s.Timer = timer
		if !expired {
			return s, Effects{}
		}
		next, fx := advance(s)
		fx.Expired = true
		return next, fx

	case EventRetake:
		if s.Phase != PhaseFinished {
			return s, Effects{}
		}
		return NewSession(s.QuizID, s.Timer.Budget), Effects{StopTimer: true, Reload: true}
	}
	return s, Effects{}
}

func advance(s Session) (Session, Effects) {
	if !s.IsLast() {
		s.Current++
		s.Timer = s.Timer.Reset()
		return s, Effects{RestartTimer: true}
	}
	s.Phase = PhaseFinished
	s.Result = Score(s.Questions, s.Answers)
	return s, Effects{StopTimer: true, Finished: true}
}
