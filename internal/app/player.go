package app

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"quizgenius-service/internal/domain"
	"quizgenius-service/internal/metrics"
	"quizgenius-service/internal/quiz"
)

// QuizFetcher loads the quiz a playthrough is based on.
type QuizFetcher interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptGateway durably records a finished playthrough.
type AttemptGateway interface {
	PersistAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
}

// TickerFunc arms a repeating tick source. stop must release it; no tick is read
// from a channel after its stop has been called.
type TickerFunc func(interval time.Duration) (ticks <-chan time.Time, stop func())

func systemTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// PlayerOptions tunes a Player. Zero values fall back to production defaults.
type PlayerOptions struct {
	Budget         int
	TickInterval   time.Duration
	PersistTimeout time.Duration
	// AbandonAfter is how long a player with no subscriber may go without a command
	// before it counts as abandoned. Defaults to one full question budget.
	AbandonAfter time.Duration
	Rand           *rand.Rand
	Ticker         TickerFunc
	Now            func() time.Time
}

func (o PlayerOptions) withDefaults() PlayerOptions {
	if o.Budget <= 0 {
		o.Budget = quiz.DefaultBudget
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.AbandonAfter <= 0 {
		o.AbandonAfter = time.Duration(o.Budget) * o.TickInterval
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Ticker == nil {
		o.Ticker = systemTicker
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Player hosts one quiz Session. All transitions run on a single goroutine, which is
// also the only reader of the countdown ticks, so at most one timer is ever armed.
type Player struct {
	id        string
	quizID    string
	principal domain.Principal
	quizzes   QuizFetcher
	attempts  AttemptGateway
	opts      PlayerOptions

	commands   chan command
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	persisting sync.WaitGroup
	lastActive atomic.Int64 // unix nanos of the last command

	mu          sync.RWMutex
	current     quiz.Session
	subscribers map[chan quiz.Session]struct{}
}

type command struct {
	event quiz.Event
	reply chan quiz.Session
}

// NewPlayer builds a player and starts its loop. The quiz is fetched and shuffled
// before the first command is served.
func NewPlayer(id, quizID string, principal domain.Principal, quizzes QuizFetcher, attempts AttemptGateway, opts PlayerOptions) *Player {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		id:          id,
		quizID:      quizID,
		principal:   principal,
		quizzes:     quizzes,
		attempts:    attempts,
		opts:        opts,
		commands:    make(chan command),
		cancel:      cancel,
		done:        make(chan struct{}),
		current:     quiz.NewSession(quizID, opts.Budget),
		subscribers: make(map[chan quiz.Session]struct{}),
	}
	p.lastActive.Store(opts.Now().UnixNano())
	go p.run(ctx)
	return p
}

func (p *Player) ID() string                  { return p.id }
func (p *Player) QuizID() string              { return p.quizID }
func (p *Player) Principal() domain.Principal { return p.principal }

// IdleSince reports when the player last received a command. Countdown ticks do not count.
func (p *Player) IdleSince() time.Time {
	return time.Unix(0, p.lastActive.Load())
}

// Watched reports whether any subscriber is attached.
func (p *Player) Watched() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers) > 0
}

// Abandoned reports whether nobody is following the session: no subscriber is attached
// and no command arrived within AbandonAfter.
func (p *Player) Abandoned() bool {
	if p.Watched() {
		return false
	}
	return p.opts.Now().Sub(p.IdleSince()) > p.opts.AbandonAfter
}

// Done is closed once the player loop has exited.
func (p *Player) Done() <-chan struct{} { return p.done }

// Select records option for the current question.
func (p *Player) Select(ctx context.Context, option string) (quiz.Session, error) {
	return p.send(ctx, quiz.Select(option))
}

// Advance moves to the next question, or finishes on the last one.
func (p *Player) Advance(ctx context.Context) (quiz.Session, error) {
	return p.send(ctx, quiz.Advance())
}

// Back returns to the previous question, keeping its answer.
func (p *Player) Back(ctx context.Context) (quiz.Session, error) {
	return p.send(ctx, quiz.Back())
}

// Retake discards a finished playthrough and starts over with a new ordering.
func (p *Player) Retake(ctx context.Context) (quiz.Session, error) {
	return p.send(ctx, quiz.Retake())
}

// Snapshot returns the session after every previously queued event has been applied.
func (p *Player) Snapshot(ctx context.Context) (quiz.Session, error) {
	return p.send(ctx, quiz.Event{})
}

// Last returns the most recently published session without waiting on the loop.
func (p *Player) Last() quiz.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe returns a channel that receives a session snapshot after every transition,
// starting with the current one. Slow readers only ever miss stale snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (p *Player) Subscribe() (<-chan quiz.Session, func()) {
	ch := make(chan quiz.Session, 8)

	p.mu.Lock()
	ch <- p.current
	select {
	case <-p.done:
		close(ch)
		p.mu.Unlock()
		return ch, func() {}
	default:
	}
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subscribers[ch]; ok {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the loop, cancels the countdown, waits for in-flight attempt
// persistence and closes all subscriptions. It is safe to call more than once.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done
		p.persisting.Wait()

		p.mu.Lock()
		for ch := range p.subscribers {
			delete(p.subscribers, ch)
			close(ch)
		}
		p.mu.Unlock()
	})
}

func (p *Player) send(ctx context.Context, ev quiz.Event) (quiz.Session, error) {
	cmd := command{event: ev, reply: make(chan quiz.Session, 1)}
	select {
	case p.commands <- cmd:
	case <-p.done:
		return quiz.Session{}, domain.ErrPlayerClosed
	case <-ctx.Done():
		return quiz.Session{}, ctx.Err()
	}

	select {
	case s := <-cmd.reply:
		return s, nil
	case <-p.done:
		// the loop replies before it can exit
		select {
		case s := <-cmd.reply:
			return s, nil
		default:
			return quiz.Session{}, domain.ErrPlayerClosed
		}
	case <-ctx.Done():
		return quiz.Session{}, ctx.Err()
	}
}

// countdownTimer is the cancellable handle for the active question's ticks.
// It is owned by the player loop and never touched from another goroutine.
type countdownTimer struct {
	newTicker TickerFunc
	interval  time.Duration
	ticks     <-chan time.Time
	stop      func()
}

func (t *countdownTimer) cancel() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.ticks = nil
}

func (t *countdownTimer) restart() {
	t.cancel()
	t.ticks, t.stop = t.newTicker(t.interval)
}

func (p *Player) run(ctx context.Context) {
	defer close(p.done)

	timer := &countdownTimer{newTicker: p.opts.Ticker, interval: p.opts.TickInterval}
	defer timer.cancel()

	session := p.load(ctx, timer, p.current)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-p.commands:
			p.lastActive.Store(p.opts.Now().UnixNano())
			if cmd.event.Type != 0 {
				session = p.dispatch(ctx, timer, session, cmd.event)
			}
			cmd.reply <- session
		case <-timer.ticks:
			session = p.dispatch(ctx, timer, session, quiz.Tick())
		}
	}
}

func (p *Player) dispatch(ctx context.Context, timer *countdownTimer, s quiz.Session, ev quiz.Event) quiz.Session {
	next, fx := quiz.Apply(s, ev)
	if fx.StopTimer {
		timer.cancel()
	}
	if fx.RestartTimer {
		timer.restart()
	}
	if fx.Expired {
		metrics.TimerExpirations.Inc()
	}
	if fx.Finished {
		metrics.SessionsFinished.Inc()
		// a countdown running out on a session nobody follows is not an attempt
		if fx.Expired && p.Abandoned() {
			metrics.SessionsAbandoned.Inc()
			log.Printf("session %s finished unattended; attempt not recorded", p.id)
		} else {
			p.persist(next)
		}
	}
	p.publish(next)
	if fx.Reload {
		next = p.load(ctx, timer, next)
	}
	return next
}

func (p *Player) load(ctx context.Context, timer *countdownTimer, s quiz.Session) quiz.Session {
	content, err := p.quizzes.GetQuiz(ctx, p.quizID)
	if err != nil {
		log.Printf("load quiz %s for session %s: %v", p.quizID, p.id, err)
		return p.dispatch(ctx, timer, s, quiz.LoadFailed())
	}
	ordered := quiz.Shuffle(content.Questions, p.opts.Rand)
	next := p.dispatch(ctx, timer, s, quiz.Loaded(content.Title, ordered))
	if next.Phase == quiz.PhaseInProgress {
		metrics.SessionsStarted.Inc()
	}
	return next
}

// persist hands the finished session to the attempt gateway without blocking the loop.
// Failures are logged and never change the displayed result.
func (p *Player) persist(s quiz.Session) {
	if p.attempts == nil || !p.principal.RecordsAttempts() {
		return
	}
	attempt := domain.Attempt{
		UserID:    p.principal.UserID,
		QuizID:    s.QuizID,
		Score:     s.Result.Earned,
		MaxScore:  s.Result.Total,
		Timestamp: p.opts.Now(),
		Answers:   s.Answers.Clone(),
	}

	p.persisting.Add(1)
	go func() {
		defer p.persisting.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.PersistTimeout)
		defer cancel()
		if _, err := p.attempts.PersistAttempt(ctx, attempt); err != nil {
			metrics.AttemptsPersisted.WithLabelValues("failure").Inc()
			log.Printf("save attempt for quiz %s user %s: %v", attempt.QuizID, attempt.UserID, err)
			return
		}
		metrics.AttemptsPersisted.WithLabelValues("success").Inc()
	}()
}

func (p *Player) publish(s quiz.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = s
	for ch := range p.subscribers {
		select {
		case ch <- s:
		default:
			// drop the oldest snapshot so a slow reader never blocks the loop
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}
