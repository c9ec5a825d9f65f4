package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"quizgenius-service/internal/domain"
	"quizgenius-service/internal/quiz"
)

const (
	DefaultExchange         = "quiz.events"
	RoutingAttemptCompleted = "attempt.completed"
)

// AttemptCompletedEvent is the body published for every stored attempt.
type AttemptCompletedEvent struct {
	EventID    string         `json:"eventId"`
	Type       string         `json:"type"`
	AttemptID  string         `json:"attemptId"`
	UserID     string         `json:"userId"`
	QuizID     string         `json:"quizId"`
	Score      int            `json:"score"`
	MaxScore   int            `json:"maxScore"`
	Percentage int            `json:"percentage"`
	Answers    domain.Answers `json:"answers"`
	Timestamp  time.Time      `json:"timestamp"`
}

func newAttemptCompletedEvent(a domain.Attempt) AttemptCompletedEvent {
	return AttemptCompletedEvent{
		EventID:    uuid.NewString(),
		Type:       RoutingAttemptCompleted,
		AttemptID:  a.ID,
		UserID:     a.UserID,
		QuizID:     a.QuizID,
		Score:      a.Score,
		MaxScore:   a.MaxScore,
		Percentage: quiz.Result{Earned: a.Score, Total: a.MaxScore}.Percentage(),
		Answers:    a.Answers,
		Timestamp:  a.Timestamp,
	}
}

// Publisher sends attempt events to a durable topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// PublishAttemptCompleted implements app.AttemptPublisher.
func (p *Publisher) PublishAttemptCompleted(ctx context.Context, a domain.Attempt) error {
	body, err := json.Marshal(newAttemptCompletedEvent(a))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange,
		RoutingAttemptCompleted,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", RoutingAttemptCompleted, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		log.Printf("close rabbitmq channel: %v", err)
	}
	return p.conn.Close()
}
