package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
)

type ActionType string

const (
	ActionAddTask            ActionType = "tasks/addTask"
	ActionToggleTask         ActionType = "tasks/toggleTask"
	ActionDeleteTask         ActionType = "tasks/deleteTask"
	ActionUpdateTaskPriority ActionType = "tasks/updateTaskPriority"
	ActionClearTasks         ActionType = "tasks/clearTasks"
	ActionFetchWeather       ActionType = "weather/fetchWeather"
)

var (
	ErrQueueFull     = errors.New("dispatch queue is full")
	ErrUnknownAction = errors.New("unknown action type")
	ErrStopped       = errors.New("dispatcher stopped")
)

type Action struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Handler runs one action. The outcome is visible through the state of
// whatever the handler drives, not through the dispatcher.
type Handler func(ctx context.Context, action *Action) error

type Config struct {
	Concurrency int
	QueueSize   int
}

// Dispatcher is a fire-and-forget action queue served by a fixed set of
// goroutines. Accepted actions always run, including during Stop.
type Dispatcher struct {
	handlers map[ActionType]Handler
	queue    chan *Action
	workers  int

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

func NewDispatcher(config Config) *Dispatcher {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}

	return &Dispatcher{
		handlers: make(map[ActionType]Handler),
		queue:    make(chan *Action, config.QueueSize),
		workers:  config.Concurrency,
	}
}

func (d *Dispatcher) RegisterHandler(actionType ActionType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[actionType] = handler
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	log.Printf("[dispatch] Starting dispatcher with %d goroutines", d.workers)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.workerLoop()
	}
}

// Stop refuses new actions and waits for the accepted ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	log.Println("[dispatch] Stopping dispatcher...")
	if !started {
		for action := range d.queue {
			d.execute(action)
		}
	}
	d.wg.Wait()
	log.Println("[dispatch] Dispatcher stopped")
}

func (d *Dispatcher) Enqueue(actionType ActionType, payload json.RawMessage) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return "", ErrStopped
	}
	if _, ok := d.handlers[actionType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, actionType)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate action ID: %w", err)
	}

	action := &Action{
		ID:        id.String(),
		Type:      actionType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	select {
	case d.queue <- action:
		return action.ID, nil
	default:
		return "", ErrQueueFull
	}
}

func (d *Dispatcher) QueueSize() int {
	return len(d.queue)
}

func (d *Dispatcher) Stats() map[string]interface{} {
	return map[string]interface{}{
		"queued":    len(d.queue),
		"capacity":  cap(d.queue),
		"workers":   d.workers,
		"processed": d.processed.Load(),
		"failed":    d.failed.Load(),
	}
}

func (d *Dispatcher) workerLoop() {
	defer d.wg.Done()

	for action := range d.queue {
		d.execute(action)
	}
}

func (d *Dispatcher) execute(action *Action) {
	d.mu.RLock()
	handler, exists := d.handlers[action.Type]
	d.mu.RUnlock()

	d.processed.Add(1)

	if !exists {
		d.failed.Add(1)
		log.Printf("[dispatch] No handler registered for action type: %s", action.Type)
		return
	}

	if err := handler(context.Background(), action); err != nil {
		d.failed.Add(1)
		log.Printf("[dispatch] Action %s (%s) rejected: %v", action.ID, action.Type, err)
		return
	}

	log.Printf("[dispatch] Action %s (%s) fulfilled", action.ID, action.Type)
}

// Decode unmarshals an action payload into v.
func Decode(action *Action, v interface{}) error {
	if len(action.Payload) == 0 {
		return fmt.Errorf("action %s requires a payload", action.Type)
	}
	if err := json.Unmarshal(action.Payload, v); err != nil {
		return fmt.Errorf("invalid payload for %s: %w", action.Type, err)
	}
	return nil
}
