package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"taskdash/internal/models"

	"github.com/gofrs/uuid"
)

type Operation string

const (
	OpAddTask            Operation = "tasks/addTask"
	OpToggleTask         Operation = "tasks/toggleTask"
	OpDeleteTask         Operation = "tasks/deleteTask"
	OpUpdateTaskPriority Operation = "tasks/updateTaskPriority"
	OpClearTasks         Operation = "tasks/clearTasks"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

var (
	ErrEmptyText       = errors.New("task text is required")
	ErrInvalidPriority = errors.New("priority must be one of low, medium, high")
)

type AddTaskInput struct {
	Text     string
	Priority models.Priority
	Weather  *models.WeatherSnapshot
}

type PriorityChange struct {
	TaskID   string          `json:"taskId"`
	Priority models.Priority `json:"priority"`
}

type OperationStatus struct {
	Phase     Phase       `json:"phase"`
	Loading   bool        `json:"loading"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type State struct {
	Items      []models.Task                 `json:"items"`
	Loading    bool                          `json:"loading"`
	Error      string                        `json:"error,omitempty"`
	Operations map[Operation]OperationStatus `json:"operations"`
}

type Options struct {
	AddLatency    time.Duration
	MutateLatency time.Duration

	Now   func() time.Time
	NewID func() (string, error)
	Sleep func(time.Duration)
}

func DefaultOptions() Options {
	return Options{
		AddLatency:    300 * time.Millisecond,
		MutateLatency: 200 * time.Millisecond,
	}
}

func (o *Options) applyDefaults() {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = newTaskID
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
}

func newTaskID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Pipeline is the only writer of the task collection. Every mutation waits
// out its simulated latency without holding any lock, then reads the
// committed collection, persists the next value and commits it inside
// commitMu, so concurrent mutations commit in completion order and never
// compute from a stale collection.
type Pipeline struct {
	store *Store
	opts  Options

	commitMu sync.Mutex

	mu         sync.RWMutex
	items      []models.Task
	inflight   map[Operation]int
	lastError  string
	operations map[Operation]OperationStatus
	loaded     LoadResult
}

// NewPipeline loads the persisted collection once; a missing or corrupt
// snapshot starts the pipeline empty.
func NewPipeline(ctx context.Context, store *Store, opts Options) *Pipeline {
	opts.applyDefaults()

	result := store.Load(ctx)
	log.Printf("[tasks] Loaded %d tasks (%s)", len(result.Tasks), result.Status)

	return &Pipeline{
		store:      store,
		opts:       opts,
		items:      result.Tasks,
		inflight:   make(map[Operation]int),
		operations: make(map[Operation]OperationStatus),
		loaded:     result,
	}
}

func (p *Pipeline) LoadResult() LoadResult {
	return p.loaded
}

func (p *Pipeline) AddTask(ctx context.Context, input AddTaskInput) (models.Task, error) {
	if strings.TrimSpace(input.Text) == "" {
		return models.Task{}, p.rejectInvalid(OpAddTask, ErrEmptyText)
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.IsValid() {
		return models.Task{}, p.rejectInvalid(OpAddTask, ErrInvalidPriority)
	}

	var weather *models.WeatherSnapshot
	if input.Weather != nil {
		snapshot := *input.Weather
		weather = &snapshot
	}

	var created models.Task
	err := p.run(ctx, OpAddTask, p.opts.AddLatency, func(current []models.Task) ([]models.Task, interface{}, error) {
		id, err := p.uniqueID(current)
		if err != nil {
			return nil, nil, err
		}

		created = models.Task{
			ID:        id,
			Text:      input.Text,
			Completed: false,
			Priority:  priority,
			CreatedAt: p.opts.Now().UTC(),
			Weather:   weather,
		}
		return append(current, created), created, nil
	})
	if err != nil {
		return models.Task{}, err
	}

	return created, nil
}

func (p *Pipeline) ToggleTask(ctx context.Context, taskID string) error {
	return p.run(ctx, OpToggleTask, p.opts.MutateLatency, func(current []models.Task) ([]models.Task, interface{}, error) {
		for i := range current {
			if current[i].ID == taskID {
				current[i].Completed = !current[i].Completed
				break
			}
		}
		return current, taskID, nil
	})
}

func (p *Pipeline) DeleteTask(ctx context.Context, taskID string) error {
	return p.run(ctx, OpDeleteTask, p.opts.MutateLatency, func(current []models.Task) ([]models.Task, interface{}, error) {
		next := current[:0]
		for _, task := range current {
			if task.ID != taskID {
				next = append(next, task)
			}
		}
		return next, taskID, nil
	})
}

func (p *Pipeline) UpdateTaskPriority(ctx context.Context, taskID string, priority models.Priority) error {
	if !priority.IsValid() {
		return p.rejectInvalid(OpUpdateTaskPriority, ErrInvalidPriority)
	}

	change := PriorityChange{TaskID: taskID, Priority: priority}
	return p.run(ctx, OpUpdateTaskPriority, p.opts.MutateLatency, func(current []models.Task) ([]models.Task, interface{}, error) {
		for i := range current {
			if current[i].ID == taskID {
				current[i].Priority = priority
				break
			}
		}
		return current, change, nil
	})
}

// ClearTasks empties the collection immediately; it has no simulated
// latency.
func (p *Pipeline) ClearTasks(ctx context.Context) error {
	return p.run(ctx, OpClearTasks, 0, func([]models.Task) ([]models.Task, interface{}, error) {
		return []models.Task{}, nil, nil
	})
}

func (p *Pipeline) Tasks() []models.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return models.CloneTasks(p.items)
}

func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ops := make(map[Operation]OperationStatus, len(p.operations))
	for op, status := range p.operations {
		ops[op] = status
	}

	return State{
		Items:      models.CloneTasks(p.items),
		Loading:    p.pending() > 0,
		Error:      p.lastError,
		Operations: ops,
	}
}

func (p *Pipeline) OperationStatus(op Operation) OperationStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status, ok := p.operations[op]
	if !ok {
		return OperationStatus{Phase: PhaseIdle}
	}
	return status
}

type mutation func(current []models.Task) (next []models.Task, payload interface{}, err error)

// run drives one operation through pending, the latency wait and a
// fulfilled or rejected commit. Cancelling ctx does not abort it.
func (p *Pipeline) run(ctx context.Context, op Operation, latency time.Duration, mutate mutation) error {
	ctx = context.WithoutCancel(ctx)

	p.begin(op)

	if latency > 0 {
		p.opts.Sleep(latency)
	}

	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	next, payload, err := mutate(p.Tasks())
	if err == nil {
		err = p.store.Save(ctx, next)
	}

	if err != nil {
		log.Printf("[tasks] %s rejected: %v", op, err)
		p.finish(op, nil, nil, err)
		return err
	}

	p.finish(op, next, payload, nil)
	return nil
}

func (p *Pipeline) begin(op Operation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inflight[op]++
	p.lastError = ""
	status := p.operations[op]
	p.operations[op] = OperationStatus{
		Phase:     PhasePending,
		Loading:   true,
		Data:      status.Data,
		UpdatedAt: p.opts.Now(),
	}
}

func (p *Pipeline) finish(op Operation, next []models.Task, payload interface{}, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inflight[op]--
	status := p.operations[op]
	status.UpdatedAt = p.opts.Now()
	status.Loading = p.inflight[op] > 0

	if err != nil {
		status.Phase = PhaseRejected
		status.Error = err.Error()
		p.lastError = err.Error()
		p.operations[op] = status
		return
	}

	p.items = next
	status.Phase = PhaseFulfilled
	status.Error = ""
	status.Data = payload
	p.operations[op] = status
}

func (p *Pipeline) pending() int {
	total := 0
	for _, n := range p.inflight {
		total += n
	}
	return total
}

func (p *Pipeline) rejectInvalid(op Operation, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.operations[op]
	status.Phase = PhaseRejected
	status.Loading = p.inflight[op] > 0
	status.Error = err.Error()
	status.UpdatedAt = p.opts.Now()
	p.operations[op] = status
	p.lastError = err.Error()
	return err
}

func (p *Pipeline) uniqueID(current []models.Task) (string, error) {
	seen := make(map[string]struct{}, len(current))
	for _, task := range current {
		seen[task.ID] = struct{}{}
	}

	for attempt := 0; attempt < 3; attempt++ {
		id, err := p.opts.NewID()
		if err != nil {
			return "", fmt.Errorf("failed to generate task ID: %w", err)
		}
		if _, taken := seen[id]; !taken && id != "" {
			return id, nil
		}
	}

	return "", errors.New("failed to generate a unique task ID")
}
