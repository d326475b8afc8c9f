package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"taskdash/internal/auth"
	"taskdash/internal/config"
	"taskdash/internal/dispatch"
	"taskdash/internal/models"
	"taskdash/internal/storage"
	"taskdash/internal/tasks"
	"taskdash/internal/weather"
)

// App is the explicit state container shared by the HTTP layer and the
// dispatcher. It is built once at startup.
type App struct {
	Config     *config.Config
	Store      *storage.InstrumentedStore
	Tasks      *tasks.Pipeline
	Gate       *auth.Gate
	Tokens     *auth.TokenManager
	Weather    *weather.Service
	Dispatcher *dispatch.Dispatcher
}

// New loads the task collection once and wires every component to kv.
// The weather provider is chosen from the configuration.
func New(ctx context.Context, cfg *config.Config, kv storage.KeyValueStore) (*App, error) {
	return NewWithProvider(ctx, cfg, kv, weather.NewProvider(cfg))
}

func NewWithProvider(ctx context.Context, cfg *config.Config, kv storage.KeyValueStore, provider weather.Provider) (*App, error) {
	store := storage.NewInstrumentedStore(kv)

	pipeline := tasks.NewPipeline(ctx, tasks.NewStore(store), tasks.Options{
		AddLatency:    cfg.Pipeline.AddLatency,
		MutateLatency: cfg.Pipeline.MutateLatency,
	})

	gate, err := auth.NewGate(store, pipeline, cfg.Auth)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Store:   store,
		Tasks:   pipeline,
		Gate:    gate,
		Tokens:  auth.NewTokenManager(cfg.Auth),
		Weather: weather.NewService(provider, cfg.Weather.DefaultLocation),
		Dispatcher: dispatch.NewDispatcher(dispatch.Config{
			Concurrency: cfg.Dispatch.Concurrency,
			QueueSize:   cfg.Dispatch.QueueSize,
		}),
	}
	a.registerActions()

	return a, nil
}

func (a *App) Start() {
	a.Dispatcher.Start()
}

// Close drains the dispatcher before closing the store.
func (a *App) Close() error {
	a.Dispatcher.Stop()
	log.Println("[app] Closing store")
	return a.Store.Close()
}

// AddTaskRequest is the payload of tasks/addTask, over HTTP or dispatch.
type AddTaskRequest struct {
	Text          string `json:"text"`
	Priority      string `json:"priority"`
	AttachWeather bool   `json:"attachWeather"`
}

// AddTask resolves the request against the held weather reading and runs it
// through the pipeline.
func (a *App) AddTask(ctx context.Context, req AddTaskRequest) (models.Task, error) {
	priority, err := models.ParsePriority(req.Priority)
	if err != nil {
		priority = models.Priority(strings.ToLower(strings.TrimSpace(req.Priority)))
	}

	input := tasks.AddTaskInput{Text: req.Text, Priority: priority}
	if req.AttachWeather {
		input.Weather = a.Weather.Snapshot()
	}
	return a.Tasks.AddTask(ctx, input)
}

// UpdateTaskPriority accepts the same spellings as the HTTP route ("HIGH",
// " low "). Anything else reaches the pipeline unchanged and is rejected there.
func (a *App) UpdateTaskPriority(ctx context.Context, taskID, value string) error {
	priority := models.Priority(value)
	if strings.TrimSpace(value) != "" {
		if parsed, err := models.ParsePriority(value); err == nil {
			priority = parsed
		}
	}
	return a.Tasks.UpdateTaskPriority(ctx, taskID, priority)
}

type taskRef struct {
	TaskID string `json:"taskId"`
}

type priorityRef struct {
	TaskID   string `json:"taskId"`
	Priority string `json:"priority"`
}

type locationRef struct {
	Location string `json:"location"`
}

func (a *App) registerActions() {
	a.Dispatcher.RegisterHandler(dispatch.ActionAddTask, func(ctx context.Context, action *dispatch.Action) error {
		var req AddTaskRequest
		if err := dispatch.Decode(action, &req); err != nil {
			return err
		}
		_, err := a.AddTask(ctx, req)
		return err
	})

	a.Dispatcher.RegisterHandler(dispatch.ActionToggleTask, func(ctx context.Context, action *dispatch.Action) error {
		ref, err := decodeTaskRef(action)
		if err != nil {
			return err
		}
		return a.Tasks.ToggleTask(ctx, ref.TaskID)
	})

	a.Dispatcher.RegisterHandler(dispatch.ActionDeleteTask, func(ctx context.Context, action *dispatch.Action) error {
		ref, err := decodeTaskRef(action)
		if err != nil {
			return err
		}
		return a.Tasks.DeleteTask(ctx, ref.TaskID)
	})

	a.Dispatcher.RegisterHandler(dispatch.ActionUpdateTaskPriority, func(ctx context.Context, action *dispatch.Action) error {
		var change priorityRef
		if err := dispatch.Decode(action, &change); err != nil {
			return err
		}
		if change.TaskID == "" {
			return fmt.Errorf("%s requires taskId", action.Type)
		}
		return a.UpdateTaskPriority(ctx, change.TaskID, change.Priority)
	})

	a.Dispatcher.RegisterHandler(dispatch.ActionClearTasks, func(ctx context.Context, _ *dispatch.Action) error {
		return a.Tasks.ClearTasks(ctx)
	})

	a.Dispatcher.RegisterHandler(dispatch.ActionFetchWeather, func(ctx context.Context, action *dispatch.Action) error {
		var ref locationRef
		if len(action.Payload) > 0 {
			if err := json.Unmarshal(action.Payload, &ref); err != nil {
				return fmt.Errorf("invalid payload for %s: %w", action.Type, err)
			}
		}
		if strings.TrimSpace(ref.Location) == "" {
			_, err := a.Weather.Refresh(ctx)
			return err
		}
		_, err := a.Weather.Fetch(ctx, ref.Location)
		return err
	})
}

func decodeTaskRef(action *dispatch.Action) (taskRef, error) {
	var ref taskRef
	if err := dispatch.Decode(action, &ref); err != nil {
		return ref, err
	}
	if ref.TaskID == "" {
		return ref, fmt.Errorf("%s requires taskId", action.Type)
	}
	return ref, nil
}
