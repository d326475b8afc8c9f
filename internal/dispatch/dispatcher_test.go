package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsRegisteredHandler(t *testing.T) {
	d := NewDispatcher(Config{Concurrency: 2, QueueSize: 8})

	received := make(chan string, 1)
	d.RegisterHandler(ActionToggleTask, func(ctx context.Context, action *Action) error {
		var payload struct {
			TaskID string `json:"taskId"`
		}
		if err := Decode(action, &payload); err != nil {
			return err
		}
		received <- payload.TaskID
		return nil
	})
	d.Start()
	defer d.Stop()

	id, err := d.Enqueue(ActionToggleTask, json.RawMessage(`{"taskId":"abc"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case got := <-received:
		assert.Equal(t, "abc", got)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestDispatcher_UnknownAction(t *testing.T) {
	d := NewDispatcher(Config{Concurrency: 1, QueueSize: 1})

	_, err := d.Enqueue("tasks/renameTask", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := NewDispatcher(Config{Concurrency: 1, QueueSize: 1})
	d.RegisterHandler(ActionClearTasks, func(context.Context, *Action) error { return nil })

	_, err := d.Enqueue(ActionClearTasks, nil)
	require.NoError(t, err)

	_, err = d.Enqueue(ActionClearTasks, nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	d.Stop()
}

func TestDispatcher_StopDrainsAcceptedActions(t *testing.T) {
	d := NewDispatcher(Config{Concurrency: 2, QueueSize: 16})

	var ran int32
	d.RegisterHandler(ActionAddTask, func(context.Context, *Action) error {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&ran, 1)
		return nil
	})
	d.Start()

	for i := 0; i < 10; i++ {
		_, err := d.Enqueue(ActionAddTask, json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	d.Stop()
	assert.Equal(t, int32(10), atomic.LoadInt32(&ran))

	_, err := d.Enqueue(ActionAddTask, nil)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDispatcher_StatsCountFailures(t *testing.T) {
	d := NewDispatcher(Config{Concurrency: 1, QueueSize: 4})

	var wg sync.WaitGroup
	wg.Add(2)
	d.RegisterHandler(ActionFetchWeather, func(_ context.Context, action *Action) error {
		defer wg.Done()
		if string(action.Payload) == `"bad"` {
			return errors.New("boom")
		}
		return nil
	})
	d.Start()
	defer d.Stop()

	_, err := d.Enqueue(ActionFetchWeather, json.RawMessage(`"ok"`))
	require.NoError(t, err)
	_, err = d.Enqueue(ActionFetchWeather, json.RawMessage(`"bad"`))
	require.NoError(t, err)
	wg.Wait()

	require.Eventually(t, func() bool {
		return d.Stats()["failed"].(int64) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, int64(2), d.Stats()["processed"])
}

func TestDecode_RequiresPayload(t *testing.T) {
	var v map[string]string

	err := Decode(&Action{Type: ActionDeleteTask}, &v)
	assert.Error(t, err)

	err = Decode(&Action{Type: ActionDeleteTask, Payload: json.RawMessage(`[1,2]`)}, &v)
	assert.Error(t, err)
}
