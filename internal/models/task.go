package models

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority maps an empty value to the medium default.
func ParsePriority(value string) (Priority, error) {
	if strings.TrimSpace(value) == "" {
		return PriorityMedium, nil
	}
	p := Priority(strings.ToLower(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority %q: must be one of low, medium, high", value)
	}
	return p, nil
}

// Task is persisted as part of the JSON snapshot, so the field names follow
// the stored document rather than Go conventions.
type Task struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Completed bool             `json:"completed"`
	Priority  Priority         `json:"priority"`
	CreatedAt time.Time        `json:"createdAt"`
	Weather   *WeatherSnapshot `json:"weather"`
}

func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, task := range tasks {
		out[i] = task
		if task.Weather != nil {
			w := *task.Weather
			out[i].Weather = &w
		}
	}
	return out
}
