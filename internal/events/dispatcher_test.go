package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_InvokesAllHandlersDespiteFailures(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventComplaintCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("smtp down")
	})
	d.Subscribe(EventComplaintCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		panic("bad handler")
	})
	d.Subscribe(EventComplaintCreated, func(context.Context, Event) error {
		calls = append(calls, "third")
		return nil
	})
	d.Subscribe(EventInfoRequested, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventComplaintCreated})

	assert.Equal(t, []string{"first", "second", "third"}, calls)
	assert.ErrorContains(t, err, "smtp down")
	assert.ErrorContains(t, err, "panicked")
}

func TestDispatcher_NoHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventComplaintStatusChanged}))
}
