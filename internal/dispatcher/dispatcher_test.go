package dispatcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iGTsan/flow-inspector/internal/dispatcher"
	"github.com/iGTsan/flow-inspector/internal/event"
	"github.com/iGTsan/flow-inspector/internal/rule"
)

func TestDispatcher_InvokesHandlersInOrder(t *testing.T) {
	t.Parallel()

	d := dispatcher.New()

	var order []int
	d.AddHandler(rule.EventAlert, func(e *event.Event) { order = append(order, 1) })
	d.AddHandler(rule.EventAlert, func(e *event.Event) { order = append(order, 2) })

	d.Dispatch(&event.Event{Type: rule.EventAlert})
	assert.Equal(t, []int{1, 2}, order)
}

func TestDispatcher_UnregisteredTypeIsNoop(t *testing.T) {
	t.Parallel()

	d := dispatcher.New()
	assert.NotPanics(t, func() {
		d.Dispatch(&event.Event{Type: rule.EventNotify})
	})
}

func TestDispatcher_OnlyMatchingTypeHandlersRun(t *testing.T) {
	t.Parallel()

	d := dispatcher.New()

	alertCalls := 0
	d.AddHandler(rule.EventAlert, func(e *event.Event) { alertCalls++ })
	d.AddHandler(rule.EventSaveToPcap, func(e *event.Event) { t.Fatal("should not run") })

	d.Dispatch(&event.Event{Type: rule.EventAlert})
	assert.Equal(t, 1, alertCalls)
}
