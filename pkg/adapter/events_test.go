package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterDeliversToSubscribedKindOnly(t *testing.T) {
	var e eventEmitter
	var connects, errors int
	e.subscribe(EventConnect, func(Event) { connects++ })
	e.subscribe(EventError, func(Event) { errors++ })

	e.emit(Event{Kind: EventConnect})
	e.emit(Event{Kind: EventConnect})
	e.emit(Event{Kind: EventDisconnect})

	assert.Equal(t, 2, connects)
	assert.Equal(t, 0, errors)
}

func TestEmitterCancelStopsDelivery(t *testing.T) {
	var e eventEmitter
	var calls int
	cancel := e.subscribe(EventDisconnect, func(Event) { calls++ })

	e.emit(Event{Kind: EventDisconnect})
	cancel()
	e.emit(Event{Kind: EventDisconnect})

	assert.Equal(t, 1, calls)
}

func TestEmitterCarriesErrorPayload(t *testing.T) {
	var e eventEmitter
	var got error
	e.subscribe(EventError, func(ev Event) { got = ev.Err })

	want := NewWalletError(CodeConnectFailed, "boom")
	e.emit(Event{Kind: EventError, Err: want})

	assert.Equal(t, want, got)
}

func TestEmitterWithoutHandlersIsSafe(t *testing.T) {
	var e eventEmitter
	assert.NotPanics(t, func() {
		e.emit(Event{Kind: EventConnect})
	})
}
