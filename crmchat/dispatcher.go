package crmchat

import "sync"

// Dispatcher routes inbound frames to registered callbacks.
type Dispatcher struct {
	mu           sync.RWMutex
	onMessage    func(WireMessage)
	onChat       func(WireMessage)
	onTyping     func(WireMessage)
	onUserJoined func(WireMessage)
	onUserLeft   func(WireMessage)
	onError      func(error)
	onState      func(StateEvent)
}

func (d *Dispatcher) SetOnMessage(fn func(WireMessage))     { d.set(func() { d.onMessage = fn }) }
func (d *Dispatcher) SetOnChatMessage(fn func(WireMessage)) { d.set(func() { d.onChat = fn }) }
func (d *Dispatcher) SetOnTyping(fn func(WireMessage))      { d.set(func() { d.onTyping = fn }) }
func (d *Dispatcher) SetOnUserJoined(fn func(WireMessage))  { d.set(func() { d.onUserJoined = fn }) }
func (d *Dispatcher) SetOnUserLeft(fn func(WireMessage))    { d.set(func() { d.onUserLeft = fn }) }
func (d *Dispatcher) SetOnError(fn func(error))             { d.set(func() { d.onError = fn }) }
func (d *Dispatcher) SetOnStateChanged(fn func(StateEvent)) { d.set(func() { d.onState = fn }) }

func (d *Dispatcher) set(apply func()) {
	d.mu.Lock()
	apply()
	d.mu.Unlock()
}

// Dispatch decodes one inbound frame and delivers it. A frame that cannot be
// decoded is not delivered anywhere; the decode error is returned so the
// caller can log it.
func (d *Dispatcher) Dispatch(data []byte) error {
	m, err := DecodeWireMessage(data)
	if err != nil {
		return err
	}

	d.mu.RLock()
	onMessage := d.onMessage
	var typed func(WireMessage)
	switch m.Type {
	case TypeChatMessage:
		typed = d.onChat
	case TypeTyping:
		typed = d.onTyping
	case TypeUserJoined, TypeJoinRoom:
		typed = d.onUserJoined
	case TypeUserLeft, TypeLeaveRoom:
		typed = d.onUserLeft
	}
	d.mu.RUnlock()

	if onMessage != nil {
		onMessage(m)
	}
	if m.Type == TypeError {
		d.fireError(FromErrorFrame(m))
		return nil
	}
	if typed != nil {
		typed(m)
	}
	return nil
}

func (d *Dispatcher) fireError(err error) {
	d.mu.RLock()
	fn := d.onError
	d.mu.RUnlock()
	if fn != nil && err != nil {
		fn(err)
	}
}

func (d *Dispatcher) fireState(ev *StateEvent) {
	if ev == nil {
		return
	}
	d.mu.RLock()
	fn := d.onState
	d.mu.RUnlock()
	if fn != nil {
		fn(*ev)
	}
}
