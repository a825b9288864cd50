// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package multiplexer

import (
	"errors"
	"sync"
)

var (
	ErrClosed         = errors.New("multiplexer has been closed")
	ErrReceiverExists = errors.New("receiver with that name already exists")
)

// OneToMany copies every message sent into it to all receivers.
// Receivers are buffered, a receiver that falls behind by more than its buffer
// misses messages instead of stalling the sender.
type OneToMany[T any] struct {
	inbound   chan T
	outbound  map[string]chan T // Use map here to give names to outbound channels
	buffer    int
	lock      sync.Mutex
	closeChan chan any
	done      chan any
	closed    bool
	// Called for every message a receiver had no room for
	OnDrop func(receiver string, msg T)
}

// NewOneToMany creates a plexer whose receivers buffer up to buffer messages
func NewOneToMany[T any](buffer int) *OneToMany[T] {
	return &OneToMany[T]{
		inbound:   make(chan T),
		outbound:  make(map[string]chan T),
		buffer:    buffer,
		closeChan: make(chan any),
		done:      make(chan any),
	}
}

// Send hands msg to the plexer. Blocks until the distribution goroutine took it.
func (o *OneToMany[T]) Send(msg T) error {
	select {
	case o.inbound <- msg:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

// Create a new receiver for the multiplexer to send messages to.
// Please do not close this manually, instead use the CloseReceiver func
func (o *OneToMany[T]) MakeReceiver(name string) (<-chan T, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	if _, ok := o.outbound[name]; ok {
		return nil, ErrReceiverExists
	}
	rec := make(chan T, o.buffer)
	o.outbound[name] = rec
	return rec, nil
}

// Closes a receiver channel with the given name and removes it from the multiplexer
func (o *OneToMany[T]) CloseReceiver(name string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if val, ok := o.outbound[name]; ok {
		close(val)
		delete(o.outbound, name)
	}
}

// Receivers returns the number of open receivers
func (o *OneToMany[T]) Receivers() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return len(o.outbound)
}

// Start this one to many multiplexer
// intended to run as a goroutine (`go plexer.StartPlexer()`)
func (o *OneToMany[T]) StartPlexer() {
	for {
		select {
		// Message gotten from inbound channel
		case msg := <-o.inbound:
			o.lock.Lock()
			// Send it to all outbound channels
			for name, c := range o.outbound {
				select {
				case c <- msg:
				default:
					if o.OnDrop != nil {
						o.OnDrop(name, msg)
					}
				}
			}
			o.lock.Unlock()
		// Told to close the plexer including sender
		case <-o.closeChan:
			o.lock.Lock()
			// No need to send any signal to receivers as readers will just stop
			for name, c := range o.outbound {
				close(c)
				delete(o.outbound, name)
			}
			o.closed = true
			close(o.done)
			o.lock.Unlock()
			return
		}
	}
}

// Close the sender and all receiver channels, mark the plexer as closed and stop the distribution goroutine (all by sending one signal)
func (o *OneToMany[T]) CloseSender() {
	select {
	case o.closeChan <- 1:
	case <-o.done:
	}
}
