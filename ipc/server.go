// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/mstarongithub/wayward/commands"
	"github.com/mstarongithub/wayward/desktop"
	"github.com/mstarongithub/wayward/util/multiplexer"
	"github.com/sirupsen/logrus"
)

// Responses queued per connection before the request reader blocks
const connectionBuffer = 16

type Server struct {
	desktop *desktop.Desktop
	runner  *commands.Runner
	events  *Events
	path    string
}

func NewServer(d *desktop.Desktop, runner *commands.Runner, events *Events, path string) *Server {
	return &Server{
		desktop: d,
		runner:  runner,
		events:  events,
		path:    path,
	}
}

func (s *Server) String() string {
	return "ipc"
}

// Path of the socket
func (s *Server) Path() string {
	return s.path
}

// Serve listens on the socket until ctx is done
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	// Left behind by a previous run that didn't shut down cleanly
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.path, err)
	}
	logrus.WithField("socket", s.path).Infoln("IPC listening")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	id := uuid.NewString()
	log := logrus.WithField("connection", id)
	log.Debugln("IPC client connected")

	// Responses and events share the connection, funnel them through one writer
	out := make(chan Response, connectionBuffer)
	sender := multiplexer.NewManyToOne(out)
	written := make(chan struct{})
	go func() {
		defer close(written)
		enc := json.NewEncoder(conn)
		failed := false
		for msg := range out {
			if failed {
				continue
			}
			if err := enc.Encode(msg); err != nil {
				log.WithError(err).Debugln("Writing to IPC client failed")
				failed = true
				cancel()
				// out is still drained until it closes
				go sender.Close()
			}
		}
	}()

	subscribed := false
	defer func() {
		if subscribed {
			s.events.Unsubscribe(id)
		}
		sender.Close()
		<-written
		log.Debugln("IPC client gone")
	}()
	subscribed = s.serveRequests(ctx, id, conn, sender)
}

// serveRequests answers every request read from r until it ends or a response
// can't be queued anymore. Returns whether r subscribed to events.
func (s *Server) serveRequests(ctx context.Context, id string, r io.Reader, sender *multiplexer.ManyToOne[Response]) bool {
	subscribed := false
	reply := func(resp Response) bool {
		if err := sender.Send(resp); err != nil {
			logrus.WithError(err).WithField("connection", id).Debugln("Dropping IPC client")
			return false
		}
		return true
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxMessageBytes)
	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			if !reply(failure("", fmt.Errorf("%w: %w", ErrBadPayload, err))) {
				return subscribed
			}
			continue
		}
		if req.Type != Subscribe {
			if !reply(s.Handle(ctx, req)) {
				return subscribed
			}
			continue
		}
		if subscribed {
			if !reply(failure(Subscribe, errors.New("already subscribed"))) {
				return subscribed
			}
			continue
		}
		types, err := parseSubscription(req.Payload)
		if err != nil {
			if !reply(failure(Subscribe, err)) {
				return subscribed
			}
			continue
		}
		events, err := s.events.Subscribe(id)
		if err != nil {
			if !reply(failure(Subscribe, err)) {
				return subscribed
			}
			continue
		}
		subscribed = true
		if !reply(success(Subscribe, types)) {
			return subscribed
		}
		go forwardEvents(events, types, sender)
	}
	return subscribed
}

func forwardEvents(events <-chan Event, types []EventType, sender *multiplexer.ManyToOne[Response]) {
	for ev := range events {
		if !slices.Contains(types, ev.Type) {
			continue
		}
		if err := sender.Send(Response{Type: EventNotice, Success: true, Event: &ev}); err != nil {
			return
		}
	}
}

func parseSubscription(payload json.RawMessage) ([]EventType, error) {
	var types []EventType
	if err := json.Unmarshal(payload, &types); err != nil {
		return nil, fmt.Errorf("%w: expected a list of event types: %w", ErrBadPayload, err)
	}
	for _, t := range types {
		switch t {
		case EventWindow, EventWorkspace, EventTransaction:
		default:
			return nil, fmt.Errorf("%w: unknown event type %q", ErrBadPayload, t)
		}
	}
	return types, nil
}

// Handle answers a single request. Everything touching the desktop runs on
// its event loop, Handle blocks until that happened.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	var resp Response
	var run func()
	switch req.Type {
	case GetTree:
		run = func() { resp = success(req.Type, DescribeTree(s.desktop.Root)) }
	case GetWorkspaces:
		run = func() { resp = success(req.Type, DescribeWorkspaces(s.desktop.Root)) }
	case GetTransaction:
		run = func() { resp = success(req.Type, DescribeTransaction(s.desktop.Txn)) }
	case GetOutputs:
		var outputReq OutputRequest
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &outputReq); err != nil {
				return failure(req.Type, fmt.Errorf("%w: %w", ErrBadPayload, err))
			}
		}
		run = func() { resp = success(req.Type, s.outputs(outputReq)) }
	case RunCommand:
		var command string
		if err := json.Unmarshal(req.Payload, &command); err != nil {
			return failure(req.Type, fmt.Errorf("%w: expected a command string: %w", ErrBadPayload, err))
		}
		run = func() {
			if err := s.runner.Run(command); err != nil {
				resp = failure(req.Type, err)
				return
			}
			resp = success(req.Type, nil)
		}
	default:
		return failure(req.Type, fmt.Errorf("%w %q", ErrUnknownMessage, req.Type))
	}
	if err := s.desktop.Loop.Call(ctx, run); err != nil {
		return failure(req.Type, err)
	}
	return resp
}

func (s *Server) outputs(req OutputRequest) OutputResponse {
	outputs := DescribeOutputs(s.desktop.Root, req.IncludeModes)
	if req.SpecifiesOutput {
		outputs = slices.DeleteFunc(outputs, func(o Output) bool {
			return o.Name != req.TargetOutput
		})
	}
	return OutputResponse{
		Outputs:      outputs,
		OutputsFound: len(outputs),
	}
}
