// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Returned by a MessageHandler to end the repl
var ErrQuit = errors.New("quit")

type MessageHandler func(string, *Repl) (string, error)

// ReadCloser combines the Reader and Closer interfaces
type ReadCloser interface {
	io.Reader
	io.Closer
}

type Repl struct {
	Input  ReadCloser
	Output io.WriteCloser
	// Written before every line of input is read, nothing when empty
	Prompt string

	scanner   *bufio.Scanner
	writer    *bufio.Writer
	closeOnce sync.Once
}

// Creates a new repl
// If no input is given, stdin will be used
// If no output is given, stdout will be used
// Note: The given reader and writer will be closed if the repl is started and then stops
func NewRepl(in ReadCloser, out io.WriteCloser) *Repl {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Repl{
		Input:   in,
		Output:  out,
		scanner: bufio.NewScanner(in),
		writer:  bufio.NewWriter(out),
	}
}

// Starts the repl
// Blocks execution until the input ends or the handler returns ErrQuit.
// Any other handler error is written out and the repl keeps going.
// Calls Close when it stops.
func (r *Repl) Run(onMessage MessageHandler) error {
	defer r.Close()
	for {
		if err := r.write(r.Prompt); err != nil {
			return err
		}
		if !r.scanner.Scan() {
			return r.scanner.Err()
		}
		message := r.scanner.Text()
		if message == "" {
			continue
		}
		res, err := onMessage(message, r)
		if errors.Is(err, ErrQuit) {
			return r.write(res + "\n")
		}
		if err != nil {
			res = "error: " + err.Error()
		}
		if err := r.write(res + "\n"); err != nil {
			return err
		}
	}
}

func (r *Repl) write(s string) error {
	if s == "" {
		return nil
	}
	if _, err := r.writer.WriteString(s); err != nil {
		return fmt.Errorf("failed to write \"%s\": %w", s, err)
	}
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// Close stops the repl if it was still running
// This will also close the reader and writer
func (r *Repl) Close() {
	r.closeOnce.Do(func() {
		r.Input.Close()
		r.Output.Close()
	})
}
