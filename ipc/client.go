// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
)

var ErrRequestFailed = errors.New("request failed")

// Client talks to a running compositor. It is not safe for concurrent use.
// Once subscribed, only NextEvent should be used.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	enc     *json.Encoder
}

func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 16*MaxMessageBytes)
	return &Client{
		conn:    conn,
		scanner: scanner,
		enc:     json.NewEncoder(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) read() (Response, error) {
	var resp Response
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return resp, err
		}
		return resp, io.EOF
	}
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return resp, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return resp, nil
}

// Request sends one request and decodes the data of the response into result, unless it is nil
func (c *Client) Request(typ MessageType, payload any, result any) error {
	req, err := NewRequest(typ, payload)
	if err != nil {
		return err
	}
	if err := c.enc.Encode(req); err != nil {
		return fmt.Errorf("sending %s: %w", typ, err)
	}
	resp, err := c.read()
	if err != nil {
		return fmt.Errorf("reading %s response: %w", typ, err)
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrRequestFailed, resp.Error)
	}
	if result == nil || len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, result)
}

func (c *Client) Tree() (Tree, error) {
	var t Tree
	err := c.Request(GetTree, nil, &t)
	return t, err
}

func (c *Client) Workspaces() ([]Workspace, error) {
	var workspaces []Workspace
	err := c.Request(GetWorkspaces, nil, &workspaces)
	return workspaces, err
}

func (c *Client) Outputs(req OutputRequest) (OutputResponse, error) {
	var resp OutputResponse
	err := c.Request(GetOutputs, req, &resp)
	return resp, err
}

func (c *Client) Transaction() (Transaction, error) {
	var t Transaction
	err := c.Request(GetTransaction, nil, &t)
	return t, err
}

func (c *Client) Command(command string) error {
	return c.Request(RunCommand, command, nil)
}

func (c *Client) Subscribe(types ...EventType) error {
	return c.Request(Subscribe, types, nil)
}

// NextEvent blocks until the next event arrives
func (c *Client) NextEvent() (Event, error) {
	for {
		resp, err := c.read()
		if err != nil {
			return Event{}, err
		}
		if resp.Type == EventNotice && resp.Event != nil {
			return *resp.Event, nil
		}
	}
}
