// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ipc lets other programs inspect and control wayward.
//
// The socket speaks JSON lines: every request is one JSON object on its own
// line, answered by exactly one response line. After SUBSCRIBE the
// connection additionally receives one EVENT line per matching event.
package ipc

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	GetTree        = MessageType("GET_TREE")
	GetWorkspaces  = MessageType("GET_WORKSPACES")
	GetOutputs     = MessageType("GET_OUTPUTS")
	GetTransaction = MessageType("GET_TRANSACTION")
	RunCommand     = MessageType("RUN_COMMAND")
	Subscribe      = MessageType("SUBSCRIBE")
	EventNotice    = MessageType("EVENT")
)

// Longest request line the server accepts
const MaxMessageBytes = 1 << 20

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrBadPayload     = errors.New("malformed payload")
)

type (
	Request struct {
		Type MessageType `json:"type"`
		// Depends on the type: a command string for RUN_COMMAND, an
		// OutputRequest for GET_OUTPUTS, a list of event types for SUBSCRIBE
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	Response struct {
		Type    MessageType     `json:"type"`
		Success bool            `json:"success"`
		Error   string          `json:"error,omitempty"`
		Data    json.RawMessage `json:"data,omitempty"`
		// Only set on EVENT messages
		Event *Event `json:"event,omitempty"`
	}

	// A request to list the available Outputs
	OutputRequest struct {
		// Whether to include the modes an output supports
		IncludeModes bool `json:"include_modes"`
		// Target one specific output
		SpecifiesOutput bool `json:"specifies_output"`
		// Name of the output you want info on. Only matters if SpecifiesOutput is set
		TargetOutput string `json:"target_output"`
	}

	// Response to a OutputRequest message
	OutputResponse struct {
		// List of all outputs. Only contains target output if specified
		Outputs []Output `json:"outputs"`
		// Nr of outputs found
		OutputsFound int `json:"outputs_found"`
	}
)

// NewRequest builds a request, marshalling payload unless it is nil
func NewRequest(typ MessageType, payload any) (Request, error) {
	req := Request{Type: typ}
	if payload == nil {
		return req, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return req, err
	}
	req.Payload = raw
	return req, nil
}

func failure(typ MessageType, err error) Response {
	return Response{Type: typ, Error: err.Error()}
}

func success(typ MessageType, data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return failure(typ, err)
	}
	return Response{Type: typ, Success: true, Data: raw}
}
