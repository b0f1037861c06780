// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentevent parses the line-delimited stream-json output of
// the coding-agent CLI. Raw lines are kept verbatim for replay and
// persistence; Normalize projects them into a small client-facing
// event union.
package agentevent

import "encoding/json"

// RawEvent is one line of the agent's stream-json output, preserved
// verbatim. Raw events are what the session log stores and what the
// viewer relay replays; normalized events are derived from them on
// demand.
type RawEvent = json.RawMessage

// Type classifies normalized events.
type Type string

const (
	// TypeAssistantText is a text block from an assistant message.
	TypeAssistantText Type = "assistant_text"

	// TypeToolInvocation is a tool_use block from an assistant message.
	TypeToolInvocation Type = "tool_invocation"

	// TypeToolResult is a tool_result block from a user message.
	TypeToolResult Type = "tool_result"

	// TypeCompletion is the terminal result record of a session.
	TypeCompletion Type = "completion"
)

// Event is a normalized, client-facing projection of a raw event.
// Exactly one of the payload pointers is set, matching Type.
type Event struct {
	// Type classifies the event.
	Type Type `json:"type"`

	// AssistantText is set for TypeAssistantText events.
	AssistantText *AssistantText `json:"assistant_text,omitempty"`

	// ToolInvocation is set for TypeToolInvocation events.
	ToolInvocation *ToolInvocation `json:"tool_invocation,omitempty"`

	// ToolResult is set for TypeToolResult events.
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// Completion is set for TypeCompletion events.
	Completion *Completion `json:"completion,omitempty"`
}

// AssistantText is a text response from the agent.
type AssistantText struct {
	// Text is the response text.
	Text string `json:"text"`
}

// ToolInvocation is a tool call by the agent.
type ToolInvocation struct {
	// Name is the tool name (e.g., "Read", "Bash", "Edit").
	Name string `json:"name"`

	// Input is the string-serialized tool input, truncated to
	// maxToolTextLength with an elision marker.
	Input string `json:"input"`
}

// ToolResult is the output returned from a tool invocation.
type ToolResult struct {
	// Output is the tool result text, truncated to maxToolTextLength.
	Output string `json:"output"`

	// IsError indicates the tool call failed.
	IsError bool `json:"is_error,omitempty"`
}

// Completion is the terminal summary of a session.
type Completion struct {
	// Summary is the agent's final result text, truncated to
	// maxSummaryLength.
	Summary string `json:"summary"`

	// DurationSeconds is the session wall-clock duration.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	// CostUSD is the total session cost in USD.
	CostUSD float64 `json:"cost_usd,omitempty"`
}
