// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package agentevent

import (
	"encoding/json"
	"fmt"
)

// Truncation bounds for normalized text. Full raw records remain
// available via subscriber replay; these bounds only protect polling
// clients from arbitrarily verbose transcripts.
const (
	// maxToolTextLength bounds tool inputs and tool result output.
	maxToolTextLength = 2000

	// maxSummaryLength bounds the final result summary.
	maxSummaryLength = 4000
)

// envelope is the common shape of one stream-json line. Each line is a
// JSON object with a "type" field; the remaining fields depend on the
// type. Unknown types and unknown block shapes map to nothing — the
// normalizer never fails on a recognized-as-JSON line.
type envelope struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`

	// Message carries the content blocks for assistant and user records.
	Message *message `json:"message"`

	// Result fields for terminal "result" records.
	Result       string  `json:"result"`
	DurationMS   float64 `json:"duration_ms"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// message is the nested message body of assistant and user records.
type message struct {
	Content []contentBlock `json:"content"`
}

// contentBlock is a single block inside a message's content array.
// The shape is a tagged variant on Type: "text" carries Text,
// "tool_use" carries Name and Input, "tool_result" carries Content
// and IsError.
type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

// Normalize maps one raw stream-json record to zero or more normalized
// events. It is pure and stateless:
//
//   - system records (init, status) map to nothing.
//   - assistant records produce one event per text block and one per
//     tool_use block, with tool input serialized and truncated.
//   - user records produce one event per tool_result block.
//   - result records produce a single completion event.
//   - unknown record types map to nothing.
//
// Returns nil for records that carry nothing client-facing. Normalize
// never returns an error: records that cannot be interpreted are
// skipped (callers drop malformed lines before they reach here).
func Normalize(raw RawEvent) []Event {
	var record envelope
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil
	}

	switch record.Type {
	case "assistant":
		return normalizeAssistant(record)
	case "user":
		return normalizeUser(record)
	case "result":
		return []Event{{
			Type: TypeCompletion,
			Completion: &Completion{
				Summary:         truncate(record.Result, maxSummaryLength),
				DurationSeconds: record.DurationMS / 1000.0,
				CostUSD:         record.TotalCostUSD,
			},
		}}
	default:
		return nil
	}
}

// normalizeAssistant projects the content blocks of an assistant
// record: text blocks and tool_use blocks, in block order.
func normalizeAssistant(record envelope) []Event {
	if record.Message == nil {
		return nil
	}
	var events []Event
	for _, block := range record.Message.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			events = append(events, Event{
				Type:          TypeAssistantText,
				AssistantText: &AssistantText{Text: block.Text},
			})
		case "tool_use":
			events = append(events, Event{
				Type: TypeToolInvocation,
				ToolInvocation: &ToolInvocation{
					Name:  block.Name,
					Input: truncate(string(block.Input), maxToolTextLength),
				},
			})
		}
	}
	return events
}

// normalizeUser projects tool_result blocks carried by user-role
// records. The block content is either a plain string or an array of
// nested blocks; non-string content is preserved as its JSON
// serialization.
func normalizeUser(record envelope) []Event {
	if record.Message == nil {
		return nil
	}
	var events []Event
	for _, block := range record.Message.Content {
		if block.Type != "tool_result" {
			continue
		}
		events = append(events, Event{
			Type: TypeToolResult,
			ToolResult: &ToolResult{
				Output:  truncate(resultText(block.Content), maxToolTextLength),
				IsError: block.IsError,
			},
		})
	}
	return events
}

// resultText extracts display text from a tool_result content field,
// which is either a JSON string or an arbitrary JSON value (typically
// an array of text blocks). Non-string values keep their raw JSON
// form — still bounded by the caller's truncation.
func resultText(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return text
	}
	return string(content)
}

// truncate bounds s to limit runes, appending an elision marker that
// states how many characters were cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + fmt.Sprintf("... [%d more chars]", len(runes)-limit)
}
