// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package agentevent

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestNormalizeSystemRecordMapsToNothing(t *testing.T) {
	t.Parallel()

	line := `{"type":"system","subtype":"init","session_id":"abc","tools":["Read","Bash"]}`
	if events := Normalize(RawEvent(line)); events != nil {
		t.Errorf("system record produced %d events, want 0", len(events))
	}
}

func TestNormalizeUnknownRecordMapsToNothing(t *testing.T) {
	t.Parallel()

	line := `{"type":"telemetry","payload":{"x":1}}`
	if events := Normalize(RawEvent(line)); events != nil {
		t.Errorf("unknown record produced %d events, want 0", len(events))
	}
}

func TestNormalizeAssistantBlocks(t *testing.T) {
	t.Parallel()

	line := `{"type":"assistant","message":{"content":[
		{"type":"text","text":"Let me check the directory."},
		{"type":"tool_use","id":"tu-1","name":"Bash","input":{"command":"ls -la"}}
	]}}`

	events := Normalize(RawEvent(line))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	if events[0].Type != TypeAssistantText {
		t.Errorf("event[0].Type = %q, want assistant_text", events[0].Type)
	}
	if events[0].AssistantText.Text != "Let me check the directory." {
		t.Errorf("event[0] text = %q", events[0].AssistantText.Text)
	}

	if events[1].Type != TypeToolInvocation {
		t.Errorf("event[1].Type = %q, want tool_invocation", events[1].Type)
	}
	if events[1].ToolInvocation.Name != "Bash" {
		t.Errorf("event[1] tool name = %q, want Bash", events[1].ToolInvocation.Name)
	}
	if !strings.Contains(events[1].ToolInvocation.Input, "ls -la") {
		t.Errorf("event[1] input = %q, should contain the command", events[1].ToolInvocation.Input)
	}
}

func TestNormalizeToolResult(t *testing.T) {
	t.Parallel()

	line := `{"type":"user","message":{"content":[
		{"type":"tool_result","tool_use_id":"tu-1","content":"total 8\ndrwxr-xr-x","is_error":false}
	]}}`

	events := Normalize(RawEvent(line))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != TypeToolResult {
		t.Errorf("Type = %q, want tool_result", events[0].Type)
	}
	if !strings.HasPrefix(events[0].ToolResult.Output, "total 8") {
		t.Errorf("Output = %q", events[0].ToolResult.Output)
	}
	if events[0].ToolResult.IsError {
		t.Error("IsError should be false")
	}
}

func TestNormalizeToolResultBlockContent(t *testing.T) {
	t.Parallel()

	// tool_result content can be an array of blocks rather than a
	// plain string; the raw JSON form is preserved.
	line := `{"type":"user","message":{"content":[
		{"type":"tool_result","content":[{"type":"text","text":"file written"}],"is_error":true}
	]}}`

	events := Normalize(RawEvent(line))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !strings.Contains(events[0].ToolResult.Output, "file written") {
		t.Errorf("Output = %q, should contain block text", events[0].ToolResult.Output)
	}
	if !events[0].ToolResult.IsError {
		t.Error("IsError should be true")
	}
}

func TestNormalizeCompletion(t *testing.T) {
	t.Parallel()

	line := `{"type":"result","subtype":"success","result":"All files listed.","duration_ms":4500,"total_cost_usd":0.015,"num_turns":3}`

	events := Normalize(RawEvent(line))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	completion := events[0].Completion
	if completion == nil {
		t.Fatal("Completion payload missing")
	}
	if completion.Summary != "All files listed." {
		t.Errorf("Summary = %q", completion.Summary)
	}
	if completion.DurationSeconds < 4.4 || completion.DurationSeconds > 4.6 {
		t.Errorf("DurationSeconds = %f, want ~4.5", completion.DurationSeconds)
	}
	if completion.CostUSD != 0.015 {
		t.Errorf("CostUSD = %f, want 0.015", completion.CostUSD)
	}
}

func TestNormalizeTruncatesToolInput(t *testing.T) {
	t.Parallel()

	// A 5000-character input must come back as 2000 characters plus a
	// marker stating that 3000 characters were cut.
	longValue := strings.Repeat("x", 4992) // {"c":"…"} framing adds 8 chars = 5000 total
	record := map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": []map[string]any{
				{"type": "tool_use", "name": "Write", "input": map[string]any{"c": longValue}},
			},
		},
	}
	line, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	events := Normalize(RawEvent(line))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	input := events[0].ToolInvocation.Input
	marker := "3000 more chars"
	if !strings.Contains(input, marker) {
		t.Errorf("input marker missing %q, tail: %q", marker, input[len(input)-40:])
	}
	withoutMarker := input[:strings.LastIndex(input, "... [")]
	if len(withoutMarker) != 2000 {
		t.Errorf("truncated input is %d chars, want 2000", len(withoutMarker))
	}
}

func TestNormalizeTruncatesSummary(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("s", 4100)
	line := fmt.Sprintf(`{"type":"result","result":%q}`, long)

	events := Normalize(RawEvent(line))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	summary := events[0].Completion.Summary
	if !strings.Contains(summary, "100 more chars") {
		t.Errorf("summary marker missing, tail: %q", summary[len(summary)-40:])
	}
}

func TestNormalizeEmptyTextBlockSkipped(t *testing.T) {
	t.Parallel()

	line := `{"type":"assistant","message":{"content":[{"type":"text","text":""}]}}`
	if events := Normalize(RawEvent(line)); events != nil {
		t.Errorf("empty text block produced %d events, want 0", len(events))
	}
}
