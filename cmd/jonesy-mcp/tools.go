// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jonesyjs/mcp-server/lib/agentevent"
	"github.com/jonesyjs/mcp-server/lib/config"
	"github.com/jonesyjs/mcp-server/lib/persona"
	"github.com/jonesyjs/mcp-server/lib/session"
)

// toolServer holds the dependencies the MCP tool handlers close over.
type toolServer struct {
	registry *session.Registry
	cfg      *config.Config
	personas *persona.Library
	skills   *persona.Library
	logger   *slog.Logger
}

func newToolServer(registry *session.Registry, cfg *config.Config, logger *slog.Logger) *toolServer {
	return &toolServer{
		registry: registry,
		cfg:      cfg,
		personas: persona.NewLibrary(cfg.Personas),
		skills:   persona.NewLibrary(cfg.Skills),
		logger:   logger,
	}
}

// build creates the MCP server and registers every tool.
func (t *toolServer) build() *server.MCPServer {
	s := server.NewMCPServer(
		"jonesy",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("agent_spawn",
		mcp.WithDescription("Start a coding-agent session on a configured project. "+
			"Returns the session id and a viewer URL for watching the session live."),
		mcp.WithString("project", mcp.Required(),
			mcp.Description("Name of a configured project")),
		mcp.WithString("task", mcp.Required(),
			mcp.Description("Instruction for the agent")),
		mcp.WithNumber("timeout_seconds",
			mcp.Description("Wall-clock limit for the session; 0 uses the configured default")),
	), t.handleSpawn)

	s.AddTool(mcp.NewTool("agent_kill",
		mcp.WithDescription("Terminate a running session. Safe to call more than once."),
		mcp.WithString("session_id", mcp.Required(),
			mcp.Description("Session to terminate")),
	), t.handleKill)

	s.AddTool(mcp.NewTool("agent_status",
		mcp.WithDescription("Report a session's status and its normalized events from a given index. "+
			"Poll with the returned next_index to read incrementally."),
		mcp.WithString("session_id", mcp.Required(),
			mcp.Description("Session to inspect")),
		mcp.WithNumber("from_index",
			mcp.Description("Raw event index to read from (default 0)")),
	), t.handleStatus)

	s.AddTool(mcp.NewTool("agent_list",
		mcp.WithDescription("List all sessions, oldest first."),
	), t.handleList)

	s.AddTool(mcp.NewTool("project_list",
		mcp.WithDescription("List the configured projects agents can work on."),
	), t.handleProjectList)

	s.AddTool(mcp.NewTool("persona_list",
		mcp.WithDescription("List available persona documents."),
	), listLibrary(t.personas))

	s.AddTool(mcp.NewTool("persona_get",
		mcp.WithDescription("Read a persona document by name."),
		mcp.WithString("name", mcp.Required(),
			mcp.Description("Persona name, without the .md extension")),
	), readLibrary(t.personas))

	s.AddTool(mcp.NewTool("skill_list",
		mcp.WithDescription("List available skill documents."),
	), listLibrary(t.skills))

	s.AddTool(mcp.NewTool("skill_get",
		mcp.WithDescription("Read a skill document by name."),
		mcp.WithString("name", mcp.Required(),
			mcp.Description("Skill name, without the .md extension")),
	), readLibrary(t.skills))

	return s
}

// spawnResponse is the agent_spawn result body.
type spawnResponse struct {
	SessionID string `json:"session_id"`
	ViewerURL string `json:"viewer_url,omitempty"`
	PID       int    `json:"pid"`
	Status    string `json:"status"`
}

func (t *toolServer) handleSpawn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := request.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeout := time.Duration(request.GetFloat("timeout_seconds", 0) * float64(time.Second))

	info, err := t.registry.Spawn(ctx, session.SpawnRequest{
		Project: project,
		Task:    task,
		Timeout: timeout,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(spawnResponse{
		SessionID: info.ID,
		ViewerURL: info.TunnelURL,
		PID:       info.PID,
		Status:    string(info.Status),
	})
}

func (t *toolServer) handleKill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := t.registry.Kill(sessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("termination requested for session %s", sessionID)), nil
}

// statusResponse is the agent_status result body.
type statusResponse struct {
	Info      session.Info       `json:"info"`
	Events    []agentevent.Event `json:"events"`
	NextIndex int                `json:"next_index"`
}

func (t *toolServer) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fromIndex := int(request.GetFloat("from_index", 0))

	// One locked read so the status and the event list cannot disagree.
	info, events, next, err := t.registry.Snapshot(sessionID, fromIndex)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if events == nil {
		events = []agentevent.Event{}
	}
	return jsonResult(statusResponse{Info: info, Events: events, NextIndex: next})
}

func (t *toolServer) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.registry.List())
}

// projectEntry is one project_list row.
type projectEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

func (t *toolServer) handleProjectList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := make([]projectEntry, 0, len(t.cfg.Projects))
	for _, project := range t.cfg.Projects {
		entries = append(entries, projectEntry{
			Name:        project.Name,
			Path:        project.Path,
			Description: project.Description,
		})
	}
	return jsonResult(entries)
}

// listLibrary builds a handler that lists a document library.
func listLibrary(library *persona.Library) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := library.List()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(names)
	}
}

// readLibrary builds a handler that reads one named document.
func readLibrary(library *persona.Library) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := library.Read(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(content), nil
	}
}

// jsonResult marshals v as indented JSON into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
