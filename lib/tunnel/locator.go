// Copyright 2026 The Jonesy Authors
// SPDX-License-Identifier: Apache-2.0

// Package tunnel resolves the public base URL viewers use to reach a
// session's live event stream. The URL is discovered from a local
// tunnel agent (ngrok-style) that exposes its active tunnels over a
// loopback HTTP API.
package tunnel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultDiscoveryURL is the stock local tunnel agent API endpoint.
const DefaultDiscoveryURL = "http://127.0.0.1:4040/api/tunnels"

// Locator resolves and caches the public viewer base URL. It is the
// single owner of the cached value — there is no package-level state.
// Safe for concurrent use.
type Locator struct {
	discoveryURL string
	client       *http.Client

	mu     sync.Mutex
	cached string
}

// NewLocator creates a Locator that queries the given discovery
// endpoint. An empty discoveryURL selects DefaultDiscoveryURL.
func NewLocator(discoveryURL string) *Locator {
	if discoveryURL == "" {
		discoveryURL = DefaultDiscoveryURL
	}
	return &Locator{
		discoveryURL: discoveryURL,
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

// tunnelList is the discovery endpoint's response shape.
type tunnelList struct {
	Tunnels []struct {
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
	} `json:"tunnels"`
}

// Resolve returns the public base URL, querying the discovery
// endpoint on first use and caching the result. An https tunnel is
// preferred; a lone http tunnel is accepted. Resolution failure is
// returned to the caller unmasked — spawn treats it as a hard
// precondition failure rather than producing an unreachable session.
func (locator *Locator) Resolve(ctx context.Context) (string, error) {
	locator.mu.Lock()
	defer locator.mu.Unlock()

	if locator.cached != "" {
		return locator.cached, nil
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, locator.discoveryURL, nil)
	if err != nil {
		return "", fmt.Errorf("building tunnel discovery request: %w", err)
	}

	response, err := locator.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("querying tunnel agent at %s: %w", locator.discoveryURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tunnel agent returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading tunnel agent response: %w", err)
	}

	var list tunnelList
	if err := json.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("parsing tunnel agent response: %w", err)
	}

	url := selectPublicURL(list)
	if url == "" {
		return "", fmt.Errorf("tunnel agent reports no public tunnels")
	}

	locator.cached = url
	return url, nil
}

// Invalidate discards the cached URL so the next Resolve queries the
// discovery endpoint again. Call after a viewer-side connectivity
// failure (the tunnel agent may have restarted with a new hostname).
func (locator *Locator) Invalidate() {
	locator.mu.Lock()
	defer locator.mu.Unlock()
	locator.cached = ""
}

// selectPublicURL picks the best tunnel from the list: https wins,
// otherwise the first tunnel with a public URL.
func selectPublicURL(list tunnelList) string {
	fallback := ""
	for _, entry := range list.Tunnels {
		if entry.PublicURL == "" {
			continue
		}
		if entry.Proto == "https" || strings.HasPrefix(entry.PublicURL, "https://") {
			return strings.TrimSuffix(entry.PublicURL, "/")
		}
		if fallback == "" {
			fallback = strings.TrimSuffix(entry.PublicURL, "/")
		}
	}
	return fallback
}
