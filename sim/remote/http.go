package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim"
)

// HTTPChannel is a compute channel that POSTs each trial to an engine server.
type HTTPChannel struct {
	baseURL    string
	httpClient *http.Client
}

var _ sim.ComputeChannel = (*HTTPChannel)(nil)

// NewHTTPChannel creates a channel for the engine at baseURL, e.g.
// http://host:8090.
func NewHTTPChannel(baseURL string) *HTTPChannel {
	return &HTTPChannel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Simulate posts the request to /simulate and decodes the response strictly.
func (c *HTTPChannel) Simulate(ctx context.Context, req sim.TrialRequest) (sim.TrialResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return sim.TrialResponse{}, fmt.Errorf("marshal error: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/simulate", bytes.NewReader(body))
	if err != nil {
		return sim.TrialResponse{}, fmt.Errorf("request creation error: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return sim.TrialResponse{}, fmt.Errorf("HTTP error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return sim.TrialResponse{}, fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			return sim.TrialResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, eb.Error)
		}
		return sim.TrialResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out sim.TrialResponse
	if err := decodeStrict(data, &out); err != nil {
		return sim.TrialResponse{}, err
	}
	return out, nil
}

// Cancel posts to /cancel without waiting for the answer.
func (c *HTTPChannel) Cancel() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cancel", nil)
		if err != nil {
			logrus.Warnf("http channel: cancel request: %v", err)
			return
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			logrus.Warnf("http channel: sending cancel: %v", err)
			return
		}
		_ = resp.Body.Close()
	}()
}
