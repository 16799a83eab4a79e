// SPDX-License-Identifier: Apache-2.0

// Package canvas talks to the visual workflow editor over WebSocket:
// it pushes workflow plans and progress, and blocks on the human
// approval gate. One read loop demultiplexes inbound envelopes to
// waiters registered by workflow id, so concurrent waits never steal
// or drop each other's messages.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/metrics"
)

const (
	dialRetries = 3
	ackTimeout  = 10 * time.Second
)

var errNotConnected = errors.New("canvas: not connected")

type Client struct {
	wsURL  string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	waiters map[string][]chan Envelope
	closed  chan struct{}
}

func NewClient(wsURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		wsURL:   wsURL,
		logger:  logger,
		waiters: make(map[string][]chan Envelope),
	}
}

// Connect dials the canvas endpoint, retrying with exponential backoff
// a bounded number of times, and starts the demux read loop.
func (c *Client) Connect(ctx context.Context) error {
	dial := func() error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), dialRetries), ctx)
	if err := backoff.Retry(dial, policy); err != nil {
		return fmt.Errorf("canvas dial %s: %w", c.wsURL, err)
	}

	c.closed = make(chan struct{})
	go c.readLoop()

	c.logger.Info("connected to canvas", "url", c.wsURL)
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.closed)

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.logger.Debug("canvas read loop ended", "error", err)
			return
		}

		metrics.IncCanvasMessage(string(env.Type), "recv")
		c.dispatch(env)
	}
}

// dispatch fans an envelope out to every waiter registered for its
// workflow id; an envelope without a correlation id goes to everyone.
func (c *Client) dispatch(env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deliver := func(chans []chan Envelope) {
		for _, ch := range chans {
			select {
			case ch <- env:
			default:
				c.logger.Warn("canvas waiter queue full, dropping",
					"type", env.Type, "workflow_id", env.WorkflowID)
			}
		}
	}

	if env.WorkflowID == "" {
		for _, chans := range c.waiters {
			deliver(chans)
		}
		return
	}
	deliver(c.waiters[env.WorkflowID])
}

// register adds a waiter for a workflow id and returns its channel plus
// a cancel func that removes it.
func (c *Client) register(workflowID string) (chan Envelope, func()) {
	ch := make(chan Envelope, 8)

	c.mu.Lock()
	c.waiters[workflowID] = append(c.waiters[workflowID], ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		chans := c.waiters[workflowID]
		for i, candidate := range chans {
			if candidate == ch {
				c.waiters[workflowID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(c.waiters[workflowID]) == 0 {
			delete(c.waiters, workflowID)
		}
	}
	return ch, cancel
}

func (c *Client) send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errNotConnected
	}
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("canvas send %s: %w", env.Type, err)
	}
	metrics.IncCanvasMessage(string(env.Type), "send")
	return nil
}

// SendWorkflow pushes a workflow plan to the canvas for visualization
// and waits for the workflow:created acknowledgment.
func (c *Client) SendWorkflow(ctx context.Context, wf *domain.Workflow) error {
	ch, cancel := c.register(wf.ID)
	defer cancel()

	data, err := json.Marshal(createData{
		Name:        wf.Name,
		Description: wf.Description,
		Steps:       wf.Steps,
		SkillsUsed:  wf.SkillsUsed,
		Metadata:    wf.Metadata,
	})
	if err != nil {
		return fmt.Errorf("canvas marshal workflow: %w", err)
	}

	if err := c.send(Envelope{
		Type:       TypeCreate,
		WorkflowID: wf.ID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}); err != nil {
		return err
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()

	for {
		select {
		case env := <-ch:
			if env.Type == TypeCreated {
				c.logger.Info("canvas acknowledged workflow", "workflow_id", wf.ID)
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("canvas: timeout waiting for %s ack", TypeCreated)
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return errors.New("canvas: connection closed")
		}
	}
}

// WaitForExport blocks until the canvas exports the workflow (approval,
// possibly carrying edited steps), the operator cancels it, or the
// timeout elapses. Cancellation and timeout both return a nil Export
// with a nil error: not approved, but not a failure either.
func (c *Client) WaitForExport(ctx context.Context, workflowID string, timeout time.Duration) (*Export, error) {
	ch, cancel := c.register(workflowID)
	defer cancel()

	c.logger.Info("waiting for canvas export",
		"workflow_id", workflowID,
		"timeout", timeout,
	)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case env := <-ch:
			switch env.Type {
			case TypeExport:
				var export Export
				if len(env.Data) > 0 {
					if err := json.Unmarshal(env.Data, &export); err != nil {
						return nil, fmt.Errorf("canvas parse export: %w", err)
					}
					export.Raw = env.Data
				}
				c.logger.Info("received canvas export", "workflow_id", workflowID)
				return &export, nil
			case TypeCancel:
				c.logger.Info("workflow cancelled by operator", "workflow_id", workflowID)
				return nil, nil
			}
		case <-timer.C:
			c.logger.Warn("timeout waiting for canvas export",
				"workflow_id", workflowID, "waited", timeout)
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closed:
			return nil, errors.New("canvas: connection closed")
		}
	}
}

// UpdateProgress pushes a step status change to the canvas.
func (c *Client) UpdateProgress(workflowID string, stepID int, status string, progressPercent int) error {
	data, err := json.Marshal(progressData{
		CurrentStep:     stepID,
		Status:          status,
		ProgressPercent: progressPercent,
	})
	if err != nil {
		return err
	}
	return c.send(Envelope{
		Type:       TypeProgress,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	})
}

// SendCompletion notifies the canvas that a workflow finished.
func (c *Client) SendCompletion(workflowID string, outputs domain.Outputs) error {
	data, err := json.Marshal(completeData{
		Status:  string(domain.WorkflowCompleted),
		Outputs: outputs,
	})
	if err != nil {
		return err
	}
	return c.send(Envelope{
		Type:       TypeComplete,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	})
}
