// Package broker connects to an external tool broker over WebSocket. The
// broker advertises extra capabilities at session start; each invocation is
// a synchronous request/response frame pair on the same connection.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatstream-backend/internal/tools"
)

const (
	typeListTools  = "list_tools"
	typeToolList   = "tool_list"
	typeToolCall   = "tool_call"
	typeToolResult = "tool_result"
	typeError      = "error"
)

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    string          `json:"output,omitempty"`
	Tools     []toolAdvert    `json:"tools,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type toolAdvert struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Session is one broker connection. Calls are serialized on the connection;
// Close is safe to call more than once and from multiple goroutines.
type Session struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
	seq       int
}

// Dial connects to the broker and returns an open session.
func Dial(ctx context.Context, brokerURL string) (*Session, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.DialContext(ctx, brokerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial tool broker: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Close releases the broker connection. Subsequent calls are no-ops.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) roundTrip(req frame) (frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	req.RequestID = fmt.Sprintf("req_%d", s.seq)

	if err := s.conn.WriteJSON(req); err != nil {
		return frame{}, fmt.Errorf("broker write failed: %w", err)
	}

	for {
		var resp frame
		if err := s.conn.ReadJSON(&resp); err != nil {
			return frame{}, fmt.Errorf("broker read failed: %w", err)
		}
		if resp.RequestID != "" && resp.RequestID != req.RequestID {
			log.Printf("WARN [Broker] roundTrip: dropping frame for stale request %s", resp.RequestID)
			continue
		}
		if resp.Type == typeError {
			return frame{}, fmt.Errorf("broker error: %s", resp.Message)
		}
		return resp, nil
	}
}

// ListTools asks the broker for its capability set. The returned
// capabilities execute by calling back through this session.
func (s *Session) ListTools() ([]tools.Capability, error) {
	resp, err := s.roundTrip(frame{Type: typeListTools})
	if err != nil {
		return nil, err
	}
	if resp.Type != typeToolList {
		return nil, fmt.Errorf("expected %s frame, got: %s", typeToolList, resp.Type)
	}

	caps := make([]tools.Capability, 0, len(resp.Tools))
	for _, adv := range resp.Tools {
		adv := adv
		caps = append(caps, tools.Capability{
			Name:        adv.Name,
			Description: adv.Description,
			InputSchema: adv.InputSchema,
			Execute: func(ctx context.Context, input json.RawMessage) (string, error) {
				return s.Call(ctx, adv.Name, input)
			},
		})
	}
	return caps, nil
}

// Call invokes one broker tool and waits for its result.
func (s *Session) Call(ctx context.Context, name string, input json.RawMessage) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetReadDeadline(deadline)
		defer s.conn.SetReadDeadline(time.Time{})
	}

	resp, err := s.roundTrip(frame{Type: typeToolCall, Name: name, Input: input})
	if err != nil {
		return "", err
	}
	if resp.Type != typeToolResult {
		return "", fmt.Errorf("expected %s frame, got: %s", typeToolResult, resp.Type)
	}
	return resp.Output, nil
}
