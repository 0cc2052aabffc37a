// Package client implements a Go client for the library's framed JSON
// socket protocol. A Client owns one connection and serializes calls on it;
// responses are matched to requests by strict request/response ordering.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/server"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response is the decoded wire envelope. Data is kept raw so callers can
// unmarshal it into the type the action returns.
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Code    string              `json:"code,omitempty"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

// Options tune connection behaviour. Zero values pick defaults.
type Options struct {
	DialTimeout  time.Duration // default 5s
	CallTimeout  time.Duration // per-call read/write deadline, default 30s
	MaxFrameSize int           // default server.DefaultMaxFrameSize
}

// Client is a connected protocol client. Safe for concurrent use.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	opts Options
}

// Dial connects with default options.
func Dial(addr string) (*Client, error) {
	return DialWith(addr, Options{})
}

// DialWith connects to the server at addr.
func DialWith(addr string, opts Options) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = server.DefaultMaxFrameSize
	}
	conn, err := net.DialTimeout("tcp", addr, opts.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, opts: opts}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Do sends one request and reads its response envelope. A transport failure
// is an error; an unsuccessful envelope is not.
func (c *Client) Do(action string, data any) (*Response, error) {
	var payload jsoniter.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode request data: %w", err)
		}
		payload = encoded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.opts.CallTimeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if err := server.WriteMessage(c.conn, &server.Request{Action: action, Data: payload}); err != nil {
		return nil, fmt.Errorf("send %s: %w", action, err)
	}
	var resp Response
	if err := server.ReadMessage(c.conn, c.opts.MaxFrameSize, &resp); err != nil {
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}
	return &resp, nil
}

// Call sends one request and unmarshals the response data into out (which
// may be nil). An unsuccessful envelope comes back as a domain error
// carrying the server's code and message.
func (c *Client) Call(action string, data, out any) (*Response, error) {
	resp, err := c.Do(action, data)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		code := domainerrors.Code(resp.Code)
		if code == "" {
			code = domainerrors.CodeInternal
		}
		return resp, &domainerrors.Error{Code: code, Message: resp.Message}
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return resp, fmt.Errorf("decode %s response data: %w", action, err)
		}
	}
	return resp, nil
}
