// Package mpv drives a running mpv instance over its JSON IPC socket
// (mpv --input-ipc-server=PATH).
package mpv

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

var ErrClosed = errors.New("mpv connection closed")

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type message struct {
	Event     string          `json:"event"`
	Reason    string          `json:"reason"`
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
}

// Engine implements playback.Engine against mpv.
type Engine struct {
	conn    net.Conn
	timeout time.Duration

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message
	closed  bool

	onLoaded func()
	onEnded  func()
	done     chan struct{}
}

// Dial connects to socketPath. Paths containing a colon are treated as TCP
// addresses.
func Dial(socketPath string) (*Engine, error) {
	network := "unix"
	if strings.Contains(socketPath, ":") {
		network = "tcp"
	}
	conn, err := net.DialTimeout(network, socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial mpv %s: %w", socketPath, err)
	}
	return NewEngine(conn), nil
}

func NewEngine(conn net.Conn) *Engine {
	e := &Engine{
		conn:    conn,
		timeout: 5 * time.Second,
		pending: make(map[int64]chan message),
		done:    make(chan struct{}),
	}
	go e.readLoop()
	return e
}

func (e *Engine) readLoop() {
	defer close(e.done)
	scanner := bufio.NewScanner(e.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			slog.Warn("mpv: undecodable message", "error", err)
			continue
		}
		if msg.Event != "" {
			e.dispatch(msg)
			continue
		}
		e.mu.Lock()
		ch, ok := e.pending[msg.RequestID]
		delete(e.pending, msg.RequestID)
		e.mu.Unlock()
		if ok {
			ch <- msg
		}
	}

	e.mu.Lock()
	e.closed = true
	for id, ch := range e.pending {
		close(ch)
		delete(e.pending, id)
	}
	e.mu.Unlock()
}

func (e *Engine) dispatch(msg message) {
	e.mu.Lock()
	loaded, ended := e.onLoaded, e.onEnded
	e.mu.Unlock()

	switch msg.Event {
	case "file-loaded":
		if loaded != nil {
			go loaded()
		}
	case "end-file":
		if msg.Reason == "eof" && ended != nil {
			go ended()
		}
	}
}

func (e *Engine) command(args ...any) (json.RawMessage, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.nextID++
	id := e.nextID
	ch := make(chan message, 1)
	e.pending[id] = ch
	e.mu.Unlock()

	payload, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}

	e.writeMu.Lock()
	_, err = e.conn.Write(append(payload, '\n'))
	e.writeMu.Unlock()
	if err != nil {
		e.forget(id)
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-time.After(e.timeout):
		e.forget(id)
		return nil, fmt.Errorf("mpv %v: timed out", args[0])
	}
}

func (e *Engine) forget(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, id)
}

func (e *Engine) setProperty(name string, value any) error {
	_, err := e.command("set_property", name, value)
	return err
}

func (e *Engine) floatProperty(name string) (float64, error) {
	data, err := e.command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("decode %s: %w", name, err)
	}
	return v, nil
}

func (e *Engine) Play() error  { return e.setProperty("pause", false) }
func (e *Engine) Pause() error { return e.setProperty("pause", true) }

func (e *Engine) Seek(seconds float64) error {
	_, err := e.command("seek", seconds, "absolute")
	return err
}

func (e *Engine) Time() (float64, error)     { return e.floatProperty("time-pos") }
func (e *Engine) Duration() (float64, error) { return e.floatProperty("duration") }
func (e *Engine) Mute() error                { return e.setProperty("mute", true) }
func (e *Engine) Unmute() error              { return e.setProperty("mute", false) }

func (e *Engine) OnLoaded(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLoaded = fn
}

func (e *Engine) OnEnded(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnded = fn
}

// ShowText displays an OSD message for d.
func (e *Engine) ShowText(text string, d time.Duration) error {
	_, err := e.command("show-text", text, d.Milliseconds())
	return err
}

func (e *Engine) Close() error {
	err := e.conn.Close()
	<-e.done
	return err
}
