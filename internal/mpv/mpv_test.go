package mpv

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"
)

// fakeMPV answers IPC requests on the server side of a pipe.
type fakeMPV struct {
	conn     net.Conn
	commands chan []any
	props    map[string]any
}

func startFake(t *testing.T) (*Engine, *fakeMPV) {
	t.Helper()
	client, server := net.Pipe()
	f := &fakeMPV{
		conn:     server,
		commands: make(chan []any, 16),
		props:    map[string]any{"time-pos": 12.5, "duration": 90.0},
	}
	go f.serve()
	e := NewEngine(client)
	t.Cleanup(func() { _ = e.Close(); _ = server.Close() })
	return e, f
}

func (f *fakeMPV) serve() {
	scanner := bufio.NewScanner(f.conn)
	enc := json.NewEncoder(f.conn)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		f.commands <- req.Command
		resp := map[string]any{"request_id": req.RequestID, "error": "success"}
		if req.Command[0] == "get_property" {
			name := req.Command[1].(string)
			if v, ok := f.props[name]; ok {
				resp["data"] = v
			} else {
				resp["error"] = "property unavailable"
			}
		}
		_ = enc.Encode(resp)
	}
}

func (f *fakeMPV) event(name, reason string) {
	_ = json.NewEncoder(f.conn).Encode(map[string]any{"event": name, "reason": reason})
}

func TestEngine_TimeAndDuration(t *testing.T) {
	e, _ := startFake(t)

	tm, err := e.Time()
	if err != nil || tm != 12.5 {
		t.Fatalf("Time = %v, %v", tm, err)
	}
	d, err := e.Duration()
	if err != nil || d != 90 {
		t.Fatalf("Duration = %v, %v", d, err)
	}
}

func TestEngine_Commands(t *testing.T) {
	e, f := startFake(t)

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	cmd := <-f.commands
	if cmd[0] != "set_property" || cmd[1] != "pause" || cmd[2] != true {
		t.Fatalf("unexpected pause command %v", cmd)
	}

	if err := e.Seek(42); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	cmd = <-f.commands
	if cmd[0] != "seek" || cmd[1] != 42.0 || cmd[2] != "absolute" {
		t.Fatalf("unexpected seek command %v", cmd)
	}

	if err := e.Mute(); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	cmd = <-f.commands
	if cmd[1] != "mute" || cmd[2] != true {
		t.Fatalf("unexpected mute command %v", cmd)
	}
}

func TestEngine_PropertyError(t *testing.T) {
	e, f := startFake(t)
	delete(f.props, "time-pos")

	if _, err := e.Time(); err == nil {
		t.Fatal("expected error for unavailable property")
	}
}

func TestEngine_EndFileEvent(t *testing.T) {
	e, f := startFake(t)
	ended := make(chan struct{}, 1)
	e.OnEnded(func() { ended <- struct{}{} })

	go f.event("end-file", "stop")
	go f.event("end-file", "eof")

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("ended callback not invoked")
	}
	select {
	case <-ended:
		t.Fatal("only eof should end playback")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_ClosedConnection(t *testing.T) {
	client, server := net.Pipe()
	e := NewEngine(client)
	_ = server.Close()
	<-e.done

	if err := e.Play(); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
