// Package session runs server-side playback sessions: one Player per viewer,
// driven over HTTP and reaped when idle.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sendrec/ivplayer/internal/events"
	"github.com/sendrec/ivplayer/internal/playback"
	"github.com/sendrec/ivplayer/internal/player"
	"github.com/sendrec/ivplayer/internal/scheduler"
	"github.com/sendrec/ivplayer/internal/video"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
)

const (
	DefaultIdleTTL     = 10 * time.Minute
	DefaultMaxSessions = 1000
	reapInterval       = 30 * time.Second
)

// Catalog resolves share tokens and records views.
type Catalog interface {
	Lookup(ctx context.Context, shareToken string) (*video.Watch, error)
	RecordView(ctx context.Context, videoID, sessionID, ip, userAgent string) error
}

type Config struct {
	Catalog     Catalog
	Publisher   events.Publisher
	Registry    scheduler.Registry
	IdleTTL     time.Duration
	MaxSessions int
	// Speed scales the virtual clock of every session.
	Speed    float64
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

type Session struct {
	ID         string
	VideoID    string
	ShareToken string
	Title      string
	CreatedAt  time.Time

	Player *player.Player

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = now
}

func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

type Manager struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg Config) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Registry == nil {
		cfg.Registry = player.NewHeadlessRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, log: logger, sessions: make(map[string]*Session)}
}

func newID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create starts a paused session for the video behind shareToken.
func (m *Manager) Create(ctx context.Context, shareToken, userAgent, ip string) (*Session, error) {
	if m.Len() >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	watch, err := m.cfg.Catalog.Lookup(ctx, shareToken)
	if err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}

	engine, err := playback.NewClockEngine(watch.Duration, playback.WithSpeed(m.cfg.Speed))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	logger := m.log.With("session_id", id, "video_id", watch.VideoID)
	publisher := m.cfg.Publisher
	p, err := player.New(player.Config{
		Interactions: watch.Interactions,
		Engine:       engine,
		Registry:     m.cfg.Registry,
		UserAgent:    userAgent,
		Interval:     m.cfg.Interval,
		Logger:       logger,
		OnChange: func(c scheduler.Change) {
			publisher.Publish(events.Event{
				SessionID:     id,
				VideoID:       watch.VideoID,
				Kind:          string(c.Kind),
				InteractionID: c.ID,
				Second:        c.Second,
				At:            m.cfg.Now(),
			})
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}

	now := m.cfg.Now()
	s := &Session{
		ID:         id,
		VideoID:    watch.VideoID,
		ShareToken: shareToken,
		Title:      watch.Title,
		CreatedAt:  now,
		Player:     p,
		lastUsed:   now,
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		p.Close()
		return nil, ErrTooManySessions
	}
	m.sessions[id] = s
	m.mu.Unlock()

	if err := m.cfg.Catalog.RecordView(ctx, watch.VideoID, id, ip, userAgent); err != nil {
		logger.Warn("session: failed to record view", "error", err)
	}
	logger.Info("session: created", "interactions", len(watch.Interactions))
	return s, nil
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.cfg.Now())
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Player.Close()
	m.log.Info("session: closed", "session_id", id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap closes sessions idle for longer than the TTL and returns how many it
// closed.
func (m *Manager) Reap() int {
	cutoff := m.cfg.Now().Add(-m.cfg.IdleTTL)

	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Player.Close()
	}
	if len(idle) > 0 {
		m.log.Info("session: reaped idle sessions", "count", len(idle))
	}
	return len(idle)
}

// CloseAll tears every session down.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Player.Close()
	}
}

// Run reaps idle sessions until ctx is done, then closes the rest.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case <-ticker.C:
			m.Reap()
		}
	}
}
