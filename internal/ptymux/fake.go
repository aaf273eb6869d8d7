package ptymux

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FakeMultiplexer is an in-memory Multiplexer for tests and for running the
// gateway without a real terminal backend wired in.
type FakeMultiplexer struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
}

// NewFakeMultiplexer returns an empty FakeMultiplexer.
func NewFakeMultiplexer() *FakeMultiplexer {
	return &FakeMultiplexer{sessions: make(map[string]*fakeSession)}
}

func (m *FakeMultiplexer) Create(ctx context.Context, target string) (Session, error) {
	s := &fakeSession{id: uuid.NewString(), target: target, buf: &bytes.Buffer{}}
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s, nil
}

func (m *FakeMultiplexer) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *FakeMultiplexer) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("ptymux: unknown session %q", id)
	}
	delete(m.sessions, id)
	return s.Close()
}

type fakeSession struct {
	id     string
	target string
	mu     sync.Mutex
	buf    *bytes.Buffer
	closed bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("ptymux: session %q closed", s.id)
	}
	return s.buf.Write(p)
}

func (s *fakeSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Read(p)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
