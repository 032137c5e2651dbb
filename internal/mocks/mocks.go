package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type PresenceMirrorMock struct {
	mock.Mock
}

func (m *PresenceMirrorMock) SetOnline(ctx context.Context, userID, connID string) error {
	args := m.Called(ctx, userID, connID)
	return args.Error(0)
}

func (m *PresenceMirrorMock) SetOffline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type AttachmentSignerMock struct {
	mock.Mock
}

func (m *AttachmentSignerMock) DownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// Conn is an in-memory connection that records every frame it is sent.
type Conn struct {
	mu     sync.Mutex
	id     string
	frames [][]byte
	Err    error
}

func NewConn(id string) *Conn {
	return &Conn{id: id}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *Conn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
