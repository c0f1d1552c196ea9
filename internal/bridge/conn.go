package bridge

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrConnClosed reports a send or receive on a closed channel end.
var ErrConnClosed = errors.New("bridge: connection closed")

// Conn is one end of the typed message channel between the application
// and the remote plugin. Receive blocks until a message arrives or the
// channel dies.
type Conn interface {
	Send(env Envelope) error
	Receive() (Envelope, error)
	Close() error
}

// Pipe returns two connected in-memory channel ends. Used for tests and
// for hosting the plugin handler in the same process.
func Pipe() (Conn, Conn) {
	ab := make(chan Envelope, 16)
	ba := make(chan Envelope, 16)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &pipeConn{out: ab, in: ba, done: done, once: once}
	b := &pipeConn{out: ba, in: ab, done: done, once: once}
	return a, b
}

type pipeConn struct {
	out  chan Envelope
	in   chan Envelope
	done chan struct{}
	once *sync.Once
}

func (c *pipeConn) Send(env Envelope) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case c.out <- env:
		return nil
	}
}

func (c *pipeConn) Receive() (Envelope, error) {
	select {
	case <-c.done:
		return Envelope{}, ErrConnClosed
	case env := <-c.in:
		return env, nil
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// WSConn adapts a websocket connection to the channel contract. Writes
// are serialized; gorilla allows only one concurrent writer.
type WSConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) Send(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *WSConn) Receive() (Envelope, error) {
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (c *WSConn) Close() error {
	return c.conn.Close()
}
