// Package connection carries single-message exchanges over TCP. Each
// connection holds one request frame, and for calls one response frame,
// delimited by the sender closing its write side.
package connection

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"mini-coin-node/network/message"
)

// Connection 表示一个入站连接
type Connection struct {
	Conn       net.Conn // 底层网络连接
	RemoteAddr string   // 远程地址
}

// NewConnection 创建新连接
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		Conn:       conn,
		RemoteAddr: conn.RemoteAddr().String(),
	}
}

// ReadRequest reads the single request frame, bounded by timeout and
// maxFrameSize
func (c *Connection) ReadRequest(timeout time.Duration, maxFrameSize int64) ([]byte, error) {
	if timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, message.NewError(ErrCodeFor(err), "set read deadline", err)
		}
	}

	return ReadFrame(c.Conn, maxFrameSize)
}

// Reply writes the response frame and closes the write side
func (c *Connection) Reply(data []byte) error {
	if _, err := c.Conn.Write(data); err != nil {
		return message.NewError(message.ErrConnection, "write reply to "+c.RemoteAddr, err)
	}
	return CloseWrite(c.Conn)
}

// Close 关闭连接
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ReadFrame reads r until EOF. Frames longer than maxFrameSize are rejected
// with a protocol error; maxFrameSize <= 0 means no limit.
func ReadFrame(r io.Reader, maxFrameSize int64) ([]byte, error) {
	if maxFrameSize > 0 {
		r = io.LimitReader(r, maxFrameSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, message.NewError(ErrCodeFor(err), "read frame", err)
	}
	if maxFrameSize > 0 && int64(len(data)) > maxFrameSize {
		return nil, message.NewError(message.ErrProtocol, fmt.Sprintf("frame exceeds %d bytes", maxFrameSize), nil)
	}

	return data, nil
}

// CloseWrite half-closes conn so the peer's read reaches EOF
func CloseWrite(conn net.Conn) error {
	cw, ok := conn.(interface{ CloseWrite() error })
	if !ok {
		return nil
	}
	if err := cw.CloseWrite(); err != nil {
		return message.NewError(message.ErrConnection, "close write", err)
	}
	return nil
}

// ErrCodeFor maps a network error to the timeout or connection code
func ErrCodeFor(err error) message.ErrorCode {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return message.ErrTimeout
	}
	return message.ErrConnection
}
