package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"mini-coin-node/network/message"
)

// ErrDialFailed marks errors caused by failing to reach the peer at all
var ErrDialFailed = errors.New("dial failed")

// Dialer 出站连接参数
type Dialer struct {
	Timeout      time.Duration // 连接超时
	MaxFrameSize int64         // 应答帧的最大长度
}

func (d Dialer) dial(ctx context.Context, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, message.NewError(message.ErrConnection, addr, fmt.Errorf("%w: %v", ErrDialFailed, err))
	}
	return conn, nil
}

// Send 发送一帧数据后关闭连接
func (d Dialer) Send(ctx context.Context, addr string, data []byte) error {
	conn, err := d.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return message.NewError(message.ErrConnection, "write to "+addr, err)
	}
	return nil
}

// Call sends a request frame, half-closes the connection and waits up to
// timeout for the single response frame
func (d Dialer) Call(ctx context.Context, addr string, data []byte, timeout time.Duration) ([]byte, error) {
	conn, err := d.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return nil, message.NewError(message.ErrConnection, "write to "+addr, err)
	}
	if err := CloseWrite(conn); err != nil {
		return nil, err
	}

	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, message.NewError(message.ErrConnection, "set read deadline", err)
		}
	}

	resp, err := ReadFrame(conn, d.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, message.NewError(message.ErrEmptyResponse, "no response from "+addr, nil)
	}

	return resp, nil
}
