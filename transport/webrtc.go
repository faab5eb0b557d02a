package transport

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// WebRTCChannel is a Transport backed by a single pion WebRTC data channel.
// Unlike the libp2p stream transport, a data channel is already
// message-oriented, so no length-prefix framing is needed: one Send call is
// one OnMessage callback on the remote end.
type WebRTCChannel struct {
	dc *webrtc.DataChannel

	inbox  chan []byte
	closed chan struct{}
}

// NewWebRTCChannel wraps an already-negotiated data channel. Call this from
// both the offering and answering side once OnOpen (or OnDataChannel, for
// the answerer) fires.
func NewWebRTCChannel(dc *webrtc.DataChannel) *WebRTCChannel {
	w := &WebRTCChannel{
		dc:     dc,
		inbox:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case w.inbox <- msg.Data:
		case <-w.closed:
		}
	})
	dc.OnClose(func() {
		w.closeOnce()
	})
	return w
}

func (w *WebRTCChannel) closeOnce() {
	select {
	case <-w.closed:
	default:
		close(w.closed)
	}
}

func (w *WebRTCChannel) Send(ctx context.Context, payload []byte) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	if err := w.dc.Send(payload); err != nil {
		return IoError("send", err)
	}
	return nil
}

func (w *WebRTCChannel) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-w.inbox:
		return msg, nil
	case <-w.closed:
		select {
		case msg := <-w.inbox:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, IoError("recv", ctx.Err())
	}
}

func (w *WebRTCChannel) Close() error {
	w.closeOnce()
	if err := w.dc.Close(); err != nil {
		return IoError("close", err)
	}
	return nil
}
