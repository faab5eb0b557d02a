package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/sirupsen/logrus"
)

// ProtocolID is the libp2p stream protocol this package speaks. A single
// stream carries one length-prefixed message per Send/Recv, multiplexed by
// libp2p itself at the connection layer.
const ProtocolID protocol.ID = "/isocore/rpc/1.0.0"

// StreamHost is the subset of libp2p's host.Host this package depends on,
// kept narrow so tests can supply a fake without pulling in a real libp2p
// node.
type StreamHost interface {
	NewStream(ctx context.Context, p peer.ID, pids ...protocol.ID) (network.Stream, error)
	SetStreamHandler(pid protocol.ID, handler network.StreamHandler)
}

// P2PStream is a Transport backed by a single libp2p stream to one remote
// peer. Messages are framed with a 4-byte little-endian length prefix since
// libp2p streams are raw byte pipes, not message-oriented.
type P2PStream struct {
	rw io.ReadWriteCloser
	r  *bufio.Reader

	writeMu sync.Mutex
	readMu  sync.Mutex
}

func newP2PStream(rw io.ReadWriteCloser) *P2PStream {
	return &P2PStream{rw: rw, r: bufio.NewReader(rw)}
}

// NewP2PStreamDialer opens an outbound stream to peer p using h.
func NewP2PStreamDialer(ctx context.Context, h StreamHost, p peer.ID) (*P2PStream, error) {
	s, err := h.NewStream(ctx, p, ProtocolID)
	if err != nil {
		return nil, IoError("dial", err)
	}
	return newP2PStream(s), nil
}

// ListenP2PStream installs a stream handler on h and hands each inbound
// stream, already wrapped in a *P2PStream, to accept together with the
// remote peer's ID.
func ListenP2PStream(h StreamHost, accept func(peer.ID, *P2PStream)) {
	h.SetStreamHandler(ProtocolID, func(s network.Stream) {
		accept(s.Conn().RemotePeer(), newP2PStream(s))
	})
}

func (p *P2PStream) Send(ctx context.Context, payload []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	done := make(chan error, 1)
	go func() {
		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
		if _, err := p.rw.Write(hdr[:]); err != nil {
			done <- IoError("send", err)
			return
		}
		_, err := p.rw.Write(payload)
		if err != nil {
			err = IoError("send", err)
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return IoError("send", ctx.Err())
	}
}

func (p *P2PStream) Recv(ctx context.Context) ([]byte, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		var hdr [4]byte
		if _, err := io.ReadFull(p.r, hdr[:]); err != nil {
			if err == io.EOF {
				done <- result{err: ErrClosed}
				return
			}
			done <- result{err: IoError("recv", err)}
			return
		}
		n := binary.LittleEndian.Uint32(hdr[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(p.r, buf); err != nil {
			done <- result{err: IoError("recv", err)}
			return
		}
		done <- result{buf: buf}
	}()
	select {
	case res := <-done:
		return res.buf, res.err
	case <-ctx.Done():
		return nil, IoError("recv", ctx.Err())
	}
}

func (p *P2PStream) Close() error {
	if err := p.rw.Close(); err != nil {
		logrus.Debugf("p2pstream: close: %v", err)
		return IoError("close", err)
	}
	return nil
}
