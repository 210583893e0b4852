// Package udpserver implements the UDP message service: a single accept
// loop over a connectionless socket, handling one datagram at a time on
// the calling goroutine. Cancellation is cooperative through the context
// passed to Serve, so multiple instances can coexist in tests.
package udpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/uevarest/gateway/internal/config"
	"github.com/uevarest/gateway/pkg/ack"
	"github.com/uevarest/gateway/pkg/events"
	"github.com/uevarest/gateway/pkg/message"
	"github.com/uevarest/gateway/pkg/msglog"
)

const logPrefix = "udpserver:server"

// Server is the UDP message service.
type Server struct {
	cfg   *config.Config
	pub   events.Publisher
	store *msglog.Store

	conn      net.PacketConn
	closeOnce sync.Once
}

// New creates the UDP message service. pub defaults to a no-op publisher;
// store may be nil.
func New(cfg *config.Config, pub events.Publisher, store *msglog.Store) *Server {
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &Server{cfg: cfg, pub: pub, store: store}
}

// Listen binds the UDP socket. A bind failure is fatal for this instance;
// the service does not retry or fall back to another port.
func (s *Server) Listen() error {
	conn, err := net.ListenPacket("udp", s.cfg.UDPAddr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			slog.Error(fmt.Sprintf("%s - address %s is already in use, check for other instances", logPrefix, s.cfg.UDPAddr))
		}
		return fmt.Errorf("%s - bind %s: %w", logPrefix, s.cfg.UDPAddr, err)
	}
	s.conn = conn
	slog.Info(fmt.Sprintf("%s - UDP message service listening on %s", logPrefix, conn.LocalAddr()))
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve runs the receive loop until ctx is cancelled. Each iteration
// blocks on receive with the configured read timeout; the timeout bounds
// how long a cancellation goes unnoticed. Datagrams are handled strictly
// sequentially, reply included, before the next receive.
func (s *Server) Serve(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("%s - Serve called before Listen", logPrefix)
	}

	buf := make([]byte, s.cfg.UDPBufferSize)
	for {
		if ctx.Err() != nil {
			break
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.UDPReadTimeout)); err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Error(fmt.Sprintf("%s - set read deadline: %v", logPrefix, err))
		}

		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				// Expected; loop around to observe a shutdown request.
				continue
			}
			if ctx.Err() != nil {
				break
			}
			slog.Error(fmt.Sprintf("%s - error receiving data: %v", logPrefix, err))
			continue
		}
		if n == 0 {
			continue
		}

		s.handleDatagram(ctx, buf[:n], addr)
	}

	s.Close()
	slog.Info(fmt.Sprintf("%s - UDP message service shutdown complete", logPrefix))
	return nil
}

// Close closes the socket. Idempotent; closing an already-closed or
// never-opened socket only logs.
func (s *Server) Close() {
	if s.conn == nil {
		slog.Info(fmt.Sprintf("%s - no socket to close", logPrefix))
		return
	}
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			slog.Error(fmt.Sprintf("%s - error closing socket: %v", logPrefix, err))
			return
		}
		slog.Info(fmt.Sprintf("%s - server socket closed", logPrefix))
	})
}

// handleDatagram processes one datagram and sends the reply to the sender.
// Reply-send failures are logged and swallowed; the loop must survive any
// single client.
func (s *Server) handleDatagram(ctx context.Context, data []byte, addr net.Addr) {
	slog.Info(fmt.Sprintf("%s - Received %d bytes from %s", logPrefix, len(data), addr))

	m, err := message.Parse(data)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Failed to parse message from %s: %v", logPrefix, addr, err))
		s.reply(addr, ack.NewError(ack.StatusInvalidJSON, ""))
		return
	}

	slog.Info(fmt.Sprintf("%s - Message from %s: %s", logPrefix, addr, data))

	event := events.NewMessageReceivedEvent(events.TransportUDP, "", addr.String(), m.MessageID, m.Type)
	if err := s.pub.PublishReceived(ctx, event); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish message-received event: %v", logPrefix, err))
	}
	if s.store != nil {
		rec := &msglog.Record{
			Transport:   events.TransportUDP,
			RemoteAddr:  addr.String(),
			MessageID:   m.MessageID,
			MessageType: m.Type,
			Payload:     data,
		}
		if err := s.store.Insert(ctx, rec); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to log message: %v", logPrefix, err))
		}
	}

	s.reply(addr, ack.New(ack.Params{MessageID: m.MessageID, Status: ack.StatusOK}))
	slog.Info(fmt.Sprintf("%s - Sent acknowledgment to %s", logPrefix, addr))
}

func (s *Server) reply(addr net.Addr, envelope *ack.Acknowledgment) {
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode reply for %s: %v", logPrefix, addr, err))
		return
	}
	if _, err := s.conn.WriteTo(data, addr); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to send reply to %s: %v", logPrefix, addr, err))
	}
}
