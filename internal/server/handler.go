package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/talkline/chat-app/internal/metrics"
	"github.com/talkline/chat-app/internal/protocol"
	"github.com/talkline/chat-app/internal/registry"
)

const welcomeBanner = "welcome\nPlease send your name:\n"

// handleConn drives one connection through the greeting, registration,
// serving, and terminating states. It owns the connection: no other goroutine
// reads from it, and all writes to peers go through their own Conn write
// mutexes.
func (s *Server) handleConn(nc net.Conn) {
	defer s.wg.Done()

	id := uuid.New().String()
	remote := nc.RemoteAddr().String()
	logger := s.log.With().Str("session", id).Str("remote", remote).Logger()

	conn := NewConn(nc)
	client := s.reg.Add(id, remote, conn)
	logger.Info().Msg("client connected")

	// Terminating: runs on every exit path, panic included. Removal from the
	// indexes happens before the socket is closed, and the partner
	// notification is delivered using the writer reference captured by the
	// registry, which stays valid until now.
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("handler panic recovered")
		}
		for _, d := range s.reg.Remove(client) {
			if err := d.To.WriteString(d.Line); err != nil {
				logger.Warn().Err(err).Msg("failed to deliver disconnect notification")
			}
		}
		_ = conn.Close()
		logger.Info().Msg("client cleaned up")
	}()

	lr := protocol.NewLineReader(nc, s.cfg.MaxMessageSize)

	// Greeting.
	if err := conn.WriteString(welcomeBanner); err != nil {
		logger.Warn().Err(err).Msg("failed to send greeting")
		return
	}

	// Registering. The only read with a deadline: a client that never sends
	// a name must not hold the connection open forever.
	_ = nc.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	frame, err := lr.ReadFrame()
	if err != nil {
		var tooLarge *protocol.FrameTooLargeError
		switch {
		case errors.As(err, &tooLarge):
			metrics.ProtocolErrors.Inc()
			_ = conn.WriteString(s.oversizeReply(tooLarge))
		case isTimeout(err):
			logger.Warn().Msg("client timed out while sending name")
		case err != io.EOF:
			logger.Warn().Err(err).Msg("read error before registration")
		}
		return
	}
	_ = nc.SetReadDeadline(time.Time{})

	name := strings.TrimSpace(frame)
	res, ok := s.reg.Register(client, name)
	if !s.sendReplies(conn, res.Replies, logger) {
		return
	}
	if !ok {
		metrics.ProtocolErrors.Inc()
		logger.Warn().Str("name", name).Msg("name registration refused")
		return
	}
	s.deliver(res.Deliveries, logger)
	logger.Info().Str("name", name).Msg("client registered")

	// Serving.
	for {
		frame, err := lr.ReadFrame()
		if err != nil {
			var tooLarge *protocol.FrameTooLargeError
			if errors.As(err, &tooLarge) {
				metrics.ProtocolErrors.Inc()
				logger.Warn().Str("name", name).Int("size", tooLarge.Size).Msg("oversize frame rejected")
				if werr := conn.WriteString(s.oversizeReply(tooLarge)); werr != nil {
					return
				}
				continue
			}
			if err != io.EOF {
				logger.Info().Err(err).Str("name", name).Msg("connection error")
			}
			return
		}

		line := strings.TrimSpace(frame)
		now := time.Now()

		if !s.reg.AllowFrame(client, now) {
			metrics.RateLimited.Inc()
			metrics.ProtocolErrors.Inc()
			logger.Warn().Str("name", name).Msg("rate limit exceeded")
			if werr := conn.WriteString(s.rateLimitReply()); werr != nil {
				return
			}
			continue
		}

		cmd, perr := protocol.ParseCommand(line)

		// Administrative queries are exempt from audit logging (but not,
		// above, from the rate limiter).
		if cmd.Kind != protocol.KindListUsers && cmd.Kind != protocol.KindListGroups {
			s.reg.RecordReceived(client, line, now)
			logger.Debug().Str("name", name).Str("line", line).Msg("frame received")
		}

		if perr != nil {
			metrics.ProtocolErrors.Inc()
			if werr := conn.WriteString(malformedReply(perr)); werr != nil {
				return
			}
			continue
		}

		res := s.dispatch(client, cmd)
		if res.Err {
			metrics.ProtocolErrors.Inc()
		}
		if !s.sendReplies(conn, res.Replies, logger) {
			return
		}

		if res.Forwarded {
			// Pair forwards are the one delivery whose failure the sender
			// must hear about: the pair is torn down and the sender told.
			d := res.Deliveries[0]
			if werr := d.To.WriteString(d.Line); werr != nil {
				metrics.ProtocolErrors.Inc()
				logger.Warn().Err(werr).Str("name", name).Msg("pair forward failed, closing pair")
				if werr := conn.WriteString(s.reg.PairWriteFailed(client)); werr != nil {
					return
				}
			}
			continue
		}
		s.deliver(res.Deliveries, logger)
	}
}

// dispatch routes a parsed command to the matching registry operation.
func (s *Server) dispatch(client *registry.Client, cmd protocol.Command) registry.Result {
	switch cmd.Kind {
	case protocol.KindListUsers:
		return registry.Result{Replies: []string{s.reg.ListUsers()}}
	case protocol.KindListGroups:
		return registry.Result{Replies: []string{s.reg.ListGroups()}}
	case protocol.KindCreateGroup:
		return s.reg.CreateGroup(client, cmd.Group)
	case protocol.KindJoinGroup:
		return s.reg.JoinGroup(client, cmd.Group)
	case protocol.KindInviteToGroup:
		return s.reg.InviteToGroup(client, cmd.Group, cmd.Target)
	case protocol.KindLeaveGroup:
		return s.reg.LeaveGroup(client, cmd.Group)
	case protocol.KindGroupMessage:
		return s.reg.GroupMessage(client, cmd.Group, cmd.Text)
	case protocol.KindConnect:
		return s.reg.OpenChat(client, cmd.Target)
	case protocol.KindDisconnectChat:
		return s.reg.CloseChat(client)
	default:
		return s.reg.ForwardText(client, cmd.Text)
	}
}

// sendReplies writes the initiator's replies in order. A write error means
// the client's own socket is gone; the caller terminates.
func (s *Server) sendReplies(conn *Conn, replies []string, logger zerolog.Logger) bool {
	for _, reply := range replies {
		if err := conn.WriteString(reply); err != nil {
			logger.Warn().Err(err).Msg("client closed connection before response sent")
			return false
		}
	}
	return true
}

// deliver performs best-effort fan-out writes. A failed peer is left to its
// own disconnect path; the fan-out continues.
func (s *Server) deliver(deliveries []registry.Delivery, logger zerolog.Logger) {
	for _, d := range deliveries {
		if err := d.To.WriteString(d.Line); err != nil {
			logger.Warn().Err(err).Str("peer", d.To.ID).Msg("failed to deliver notification")
		}
	}
}

func (s *Server) oversizeReply(e *protocol.FrameTooLargeError) string {
	return fmt.Sprintf(
		"ERROR: Message size validation failed - Message exceeds maximum size of %d bytes (received %d bytes). Please send a shorter message.\n",
		s.cfg.MaxMessageSize, e.Size)
}

func (s *Server) rateLimitReply() string {
	// The window is a float number of seconds in the config; whole-second
	// values keep one decimal ("1.0", not "1") on the wire.
	window := strconv.FormatFloat(s.cfg.RateLimit.Window.Seconds(), 'g', -1, 64)
	if !strings.Contains(window, ".") {
		window += ".0"
	}
	return fmt.Sprintf(
		"ERROR: Rate limit exceeded. Maximum %d messages per %s seconds.\n",
		s.cfg.RateLimit.Limit, window)
}

func malformedReply(err error) string {
	if errors.Is(err, protocol.ErrInviteFormat) {
		return "ERROR: Invalid INVITE_TO_GROUP format. Use: INVITE_TO_GROUP:group_name:user_name\n"
	}
	return "ERROR: Invalid GROUP format. Use: GROUP:group_name:message\n"
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
