package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/celliott/divvy/internal/wire"
)

const defaultMaxLineBytes = 8192

// serve runs one connection's FSM: READING -> PROCESSING -> REPLYING ->
// READING ... CLOSED. Requests are handled strictly in receive order; a
// reply is written before the next line is read.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	connID := uuid.New().String()
	fields := map[string]any{"conn": connID, "remote": conn.RemoteAddr().String()}
	s.logger.Debug("connection opened", fields)
	defer s.logger.Debug("connection closed", fields)

	maxLine := s.cfg.MaxLineBytes
	if maxLine <= 0 {
		maxLine = defaultMaxLineBytes
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, maxLine)), maxLine)

	ctx := context.Background()
	for scanner.Scan() {
		line := scanner.Text()
		reply := s.dispatch(ctx, line)
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.metrics.Increment("error.line-too-long", 1)
			s.logger.Error("line too long, closing connection", fields)
		} else {
			s.metrics.Increment("error.internal", 1)
			s.logger.Error("connection read error", map[string]any{"conn": connID, "error": err.Error()})
		}
	}
}

// dispatch parses a single line into a Request and routes it: HIT to
// the handler, PING and RULES handled inline.
func (s *Server) dispatch(ctx context.Context, line string) string {
	req, err := wire.ParseLine(line)
	if err != nil {
		s.metrics.Increment("error.unknown", 1)
		return wire.FormatErr(wire.KindUnknown, err.Error())
	}

	switch req.Command {
	case "HIT":
		return s.handler.HandleHit(ctx, req)
	case "PING":
		return wire.FormatOK(true, 0, 0)
	case "RULES":
		n := int64(0)
		if s.table != nil {
			n = int64(s.table.Len())
		}
		return wire.FormatOK(true, n, 0)
	default:
		s.metrics.Increment("error.unknown-command", 1)
		return wire.FormatErr(wire.KindUnknownCommand, fmt.Sprintf("Unrecognized command: %s", req.Command))
	}
}
