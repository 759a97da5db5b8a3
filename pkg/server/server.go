// Package server provides the line-oriented TCP listener shared by the
// SCPI and legacy protocol surfaces.
package server

import (
	"bufio"
	"net"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LineHandler processes one request line, stripped of its terminator,
// and returns the exact bytes to write back. A nil return writes
// nothing; the connection stays open either way.
type LineHandler interface {
	HandleLine(line string) []byte
}

// Server accepts TCP connections and feeds each line to the handler.
// Connections are independent; a failing client never takes the
// listener down.
type Server struct {
	name    string
	addr    string
	handler LineHandler

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closing  bool
}

func New(name, addr string, handler LineHandler) *Server {
	return &Server{
		name:    name,
		addr:    addr,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", s.addr)
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"protocol": s.name,
		"addr":     l.Addr().String(),
	}).Info("tcp server listening")

	s.wg.Add(1)
	go s.acceptLoop(l)
	return nil
}

// Addr returns the bound listener address, or the configured address
// when the server has not been started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes the listener and every open connection, then waits for
// the connection goroutines to drain.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			logrus.WithField("protocol", s.name).WithError(err).Warn("accept failed")
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	remote := conn.RemoteAddr().String()
	logrus.WithFields(logrus.Fields{
		"protocol": s.name,
		"remote":   remote,
	}).Debug("client connected")

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		resp := s.handler.HandleLine(line)
		if resp == nil {
			continue
		}
		if _, err := conn.Write(resp); err != nil {
			logrus.WithFields(logrus.Fields{
				"protocol": s.name,
				"remote":   remote,
			}).WithError(err).Warn("write failed")
			return
		}
	}

	logrus.WithFields(logrus.Fields{
		"protocol": s.name,
		"remote":   remote,
	}).Debug("client disconnected")
}
