package server

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

// echoHandler answers every line with its upper-cased form and stays
// silent on lines starting with "quiet".
type echoHandler struct{}

func (echoHandler) HandleLine(line string) []byte {
	if strings.HasPrefix(line, "quiet") {
		return nil
	}
	return []byte(strings.ToUpper(line) + "\n")
}

func startTestServer(t *testing.T) *Server {
	t.Helper()

	s := New("test", "127.0.0.1:0", echoHandler{})
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerEchoesLines(t *testing.T) {
	s := startTestServer(t)
	conn := dial(t, s)

	if _, err := conn.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if line != "HELLO\n" {
		t.Fatalf("expected %q, got %q", "HELLO\n", line)
	}
}

func TestServerStripsCarriageReturn(t *testing.T) {
	s := startTestServer(t)
	conn := dial(t, s)

	if _, err := conn.Write([]byte("crlf\r\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if line != "CRLF\n" {
		t.Fatalf("expected %q, got %q", "CRLF\n", line)
	}
}

func TestServerSilentResponseKeepsConnection(t *testing.T) {
	s := startTestServer(t)
	conn := dial(t, s)

	if _, err := conn.Write([]byte("quiet\nhello\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if line != "HELLO\n" {
		t.Fatalf("expected silent line to be skipped, got %q", line)
	}
}

func TestServerHandlesMultipleClients(t *testing.T) {
	s := startTestServer(t)

	for i := 0; i < 3; i++ {
		conn := dial(t, s)
		if _, err := conn.Write([]byte("ping\n")); err != nil {
			t.Fatalf("client %d: write failed: %v", i, err)
		}
		reader := bufio.NewReader(conn)
		conn.SetReadDeadline(time.Now().Add(time.Second))
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("client %d: read failed: %v", i, err)
		}
		if line != "PING\n" {
			t.Fatalf("client %d: expected %q, got %q", i, "PING\n", line)
		}
	}
}

func TestServerStopClosesConnections(t *testing.T) {
	s := New("test", "127.0.0.1:0", echoHandler{})
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	conn, err := net.DialTimeout("tcp", s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("failed to dial server: %v", err)
	}
	defer conn.Close()

	s.Stop()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected connection closed after stop")
	}
}
