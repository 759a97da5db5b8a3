package driver

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Resource is a line-oriented transport to one controller device.
type Resource interface {
	// Write sends a single command without reading a reply.
	Write(message string) error
	// Query sends a command and reads one reply line.
	Query(message string) (string, error)
	Close() error
}

const (
	defaultBaud         = 57600
	defaultDialTimeout  = 5 * time.Second
	defaultQueryTimeout = 100 * time.Millisecond
)

// OpenResource opens a transport for a resource address. Addresses of
// the form host:port dial TCP; anything else is treated as a serial
// device path.
func OpenResource(name string) (Resource, error) {
	if host, port, err := net.SplitHostPort(name); err == nil && !strings.HasPrefix(name, "/") {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), defaultDialTimeout)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to open resource %q", name)
		}
		logrus.WithField("resource", name).Debug("opened tcp resource")
		return newLineResource(name, conn), nil
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        defaultBaud,
		ReadTimeout: defaultQueryTimeout,
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open resource %q", name)
	}
	logrus.WithField("resource", name).Debug("opened serial resource")
	return newLineResource(name, port), nil
}

type lineResource struct {
	name string
	rwc  io.ReadWriteCloser
	br   *bufio.Reader
	mu   sync.Mutex
}

func newLineResource(name string, rwc io.ReadWriteCloser) *lineResource {
	return &lineResource{
		name: name,
		rwc:  rwc,
		br:   bufio.NewReader(rwc),
	}
}

func (r *lineResource) Write(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"resource": r.name,
		"message":  message,
	}).Trace("write")

	_, err := io.WriteString(r.rwc, message+"\r\n")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write to resource %q", r.name)
	}
	return nil
}

func (r *lineResource) Query(message string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := io.WriteString(r.rwc, message+"\r\n")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to write to resource %q", r.name)
	}

	line, err := r.br.ReadString('\n')
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to read from resource %q", r.name)
	}
	line = strings.TrimRight(line, "\r\n")

	logrus.WithFields(logrus.Fields{
		"resource": r.name,
		"message":  message,
		"reply":    line,
	}).Trace("query")

	return line, nil
}

func (r *lineResource) Close() error {
	return r.rwc.Close()
}
