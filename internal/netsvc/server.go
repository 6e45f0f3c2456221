package netsvc

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/cstdev/simdiskd/internal/vfs"
)

// maxLineLength sizes each connection's read buffer to hold one command
// line: a name (NameMax) plus content up to vfs.MaxWriteSize, plus verb and
// separators, rounded up generously. ReadString still accepts longer lines.
const maxLineLength = vfs.MaxWriteSize + vfs.NameMax + 64

// Server is the TCP listener and worker pool of §2's "OUT OF SCOPE"
// collaborators: it owns accepting connections and driving the
// line-protocol dispatcher in protocol.go against a single vfs.Manager.
// There is no cooperative suspension inside the core (§5) — each
// connection is serviced synchronously by one worker for its lifetime.
type Server struct {
	manager *vfs.Manager
	log     *logger

	listener net.Listener
	sem      chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewServer returns a Server bound to addr, backed by manager, logging to
// logOut (typically os.Stderr). maxConnections bounds how many connections
// may be serviced concurrently — beyond that, new connections wait to be
// accepted until a worker frees up (§2 "Scheduling model": "each
// connection is serviced by a worker from a pool").
func NewServer(manager *vfs.Manager, addr string, maxConnections int, logOut io.Writer) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		manager:  manager,
		log:      newLogger(logOut),
		listener: ln,
		sem:      make(chan struct{}, maxConnections),
	}, nil
}

// Addr returns the server's bound address, useful when addr was ":0".
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed by [Server.Close],
// servicing each on its own goroutine gated by the connection semaphore.
// It returns nil on a clean shutdown (Close was called) and any other
// accept error otherwise.
func (s *Server) Serve() error {
	s.log.logf("listening on %s", s.listener.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()

			if closed {
				s.wg.Wait()

				return nil
			}

			return err
		}

		s.sem <- struct{}{}
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()

			s.handleConn(conn)
		}()
	}
}

// Close stops accepting new connections and waits for every open
// connection's worker to return before returning (§5 "Cancellation /
// timeouts": "any in-progress facade call completes before the worker
// returns"). A worker returns only on QUIT, EOF or a read/write error; open
// connections are not closed, so Close blocks while a client stays
// connected.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.listener.Close()
	s.wg.Wait()

	return err
}

// handleConn services one connection until QUIT, EOF, or a read error.
// A per-command error is written back to the client and the connection
// stays open (§7 policy: "one client's error never terminates its
// connection").
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	s.log.logf("accept %s", conn.RemoteAddr())

	reader := bufio.NewReaderSize(conn, maxLineLength)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.logf("read error from %s: %v", conn.RemoteAddr(), err)
			}

			s.log.logf("closed %s", conn.RemoteAddr())

			return
		}

		resp := dispatch(s.manager, line)

		if err := writeResponse(conn, resp); err != nil {
			s.log.logf("write error to %s: %v", conn.RemoteAddr(), err)

			return
		}

		if resp.closeAfter {
			s.log.logf("closed %s", conn.RemoteAddr())

			return
		}
	}
}

// writeResponse writes resp's line or raw content to w, followed by a
// single newline, per §6.
func writeResponse(w io.Writer, resp response) error {
	if resp.isRaw {
		if _, err := w.Write(resp.raw); err != nil {
			return err
		}

		_, err := w.Write([]byte("\n"))

		return err
	}

	_, err := io.WriteString(w, resp.line+"\n")

	return err
}
