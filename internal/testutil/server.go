// Package testutil provides test helpers for the clamd-sdk-go SDK.
package testutil

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
)

// Request is one command received by the mock daemon.
type Request struct {
	// Command is the command text without the 'z' prefix and NUL terminator,
	// e.g. "SCAN /tmp/file".
	Command string
	// Chunks holds the INSTREAM chunks in arrival order, terminator excluded.
	Chunks [][]byte
	// Stream is the concatenation of Chunks.
	Stream []byte
	// StreamErr is set when the INSTREAM payload ended before its terminator.
	StreamErr error
	// Done is closed when the server shuts down.
	Done <-chan struct{}
}

// HandlerFunc returns the bytes written back to the client before the
// connection is closed.
type HandlerFunc func(req *Request) string

// Server is a mock clamd listening on a loopback TCP port. Every connection
// carries exactly one command, like clamd outside of IDSESSION.
type Server struct {
	ln      net.Listener
	handler HandlerFunc
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	requests    []*Request
	connections int
}

// NewMockServer starts a mock clamd that answers every command with handler.
func NewMockServer(handler HandlerFunc) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("testutil: failed to listen: %v", err))
	}
	s := &Server{
		ln:      ln,
		handler: handler,
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Requests returns the commands received so far.
func (s *Server) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Connections returns the number of accepted connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Close stops the listener and waits for in-flight connections to finish.
func (s *Server) Close() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.ln.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.connections++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	br := bufio.NewReader(conn)
	line, err := br.ReadString(0)
	if err != nil {
		return
	}
	line = strings.TrimSuffix(line, "\x00")

	req := &Request{Done: s.done}
	if !strings.HasPrefix(line, "z") {
		io.WriteString(conn, "UNKNOWN COMMAND\n") //nolint:errcheck
		return
	}
	req.Command = strings.TrimPrefix(line, "z")

	if req.Command == "INSTREAM" {
		req.Chunks, req.StreamErr = ReadChunks(br)
		req.Stream = bytes.Join(req.Chunks, nil)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	reply := s.handler(req)
	io.WriteString(conn, reply) //nolint:errcheck
}

// ReadChunks decodes an INSTREAM payload up to and including its zero-length
// terminator and returns the chunks read.
func ReadChunks(r io.Reader) ([][]byte, error) {
	var chunks [][]byte
	var header [4]byte
	for {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return chunks, fmt.Errorf("read chunk header: %w", err)
		}
		n := binary.BigEndian.Uint32(header[:])
		if n == 0 {
			return chunks, nil
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return chunks, fmt.Errorf("read chunk of %d bytes: %w", n, err)
		}
		chunks = append(chunks, chunk)
	}
}

// ReadInstream decodes an INSTREAM payload and returns the reassembled bytes.
func ReadInstream(r io.Reader) ([]byte, error) {
	chunks, err := ReadChunks(r)
	if err != nil {
		return nil, err
	}
	return bytes.Join(chunks, nil), nil
}

// Reply returns a handler that always answers with msg plus the NUL terminator.
func Reply(msg string) HandlerFunc {
	return func(*Request) string {
		return msg + "\x00"
	}
}

// RawReply returns a handler that answers with msg verbatim.
func RawReply(msg string) HandlerFunc {
	return func(*Request) string {
		return msg
	}
}

// Block returns a handler that never answers until the server is closed.
func Block() HandlerFunc {
	return func(req *Request) string {
		<-req.Done
		return ""
	}
}

// EICAR is the standard antivirus test file.
var EICAR = []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`)

// Daemon returns a handler that behaves like a small clamd: it answers
// PING, VERSION, STATS, RELOAD and SHUTDOWN, scans INSTREAM payloads for the
// EICAR string and reports SCAN-style paths containing "eicar" as infected.
func Daemon() HandlerFunc {
	return func(req *Request) string {
		cmd, arg, _ := strings.Cut(req.Command, " ")
		switch cmd {
		case "PING":
			return "PONG\x00"
		case "VERSION":
			return "ClamAV 1.4.1/27400/Mon Oct 13 08:32:25 2026\x00"
		case "STATS":
			return "POOLS: 1\n\nSTATE: VALID PRIMARY\nTHREADS: live 1  idle 0 max 10 idle-timeout 30\nQUEUE: 0 items\nEND\x00"
		case "RELOAD":
			return "RELOADING\x00"
		case "SHUTDOWN":
			return ""
		case "INSTREAM":
			if req.StreamErr != nil {
				return "INSTREAM size limit exceeded. ERROR\x00"
			}
			if bytes.Contains(req.Stream, EICAR) {
				return "stream: Eicar-Test-Signature FOUND\x00"
			}
			return "stream: OK\x00"
		case "SCAN", "MULTISCAN", "CONTSCAN", "ALLMATCHSCAN":
			if arg == "" {
				return "ERROR\x00"
			}
			if strings.Contains(arg, "eicar") {
				return arg + ": Eicar-Test-Signature FOUND\x00"
			}
			return arg + ": OK\x00"
		default:
			return "UNKNOWN COMMAND\x00"
		}
	}
}
