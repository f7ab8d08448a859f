// Package server implements the long-lived daemon runtime: a listener that
// accepts inbound exchanges and enqueues them, a scheduler that pops queued
// requests and hands them to a bounded worker pool, and the pidfile/signal
// machinery that manages the process's lifecycle.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tenzoki/meshd/internal/envelope"
	"github.com/tenzoki/meshd/internal/paradigm"
	"github.com/tenzoki/meshd/internal/request"
	"github.com/tenzoki/meshd/internal/reply"
	"github.com/tenzoki/meshd/internal/schema"
	"github.com/tenzoki/meshd/internal/wire"
)

// DefaultPoolSize bounds how many requests are processed concurrently.
const DefaultPoolSize = 5

// SchedulerPollInterval is how often the scheduler checks an empty queue.
const SchedulerPollInterval = 100 * time.Millisecond

// TeardownGrace is how long Stop waits for in-flight work before giving up.
const TeardownGrace = 5 * time.Second

// Dialer opens an outbound connection to host for a worker to deliver its
// computed response on. Server.New wires wire.Dial by default; tests
// substitute a fake to avoid a real socket.
type Dialer func(host string) (*wire.Conn, error)

// Server is one meshd node's runtime: listener, scheduler, worker pool.
type Server struct {
	Port      int
	CacheDir  string
	Registry  *paradigm.Registry
	Validator *schema.Validator
	Replies   *reply.Registry
	PoolSize  int
	Dial      Dialer

	listener net.Listener
	queue    *queue
	sem      chan struct{}

	stopCh    chan struct{}
	fatalCh   chan struct{}
	fatalOnce sync.Once
	tornOnce  sync.Once
	wg        sync.WaitGroup
}

// New builds a Server ready to Start. registry and validator must already
// have every paradigm the node should handle registered. replies is the
// same registry handed to the peer client so it can be woken on reply
// delivery (see internal/reply and public/client). poolSize of 0 selects
// DefaultPoolSize, letting callers thread an optional config value through
// without special-casing "unset".
func New(port int, cacheDir string, registry *paradigm.Registry, validator *schema.Validator, replies *reply.Registry, poolSize int) *Server {
	if poolSize == 0 {
		poolSize = DefaultPoolSize
	}
	return &Server{
		Port:      port,
		CacheDir:  cacheDir,
		Registry:  registry,
		Validator: validator,
		Replies:   replies,
		PoolSize:  poolSize,
		Dial:      wire.Dial,
		queue:     newQueue(),
		sem:       make(chan struct{}, poolSize),
		stopCh:    make(chan struct{}),
		fatalCh:   make(chan struct{}),
	}
}

// Start binds the listener, writes the pidfile, and blocks until a SIGINT,
// SIGTERM, or an unrecoverable transport failure triggers teardown. It
// returns once Stop has finished.
func (s *Server) Start() error {
	pidPath := PidfilePath(s.CacheDir, s.Port)
	if err := writePidfile(pidPath); err != nil {
		return fmt.Errorf("server: start: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		_ = removePidfile(pidPath)
		return fmt.Errorf("server: listen on port %d: %w", s.Port, err)
	}
	s.listener = ln
	log.Printf("Server: listening on :%d", s.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.schedulerLoop()
	}()

	go s.acceptLoop()

	select {
	case sig := <-sigCh:
		log.Printf("Server: received signal %s, tearing down", sig)
	case <-s.fatalCh:
		log.Printf("Server: listener failed, tearing down")
	}

	return s.Stop()
}

// acceptLoop is the server's single listener task. It handles one
// connection fully — recv, enqueue, ack — before accepting the next, so
// inbound acks preserve arrival order. Any transport failure (including a
// bad connection, not just a listener-level error) is treated as fatal:
// the loop exits and teardown runs, matching the original REP socket's
// all-or-nothing failure mode.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			log.Printf("Server: accept error: %v", err)
			s.fatalOnce.Do(func() { close(s.fatalCh) })
			return
		}

		if err := s.handleConnection(conn); err != nil {
			log.Printf("Server: transport failure: %v", err)
			s.fatalOnce.Do(func() { close(s.fatalCh) })
			return
		}
	}
}

// handleConnection services one inbound connection to completion.
//
// A kind=="rep" envelope is a reply being delivered to an exchange this
// node originated — the answering peer's worker dialing back in with its
// computed response (see internal/request and public/client). It is
// handed to Replies for whichever local caller is still waiting on its
// uuid, acked, and never enqueued: dispatching it through the paradigm
// registry again would mean answering our own answer. Anything else
// (including a malformed envelope) is enqueued for the worker pool to
// validate and dispatch.
func (s *Server) handleConnection(conn net.Conn) error {
	defer conn.Close()
	c := wire.NewConn(conn)

	raw, err := c.RecvRaw()
	if err != nil {
		return fmt.Errorf("recv: %w", err)
	}

	if uuid, ok := replyUUID(raw); ok {
		s.Replies.Deliver(uuid, raw)
	} else {
		s.queue.push(request.New(raw))
	}

	if err := c.Send(envelope.Ack{Ack: true}); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

// replyUUID reports raw's id.uuid when id.kind is "rep". A missing or
// malformed id is treated as not-a-reply, so it still reaches the worker
// pool and comes back as a validation error rather than being silently
// swallowed.
func replyUUID(raw map[string]json.RawMessage) (string, bool) {
	idRaw, ok := raw["id"]
	if !ok {
		return "", false
	}
	var id envelope.ID
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return "", false
	}
	if id.Kind != envelope.KindResponse {
		return "", false
	}
	return id.UUID, true
}

// schedulerLoop pops queued requests and hands each to a worker pool slot,
// polling at SchedulerPollInterval whenever the queue is empty.
func (s *Server) schedulerLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		req, ok := s.queue.pop()
		if !ok {
			select {
			case <-time.After(SchedulerPollInterval):
			case <-s.stopCh:
				return
			}
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-s.stopCh:
			return
		}

		s.wg.Add(1)
		go s.runWorker(req)
	}
}

// runWorker dials the originator, hands the connection to request.Process,
// and releases its pool slot when done.
func (s *Server) runWorker(req *request.Request) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	if req.Host == "" {
		log.Printf("Server: request has no derivable host, dropping")
		return
	}

	conn, err := s.Dial(strings.TrimPrefix(req.Host, "tcp://"))
	if err != nil {
		log.Printf("Server: dial %s failed: %v", req.Host, err)
		return
	}
	defer conn.Close()

	if err := req.Process(conn, s.Registry, s.Validator); err != nil {
		log.Printf("Server: processing request for %s failed: %v", req.Host, err)
	}
}

// Stop tears the server down: it stops accepting new work, waits up to
// TeardownGrace for the scheduler and any in-flight workers to finish, and
// removes the pidfile. It is idempotent and safe to call more than once.
func (s *Server) Stop() error {
	s.tornOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			_ = s.listener.Close()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(TeardownGrace):
			log.Printf("Server: teardown grace period (%s) exceeded, forcing exit", TeardownGrace)
		}

		if err := removePidfile(PidfilePath(s.CacheDir, s.Port)); err != nil {
			log.Printf("Server: %v", err)
		}
	})
	return nil
}
