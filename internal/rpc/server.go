package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/log"
)

// HandlerFunc serves one RPC method. Params is the raw request payload.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// maxLine bounds a single request frame.
const maxLine = 4 << 20

// subscriberQueueBound is the per-subscriber outgoing queue. Subscribers
// that fall further behind are dropped.
const subscriberQueueBound = 256

// Server is the JSON-RPC server over a Unix domain socket.
type Server struct {
	socketPath string
	auth       Authenticator

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	subMu       sync.Mutex
	subscribers map[*subscriber]struct{}

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	listener net.Listener
	done     chan struct{}
	wg       sync.WaitGroup
}

type subscriber struct {
	conn net.Conn
	out  chan []byte
}

// NewServer creates a server listening at socketPath once Start is
// called.
func NewServer(socketPath string, auth Authenticator) *Server {
	return &Server{
		socketPath:  socketPath,
		auth:        auth,
		handlers:    make(map[string]HandlerFunc),
		subscribers: make(map[*subscriber]struct{}),
		conns:       make(map[net.Conn]struct{}),
		done:        make(chan struct{}),
	}
}

// Register installs a method handler. Must happen before Start.
func (s *Server) Register(method string, h HandlerFunc) {
	s.mu.Lock()
	s.handlers[method] = h
	s.mu.Unlock()
}

// Start binds the socket (mode 0600, stale file replaced) and begins
// accepting connections.
func (s *Server) Start(ctx context.Context) error {
	// A stale socket from a dead daemon blocks bind; remove it.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errdefs.Filesystem(err, "removing stale socket %s", s.socketPath)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errdefs.Filesystem(err, "binding socket %s", s.socketPath)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return errdefs.Filesystem(err, "setting socket mode on %s", s.socketPath)
	}
	if err := VerifySocketMode(s.socketPath); err != nil {
		_ = listener.Close()
		return err
	}

	s.listener = listener
	log.Info(log.CatRPC, "rpc server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			default:
			}
			log.ErrorErr(log.CatRPC, "accept failed", err)
			continue
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// serveConn authenticates and serves one connection. Requests are handled
// in arrival order and responses returned in arrival order.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
	}()

	creds, err := s.auth.Authenticate(conn)
	if err != nil {
		// Auth failures close without a response body.
		log.Warn(log.CatRPC, "connection refused", "error", err)
		return
	}
	log.Debug(log.CatRPC, "connection accepted", "pid", creds.PID, "uid", creds.UID)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(conn, errorResponse(nil, CodeParseError, "parse error: "+err.Error(), nil))
			continue
		}
		if req.JSONRPC != "2.0" || req.Method == "" {
			s.write(conn, errorResponse(req.ID, CodeInvalidRequest, "invalid request", nil))
			continue
		}

		// subscribe_events upgrades the connection to a broadcast stream.
		if req.Method == "subscribe_events" {
			if req.ID != nil {
				s.write(conn, resultResponse(req.ID, map[string]any{"subscribed": true}))
			}
			s.streamEvents(ctx, conn)
			return
		}

		resp, isNotification := s.dispatch(ctx, &req)
		if isNotification {
			continue // accepted silently
		}
		s.write(conn, resp)
	}
	if err := scanner.Err(); err != nil {
		log.Debug(log.CatRPC, "connection closed", "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) (Response, bool) {
	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		if req.ID == nil {
			return Response{}, true
		}
		return errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method, nil), false
	}

	result, err := handler(ctx, req.Params)
	if req.ID == nil {
		return Response{}, true
	}
	if err != nil {
		return translateError(req.ID, err), false
	}
	return resultResponse(req.ID, result), false
}

func (s *Server) write(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.ErrorErr(log.CatRPC, "response encode failed", err)
		return
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		log.Debug(log.CatRPC, "response write failed", "error", err)
	}
}

// streamEvents registers the connection as a broadcast subscriber and
// pumps its queue until it disconnects or falls too far behind.
func (s *Server) streamEvents(ctx context.Context, conn net.Conn) {
	sub := &subscriber{conn: conn, out: make(chan []byte, subscriberQueueBound)}

	s.subMu.Lock()
	s.subscribers[sub] = struct{}{}
	count := len(s.subscribers)
	s.subMu.Unlock()
	log.Info(log.CatRPC, "event subscriber added", "subscribers", count)

	defer func() {
		s.subMu.Lock()
		delete(s.subscribers, sub)
		s.subMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case frame, ok := <-sub.out:
			if !ok {
				return
			}
			if _, err := conn.Write(frame); err != nil {
				log.Debug(log.CatRPC, "subscriber write failed, dropping", "error", err)
				return
			}
		}
	}
}

// Broadcast serialises the event once and writes it to every subscriber,
// dropping subscribers whose queue exceeds the bound. Per-subscriber
// ordering is preserved.
func (s *Server) Broadcast(method string, params any) {
	frame, err := json.Marshal(Notification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		log.ErrorErr(log.CatRPC, "broadcast encode failed", err)
		return
	}
	frame = append(frame, '\n')

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subscribers {
		select {
		case sub.out <- frame:
		default:
			// Queue full: the subscriber is too slow, drop it.
			delete(s.subscribers, sub)
			close(sub.out)
			log.Warn(log.CatRPC, "slow subscriber dropped")
		}
	}
}

// SubscriberCount returns the number of active event subscribers.
func (s *Server) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subscribers)
}

// Stop closes the listener and waits for connections to drain.
func (s *Server) Stop() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	// Unblock readers on open connections so the drain completes.
	s.connMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
}
