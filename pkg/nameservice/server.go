package nameservice

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/shuttle-mr/shuttle/pkg/log"
)

// DefaultListenAddr is the default address the name service listens on.
const DefaultListenAddr = "127.0.0.1:7946"

// Config holds name service configuration.
type Config struct {
	ListenAddr string   // Address to listen on (default: DefaultListenAddr)
	Seeds      []string // Bootstrap coordinator addresses
}

// Server answers single-line "resolve <name>" queries over TCP so any
// process holding only a static seed list can discover the current Raft
// leader. Any coordinator replica, leader or follower, runs one: a follower
// answers with whatever leader address it has last observed.
type Server struct {
	registry   *Registry
	resolver   *Resolver
	listener   net.Listener
	listenAddr string
	mu         sync.RWMutex
	running    bool
	wg         sync.WaitGroup
}

// NewServer creates a name service server backed by registry.
func NewServer(registry *Registry, config *Config) *Server {
	if config == nil {
		config = &Config{ListenAddr: DefaultListenAddr}
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}

	return &Server{
		registry:   registry,
		resolver:   NewResolver(registry, config.Seeds),
		listenAddr: config.ListenAddr,
	}
}

// Start begins accepting queries. It returns once the listener is bound;
// connections are served in background goroutines until Stop is called or
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("name service already running")
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	log.Logger.Info().Str("component", "nameservice").Str("address", s.listenAddr).Msg("starting name service")

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return
			}
			log.Logger.Error().Err(err).Str("component", "nameservice").Msg("accept error")
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		log.Logger.Debug().Str("component", "nameservice").Str("query", query).Msg("name service query received")

		addr, err := s.resolver.Resolve(query)
		if err != nil {
			fmt.Fprintf(conn, "ERR %s\n", err)
			continue
		}
		fmt.Fprintf(conn, "OK %s\n", addr)
	}
}

// Stop stops accepting new queries and waits for in-flight ones to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln := s.listener
	s.mu.Unlock()

	log.Logger.Info().Str("component", "nameservice").Msg("stopping name service")

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

// IsRunning returns true if the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
