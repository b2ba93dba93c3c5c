package nameservice

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

func TestServerResolvesLeaderQuery(t *testing.T) {
	reg := NewRegistry()
	reg.SetLeader("10.0.0.1:9000")

	s := NewServer(reg, &Config{ListenAddr: "127.0.0.1:0"})
	// Bind an ephemeral port directly so the test doesn't fight other
	// listeners; Start would otherwise always use ListenAddr verbatim.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()

	s.listenAddr = ln.Addr().String()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if !s.IsRunning() {
		t.Fatal("IsRunning() = false after Start()")
	}

	conn, err := net.DialTimeout("tcp", s.listenAddr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("leader\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	want := "OK 10.0.0.1:9000\n"
	if line != want {
		t.Errorf("response = %q, want %q", line, want)
	}
}

func TestServerStopIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	s := NewServer(reg, &Config{ListenAddr: "127.0.0.1:0"})

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() on unstarted server error = %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning() = true after Stop()")
	}
}

func TestServerDoubleStartErrors(t *testing.T) {
	reg := NewRegistry()
	s := NewServer(reg, &Config{ListenAddr: "127.0.0.1:0"})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(ctx); err == nil {
		t.Fatal("second Start() expected error")
	}
}
