package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestServe_DrainsAndRunsHooks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Handler: mux}

	var closed []string
	hook := func(name string, err error) Hook {
		return Hook{Name: name, Close: func(context.Context) error {
			closed = append(closed, name)
			return err
		}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		done <- Serve(ctx, srv, ln, 5*time.Second, logger, hook("db", nil), hook("redis", errors.New("already closed")))
	}()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-started
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	if got := <-status; got != http.StatusOK {
		t.Errorf("in-flight request status = %d, want 200", got)
	}
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}
	if len(closed) != 2 || closed[0] != "db" || closed[1] != "redis" {
		t.Errorf("hooks ran as %v, want [db redis]", closed)
	}
}
