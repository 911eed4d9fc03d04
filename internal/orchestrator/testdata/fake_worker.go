package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// A stand-in worker: answers /health once "loaded" and echoes inference calls.
// FAKE_WORKER_LOAD_MS delays readiness; FAKE_WORKER_EXIT makes it exit at once
// with that code; FAKE_WORKER_IGNORE_TERM makes it ignore SIGTERM.
func main() {
	var alias, modelPath string
	var port int
	flag.StringVar(&alias, "alias", "", "worker alias")
	flag.StringVar(&modelPath, "model_path", "", "model path")
	flag.IntVar(&port, "port", 0, "listen port")
	flag.Parse()

	if v := os.Getenv("FAKE_WORKER_EXIT"); v != "" {
		code, _ := strconv.Atoi(v)
		fmt.Fprintf(os.Stderr, "fake worker %s: exiting with %d\n", alias, code)
		os.Exit(code)
	}
	loadMS, _ := strconv.Atoi(os.Getenv("FAKE_WORKER_LOAD_MS"))
	loadedAt := time.Now().Add(time.Duration(loadMS) * time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if time.Now().Before(loadedAt) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "healthy", "alias": alias, "model_path": modelPath})
	})
	echo := func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"alias": alias, "path": r.URL.Path, "pid": os.Getpid(), "request": body})
	}
	for _, p := range []string{"/chat", "/analyze", "/generate", "/edit"} {
		mux.HandleFunc(p, echo)
	}

	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	if os.Getenv("FAKE_WORKER_IGNORE_TERM") == "1" {
		signal.Ignore(syscall.SIGTERM)
		select {}
	}
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
