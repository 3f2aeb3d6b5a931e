package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"casic-ng/internal/casic"
	"casic-ng/internal/receiver"
)

// StatusSource is satisfied by *receiver.Service.
type StatusSource interface {
	Snapshot() receiver.Snapshot
}

type StatusSnapshot struct {
	Service  string            `json:"service"`
	NowUTC   string            `json:"now_utc"`
	Receiver receiver.Snapshot `json:"receiver"`
}

type DecodeResult struct {
	Type    string `json:"type"`
	Antenna string `json:"antenna,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Handler(src StatusSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, StatusSnapshot{
			Service:  "casic-ng",
			NowUTC:   time.Now().UTC().Format(time.RFC3339Nano),
			Receiver: src.Snapshot(),
		})
	})

	// Decode one sentence passed as ?s=. Handy for checking what a receiver
	// printed on a console.
	mux.HandleFunc("/api/decode", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s := strings.TrimSpace(r.URL.Query().Get("s"))
		if s == "" {
			http.Error(w, "missing s", http.StatusBadRequest)
			return
		}
		typ := casic.Classify(s)
		res := DecodeResult{Type: typ.String()}
		if typ == casic.None {
			writeJSON(w, http.StatusOK, res)
			return
		}
		msg, err := casic.Parse(s)
		if err != nil {
			res.Error = err.Error()
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		res.Antenna = msg.Txt.AntennaStatus.String()
		writeJSON(w, http.StatusOK, res)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve runs the status server on listen until ctx is done.
func Serve(ctx context.Context, listen string, src StatusSource) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           Handler(src),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
