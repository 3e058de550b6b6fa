package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/straja-ai/placeholder/internal/events"
)

const maxEventBytes = 64 << 10

// newReceiveEventsCommand runs a local webhook endpoint that prints the
// detection events posted by a webhook sink, one JSON line each.
func newReceiveEventsCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:         "receive-events",
		Short:       "Print detection events posted by a webhook sink",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              addr,
				Handler:           newEventReceiver(cmd.OutOrStdout()),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-runCtx.Done()
				_ = srv.Close()
			}()
			fmt.Fprintf(cmd.ErrOrStderr(), "event receiver listening on %s (POST JSON events to /events)\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8099", "Listen address")
	return cmd
}

type eventReceiver struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEventReceiver(out io.Writer) http.Handler {
	mux := http.NewServeMux()
	rcv := &eventReceiver{enc: json.NewEncoder(out)}
	mux.Handle("/events", rcv)
	mux.Handle("/", rcv)
	return mux
}

func (rcv *eventReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var ev events.Event
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBytes)).Decode(&ev); err != nil {
		http.Error(w, "invalid event: "+err.Error(), http.StatusBadRequest)
		return
	}
	if ev.Version != events.Version {
		http.Error(w, fmt.Sprintf("unsupported event version %q", ev.Version), http.StatusBadRequest)
		return
	}

	rcv.mu.Lock()
	err := rcv.enc.Encode(&ev)
	rcv.mu.Unlock()
	if err != nil {
		http.Error(w, "write event", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}
