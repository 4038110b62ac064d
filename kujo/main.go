// Package kujo streams layout geometry and train positions to external renderers over SSE.
package kujo

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/notify"
	"nyiyui.ca/hato/senro/rail"
	"nyiyui.ca/hato/senro/train"
)

const (
	StreamLayout = "layout"
	StreamTrains = "trains"
)

type Server struct {
	changes *notify.Multiplexer[rail.Change]
	s       *sse.Server
	handler http.Handler

	lock   sync.RWMutex
	layout LayoutView
	latest *rail.Layout
}

// NewServer serves initial until changes brings something newer.
// allowedOrigins is passed to CORS; nil allows all origins.
func NewServer(initial *rail.Layout, changes *notify.Multiplexer[rail.Change], allowedOrigins []string) *Server {
	s := &Server{
		changes: changes,
		s:       sse.New(),
		layout:  ViewLayout(0, initial),
		latest:  initial,
	}
	s.s.AutoReplay = false
	s.s.CreateStream(StreamLayout)
	s.s.CreateStream(StreamTrains)

	mux := http.NewServeMux()
	mux.Handle("/events", s.s)
	mux.HandleFunc("/layout", s.serveLayout)
	s.handler = cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
	}).Handler(mux)
	return s
}

// Run forwards layout changes to the layout stream until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ch := make(chan rail.Change, 4)
	s.changes.Subscribe("kujo", ch)
	defer s.changes.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-ch:
			s.applyChange(c)
		}
	}
}

func (s *Server) applyChange(c rail.Change) {
	s.lock.Lock()
	if c.Seq <= s.layout.Seq {
		s.lock.Unlock()
		return
	}
	s.layout = ViewLayout(c.Seq, c.Layout)
	s.latest = c.Layout
	v := s.layout
	s.lock.Unlock()
	s.publish(StreamLayout, v)
}

// PublishTrains sends the positions of trains to the trains stream.
func (s *Server) PublishTrains(trains []*train.Train) {
	s.lock.RLock()
	v := ViewTrains(s.latest, trains)
	s.lock.RUnlock()
	s.publish(StreamTrains, v)
}

func (s *Server) publish(stream string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.S().Errorw("kujo: marshal json", "stream", stream, "err", err)
		return
	}
	s.s.TryPublish(stream, &sse.Event{
		Data: data,
	})
}

// Layout returns the latest layout view.
func (s *Server) Layout() LayoutView {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.layout
}

func (s *Server) serveLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Layout()); err != nil {
		zap.S().Debugw("kujo: write layout", "err", err)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close closes every open stream.
func (s *Server) Close() {
	s.s.Close()
}
