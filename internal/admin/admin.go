// Package admin serves the device's debug routes: a status snapshot, a
// page for injecting host commands, and a live tail of outgoing frames.
// Routes are mounted under /debug/ with tsweb and are only reachable from
// localhost or over Tailscale.
package admin

import (
	"bytes"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/heartstream/internal/stream"
	"github.com/banshee-data/heartstream/internal/telemetry"
	"github.com/banshee-data/heartstream/internal/version"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// StatusSource is anything that can report controller status.
type StatusSource interface {
	Snapshot() stream.Status
}

// Server holds what the debug routes observe and drive. Any field may be
// nil; the matching routes then report the feature as unavailable.
type Server struct {
	status StatusSource
	tap    *Tap
	inject *Injector
}

func NewServer(status StatusSource, tap *Tap, inject *Injector) *Server {
	return &Server{status: status, tap: tap, inject: inject}
}

type sessionView struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	StartedMs uint32 `json:"started_ms"`
	Message   uint32 `json:"next_message,omitempty"`
}

type statusView struct {
	Version         string       `json:"version"`
	State           string       `json:"state"`
	Variant         string       `json:"variant"`
	Session         *sessionView `json:"session,omitempty"`
	NextSeq         uint8        `json:"next_seq"`
	Pending         int          `json:"pending_samples"`
	Stats           stream.Stats `json:"stats"`
	TailSubscribers int          `json:"tail_subscribers"`
}

func (s *Server) statusView() statusView {
	if s.status == nil {
		return statusView{Version: version.String(), State: "unavailable"}
	}
	st := s.status.Snapshot()
	v := statusView{
		Version: version.String(),
		State:   st.State.String(),
		Variant: st.Variant.String(),
		NextSeq: st.NextSeq,
		Pending: st.Pending,
		Stats:   st.Stats,
	}
	if st.Session.ID != "" {
		v.Session = &sessionView{
			ID:        st.Session.ID,
			Mode:      st.Session.Mode.String(),
			StartedMs: st.Session.StartedMs,
		}
		if st.Session.Mode == stream.StateStreamingSimple {
			v.Session.Message = st.Session.Message
		}
	}
	if s.tap != nil {
		v.TailSubscribers = s.tap.Subscribers()
	}
	return v
}

// tailEvent is one SSE payload on the tail route.
type tailEvent struct {
	Hex         string   `json:"hex"`
	Seq         *uint8   `json:"seq,omitempty"`
	TimestampMs *uint32  `json:"timestamp_ms,omitempty"`
	Samples     []uint16 `json:"samples,omitempty"`
	Text        string   `json:"text,omitempty"`
}

func newTailEvent(frame []byte) tailEvent {
	ev := tailEvent{Hex: hex.EncodeToString(frame)}
	if p, err := telemetry.Decode(frame); err == nil && len(frame) == telemetry.PacketSize {
		ev.Seq = &p.Seq
		ev.TimestampMs = &p.TimestampMs
		ev.Samples = p.Samples[:]
		return ev
	}
	ev.Text = strings.TrimRight(string(frame), "\r\n")
	return ev
}

// AttachAdminRoutes attaches the debug endpoints to mux under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.Handle("status", "streaming state and counters", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.status == nil {
			http.Error(w, "No controller attached", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.statusView()); err != nil {
			http.Error(w, "Failed to encode status", http.StatusInternalServerError)
		}
	}))

	// Basic command / live tail monitor interface using the below two API endpoints.
	debug.Handle("send-command", "send a host command to the device", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendCommandTemplate.Execute(buf, s.statusView()); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	}))

	// API endpoint to queue a command as if the host had written it
	debug.HandleSilent("send-command-api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if s.inject == nil {
			http.Error(w, "Command injection unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := s.inject.Inject(r.Context(), command); err != nil {
			http.Error(w, "Failed to queue command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Queued command %q", command))
	}))

	// API endpoint to issue Server-Side Events (SSE) for every frame sent to the host.
	debug.HandleSilent("tail", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.tap == nil {
			http.Error(w, "Tail unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.tap.Subscribe()
		defer s.tap.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case frame, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(newTailEvent(frame))
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	}))

	debug.HandleSilent("tail.js", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")

		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		io.Copy(w, f)
	}))
}
