// Package dashboard serves an opt-in, read-only telemetry view of a
// running Scheduler. It is adapted from the teacher's web.go/
// httptines.go (listenAndServe/wsHandler/handleMessages/serveIndex/
// broadcast) and is purely observational: nothing here ever influences
// a scheduling decision, and the control socket's wire protocol (§6)
// is unaffected by whether the dashboard is enabled.
package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path"
	"runtime"
	"strconv"
	"sync"
	"text/template"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mprokhorov/jobsched"
)

// snapshotInterval mirrors the teacher's 3-second stat-broadcast tick
// (httptines.go's sendStat).
const snapshotInterval = 3 * time.Second

// Dashboard broadcasts a Scheduler's Snapshot to any connected browser
// over a websocket, the same shape the teacher uses for its worker
// statistics page.
type Dashboard struct {
	sched *jobsched.Scheduler
	port  int

	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte
}

// New builds a Dashboard for sched, to be served on port.
func New(sched *jobsched.Scheduler, port int) *Dashboard {
	return &Dashboard{
		sched:     sched,
		port:      port,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte),
	}
}

// Run serves the dashboard until ctx is cancelled. It never returns an
// error on its own — a bind failure is logged and Run returns, the
// same "log and continue" posture §7 mandates for anything short of
// startup socket failure in the scheduler proper.
func (d *Dashboard) Run(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.serveIndex)
	mux.HandleFunc("/ws", d.serveWS)

	srv := &http.Server{Addr: ":" + strconv.Itoa(d.port), Handler: mux}

	go d.relayBroadcasts()
	go d.sampleLoop(ctx)

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("dashboard: listen failed: %v", err)
	}
}

func (d *Dashboard) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := json.Marshal(d.sched.Snapshot())
			if err != nil {
				continue
			}
			select {
			case d.broadcast <- payload:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (d *Dashboard) relayBroadcasts() {
	for msg := range d.broadcast {
		d.clientsMu.Lock()
		for c := range d.clients {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				delete(d.clients, c)
			}
		}
		d.clientsMu.Unlock()
	}
}

func (d *Dashboard) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("dashboard: upgrade failed: %v", err)
		return
	}
	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()
}

func (d *Dashboard) serveIndex(w http.ResponseWriter, r *http.Request) {
	t, err := template.ParseFiles(templatePath())
	if err != nil {
		http.Error(w, "template unavailable", http.StatusInternalServerError)
		return
	}
	t.Execute(w, "ws://"+r.Host+"/ws")
}

// templatePath resolves web/template.html relative to this source
// file, the same runtime.Caller trick the teacher's absolutePath()
// uses in web.go.
func templatePath() string {
	_, file, _, _ := runtime.Caller(0)
	return path.Join(path.Dir(file), "..", "..", "web", "template.html")
}
