// Package transport streams spectrum snapshots from a running Shifter
// to WebSocket observers. It builds only on the observer API; drawing
// is the client's concern.
package transport

import (
	"math"
	"math/cmplx"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwbudde/algo-formantshift/dsp/core"
	"github.com/cwbudde/algo-formantshift/dsp/effects/formant"
	"github.com/cwbudde/algo-formantshift/internal/log"
)

// magnitudeFloor bounds wire magnitudes at -180 dB.
const magnitudeFloor = 1e-9

// SpectrumFrame is one channel's published spectrum, magnitudes in dB
// for bins 0..fftSize/2.
type SpectrumFrame struct {
	Channel    int       `json:"channel"`
	SampleRate float64   `json:"sampleRate"`
	Magnitudes []float64 `json:"magnitudes"`
}

// SpectrumServer accepts WebSocket observers on /ws and broadcasts
// spectrum frames to all of them. A client whose write fails is
// dropped; writes have no deadline, so a slow client delays the
// broadcast rather than being dropped.
type SpectrumServer struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []SpectrumFrame
	server    *http.Server
	done      chan struct{}
}

// NewSpectrumServer starts a server listening on addr.
func NewSpectrumServer(addr string) *SpectrumServer {
	srv := &SpectrumServer{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []SpectrumFrame, 16),
		done:      make(chan struct{}),
	}

	srv.start()

	return srv
}

func (srv *SpectrumServer) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWebSocket)

	srv.server = &http.Server{
		Addr:    srv.addr,
		Handler: mux,
	}

	go func() {
		log.Infof("transport: spectrum server listening on %s", srv.addr)

		if err := srv.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("transport: server error: %v", err)
		}
	}()

	go srv.handleBroadcasts()
}

func (srv *SpectrumServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("transport: upgrade error: %v", err)
		return
	}

	srv.clientsMu.Lock()
	srv.clients[conn] = true
	total := len(srv.clients)
	srv.clientsMu.Unlock()

	log.Infof("transport: client connected, total: %d", total)

	go func() {
		// Block until the peer goes away, then unregister.
		_, _, err := conn.ReadMessage()
		if err != nil {
			srv.clientsMu.Lock()
			delete(srv.clients, conn)
			total := len(srv.clients)
			srv.clientsMu.Unlock()

			conn.Close()
			log.Infof("transport: client disconnected, total: %d", total)
		}
	}()
}

func (srv *SpectrumServer) handleBroadcasts() {
	for {
		select {
		case <-srv.done:
			return
		case frames := <-srv.broadcast:
			srv.clientsMu.Lock()
			for client := range srv.clients {
				if err := client.WriteJSON(frames); err != nil {
					log.Errorf("transport: send error: %v", err)
					client.Close()
					delete(srv.clients, client)
				}
			}
			srv.clientsMu.Unlock()
		}
	}
}

// Publish queues frames for broadcast. Returns false when the queue is
// full; the frame is dropped rather than blocking the caller.
func (srv *SpectrumServer) Publish(frames []SpectrumFrame) bool {
	select {
	case srv.broadcast <- frames:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected observers.
func (srv *SpectrumServer) ClientCount() int {
	srv.clientsMu.Lock()
	defer srv.clientsMu.Unlock()

	return len(srv.clients)
}

// Close shuts the server down and disconnects all observers.
func (srv *SpectrumServer) Close() error {
	close(srv.done)

	srv.clientsMu.Lock()
	for client := range srv.clients {
		client.Close()
	}

	srv.clients = make(map[*websocket.Conn]bool)
	srv.clientsMu.Unlock()

	return srv.server.Close()
}

// PollShifter reads spectrum snapshots from s at the given interval and
// publishes them until stop is closed.
func (srv *SpectrumServer) PollShifter(s *formant.Shifter, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var bundles []formant.SpectrumBundle

	for {
		select {
		case <-stop:
			return
		case <-srv.done:
			return
		case <-ticker.C:
			bundles = s.SpectrumSnapshot(bundles)
			srv.Publish(FramesFromBundles(bundles, s.SampleRate()))
		}
	}
}

// FramesFromBundles converts published bundles to wire frames, taking
// the dB magnitude of the synthesis spectrum up to Nyquist.
func FramesFromBundles(bundles []formant.SpectrumBundle, sampleRate float64) []SpectrumFrame {
	frames := make([]SpectrumFrame, len(bundles))

	for ch := range bundles {
		spec := bundles[ch].Synthesis
		half := len(spec) / 2

		// Floor keeps silent bins JSON-encodable instead of -Inf.
		mags := make([]float64, half+1)
		for k := 0; k <= half; k++ {
			mags[k] = core.LinearToDB(math.Max(cmplx.Abs(spec[k]), magnitudeFloor))
		}

		frames[ch] = SpectrumFrame{
			Channel:    ch,
			SampleRate: sampleRate,
			Magnitudes: mags,
		}
	}

	return frames
}
