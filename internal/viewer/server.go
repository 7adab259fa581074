package viewer

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/dunamismax/holoflow/internal/imagecodec"
	"github.com/dunamismax/holoflow/internal/slot"
)

// Server renders the hologram display surface. The index page reloads the
// frame image on a timer while /frame answers conditional requests with
// the slot version as ETag, so the common poll is a 304 with no body.
type Server struct {
	logger  *log.Logger
	poller  *Poller
	mux     *http.ServeMux
	metrics *metrics

	// One-entry transcode cache keyed by slot version; display boards
	// that only speak JPEG poll just as often as the PNG ones.
	jpegMu      sync.Mutex
	jpegVersion string
	jpegBytes   []byte
}

const indexHTML = `<!doctype html>
<html>
<head>
<title>Hologram Display</title>
<style>
  body { margin: 0; background: #000; display: flex; align-items: center; justify-content: center; height: 100vh; }
  img { max-width: 100vmin; max-height: 100vmin; }
</style>
</head>
<body>
<img id="frame" src="/frame" alt="hologram">
<script>
  setInterval(function () {
    document.getElementById("frame").src = "/frame?t=" + Date.now();
  }, 2000);
</script>
</body>
</html>
`

func NewServer(logger *log.Logger, poller *Poller) *Server {
	s := &Server{
		logger:  logger,
		poller:  poller,
		mux:     http.NewServeMux(),
		metrics: newMetrics(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /frame", s.handleFrame)
	s.mux.HandleFunc("GET /frame.jpg", s.handleFrameJPEG)
	s.mux.HandleFunc("GET /frame/version", s.handleFrameVersion)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.poller.Current()
	if !ok {
		s.metrics.framesServed.WithLabelValues("waiting").Inc()
		w.Header().Set("Retry-After", "2")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting"})
		return
	}

	etag := `"` + frame.Version + `"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		s.metrics.framesServed.WithLabelValues("not_modified").Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	s.metrics.framesServed.WithLabelValues("full").Inc()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Last-Modified", frame.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame.PNG)
}

func (s *Server) handleFrameJPEG(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.poller.Current()
	if !ok {
		s.metrics.framesServed.WithLabelValues("waiting").Inc()
		w.Header().Set("Retry-After", "2")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting"})
		return
	}

	etag := `"` + frame.Version + `-jpg"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		s.metrics.framesServed.WithLabelValues("not_modified").Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := s.frameJPEG(frame)
	if err != nil {
		s.logger.Printf("frame transcode failed version=%s err=%v", frame.Version, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "frame transcode failed"})
		return
	}

	s.metrics.framesServed.WithLabelValues("full").Inc()
	w.Header().Set("Content-Type", imagecodec.ContentTypeForFormat("jpeg"))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Last-Modified", frame.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) frameJPEG(frame slot.Frame) ([]byte, error) {
	s.jpegMu.Lock()
	defer s.jpegMu.Unlock()

	if s.jpegVersion == frame.Version && s.jpegBytes != nil {
		return s.jpegBytes, nil
	}

	img, _, err := imagecodec.Decode(frame.PNG)
	if err != nil {
		return nil, err
	}
	data, err := imagecodec.EncodeJPEG(img, 80)
	if err != nil {
		return nil, err
	}

	s.jpegVersion = frame.Version
	s.jpegBytes = data
	return data, nil
}

func (s *Server) handleFrameVersion(w http.ResponseWriter, _ *http.Request) {
	frame, ok := s.poller.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"published": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"published":  true,
		"version":    frame.Version,
		"updated_at": frame.UpdatedAt.UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
