// Package observer serves read-only HTTP views of the simulator: presets,
// recorded runs, imported datasets and queue health. Index views are
// restricted to loopback clients.
package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"agrifood.ai/internal/persistence/indexdb"
	"agrifood.ai/internal/protocol"
	"agrifood.ai/internal/sim/scenario"
)

// Index is the subset of the run index the observer reads.
type Index interface {
	Runs(ctx context.Context, limit int) ([]indexdb.RunInfo, error)
	Datasets(ctx context.Context) ([]indexdb.DatasetInfo, error)
	Stats() indexdb.QueueStats
}

type Server struct {
	presets *scenario.Presets
	index   Index
	reload  func()
	log     *zap.Logger
}

func NewServer(ps *scenario.Presets, idx Index, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{presets: ps, index: idx, log: logger}
}

// OnReload sets the hook behind POST /admin/v1/baseline/reload.
func (s *Server) OnReload(fn func()) { s.reload = fn }

// Register mounts the observer routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/presets", s.PresetsHandler())
	mux.HandleFunc("/v1/runs", s.RunsHandler())
	mux.HandleFunc("/v1/datasets", s.DatasetsHandler())
	mux.HandleFunc("/admin/v1/queue", s.QueueHandler())
	mux.HandleFunc("/admin/v1/baseline/reload", s.ReloadHandler())
}

type presetsResponse struct {
	ProtocolVersion string            `json:"protocol_version"`
	LeverCodes      []string          `json:"lever_codes"`
	Presets         []scenario.Preset `json:"presets"`
}

func (s *Server) PresetsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := presetsResponse{
			ProtocolVersion: protocol.Version,
			LeverCodes:      scenario.LeverCodes(),
			Presets:         []scenario.Preset{},
		}
		if s.presets != nil {
			resp.Presets = s.presets.Presets
		}
		writeJSON(rw, resp)
	}
}

func (s *Server) RunsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.guard(rw, r, http.MethodGet) {
			return
		}
		limit := 50
		if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(rw, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, 1000)
		}
		runs, err := s.index.Runs(r.Context(), limit)
		if err != nil {
			s.log.Error("list runs", zap.Error(err))
			http.Error(rw, "index error", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []indexdb.RunInfo{}
		}
		writeJSON(rw, map[string]any{"runs": runs})
	}
}

func (s *Server) DatasetsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.guard(rw, r, http.MethodGet) {
			return
		}
		ds, err := s.index.Datasets(r.Context())
		if err != nil {
			s.log.Error("list datasets", zap.Error(err))
			http.Error(rw, "index error", http.StatusInternalServerError)
			return
		}
		if ds == nil {
			ds = []indexdb.DatasetInfo{}
		}
		writeJSON(rw, map[string]any{"datasets": ds})
	}
}

func (s *Server) QueueHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.guard(rw, r, http.MethodGet) {
			return
		}
		writeJSON(rw, s.index.Stats())
	}
}

func (s *Server) ReloadHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if s.reload == nil {
			http.Error(rw, "reload not configured", http.StatusNotImplemented)
			return
		}
		s.reload()
		s.log.Info("baseline reload requested", zap.String("remote", r.RemoteAddr))
		writeJSON(rw, map[string]bool{"ok": true})
	}
}

// guard applies the method, loopback and index checks shared by the index views.
func (s *Server) guard(rw http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return false
	}
	if s.index == nil {
		http.Error(rw, "no index configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
