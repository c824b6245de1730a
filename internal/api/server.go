package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sm-diecasting/inspection-service/internal/domain/entity"
	"github.com/sm-diecasting/inspection-service/internal/domain/port"
)

// Server is the thin HTTP surface the review and dashboard pages talk to:
// list products split by verdict, correct a verdict manually, and read the
// NG/OK ratio.
type Server struct {
	results port.ResultStore
	frames  port.FrameStorage
	logger  *zap.Logger
}

func NewServer(results port.ResultStore, frames port.FrameStorage, logger *zap.Logger) *Server {
	return &Server{results: results, frames: frames, logger: logger}
}

type frameView struct {
	FramePath  string  `json:"frame_path"`
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Failed     bool    `json:"failed,omitempty"`
	URL        string  `json:"url,omitempty"`
}

type productView struct {
	ProductID   int64       `json:"product_id"`
	FinalResult string      `json:"final_result"`
	Frames      []frameView `json:"frames"`
}

type productsResponse struct {
	NG []productView `json:"ng"`
	OK []productView `json:"ok"`
}

type dashboardResponse struct {
	Total   int     `json:"total"`
	NG      int     `json:"ng"`
	OK      int     `json:"ok"`
	NGRatio float64 `json:"ng_ratio"`
}

type verdictRequest struct {
	Verdict string `json:"verdict"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("POST /api/products/{id}/verdict", s.handleUpdateVerdict)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	return mux
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	records, err := s.results.Scan(r.Context())
	if err != nil {
		s.writeError(w, "failed to load products", http.StatusInternalServerError, err)
		return
	}

	resp := productsResponse{NG: []productView{}, OK: []productView{}}
	for _, rec := range records {
		view := s.toProductView(r.Context(), rec)
		if rec.FinalResult == entity.VerdictNG {
			resp.NG = append(resp.NG, view)
		} else {
			resp.OK = append(resp.OK, view)
		}
	}

	s.writeJSON(w, resp)
}

func (s *Server) handleUpdateVerdict(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, "invalid product id", http.StatusBadRequest, err)
		return
	}

	var req verdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest, err)
		return
	}

	verdict := entity.Verdict(req.Verdict)
	if verdict != entity.VerdictOK && verdict != entity.VerdictNG {
		s.writeError(w, fmt.Sprintf("verdict must be %s or %s", entity.VerdictOK, entity.VerdictNG),
			http.StatusBadRequest, nil)
		return
	}

	if err := s.results.UpdateVerdict(r.Context(), id, verdict); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			s.writeError(w, "product not found", http.StatusNotFound, err)
			return
		}
		s.writeError(w, "failed to update verdict", http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	records, err := s.results.Scan(r.Context())
	if err != nil {
		s.writeError(w, "failed to load products", http.StatusInternalServerError, err)
		return
	}

	ng := 0
	for _, rec := range records {
		if rec.FinalResult == entity.VerdictNG {
			ng++
		}
	}

	resp := dashboardResponse{
		Total: len(records),
		NG:    ng,
		OK:    len(records) - ng,
	}
	if resp.Total > 0 {
		resp.NGRatio = float64(ng) / float64(resp.Total)
	}

	s.writeJSON(w, resp)
}

func (s *Server) toProductView(ctx context.Context, rec entity.ProductRecord) productView {
	frames := make([]frameView, 0, len(rec.Frames))
	for _, p := range rec.Frames {
		fv := frameView{
			FramePath:  p.Frame.StorageKey(),
			Prediction: string(p.Label),
			Confidence: p.Confidence,
			Failed:     p.Failed,
		}
		if url, err := s.frames.FrameURL(ctx, fv.FramePath); err == nil {
			fv.URL = url
		} else {
			s.logger.Warn("failed to presign frame", zap.String("frame", fv.FramePath), zap.Error(err))
		}
		frames = append(frames, fv)
	}
	return productView{
		ProductID:   rec.ProductID,
		FinalResult: string(rec.FinalResult),
		Frames:      frames,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, code int, err error) {
	if err != nil {
		s.logger.Error(msg, zap.Error(err))
	}
	http.Error(w, msg, code)
}

// StartServer serves the API in the background, the same way the metrics
// server runs.
func StartServer(port int, srv *Server, logger *zap.Logger) *http.Server {
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("api server starting", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	return httpSrv
}
