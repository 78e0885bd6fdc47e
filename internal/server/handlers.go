package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/internal/search"
	"github.com/xiy/claude-memory-server/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MinSimilarity == 0 {
		req.MinSimilarity = s.config.Search.MinSimilarity
	}
	s.logger.Debug("search request",
		zap.String("query", req.Query),
		zap.String("mode", string(req.Mode)),
		zap.Int("limit", req.Limit))

	start := time.Now()
	var (
		results  []*models.SearchResult
		degraded bool
		err      error
	)
	switch req.Mode {
	case models.ModeSemantic:
		results, err = s.engine.SemanticSearch(r.Context(), req.Query, search.Options{
			Limit:         req.Limit,
			MinSimilarity: req.MinSimilarity,
			Category:      req.Category,
		})
	case models.ModeKeyword:
		results, err = s.engine.KeywordSearch(r.Context(), req.Query, search.Options{
			Limit:    req.Limit,
			Category: req.Category,
		})
	default:
		results, degraded, err = s.engine.HybridSearch(r.Context(), req.Query, s.hybridOptions(&req))
	}
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		Mode:      req.Mode,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Query,
		Degraded:  degraded,
	})
}

// hybridOptions fills hybrid search options from the request, falling back to
// configured weights and recency behavior.
func (s *Server) hybridOptions(req *models.SearchRequest) search.HybridOptions {
	opts := search.HybridOptions{
		Limit:          req.Limit,
		MinSimilarity:  req.MinSimilarity,
		Category:       req.Category,
		TextWeight:     s.config.Search.TextWeight,
		SemanticWeight: s.config.Search.SemanticWeight,
		BoostRecent:    s.config.Search.BoostRecentOrDefault(),
	}
	if req.TextWeight != nil {
		opts.TextWeight = *req.TextWeight
	}
	if req.SemanticWeight != nil {
		opts.SemanticWeight = *req.SemanticWeight
	}
	if req.BoostRecent != nil {
		opts.BoostRecent = *req.BoostRecent
	}
	return opts
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var input models.MemoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mem, err := s.manager.Remember(r.Context(), &input)
	if err != nil {
		s.logger.Error("create memory failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, mem)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mem, err := s.storage.GetMemory(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrMemoryNotFound) {
			s.respondError(w, http.StatusNotFound, "memory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, mem)
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	var input models.MemoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input.ID = chi.URLParam(r, "id")
	mem, err := s.manager.Update(r.Context(), &input)
	if err != nil {
		if errors.Is(err, storage.ErrMemoryNotFound) {
			s.respondError(w, http.StatusNotFound, "memory not found")
			return
		}
		s.logger.Error("update memory failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, mem)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Forget(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrMemoryNotFound) {
			s.respondError(w, http.StatusNotFound, "memory not found")
			return
		}
		s.logger.Error("delete memory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", s.config.Search.DefaultLimit)
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}
	mems, err := s.storage.ListMemories(r.Context(), category, offset, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountMemories(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"memories": mems,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}

func (s *Server) handleSimilarMemories(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	minSimilarity := queryFloat(r, "min_similarity", s.config.Search.MinSimilarity)
	opts := search.Options{
		Limit:         queryInt(r, "limit", s.config.Search.DefaultLimit),
		MinSimilarity: minSimilarity,
		Category:      r.URL.Query().Get("category"),
	}
	results, err := s.engine.FindSimilarMemories(r.Context(), id, opts)
	if err != nil {
		if errors.Is(err, search.ErrEmbeddingNotFound) {
			s.respondError(w, http.StatusNotFound, "memory has no embedding")
			return
		}
		if errors.Is(err, storage.ErrMemoryNotFound) {
			s.respondError(w, http.StatusNotFound, "memory not found")
			return
		}
		s.logger.Error("similar lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"results": results,
		"total":   len(results),
	})
}

type clusterRequest struct {
	Threshold      float64 `json:"threshold"`
	MinClusterSize int     `json:"min_cluster_size"`
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	req := clusterRequest{Threshold: 0.8, MinClusterSize: 2}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Threshold <= 0 || req.Threshold > 1 {
		s.respondError(w, http.StatusBadRequest, "threshold must be in (0, 1]")
		return
	}
	clusters, err := s.engine.ClusterMemories(r.Context(), req.Threshold, req.MinClusterSize)
	if err != nil {
		s.logger.Error("clustering failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"clusters":  clusters,
		"total":     len(clusters),
		"threshold": req.Threshold,
	})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	stored, err := s.manager.Backfill(r.Context())
	if err != nil {
		s.logger.Error("backfill failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"stored": stored})
}

func (s *Server) handleEmbeddingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.EmbeddingStatistics(r.Context())
	if err != nil {
		s.logger.Error("embedding stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"providers": stats})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := s.storage.CountMemories(ctx)
	if err != nil {
		s.logger.Error("status: count memories failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	info := s.engine.ProviderInfo()
	resp := map[string]interface{}{
		"memories":         count,
		"semantic_enabled": s.engine.SemanticSearchEnabled(ctx),
		"provider": map[string]interface{}{
			"name":       info.Name,
			"model":      info.Model,
			"dimensions": info.Dimensions,
		},
		"config": map[string]interface{}{
			"min_similarity":  s.config.Search.MinSimilarity,
			"text_weight":     s.config.Search.TextWeight,
			"semantic_weight": s.config.Search.SemanticWeight,
			"database_path":   s.config.Storage.DatabasePath,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
