package handler

import (
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/pulsehound/internal/api/response"
	"github.com/kiranshivaraju/pulsehound/internal/store"
)

const (
	defaultAnalysesLimit = 20
	maxAnalysesLimit     = 100
)

// ListAnalyses returns recent analysis records from the permanent store,
// newest first. Supports ?limit=N up to the cap.
func ListAnalyses(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultAnalysesLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", nil)
				return
			}
			if n > maxAnalysesLimit {
				n = maxAnalysesLimit
			}
			limit = n
		}

		recs, err := st.ListAnalysisRecords(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list analyses", nil)
			return
		}

		response.JSON(w, recs)
	}
}
