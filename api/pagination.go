package api

import (
	"net/http"
	"strconv"
)

// Audit pages default to 50 rows; the dashboard renders a fixed-height
// table and requests further pages as the operator scrolls.
const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// PaginationMeta is embedded in paginated list responses.
type PaginationMeta struct {
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// pageQuery reads "limit" and "offset" from the request query. Missing,
// non-numeric, or non-positive values fall back to the defaults; limit is
// capped at maxAuditPageSize.
func pageQuery(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = positiveInt(q.Get("limit"), defaultAuditPageSize)
	if limit > maxAuditPageSize {
		limit = maxAuditPageSize
	}
	offset = positiveInt(q.Get("offset"), 0)
	return limit, offset
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// pageBounds clips [offset, offset+limit) to a collection of totalCount
// rows and fills the response metadata. An offset past the end yields an
// empty page, not an error.
func pageBounds(totalCount, limit, offset int) (start, end int, meta PaginationMeta) {
	start = min(offset, totalCount)
	end = min(start+limit, totalCount)
	meta = PaginationMeta{
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
		HasMore:    end < totalCount,
	}
	return start, end, meta
}
