package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/engine"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/query"
)

// maxLimit caps the limit query parameter.
const maxLimit = 1000

// writeResponse is returned by every write route.
type writeResponse struct {
	Key string `json:"tconst"`
	engine.Result
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return query.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		return 0, model.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", maxLimit), err)
	}
	return n, nil
}

func (s *Server) handleList(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	s.serveRead(c, query.Titles(limit))
}

func (s *Server) handleSearch(c *gin.Context) {
	term := c.Query("q")
	if term == "" {
		writeError(c, model.NewValidationError("query parameter q is required", nil))
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		writeError(c, err)
		return
	}
	s.serveRead(c, query.Search(term, limit))
}

func (s *Server) serveRead(c *gin.Context, stmt query.Statement) {
	res, err := s.engine.Query(c.Request.Context(), stmt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header(ServedByHeader, string(res.ServedBy))
	c.JSON(http.StatusOK, res.Rows)
}

func (s *Server) handleGet(c *gin.Context) {
	rec, found, servedBy, err := s.engine.Get(c.Request.Context(), c.Param("tconst"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header(ServedByHeader, string(servedBy))
	if !found {
		c.JSON(http.StatusNotFound, errorResponse{Error: "title not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCreate(c *gin.Context) {
	var rec model.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		writeError(c, model.NewValidationError("invalid JSON body", err))
		return
	}
	s.upsert(c, rec, http.StatusCreated)
}

func (s *Server) handleUpdate(c *gin.Context) {
	var rec model.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		writeError(c, model.NewValidationError("invalid JSON body", err))
		return
	}

	key := c.Param("tconst")
	if rec.Key != "" && rec.Key != key {
		writeError(c, model.NewValidationError("tconst in body does not match path", nil))
		return
	}
	rec.Key = key
	s.upsert(c, rec, http.StatusOK)
}

func (s *Server) upsert(c *gin.Context, rec model.Record, status int) {
	res, err := s.engine.Upsert(c.Request.Context(), rec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, writeResponse{Key: rec.Key, Result: res})
}

func (s *Server) handleDelete(c *gin.Context) {
	key := c.Param("tconst")
	res, err := s.engine.Delete(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, writeResponse{Key: key, Result: res})
}

type report int

const (
	reportTopGenres report = iota
	reportMostTitlesYear
	reportAdultCount
)

func (s *Server) handleReport(r report) gin.HandlerFunc {
	var stmt query.Statement
	switch r {
	case reportTopGenres:
		stmt = query.TopGenres()
	case reportMostTitlesYear:
		stmt = query.MostTitlesYear()
	case reportAdultCount:
		stmt = query.AdultCount()
	}
	return func(c *gin.Context) {
		s.serveRead(c, stmt)
	}
}
