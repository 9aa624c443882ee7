package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/admincache/internal/model"
	"github.com/roach88/admincache/internal/provider"
)

// badRequest is a client error carrying status 400.
type badRequest struct{ err error }

func (e badRequest) Error() string   { return e.err.Error() }
func (e badRequest) Unwrap() error   { return e.err }
func (e badRequest) StatusCode() int { return http.StatusBadRequest }

func (s *Server) handleList(c *gin.Context) {
	resource := c.Param("resource")
	lp, err := parseListQuery(c)
	if err != nil {
		s.fail(c, badRequest{err})
		return
	}
	resp, err := s.provider.Fetch(c.Request.Context(), model.GetList, resource, model.Params{}.WithList(lp))
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := provider.Validate(model.GetList, resp)
	if err != nil {
		s.fail(c, err)
		return
	}

	start := lp.Pagination.Offset()
	end := start + len(res.Records) - 1
	if len(res.Records) == 0 {
		end = start
	}
	c.Header("Content-Range", fmt.Sprintf("%s %d-%d/%d", resource, start, end, res.Total))
	c.JSON(http.StatusOK, toAny(res.Records))
}

func (s *Server) handleGetOne(c *gin.Context) {
	s.single(c, model.GetOne, model.Params{ID: model.ID(c.Param("id"))}, http.StatusOK)
}

func (s *Server) handleCreate(c *gin.Context) {
	data, err := bindRecord(c)
	if err != nil {
		s.fail(c, badRequest{err})
		return
	}
	s.single(c, model.Create, model.Params{Data: data}, http.StatusCreated)
}

func (s *Server) handleUpdate(c *gin.Context) {
	data, err := bindRecord(c)
	if err != nil {
		s.fail(c, badRequest{err})
		return
	}
	s.single(c, model.Update, model.Params{ID: model.ID(c.Param("id")), Data: data}, http.StatusOK)
}

func (s *Server) handleDelete(c *gin.Context) {
	s.single(c, model.Delete, model.Params{ID: model.ID(c.Param("id"))}, http.StatusOK)
}

func (s *Server) single(c *gin.Context, verb model.Verb, params model.Params, status int) {
	resp, err := s.provider.Fetch(c.Request.Context(), verb, c.Param("resource"), params)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, resp.Data)
}

// parseListQuery reads sort=["f","ASC"], range=[0,24] and filter={...}.
func parseListQuery(c *gin.Context) (model.ListParams, error) {
	lp := model.ListParams{Filter: model.Filter{}}

	if raw := c.Query("sort"); raw != "" {
		var pair []string
		if err := json.Unmarshal([]byte(raw), &pair); err != nil || len(pair) != 2 {
			return lp, fmt.Errorf("sort must be [field, order], got %s", raw)
		}
		order, err := model.ParseSortOrder(pair[1])
		if err != nil {
			return lp, err
		}
		lp.Sort = model.Sort{Field: pair[0], Order: order}
	}

	if raw := c.Query("range"); raw != "" {
		var bounds []int
		if err := json.Unmarshal([]byte(raw), &bounds); err != nil || len(bounds) != 2 || bounds[0] < 0 || bounds[1] < bounds[0] {
			return lp, fmt.Errorf("range must be [start, end], got %s", raw)
		}
		perPage := bounds[1] - bounds[0] + 1
		lp.Pagination = model.Pagination{Page: bounds[0]/perPage + 1, PerPage: perPage}
	}

	if raw := c.Query("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &lp.Filter); err != nil {
			return lp, fmt.Errorf("filter must be a JSON object: %w", err)
		}
	}
	return lp, nil
}

func bindRecord(c *gin.Context) (model.Record, error) {
	var data model.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	return data, nil
}

func toAny(recs []model.Record) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = map[string]any(r)
	}
	return out
}
