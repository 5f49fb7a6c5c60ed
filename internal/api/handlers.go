package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Chavalentas/Semantic-Search-Project/internal/search"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// Searcher is the query service behind the search routes.
type Searcher interface {
	TitleSemantic(ctx context.Context, query string, amount int) ([]storage.Paper, error)
	TitleLexical(ctx context.Context, query string, amount int) ([]storage.Paper, error)
	AbstractSemantic(ctx context.Context, query string, amount int) ([]storage.PaperChunks, error)
	AbstractLexical(ctx context.Context, query string, amount int) ([]storage.Paper, error)
}

// SearchHandler serves the four search routes.
type SearchHandler struct {
	svc Searcher
}

func NewSearchHandler(svc Searcher) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// bind decodes the request body. On failure it writes a 400 and returns false.
func bind(c *gin.Context) (string, int, bool) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, bindMessage(err))
		return "", 0, false
	}
	return *req.Query, *req.Amount, true
}

func bindMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return "Empty request body!"
	case errors.As(err, &typeErr) && typeErr.Field == "amount":
		return "Amount of results has to be a number!"
	case errors.As(err, &typeErr) && typeErr.Field == "query":
		return "Query has to be a string!"
	}
	return "Wrong format of the request body!"
}

// respond maps service errors: validation failures are 400, anything else 500.
func respond[T, R any](c *gin.Context, result []T, err error, convert func([]T) []R) {
	if err != nil {
		if errors.Is(err, search.ErrValidation) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, err)
		return
	}
	Success(c, convert(result))
}

// TitleSearch handles POST /title/search.
func (h *SearchHandler) TitleSearch(c *gin.Context) {
	query, amount, ok := bind(c)
	if !ok {
		return
	}
	papers, err := h.svc.TitleSemantic(c.Request.Context(), query, amount)
	respond(c, papers, err, toPapers)
}

// TitleSearchLex handles POST /title/searchlex.
func (h *SearchHandler) TitleSearchLex(c *gin.Context) {
	query, amount, ok := bind(c)
	if !ok {
		return
	}
	papers, err := h.svc.TitleLexical(c.Request.Context(), query, amount)
	respond(c, papers, err, toPapers)
}

// AbstractSearch handles POST /abstract/search.
func (h *SearchHandler) AbstractSearch(c *gin.Context) {
	query, amount, ok := bind(c)
	if !ok {
		return
	}
	groups, err := h.svc.AbstractSemantic(c.Request.Context(), query, amount)
	respond(c, groups, err, toPaperChunks)
}

// AbstractSearchLex handles POST /abstract/searchlex.
func (h *SearchHandler) AbstractSearchLex(c *gin.Context) {
	query, amount, ok := bind(c)
	if !ok {
		return
	}
	papers, err := h.svc.AbstractLexical(c.Request.Context(), query, amount)
	respond(c, papers, err, toPapers)
}
