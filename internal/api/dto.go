package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// SearchRequest is the body of every search route. Pointers distinguish
// missing fields from zero values.
type SearchRequest struct {
	Query  *string `json:"query" binding:"required"`
	Amount *int    `json:"amount" binding:"required"`
}

// Paper is the wire form of a stored paper.
type Paper struct {
	PaperID         string           `json:"paperId"`
	Title           string           `json:"title"`
	Abstract        string           `json:"abstract"`
	PublicationDate *string          `json:"publicationDate"`
	Authors         []storage.Author `json:"authors"`
}

// AbstractChunk is a matched abstract sentence.
type AbstractChunk struct {
	PaperID   string  `json:"paperId"`
	ChunkText string  `json:"chunkText"`
	Score     float32 `json:"score"`
}

// PaperChunks maps a paper to its matched abstract sentences.
type PaperChunks struct {
	Paper  Paper           `json:"paper"`
	Chunks []AbstractChunk `json:"chunks"`
}

// ResultResponse wraps successful results.
type ResultResponse[T any] struct {
	Result []T `json:"result"`
}

// MessageResponse carries an error message.
type MessageResponse struct {
	Message string `json:"message"`
}

func toPaper(p storage.Paper) Paper {
	out := Paper{
		PaperID:  p.ID,
		Title:    p.Title,
		Abstract: p.Abstract,
		Authors:  p.Authors,
	}
	if out.Authors == nil {
		out.Authors = []storage.Author{}
	}
	if p.PublicationDate != nil {
		d := p.PublicationDate.String()
		out.PublicationDate = &d
	}
	return out
}

func toPapers(ps []storage.Paper) []Paper {
	out := make([]Paper, len(ps))
	for i, p := range ps {
		out[i] = toPaper(p)
	}
	return out
}

func toPaperChunks(groups []storage.PaperChunks) []PaperChunks {
	out := make([]PaperChunks, len(groups))
	for i, g := range groups {
		chunks := make([]AbstractChunk, len(g.Chunks))
		for j, c := range g.Chunks {
			chunks[j] = AbstractChunk{PaperID: c.PaperID, ChunkText: c.Text, Score: c.Score}
		}
		out[i] = PaperChunks{Paper: toPaper(g.Paper), Chunks: chunks}
	}
	return out
}

// Success writes a 200 result envelope.
func Success[T any](c *gin.Context, result []T) {
	c.JSON(200, ResultResponse[T]{Result: result})
}

// BadRequest writes a 400 with message.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(400, MessageResponse{Message: message})
}

// InternalError writes a 500 naming the failure.
func InternalError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(500, MessageResponse{Message: "Internal error: " + err.Error()})
}
