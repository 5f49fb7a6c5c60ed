package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Chavalentas/Semantic-Search-Project/internal/search"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

const defaultAmount = 5

// resolveInput applies defaults and checks the mode.
func resolveInput(input SearchInput) (amount int, mode string, err error) {
	amount = defaultAmount
	if input.Amount != nil {
		amount = *input.Amount
	}
	mode = input.Mode
	if mode == "" {
		mode = ModeSemantic
	}
	if mode != ModeSemantic && mode != ModeLexical {
		return 0, "", fmt.Errorf("unknown mode %q, expected %s or %s", mode, ModeSemantic, ModeLexical)
	}
	return amount, mode, nil
}

// makeSearchTitlesHandler creates the search_titles tool handler.
func makeSearchTitlesHandler(svc *search.Service) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchTitlesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchTitlesOutput, error,
	) {
		amount, mode, err := resolveInput(input)
		if err != nil {
			return nil, SearchTitlesOutput{}, err
		}

		var papers []storage.Paper
		if mode == ModeLexical {
			papers, err = svc.TitleLexical(ctx, input.Query, amount)
		} else {
			papers, err = svc.TitleSemantic(ctx, input.Query, amount)
		}
		if err != nil {
			return nil, SearchTitlesOutput{}, fmt.Errorf("title search failed: %w", err)
		}

		if len(papers) == 0 {
			return nil, SearchTitlesOutput{
				Results: []Paper{},
				Message: "No matching papers found. Try broader search terms.",
			}, nil
		}
		results := make([]Paper, len(papers))
		for i, p := range papers {
			results[i] = toPaper(p)
		}
		return nil, SearchTitlesOutput{Results: results}, nil
	}
}

// makeSearchAbstractsHandler creates the search_abstracts tool handler.
// Lexical matches carry no sentences so both modes share one output shape.
func makeSearchAbstractsHandler(svc *search.Service) func(
	context.Context, *mcp.CallToolRequest, SearchInput,
) (*mcp.CallToolResult, SearchAbstractsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
		*mcp.CallToolResult, SearchAbstractsOutput, error,
	) {
		amount, mode, err := resolveInput(input)
		if err != nil {
			return nil, SearchAbstractsOutput{}, err
		}

		var results []PaperMatch
		if mode == ModeLexical {
			papers, err := svc.AbstractLexical(ctx, input.Query, amount)
			if err != nil {
				return nil, SearchAbstractsOutput{}, fmt.Errorf("abstract search failed: %w", err)
			}
			for _, p := range papers {
				results = append(results, PaperMatch{Paper: toPaper(p), Sentences: []Sentence{}})
			}
		} else {
			groups, err := svc.AbstractSemantic(ctx, input.Query, amount)
			if err != nil {
				return nil, SearchAbstractsOutput{}, fmt.Errorf("abstract search failed: %w", err)
			}
			for _, g := range groups {
				sentences := make([]Sentence, len(g.Chunks))
				for i, c := range g.Chunks {
					sentences[i] = Sentence{Text: c.Text, Score: c.Score}
				}
				results = append(results, PaperMatch{Paper: toPaper(g.Paper), Sentences: sentences})
			}
		}

		if len(results) == 0 {
			return nil, SearchAbstractsOutput{
				Results: []PaperMatch{},
				Message: "No matching papers found. Try broader search terms.",
			}, nil
		}
		return nil, SearchAbstractsOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(store storage.Store) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		stats, err := store.Stats(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("store_error: failed to read stats: %w", err)
		}
		return nil, StatusOutput{
			Papers:          stats.Papers,
			TitleChunks:     stats.Chunks[storage.FieldTitle],
			AbstractChunks:  stats.Chunks[storage.FieldAbstract],
			TitleIndexed:    stats.Indexed[storage.FieldTitle],
			AbstractIndexed: stats.Indexed[storage.FieldAbstract],
		}, nil
	}
}
