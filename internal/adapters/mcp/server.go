// Package mcpadapter exposes retrieval as MCP tools over stdio so agent
// frontends can query the index directly.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/adscope/marketing-rag/internal/core/domain"
	"github.com/adscope/marketing-rag/internal/core/ports"
)

type Server struct {
	searcher ports.Searcher
	router   ports.StrategyRouter
	mcp      *server.MCPServer
}

func NewServer(searcher ports.Searcher, strategyRouter ports.StrategyRouter, version string) *Server {
	s := &Server{
		searcher: searcher,
		router:   strategyRouter,
		mcp: server.NewMCPServer(
			"marketing-rag",
			version,
			server.WithToolCapabilities(false),
		),
	}

	s.mcp.AddTool(mcp.NewTool("search_data",
		mcp.WithDescription("Search marketing performance data, reports, and contracts. Routes the query to the best retrieval strategy."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer from indexed documents.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of chunks to return. Defaults to 5.")),
	), s.searchData)

	s.mcp.AddTool(mcp.NewTool("search_assets",
		mcp.WithDescription("Search campaign creative assets by description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Description of the asset to find.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of assets to return. Defaults to 5.")),
	), s.searchAssets)

	s.mcp.AddTool(mcp.NewTool("filter_by_category",
		mcp.WithDescription("Retrieve chunks restricted to one data category, such as digital_media or contracts."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer.")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category to restrict retrieval to.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of chunks to return. Defaults to 5.")),
	), s.filterByCategory)

	return s
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) searchData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := request.GetInt("top_k", 5)

	routed, err := s.router.RouteAndSearch(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(routed)
}

func (s *Server) searchAssets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := request.GetInt("top_k", 5)

	result, err := s.searcher.Search(ctx, domain.CollectionAssets, query, topK, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(result)
}

func (s *Server) filterByCategory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := request.GetInt("top_k", 5)

	result, err := s.searcher.Search(ctx, domain.CollectionText, query, topK, []domain.Predicate{
		{Field: "category", Op: domain.OpEq, Values: []string{category}},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolResult(result)
}

func toolResult(payload any) (*mcp.CallToolResult, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(encoded)), nil
}
