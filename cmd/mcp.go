package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smartsearch/internal/index"
	"smartsearch/internal/rag"
	"smartsearch/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing one user's document tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	db, err := openAppDB()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := resolveUser(db)
	if err != nil {
		return err
	}

	emb := newEmbedder()
	cache := rag.NewCache(newBuilder(emb), emb, newChat(), cfg.Retriever.K, db)
	defer cache.Close()

	s := mcpserver.NewMCPServer("smartsearch", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchDocumentsTool(), makeSearchHandler(cache, user.ID))
	s.AddTool(askDocumentsTool(), makeAskHandler(cache, user.ID))

	return mcpserver.ServeStdio(s)
}

func init() {
	mcpCmd.Flags().StringVar(&flagUser, "user", "", "username whose index to expose")
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Semantically search the user's ingested documents. Returns the most similar passages with their source file and page."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query to search the documents"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of passages to return (default 12)"),
		),
	)
}

func askDocumentsTool() mcp.Tool {
	return mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question grounded strictly in the user's documents. Returns DATA_NOT_FOUND when the documents don't contain the answer."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural language question about the documents"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(cache *rag.Cache, userID int64) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", cfg.Retriever.K)
		if k <= 0 {
			k = cfg.Retriever.K
		}

		passages, err := cache.Retrieve(userID, query, k)
		if errors.Is(err, index.ErrIndexMissing) {
			return mcp.NewToolResultError("no index built for this user yet — ingest documents first"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, passages)), nil
	}
}

func makeAskHandler(cache *rag.Cache, userID int64) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := req.GetString("question", "")
		if question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		pipeline, err := cache.Get(userID)
		if errors.Is(err, index.ErrIndexMissing) {
			return mcp.NewToolResultError("no index built for this user yet — ingest documents first"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load index failed: %v", err)), nil
		}

		answer, _, err := pipeline.Ask(question, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
		}
		return mcp.NewToolResultText(answer), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, passages []store.Passage) string {
	if len(passages) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d passages)\n\n", query, len(passages))

	for i, p := range passages {
		fmt.Fprintf(&sb, "### Result %d: `%s` (page %d)\n\n", i+1, p.Source, p.Page)
		sb.WriteString(p.Content)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
