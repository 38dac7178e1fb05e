// Package mcpserver exposes the law matcher and the case simulator as MCP
// tools, so assistants can look up statutes and run simulations.
//
// Tools:
//   - search_laws:   matcher output for a statement.
//   - simulate_case: verdict for a prosecution and a defense statement.
//   - list_crimes:   the crime lexicon, optionally one category.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/courtroom/internal/lexicon"
	"github.com/MrWong99/courtroom/internal/observe"
	"github.com/MrWong99/courtroom/internal/verdict"
)

// Backend answers tool calls. *app.Service satisfies it.
type Backend interface {
	Match(ctx context.Context, query string) []string
	Simulate(ctx context.Context, prosecution, defense string) verdict.Verdict
	Lexicon() *lexicon.Lexicon
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics counts tool calls.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is an MCP server bound to one backend.
type Server struct {
	MCPServer *sdkmcp.Server

	backend Backend
	metrics *observe.Metrics
	log     *slog.Logger
}

// New creates a Server with all tools registered.
func New(b Backend, version string, opts ...Option) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "courtroom", Version: version}, nil),
		backend:   b,
		log:       slog.Default().With("component", "mcpserver"),
	}
	for _, o := range opts {
		o(s)
	}

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "search_laws",
		Description: "Find constitution articles, index entries and IPC sections relevant to a statement. Returns the sentinel line when nothing matches.",
	}, instrument(s, "search_laws", s.handleSearchLaws))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "simulate_case",
		Description: "Simulate a case from the prosecution's and the defense's statements. Win chances are randomized and not legal advice.",
	}, instrument(s, "simulate_case", s.handleSimulateCase))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_crimes",
		Description: "List crime categories with their trigger phrases and statute citations.",
	}, instrument(s, "list_crimes", s.handleListCrimes))

	return s
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

type searchLawsInput struct {
	Query string `json:"query" jsonschema:"statement or keyword to match, e.g. he stole my bike"`
}

type searchLawsOutput struct {
	Results []string `json:"results"`
}

type simulateCaseInput struct {
	Prosecution string `json:"prosecution" jsonschema:"the prosecution's argument or evidence"`
	Defense     string `json:"defense" jsonschema:"the defense's argument or evidence"`
}

type simulateCaseOutput struct {
	ProsecutionMatches []string `json:"prosecution_matches"`
	DefenseMatches     []string `json:"defense_matches"`
	ProsecutionWinPct  int      `json:"prosecution_win_pct"`
	DefenseWinPct      int      `json:"defense_win_pct"`
	Report             string   `json:"report"`
}

type listCrimesInput struct {
	Category string `json:"category,omitempty" jsonschema:"only this category, e.g. theft"`
}

type crime struct {
	Category  string   `json:"category"`
	Synonyms  []string `json:"synonyms"`
	Citations []string `json:"citations"`
}

type listCrimesOutput struct {
	Crimes []crime `json:"crimes"`
}

func (s *Server) handleSearchLaws(ctx context.Context, _ *sdkmcp.CallToolRequest, in searchLawsInput) (*sdkmcp.CallToolResult, searchLawsOutput, error) {
	return nil, searchLawsOutput{Results: s.backend.Match(ctx, in.Query)}, nil
}

func (s *Server) handleSimulateCase(ctx context.Context, _ *sdkmcp.CallToolRequest, in simulateCaseInput) (*sdkmcp.CallToolResult, simulateCaseOutput, error) {
	v := s.backend.Simulate(ctx, in.Prosecution, in.Defense)
	return nil, simulateCaseOutput{
		ProsecutionMatches: v.ProsecutionMatches,
		DefenseMatches:     v.DefenseMatches,
		ProsecutionWinPct:  v.ProsecutionWinPct,
		DefenseWinPct:      v.DefenseWinPct,
		Report:             v.Report(),
	}, nil
}

func (s *Server) handleListCrimes(_ context.Context, _ *sdkmcp.CallToolRequest, in listCrimesInput) (*sdkmcp.CallToolResult, listCrimesOutput, error) {
	lx := s.backend.Lexicon()
	if in.Category != "" {
		e, ok := lx.Lookup(in.Category)
		if !ok {
			return nil, listCrimesOutput{}, fmt.Errorf("unknown crime category %q", in.Category)
		}
		return nil, listCrimesOutput{Crimes: []crime{toCrime(e)}}, nil
	}
	out := listCrimesOutput{Crimes: make([]crime, 0, lx.Len())}
	for _, e := range lx.Entries() {
		out.Crimes = append(out.Crimes, toCrime(e))
	}
	return nil, out, nil
}

func toCrime(e lexicon.CrimeEntry) crime {
	return crime{Category: e.Category, Synonyms: e.Synonyms, Citations: e.Citations}
}

// instrument wraps a tool handler with a span, a log line and the tool call
// counter.
func instrument[In, Out any](s *Server, name string, h sdkmcp.ToolHandlerFor[In, Out]) sdkmcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, Out, error) {
		ctx, span := observe.StartSpan(ctx, "mcp."+name)
		defer span.End()

		res, out, err := h(ctx, req, in)
		status := "ok"
		if err != nil {
			status = "error"
			s.log.Warn("tool call failed", "tool", name, "err", err)
		} else {
			s.log.Debug("tool call", "tool", name)
		}
		if s.metrics != nil {
			s.metrics.RecordToolCall(ctx, name, status)
		}
		return res, out, err
	}
}
