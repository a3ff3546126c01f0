package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/guess-game/game/engine"
	"github.com/wricardo/guess-game/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Guess Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Guess Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Think of a character. The engine asks yes/no style questions and tries to
guess who it is. Each player is identified by a username; one game per
username at a time.

AVAILABLE TOOLS:
- start_game: Start (or restart) a game for a username
- answer_question: Answer the current question (0-4)
- cancel_answer: Undo the last answer
- get_session: Get the current question and progress for a username
- list_sessions: List all active games
- list_catalogs: List the character catalogs a game can be started with
- game_instructions: Get the full rules and answer codes`),
	)

	c.registerTools()
}

func usernameProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Player username; identifies the game session (case-sensitive)",
	}
}

func answerProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"enum":        engine.AllAnswers(),
		"description": "Answer code",
	}
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Start a new game for a username, replacing any game already in progress",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": usernameProperty(),
				"region": map[string]interface{}{
					"type":        "string",
					"description": "Engine region/language code (optional)",
				},
				"child_mode": map[string]interface{}{
					"type":        "boolean",
					"description": "Exclude adult characters (optional)",
				},
				"catalog": map[string]interface{}{
					"type":        "string",
					"description": "Catalog id from list_catalogs (optional)",
				},
			},
			Required: []string{"username"},
		},
	}, c.handleStartGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "answer_question",
		Description: "Answer the current question: 0=yes, 1=no, 2=don't know, 3=probably, 4=probably not",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": usernameProperty(),
				"answer":   answerProperty(),
			},
			Required: []string{"username", "answer"},
		},
	}, c.handleAnswer)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "cancel_answer",
		Description: "Undo the last answer and return to the previous question",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": usernameProperty(),
			},
			Required: []string{"username"},
		},
	}, c.handleCancel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get the current state of a username's game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": usernameProperty(),
			},
			Required: []string{"username"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_catalogs",
		Description: "List available character catalogs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListCatalogs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get game rules and answer codes",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiError carries the message of a non-2xx REST response.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d", e.Status)
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return &apiError{Status: resp.StatusCode, Message: errResp.Message}
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// gameResponse is the union of the play endpoint bodies.
type gameResponse struct {
	Message         string `json:"message"`
	Question        string `json:"question"`
	Progress        int    `json:"progress"`
	Win             bool   `json:"win"`
	SuggestionName  string `json:"suggestion_name"`
	SuggestionDesc  string `json:"suggestion_desc"`
	SuggestionPhoto string `json:"suggestion_photo"`
}

func toolArgs(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func requireUsername(args map[string]interface{}) (string, *mcp.CallToolResult) {
	username, _ := args["username"].(string)
	if strings.TrimSpace(username) == "" {
		return "", mcp.NewToolResultError("username is required")
	}
	return username, nil
}

func playPath(username string, parts ...string) string {
	return "/" + url.PathEscape(username) + "/" + strings.Join(parts, "/")
}

// parseAnswerArg accepts the answer as a JSON number or a numeric string.
func parseAnswerArg(v interface{}) (engine.Answer, error) {
	switch a := v.(type) {
	case float64:
		if a != float64(int(a)) {
			return 0, fmt.Errorf("answer must be an integer between 0 and 4")
		}
		return engine.ParseAnswer(strconv.Itoa(int(a)))
	case string:
		return engine.ParseAnswer(a)
	case nil:
		return 0, fmt.Errorf("answer is required")
	default:
		return 0, fmt.Errorf("answer must be an integer between 0 and 4")
	}
}

// Tool handlers

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := toolArgs(request)
	username, errResult := requireUsername(args)
	if errResult != nil {
		return errResult, nil
	}

	query := url.Values{}
	if region, _ := args["region"].(string); region != "" {
		query.Set("region", region)
	}
	if catalog, _ := args["catalog"].(string); catalog != "" {
		query.Set("catalog", catalog)
	}
	if childMode, ok := args["child_mode"].(bool); ok {
		query.Set("child_mode", strconv.FormatBool(childMode))
	}

	path := playPath(username, "start")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp gameResponse
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameResponse(&resp)), nil
}

func (c *Client) handleAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := toolArgs(request)
	username, errResult := requireUsername(args)
	if errResult != nil {
		return errResult, nil
	}

	answer, err := parseAnswerArg(args["answer"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp gameResponse
	path := playPath(username, "answer", strconv.Itoa(int(answer)))
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameResponse(&resp)), nil
}

func (c *Client) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := toolArgs(request)
	username, errResult := requireUsername(args)
	if errResult != nil {
		return errResult, nil
	}

	var resp gameResponse
	if err := c.apiCall(ctx, http.MethodGet, playPath(username, "cancel"), nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameResponse(&resp)), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := toolArgs(request)
	username, errResult := requireUsername(args)
	if errResult != nil {
		return errResult, nil
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(username), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, http.MethodGet, "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (%s, %d answers, last active %s)\n",
			s.ID, s.Status, s.Answers, s.LastAccessedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleListCatalogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var catalogs []service.CatalogInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/catalogs", nil, &catalogs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(catalogs) == 0 {
		return mcp.NewToolResultText("No catalogs available; games use the built-in catalog."), nil
	}

	var b strings.Builder
	b.WriteString("Available Catalogs:\n\n")
	for _, cat := range catalogs {
		fmt.Fprintf(&b, "• %s (id: %s)\n  %s\n  Characters: %d, Questions: %d\n\n",
			cat.Name, cat.CatalogID, cat.Description, cat.Characters, cat.Questions)
	}

	return mcp.NewToolResultText(b.String()), nil
}

const instructions = `Guess Game - Instructions

OBJECTIVE:
Think of a character. The engine asks questions and narrows down the
candidates until it can guess who you are thinking of.

FLOW:
1. start_game with a username. Any game already running for that username is replaced.
2. answer_question repeatedly. Each answer returns the next question and progress (0-100).
3. When the engine is confident it returns a guess with a name, description and photo.
4. cancel_answer undoes the last answer, including the final guess.

ANSWER CODES:
  0 - yes
  1 - no
  2 - don't know
  3 - probably
  4 - probably not

ERRORS:
- "No game session found" means start_game was not called for that username.
- A won game rejects further answers until you cancel or start again.
- "Guessing engine unavailable" means the engine could not be reached; the game is unchanged, retry later.

Usernames are case-sensitive: "Alice" and "alice" are different games.`

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatGameResponse(resp *gameResponse) string {
	var b strings.Builder
	b.WriteString(resp.Message)
	b.WriteString("\n\n")

	if resp.Win {
		fmt.Fprintf(&b, "🎉 I guess: %s\n", resp.SuggestionName)
		if resp.SuggestionDesc != "" {
			fmt.Fprintf(&b, "%s\n", resp.SuggestionDesc)
		}
		if resp.SuggestionPhoto != "" {
			fmt.Fprintf(&b, "Photo: %s\n", resp.SuggestionPhoto)
		}
		b.WriteString("\nWrong guess? Use cancel_answer to step back, or start_game to play again.")
		return b.String()
	}

	fmt.Fprintf(&b, "Question: %s\n", resp.Question)
	fmt.Fprintf(&b, "Progress: %d%%\n", resp.Progress)
	b.WriteString("\nAnswer with 0=yes, 1=no, 2=don't know, 3=probably, 4=probably not")
	return b.String()
}

func formatSessionInfo(info *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", info.ID)
	fmt.Fprintf(&b, "Status: %s\n", info.Status)
	fmt.Fprintf(&b, "Answers: %d\n", info.Answers)

	if info.Status == service.StatusWon && info.Suggestion != nil {
		fmt.Fprintf(&b, "Guess: %s (%s)\n", info.Suggestion.Name, info.Suggestion.Description)
	} else {
		fmt.Fprintf(&b, "Question: %s\n", info.Question)
		fmt.Fprintf(&b, "Progress: %d%%\n", info.Progress)
	}

	if info.Options.Catalog != "" {
		fmt.Fprintf(&b, "Catalog: %s\n", info.Options.Catalog)
	}
	fmt.Fprintf(&b, "Created: %s\n", info.CreatedAt.Format(time.RFC3339))
	return b.String()
}
