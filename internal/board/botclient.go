package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/benvon/taskboard/internal/bot"
	"github.com/benvon/taskboard/internal/models"
	"github.com/google/uuid"
)

const (
	botActionsPath  = "/api/v1/bot/actions"
	botSecretHeader = "x-bot-secret"
	maxBotResponse  = 1 << 20
)

// BotClient sends agent actions to the board server's bot endpoint, authenticating with
// the agent view token as the shared secret
type BotClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

// BotError is a non-2xx answer from the bot endpoint
type BotError struct {
	Status  int
	Message string
	Details string
}

func (e *BotError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", msg, e.Status, e.Details)
	}
	return fmt.Sprintf("%s (%d)", msg, e.Status)
}

// CompleteResult carries both outcomes of complete_task. CommentError is set when the task
// was completed but the note could not be saved.
type CompleteResult struct {
	Task         *models.Task
	Comment      *models.Comment
	CommentError string
}

// botResponse covers the success envelope, the complete_task body and the error envelope
type botResponse struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
	Task         *models.Task    `json:"task"`
	Comment      *models.Comment `json:"comment"`
	CommentError string          `json:"comment_error"`
	Error        string          `json:"error"`
	Details      string          `json:"details"`
}

// NewBotClient creates a client for the server at baseURL. A nil client uses a default
// with the board's operation timeout.
func NewBotClient(baseURL, secret string, client *http.Client) *BotClient {
	if client == nil {
		client = &http.Client{Timeout: opTimeout}
	}
	return &BotClient{baseURL: baseURL, secret: secret, client: client}
}

// CreateTask asks the server to create a task assigned to the agent
func (c *BotClient) CreateTask(ctx context.Context, title, description string, priority models.TaskPriority) (*models.Task, error) {
	payload := map[string]string{"title": title, "description": description}
	if priority != "" {
		payload["priority"] = string(priority)
	}
	resp, err := c.do(ctx, bot.ActionCreateTask, payload)
	if err != nil {
		return nil, err
	}
	var task models.Task
	if err := json.Unmarshal(resp.Data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode created task: %w", err)
	}
	return &task, nil
}

// AddComment posts a comment authored by the agent
func (c *BotClient) AddComment(ctx context.Context, taskID uuid.UUID, content string) (*models.Comment, error) {
	resp, err := c.do(ctx, bot.ActionAddComment, map[string]string{
		"task_id": taskID.String(),
		"content": content,
	})
	if err != nil {
		return nil, err
	}
	var comment models.Comment
	if err := json.Unmarshal(resp.Data, &comment); err != nil {
		return nil, fmt.Errorf("failed to decode comment: %w", err)
	}
	return &comment, nil
}

// CompleteTask moves a task to completed. An empty comment sends no note.
func (c *BotClient) CompleteTask(ctx context.Context, taskID uuid.UUID, comment string) (*CompleteResult, error) {
	payload := map[string]string{"task_id": taskID.String()}
	if comment != "" {
		payload["comment"] = comment
	}
	resp, err := c.do(ctx, bot.ActionCompleteTask, payload)
	if err != nil {
		return nil, err
	}
	return &CompleteResult{Task: resp.Task, Comment: resp.Comment, CommentError: resp.CommentError}, nil
}

func (c *BotClient) do(ctx context.Context, action bot.Action, payload any) (*botResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	body, err := json.Marshal(bot.Request{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+botActionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(botSecretHeader, c.secret)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", action, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBotResponse))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp botResponse
	decodeErr := json.Unmarshal(data, &resp)
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &BotError{Status: httpResp.StatusCode, Message: resp.Error, Details: resp.Details}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if !resp.Success {
		return nil, &BotError{Status: httpResp.StatusCode, Message: resp.Error, Details: resp.Details}
	}
	return &resp, nil
}
