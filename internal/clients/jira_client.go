package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRateLimited — Jira ответил 429. Вызывающая сторона логирует и
// продолжает без тикета, повторов нет.
var ErrRateLimited = errors.New("jira rate limit exceeded")

type JiraClient interface {
	Enabled() bool
	CreateIssue(ctx context.Context, summary, description string) (string, error)
	AttachFile(ctx context.Context, issueKey, filename string, data []byte) error
}

type jiraClient struct {
	baseURL    string
	email      string
	apiToken   string
	projectKey string
	client     *http.Client
}

type JiraConfig struct {
	BaseURL    string
	Email      string
	APIToken   string
	ProjectKey string
}

func NewJiraClient(config JiraConfig) JiraClient {
	return &jiraClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		email:      config.Email,
		apiToken:   config.APIToken,
		projectKey: config.ProjectKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *jiraClient) Enabled() bool {
	return c.baseURL != "" && c.email != "" && c.apiToken != "" && c.projectKey != ""
}

func (c *jiraClient) authHeader() string {
	auth := base64.StdEncoding.EncodeToString([]byte(c.email + ":" + c.apiToken))
	return "Basic " + auth
}

// CreateIssue создает задачу типа Task в настроенном проекте и
// возвращает её ключ.
func (c *jiraClient) CreateIssue(ctx context.Context, summary, description string) (string, error) {
	reqURL := c.baseURL + "/rest/api/3/issue"

	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"key": c.projectKey},
			"summary":     summary,
			"description": description,
			"issuetype":   map[string]string{"name": "Task"},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		text, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("jira returned status %d: %s", resp.StatusCode, string(text))
	}

	var data struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode JSON: %w", err)
	}

	if data.Key == "" {
		return "", fmt.Errorf("jira response missing issue key")
	}

	return data.Key, nil
}

// AttachFile загружает файл на задачу. X-Atlassian-Token: no-check
// обязателен для эндпоинта вложений.
func (c *jiraClient) AttachFile(ctx context.Context, issueKey, filename string, data []byte) error {
	reqURL := fmt.Sprintf("%s/rest/api/3/issue/%s/attachments",
		c.baseURL, url.PathEscape(issueKey))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}

	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jira returned status %d: %s", resp.StatusCode, string(text))
	}

	return nil
}
