package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"proclens/config"
	"proclens/metrics"
	"proclens/models"

	log "github.com/sirupsen/logrus"
)

// NoResponse is returned when the server answers without a response field
const NoResponse = "No response from Ollama."

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// GenerateResponse only declares the field we read
type GenerateResponse struct {
	Response *string `json:"response"`
}

// Client forwards questions about a snapshot to an Ollama server
type Client struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	metrics     *metrics.Metrics
}

func NewClient(cfg *config.Config, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.OllamaURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client: &http.Client{
			Timeout: cfg.QueryTimeout,
		},
		metrics: m,
	}
}

// BuildContext renders the snapshot as one labelled line per process
func BuildContext(snap *models.Snapshot) string {
	var b strings.Builder
	b.WriteString("System processes:")
	for _, p := range snap.Processes {
		fmt.Fprintf(&b, "\nPID: %d, Name: %s, Status: %s, CPU ms: %.2f, Memory KB: %.2f",
			p.PID, p.Name, p.Status, p.CPUTimeMs, p.ResidentMemoryKB)
		if p.Container != "" {
			fmt.Fprintf(&b, ", Container: %s", p.Container)
		}
	}
	return b.String()
}

// BuildPrompt is the snapshot context followed by the question
func BuildPrompt(question string, snap *models.Snapshot) string {
	return BuildContext(snap) + "\n" + question
}

// Ask sends question plus snapshot to the model and returns its answer.
// Failures come back as readable text instead of an error, so the caller
// can show the result as-is.
func (c *Client) Ask(ctx context.Context, question string, snap *models.Snapshot) string {
	start := time.Now()
	answer, outcome := c.generate(ctx, BuildPrompt(question, snap))
	elapsed := time.Since(start)

	c.metrics.ObserveQuery(outcome, elapsed.Seconds())
	log.WithFields(log.Fields{
		"model":    c.model,
		"outcome":  outcome,
		"duration": elapsed,
	}).Info("Query answered")
	return answer
}

func (c *Client) generate(ctx context.Context, prompt string) (string, string) {
	payload := GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: GenerateOptions{
			Temperature: c.temperature,
			MaxTokens:   c.maxTokens,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("Failed to connect to Ollama: %v", err), metrics.OutcomeNetworkError
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return fmt.Sprintf("Failed to connect to Ollama: %v", err), metrics.OutcomeNetworkError
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Failed to connect to Ollama: %v", err), metrics.OutcomeNetworkError
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Failed to connect to Ollama: %v", err), metrics.OutcomeNetworkError
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Sprintf("Error: %d - %s", resp.StatusCode, string(body)), metrics.OutcomeHTTPError
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return fmt.Sprintf("Failed to decode Ollama response: %v", err), metrics.OutcomeDecodeError
	}
	if genResp.Response == nil {
		return NoResponse, metrics.OutcomeEmpty
	}
	return *genResp.Response, metrics.OutcomeAnswer
}
