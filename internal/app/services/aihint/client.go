package aihint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/defidojo/dojo-backend/internal/app/domain/aihint"
	"github.com/defidojo/dojo-backend/pkg/logger"
)

const (
	systemPrompt = "You are Satoshi Sensei, an expert in DeFi. Provide concise, actionable hints for DeFi quests. Always respond in JSON format with 'hint', 'risk', and 'param' fields."
	maxHintLen   = 100
)

// InferenceClient produces a hint for a prompt. A returned error means the
// upstream call itself failed; malformed output is not an error.
type InferenceClient interface {
	GenerateHint(ctx context.Context, prompt string) (aihint.Result, error)
}

// HTTPClient calls an OpenAI-compatible chat completion endpoint.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	log        *logger.Logger
}

// HTTPClientConfig configures the inference client.
type HTTPClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewHTTPClient constructs an inference client.
func NewHTTPClient(cfg HTTPClientConfig, log *logger.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("inference")
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		log:        log,
	}
}

// GenerateHint sends the prompt and parses the structured reply best-effort:
// well-formed JSON output fills all fields, anything else is truncated into
// the hint with default risk and parameter.
func (c *HTTPClient) GenerateHint(ctx context.Context, prompt string) (aihint.Result, error) {
	payload := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.2,
		"max_tokens":  500,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return aihint.Result{}, fmt.Errorf("marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return aihint.Result{}, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return aihint.Result{}, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return aihint.Result{}, fmt.Errorf("inference status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return aihint.Result{}, fmt.Errorf("read inference response: %w", err)
	}

	content := gjson.GetBytes(raw, "choices.0.message.content").String()
	if content == "" {
		return aihint.Result{}, fmt.Errorf("inference response missing content")
	}
	return ParseHint(content), nil
}

// ParseHint extracts the structured hint from model output, falling back to
// truncated raw text with default risk/parameter when the output is not
// well-formed.
func ParseHint(content string) aihint.Result {
	content = strings.TrimSpace(content)
	if gjson.Valid(content) {
		parsed := gjson.Parse(content)
		if parsed.IsObject() {
			result := aihint.Result{
				Hint:  parsed.Get("hint").String(),
				Risk:  parsed.Get("risk").String(),
				Param: parsed.Get("param").String(),
			}
			if result.Hint == "" {
				result.Hint = "Consider your next move carefully."
			}
			if result.Risk == "" {
				result.Risk = aihint.DefaultRisk
			}
			if result.Param == "" {
				result.Param = aihint.DefaultParam
			}
			return result
		}
	}

	hint := content
	if len(hint) > maxHintLen {
		hint = hint[:maxHintLen] + "..."
	}
	return aihint.Result{Hint: hint, Risk: aihint.DefaultRisk, Param: aihint.DefaultParam}
}

// BuildPrompt renders the quest context snapshot into the coaching prompt.
func BuildPrompt(context map[string]interface{}) string {
	questInfo := marshalSection(context["quest"])
	balances := marshalSection(context["balances"])
	history := marshalSection(context["action_history"])
	step := context["quest_step"]
	if step == nil {
		step = 1
	}

	return fmt.Sprintf(`Given the following user quest context:

QUEST: %s
WALLET BALANCES: %s
ACTION HISTORY: %s
CURRENT STEP: %v

Provide a concise hint (max 60 words) explaining the next optimal step, include one risk check and a single recommended parameter (e.g., slippage 0.5%%).

Output as JSON: { "hint": "...", "risk": "...", "param": "..." }`,
		questInfo, balances, history, step)
}

func marshalSection(v interface{}) string {
	if v == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
