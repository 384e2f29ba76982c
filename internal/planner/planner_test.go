package planner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("list files")
	assert.Contains(t, p, `Given the task: "list files"`)
	assert.Contains(t, p, "Only output the code, no explanation.")
}

func TestBuildPrompt_TaskIsVerbatim(t *testing.T) {
	task := "print \"hi\"\nthen exit"
	p := BuildPrompt(task)
	assert.Contains(t, p, `Given the task: "`+task+`", generate`)
	assert.NotContains(t, p, `\"`, "quotes in the task must not be escaped")
	assert.NotContains(t, p, `\n`, "newlines in the task must not be escaped")
}

func TestCleanPlan(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  ls -la \n", "ls -la"},
		{"fenced with lang", "```python\nimport os\nprint(os.getcwd())\n```", "import os\nprint(os.getcwd())"},
		{"fenced bare", "```\necho hi\n```", "echo hi"},
		{"prose around fence", "Here you go:\n```bash\necho hi\n```\nEnjoy.", "echo hi"},
		{"crlf", "```sh\r\necho hi\r\n```", "echo hi"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPlan(tt.in))
		})
	}
}

func TestFuncAdapter(t *testing.T) {
	var p Planner = Func(func(ctx context.Context, task string) (string, error) {
		return "echo " + task, nil
	})
	plan, err := p.GeneratePlan(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo hi", plan)
}

func TestNewGeminiPlanner_NoKey(t *testing.T) {
	_, err := NewGeminiPlanner(context.Background(), GeminiConfig{})
	assert.True(t, errors.Is(err, ErrNoAPIKey))
}

func geminiServer(t *testing.T, status int, body string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if gotPrompt != nil {
			raw, _ := io.ReadAll(r.Body)
			var req struct {
				Contents []struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"contents"`
			}
			if err := json.Unmarshal(raw, &req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
				*gotPrompt = req.Contents[0].Parts[0].Text
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func candidate(text string) string {
	b, _ := json.Marshal(text)
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + string(b) + `}]},"finishReason":"STOP"}]}`
}

func TestGeminiPlanner_GeneratePlan(t *testing.T) {
	var prompt string
	srv := geminiServer(t, http.StatusOK, candidate("```bash\necho hello\n```"), &prompt)

	p, err := NewGeminiPlanner(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-test",
		Timeout: 5 * time.Second,
		BaseURL: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", p.Model())

	plan, err := p.GeneratePlan(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "echo hello", plan)
	assert.Equal(t, BuildPrompt("say hello"), prompt)
}

func TestGeminiPlanner_EmptyPlan(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, candidate("   "), nil)

	p, err := NewGeminiPlanner(context.Background(), GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.GeneratePlan(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrEmptyPlan)
}

func TestGeminiPlanner_APIError(t *testing.T) {
	body := `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`
	srv := geminiServer(t, http.StatusBadRequest, body, nil)

	p, err := NewGeminiPlanner(context.Background(), GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	plan, err := p.GeneratePlan(context.Background(), "anything")
	require.Error(t, err)
	assert.Empty(t, plan, "errors must never be returned as plan text")
	assert.Contains(t, err.Error(), "error generating plan")
}
