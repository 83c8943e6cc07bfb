package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Turn is one prior exchange entry for the text-mode conversation history.
type Turn struct {
	Role string // "user" or "model"
	Text string
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) text() string {
	var b strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func buildContents(history []Turn, msg string) []content {
	contents := make([]content, 0, len(history)+1)
	for _, t := range history {
		contents = append(contents, content{Role: t.Role, Parts: []part{{Text: t.Text}}})
	}
	return append(contents, content{Role: "user", Parts: []part{{Text: msg}}})
}

// TextStream delivers response fragments for one exchange in emission order.
// The channel closes when the stream finishes; Err reports how it ended.
type TextStream struct {
	fragments chan string
	done      chan struct{}
	err       error
}

func (s *TextStream) Fragments() <-chan string { return s.fragments }

// Err is valid once Fragments is closed.
func (s *TextStream) Err() error {
	<-s.done
	return s.err
}

// StreamMessage sends one user utterance and returns the lazy fragment
// sequence of the reply. Callers must drain Fragments; a new call may only
// be issued after the previous stream finishes.
func (c *Client) StreamMessage(ctx context.Context, systemPrompt string, history []Turn, msg string) (*TextStream, error) {
	reqBody := generateRequest{Contents: buildContents(history, msg)}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}

	resp, err := c.post(ctx, c.cfg.TextModel+":streamGenerateContent", url.Values{"alt": {"sse"}}, reqBody)
	if err != nil {
		return nil, err
	}

	ts := &TextStream{
		fragments: make(chan string, 16),
		done:      make(chan struct{}),
	}
	go func() {
		defer resp.Body.Close()
		defer close(ts.done)
		defer close(ts.fragments)
		ts.err = scanSSE(resp.Body, func(chunk generateResponse) {
			if text := chunk.text(); text != "" {
				ts.fragments <- text
			}
		})
	}()
	return ts, nil
}

// GenerateJSON performs a single-shot structured generation constrained to
// the given response schema and returns the raw JSON text.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema json.RawMessage) (string, error) {
	temp := 0.3
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
			Temperature:      &temp,
		},
	}

	resp, err := c.post(ctx, c.cfg.TextModel+":generateContent", nil, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}
	text := gr.text()
	if text == "" {
		return "", fmt.Errorf("empty response from backend")
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, method string, query url.Values, body any) (*http.Response, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.cfg.APIKey)

	scheme := "https"
	if c.cfg.Insecure {
		scheme = "http"
	}
	endpoint := url.URL{
		Scheme:   scheme,
		Host:     c.cfg.Host,
		Path:     "/v1beta/" + method,
		RawQuery: query.Encode(),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{Op: "request", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(msg))
	}
	return resp, nil
}

// scanSSE reads "data:" lines from a server-sent-event body, decoding each
// payload and applying it in order.
func scanSSE(r io.Reader, apply func(generateResponse)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("decoding stream chunk: %w", err)
		}
		apply(chunk)
	}
	if err := scanner.Err(); err != nil {
		return &ConnectionError{Op: "stream", Err: err}
	}
	return nil
}
