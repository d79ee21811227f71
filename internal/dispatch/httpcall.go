package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// StartTimeHeader is stamped on every outbound call before it is sent,
// carrying the dispatch start time in unix milliseconds.
const StartTimeHeader = "X-Relay-Start-Time"

// CallRequest is a fully resolved outbound HTTP call.
type CallRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Query   map[string]string `json:"query"`
	Body    any               `json:"body"`
}

// CallResult carries whatever came back: a transport failure leaves
// Status nil; a non-2xx response sets both Status and Err so the caller
// can distinguish the two while still auditing the response.
type CallResult struct {
	Status     *int
	Headers    map[string]any
	Body       string
	BodyParsed any
	LatencyMs  int
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// call issues an outbound HTTP request with the configured timeout and
// a capped response body read.
func (o *Orchestrator) call(req CallRequest) *CallResult {
	result := &CallResult{StartedAt: time.Now().UTC()}

	var bodyReader io.Reader
	if req.Body != nil {
		switch b := req.Body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(b)
		default:
			payload, err := json.Marshal(b)
			if err != nil {
				result.Err = fmt.Errorf("failed to marshal request body: %w", err)
				result.FinishedAt = time.Now().UTC()
				return result
			}
			bodyReader = bytes.NewBuffer(payload)
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequest(method, req.URL, bodyReader)
	if err != nil {
		result.Err = fmt.Errorf("failed to create HTTP request: %w", err)
		result.FinishedAt = time.Now().UTC()
		return result
	}

	if len(req.Query) > 0 {
		query := httpReq.URL.Query()
		for key, value := range req.Query {
			query.Set(key, value)
		}
		httpReq.URL.RawQuery = query.Encode()
	}

	if httpReq.Header.Get("Content-Type") == "" && bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set(StartTimeHeader, strconv.FormatInt(result.StartedAt.UnixMilli(), 10))

	resp, err := o.client.Do(httpReq)
	if err != nil {
		result.FinishedAt = time.Now().UTC()
		result.LatencyMs = int(result.FinishedAt.Sub(result.StartedAt).Milliseconds())
		result.Err = fmt.Errorf("HTTP request failed: %w", err)
		return result
	}
	defer resp.Body.Close()

	result.FinishedAt = time.Now().UTC()
	result.LatencyMs = int(result.FinishedAt.Sub(result.StartedAt).Milliseconds())
	result.Status = &resp.StatusCode

	result.Headers = make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		result.Headers[key] = resp.Header.Get(key)
	}

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, int64(o.maxBody)))
	if readErr != nil {
		result.Err = fmt.Errorf("failed to read response body: %w", readErr)
		return result
	}
	result.Body = string(raw)

	var parsed any
	if json.Unmarshal(raw, &parsed) == nil {
		result.BodyParsed = parsed
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = fmt.Errorf("action responded with status %d", resp.StatusCode)
	}

	return result
}

// flatten stringifies resolved header/query values; non-string values
// become their JSON encoding.
func flatten(values map[string]any) map[string]string {
	if values == nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case string:
			out[key] = v
		case nil:
			out[key] = "null"
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				out[key] = fmt.Sprint(v)
				continue
			}
			out[key] = string(raw)
		}
	}
	return out
}
