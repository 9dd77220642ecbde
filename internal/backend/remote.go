package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomek7667/devconsole/internal/metrics"
	"go.uber.org/zap"
)

// ErrorBody is the JSON envelope of a failed request on the invoke bridge.
type ErrorBody struct {
	Error string `json:"error"`
}

// InvokeRequest is the JSON body of a request on the invoke bridge.
type InvokeRequest struct {
	Args Args `json:"args"`
}

// InvokePath is the route prefix of the invoke bridge.
const InvokePath = "/api/invoke/"

// Remote forwards commands to a devconsole server over HTTP.
type Remote struct {
	base   *url.URL
	client *http.Client
	log    *zap.Logger
}

func NewRemote(baseURL string, timeout time.Duration, logger *zap.Logger) (*Remote, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		base:   u,
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}, nil
}

func (r *Remote) Invoke(ctx context.Context, cmd Command, args Args) (json.RawMessage, error) {
	if args == nil {
		args = Args{}
	}
	start := time.Now()
	raw, err := r.do(ctx, cmd, args)
	metrics.RecordCommand(string(cmd), time.Since(start), err)
	if err != nil {
		r.log.Warn("remote command failed", zap.String("command", string(cmd)), zap.Error(err))
		return nil, &CommandError{Command: cmd, Err: err}
	}
	return raw, nil
}

func (r *Remote) do(ctx context.Context, cmd Command, args Args) (json.RawMessage, error) {
	body, err := json.Marshal(InvokeRequest{Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	endpoint := r.base.JoinPath(InvokePath, string(cmd))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if !json.Valid(payload) {
			return nil, errors.New("backend returned invalid JSON")
		}
		return json.RawMessage(payload), nil
	}

	var eb ErrorBody
	msg := strings.TrimSpace(string(payload))
	if json.Unmarshal(payload, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		if strings.HasPrefix(msg, ErrUnknownCommand.Error()) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, strings.TrimPrefix(msg, ErrUnknownCommand.Error()+": "))
		}
		return nil, fmt.Errorf("%w: %s", fs.ErrNotExist, msg)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrBadArgs, msg)
	}
	return nil, fmt.Errorf("backend responded %d: %s", resp.StatusCode, msg)
}
