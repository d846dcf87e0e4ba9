package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Joseda-hg/taskdeck/internal/logging"
	"github.com/Joseda-hg/taskdeck/internal/model"
	"github.com/sony/gobreaker"
)

const failureMessage = "Operation failed. Please try again."

type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Loading    *Indicator
	Notifier   *Notifier
}

// Gateway wraps every call to the task backend: it drives the loading
// indicator, turns failures into NetworkError and reports them as toasts.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	loading    *Indicator
	notifier   *Notifier
}

func NewGateway(baseURL string, opts Options) *Gateway {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	loading := opts.Loading
	if loading == nil {
		loading = &Indicator{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "task-backend",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.WithField("breaker", name).Warnf("circuit breaker changed from %s to %s", from, to)
		},
	})

	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
		loading:    loading,
		notifier:   notifier,
	}
}

func (g *Gateway) Loading() *Indicator {
	return g.loading
}

func (g *Gateway) Notifier() *Notifier {
	return g.notifier
}

// Call sends body as JSON and decodes a successful response into out.
func (g *Gateway) Call(ctx context.Context, method, path string, body, out any) error {
	return g.run(ctx, method, path, func() (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("encode request: %w", err)
			}
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (g *Gateway) run(ctx context.Context, method, path string, build func() (*http.Request, error), handle func(*http.Response) error) error {
	g.loading.Show()
	defer g.loading.Hide()

	_, err := g.breaker.Execute(func() (any, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &NetworkError{Method: method, Path: path, StatusCode: resp.StatusCode}
		}
		return nil, handle(resp)
	})
	if err == nil {
		return nil
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		netErr = &NetworkError{Method: method, Path: path, Err: err}
	}
	logging.Logger.WithField("status", netErr.StatusCode).Errorf("API call failed: %v", netErr)
	g.notifier.Push(ToastError, failureMessage)
	return netErr
}

func (g *Gateway) ListTasks(ctx context.Context, filter model.Filter) ([]model.Task, error) {
	var tasks []model.Task
	if err := g.Call(ctx, http.MethodGet, "/api/tasks?"+filter.Values().Encode(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (g *Gateway) CreateTask(ctx context.Context, input model.TaskInput) (model.Result, error) {
	var result model.Result
	err := g.Call(ctx, http.MethodPost, "/api/tasks", input, &result)
	return result, err
}

func (g *Gateway) UpdateTask(ctx context.Context, id string, input model.TaskInput) (model.Result, error) {
	var result model.Result
	err := g.Call(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), input, &result)
	return result, err
}

func (g *Gateway) DeleteTask(ctx context.Context, id string) (model.Result, error) {
	var result model.Result
	err := g.Call(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, &result)
	return result, err
}

func (g *Gateway) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := g.Call(ctx, http.MethodGet, "/api/stats", nil, &stats)
	return stats, err
}

// Export streams the CSV export into w and returns the server's file name.
func (g *Gateway) Export(ctx context.Context, w io.Writer) (string, error) {
	var filename string
	err := g.run(ctx, http.MethodGet, "/export", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/export", nil)
	}, func(resp *http.Response) error {
		if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
			filename = params["filename"]
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			return fmt.Errorf("read export: %w", err)
		}
		return nil
	})
	return filename, err
}

// UploadAttachment posts the file at path as the task's attachment.
func (g *Gateway) UploadAttachment(ctx context.Context, id, path string) (model.Result, error) {
	var result model.Result
	endpoint := "/api/tasks/" + url.PathEscape(id) + "/attachment"
	err := g.run(ctx, http.MethodPost, endpoint, func() (*http.Request, error) {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open attachment: %w", err)
		}
		defer file.Close()

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+endpoint, &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	}, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	return result, err
}
