package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks JSON over HTTP to a remote tracking server.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Close() error { return nil }

type createRunRequest struct {
	Project string         `json:"project"`
	Group   string         `json:"group"`
	Config  map[string]any `json:"config"`
}

type runResponse struct {
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (c *Client) CreateRun(ctx context.Context, project, group string, runConfig map[string]any) (Run, error) {
	var resp runResponse
	err := c.post(ctx, "/api/runs", createRunRequest{Project: project, Group: group, Config: runConfig}, &resp)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return &httpRun{c: c, id: resp.ID, group: group, config: runConfig}, nil
}

func (c *Client) CreateSweep(ctx context.Context, project string, search map[string]any) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]any{"project": project, "sweep": search}
	if err := c.post(ctx, "/api/sweeps", body, &resp); err != nil {
		return "", fmt.Errorf("creating sweep: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) RunSweepAgent(ctx context.Context, project, sweepID string, fn func(Run) error) error {
	for {
		run, ok, err := c.nextSweepRun(ctx, sweepID)
		if err != nil {
			return fmt.Errorf("fetching next sweep run: %w", err)
		}
		if !ok {
			return nil
		}
		if err := fn(run); err != nil {
			return err
		}
	}
}

// nextSweepRun asks the sweep controller for the next queued configuration.
// A 204 response means the sweep is exhausted.
func (c *Client) nextSweepRun(ctx context.Context, sweepID string) (Run, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/sweeps/"+url.PathEscape(sweepID)+"/next", nil)
	if err != nil {
		return nil, false, err
	}
	c.auth(req)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, httpError(resp)
	}
	var next runResponse
	if err := json.NewDecoder(resp.Body).Decode(&next); err != nil {
		return nil, false, fmt.Errorf("decoding sweep run: %w", err)
	}
	return &httpRun{c: c, id: next.ID, group: sweepID, config: next.Config}, true, nil
}

type httpRun struct {
	c      *Client
	id     string
	group  string
	config map[string]any
}

func (r *httpRun) ID() string             { return r.id }
func (r *httpRun) Group() string          { return r.group }
func (r *httpRun) Config() map[string]any { return r.config }

func (r *httpRun) LogScalar(name string, value float64, commit bool) error {
	body := map[string]any{"name": name, "value": value, "commit": commit}
	return r.c.post(context.Background(), "/api/runs/"+url.PathEscape(r.id)+"/scalars", body, nil)
}

func (r *httpRun) LogSeries(name string, s Series) error {
	body := map[string]any{
		"name": name, "xs": s.Xs, "ys": s.Ys,
		"key": s.Key, "title": s.Title, "x_name": s.XName,
	}
	return r.c.post(context.Background(), "/api/runs/"+url.PathEscape(r.id)+"/series", body, nil)
}

func (r *httpRun) UploadTable(name string, columns []string, rows [][]string) error {
	body := map[string]any{"name": name, "columns": columns, "rows": rows}
	return r.c.post(context.Background(), "/api/runs/"+url.PathEscape(r.id)+"/tables", body, nil)
}

// UploadArtifactDir uploads every regular file under dir, one request per
// file, keyed by its path relative to dir.
func (r *httpRun) UploadArtifactDir(name, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening artifact %s: %w", path, err)
		}
		defer f.Close()
		target := fmt.Sprintf("%s/api/runs/%s/artifacts?name=%s&path=%s",
			r.c.baseURL, url.PathEscape(r.id), url.QueryEscape(name), url.QueryEscape(rel))
		req, err := http.NewRequest(http.MethodPost, target, f)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		r.c.auth(req)
		resp, err := r.c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("uploading artifact %s: %w", rel, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return httpError(resp)
		}
		return nil
	})
}

func (r *httpRun) Finish() error {
	return r.c.post(context.Background(), "/api/runs/"+url.PathEscape(r.id)+"/finish", struct{}{}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return httpError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func httpError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("tracking server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
}
