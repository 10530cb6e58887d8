package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// defaultHTTPTimeout bounds a single request; training itself is bounded by the poll budget.
const defaultHTTPTimeout = 60 * time.Second

// HTTPClient talks to the model service's REST API:
//
//	GET    /api/projects/{project}/models
//	GET    /api/projects/{project}/models/{name}
//	POST   /api/projects/{project}/models
//	DELETE /api/projects/{project}/models/{name}
//	POST   /api/projects/{project}/models/{name}/predict
//	PUT    /api/files/{name}                  (multipart, field "file")
//
// The bearer token is supplied by the caller; the client holds no session.
type HTTPClient struct {
	baseURL string
	project string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for project at baseURL. token may be empty
// for services without authentication. A nil httpClient gets a default with
// a request timeout.
func NewHTTPClient(baseURL, project, token string, httpClient *http.Client) (*HTTPClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid training base URL %q: %v", bioactivity.ErrConfiguration, baseURL, err)
	}
	if project == "" {
		return nil, fmt.Errorf("%w: training project cannot be empty", bioactivity.ErrConfiguration)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		project: project,
		token:   token,
		http:    httpClient,
	}, nil
}

func (c *HTTPClient) modelsURL() string {
	return fmt.Sprintf("%s/api/projects/%s/models", c.baseURL, url.PathEscape(c.project))
}

func (c *HTTPClient) modelURL(name string) string {
	return c.modelsURL() + "/" + url.PathEscape(name)
}

// ListModels returns every model in the project.
func (c *HTTPClient) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.doJSON(ctx, http.MethodGet, c.modelsURL(), nil, &models); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	for i := range models {
		models[i].Status = ParseStatus(string(models[i].Status))
	}
	return models, nil
}

// GetModel returns the named model's current status and error detail.
func (c *HTTPClient) GetModel(ctx context.Context, name string) (Model, error) {
	var m Model
	if err := c.doJSON(ctx, http.MethodGet, c.modelURL(name), nil, &m); err != nil {
		return Model{}, fmt.Errorf("failed to get model %s: %w", name, err)
	}
	m.Status = ParseStatus(string(m.Status))
	return m, nil
}

type createModelBody struct {
	Model struct {
		Name         string `json:"name"`
		Predict      string `json:"predict"`
		TrainingData string `json:"training_data"`
	} `json:"model"`
}

// CreateModel submits a training job. The service responds immediately;
// the job completes asynchronously.
func (c *HTTPClient) CreateModel(ctx context.Context, req CreateRequest) (Model, error) {
	var body createModelBody
	body.Model.Name = req.Name
	body.Model.Predict = req.TargetColumn
	body.Model.TrainingData = "files." + req.Dataset.Name

	var m Model
	if err := c.doJSON(ctx, http.MethodPost, c.modelsURL(), body, &m); err != nil {
		return Model{}, fmt.Errorf("failed to create model %s: %w", req.Name, err)
	}
	m.Status = ParseStatus(string(m.Status))
	if m.Name == "" {
		m.Name = req.Name
	}
	if m.Status == "" {
		m.Status = StatusSubmitted
	}
	return m, nil
}

// DropModel deletes the named model.
func (c *HTTPClient) DropModel(ctx context.Context, name string) error {
	if err := c.doJSON(ctx, http.MethodDelete, c.modelURL(name), nil, nil); err != nil {
		return fmt.Errorf("failed to drop model %s: %w", name, err)
	}
	return nil
}

// UploadDataset uploads a CSV as a named file, replacing any previous upload.
func (c *HTTPClient) UploadDataset(ctx context.Context, name string, data io.Reader) (DatasetRef, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("original_file_name", name+".csv"); err != nil {
		return DatasetRef{}, fmt.Errorf("failed to write form field: %w", err)
	}
	fw, err := writer.CreateFormFile("file", name+".csv")
	if err != nil {
		return DatasetRef{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, data); err != nil {
		return DatasetRef{}, fmt.Errorf("failed to copy dataset into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return DatasetRef{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/files/%s", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return DatasetRef{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if err := c.do(req, nil); err != nil {
		return DatasetRef{}, fmt.Errorf("failed to upload dataset %s: %w", name, err)
	}
	return DatasetRef{Name: name}, nil
}

type predictBody struct {
	Data []map[string]float64 `json:"data"`
}

// Predict runs the model over rows. The response carries one object per
// row; the target column holds the prediction.
func (c *HTTPClient) Predict(ctx context.Context, name, targetColumn string, rows []map[string]float64) ([]float64, error) {
	var result []map[string]interface{}
	if err := c.doJSON(ctx, http.MethodPost, c.modelURL(name)+"/predict", predictBody{Data: rows}, &result); err != nil {
		return nil, fmt.Errorf("failed to predict with model %s: %w", name, err)
	}
	if len(result) != len(rows) {
		return nil, fmt.Errorf("%w: model %s returned %d predictions for %d rows",
			bioactivity.ErrRemoteService, name, len(result), len(rows))
	}

	values := make([]float64, len(result))
	for i, r := range result {
		v, err := numberField(r, targetColumn)
		if err != nil {
			return nil, fmt.Errorf("%w: prediction %d: %v", bioactivity.ErrRemoteService, i, err)
		}
		values[i] = v
	}
	return values, nil
}

// doJSON sends an optional JSON body and decodes an optional JSON response.
func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

// do executes req with authentication and maps the response to the error taxonomy.
func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", bioactivity.ErrRemoteService, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", bioactivity.ErrRemoteService, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", bioactivity.ErrModelNotFound, errorDetail(data, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s %s: %s", bioactivity.ErrRemoteService, req.Method, req.URL.Path, errorDetail(data, resp.Status))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: invalid response body: %v", bioactivity.ErrRemoteService, err)
	}
	return nil
}

// errorDetail extracts a service error message, falling back to the HTTP status.
func errorDetail(data []byte, status string) string {
	var body struct {
		Message string `json:"detail"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) <= 200 {
		return text
	}
	return status
}

func numberField(row map[string]interface{}, field string) (float64, error) {
	raw, ok := row[field]
	if !ok {
		return 0, fmt.Errorf("missing field %q", field)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: non-numeric value %q", field, v)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("field %q is null", field)
	default:
		return 0, fmt.Errorf("field %q has unexpected type %T", field, raw)
	}
}
