package tracking

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// #region constants
const (
	pathExperimentByName = "/api/2.0/mlflow/experiments/get-by-name"
	pathSearchRuns       = "/api/2.0/mlflow/runs/search"

	codeNotFound = "RESOURCE_DOES_NOT_EXIST"

	defaultPageSize = 1000
)
// #endregion constants

// #region errors
// APIError is a non-2xx answer from the tracking server.
type APIError struct {
	Status  int
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tracking server returned %d", e.Status)
	}
	return fmt.Sprintf("tracking server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err means the requested resource does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeNotFound || (apiErr.Code == "" && apiErr.Status == fasthttp.StatusNotFound)
}
// #endregion errors

// #region client-struct
// Doer sends one HTTP exchange. *fasthttp.Client implements it.
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
}

// Auth holds optional tracking server credentials. Token wins over basic auth.
type Auth struct {
	Token    string
	Username string
	Password string
}

func (a Auth) apply(req *fasthttp.Request) {
	switch {
	case a.Token != "":
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case a.Username != "":
		creds := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		req.Header.Set("Authorization", "Basic "+creds)
	}
}

// RESTBackend talks to an MLflow tracking server over its REST API.
type RESTBackend struct {
	baseURL  string
	auth     Auth
	client   Doer
	pageSize int
}
// #endregion client-struct

// #region constructor
// NewRESTBackend creates a backend for the server at baseURL. Requests carry
// no timeout and are never retried.
func NewRESTBackend(baseURL string, auth Auth) *RESTBackend {
	return NewRESTBackendWithClient(baseURL, auth, &fasthttp.Client{
		Name:                      "expgrid",
		MaxIdemponentCallAttempts: 1,
	})
}

// NewRESTBackendWithClient injects the HTTP client. Used by tests.
func NewRESTBackendWithClient(baseURL string, auth Auth, client Doer) *RESTBackend {
	return &RESTBackend{
		baseURL:  strings.TrimRight(baseURL, "/"),
		auth:     auth,
		client:   client,
		pageSize: defaultPageSize,
	}
}

// Close is a no-op; fasthttp clients hold no resources that need releasing.
func (b *RESTBackend) Close() error { return nil }
// #endregion constructor

// #region experiment-by-name
type restExperimentResponse struct {
	Experiment struct {
		ExperimentID string `json:"experiment_id"`
		Name         string `json:"name"`
	} `json:"experiment"`
}

// ExperimentByName looks up an experiment, returning nil when it does not exist.
func (b *RESTBackend) ExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	var resp restExperimentResponse
	err := b.call(ctx, fasthttp.MethodGet, pathExperimentByName, map[string]string{"experiment_name": name}, nil, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment %s: %w", name, err)
	}
	return &Experiment{ID: resp.Experiment.ExperimentID, Name: resp.Experiment.Name}, nil
}
// #endregion experiment-by-name

// #region search-runs
type restSearchRequest struct {
	ExperimentIDs []string `json:"experiment_ids"`
	Filter        string   `json:"filter"`
	RunViewType   string   `json:"run_view_type"`
	MaxResults    int      `json:"max_results"`
	OrderBy       []string `json:"order_by"`
	PageToken     string   `json:"page_token,omitempty"`
}

type restSearchResponse struct {
	Runs          []restRun `json:"runs"`
	NextPageToken string    `json:"next_page_token"`
}

type restRun struct {
	Info struct {
		RunID        string    `json:"run_id"`
		RunUUID      string    `json:"run_uuid"`
		ExperimentID string    `json:"experiment_id"`
		RunName      string    `json:"run_name"`
		StartTime    flexInt64 `json:"start_time"`
	} `json:"info"`
	Data struct {
		Metrics []struct {
			Key   string    `json:"key"`
			Value flexFloat `json:"value"`
		} `json:"metrics"`
		Tags []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"tags"`
	} `json:"data"`
}

func (r restRun) toRun() Run {
	run := Run{
		ID:           r.Info.RunID,
		ExperimentID: r.Info.ExperimentID,
		Name:         r.Info.RunName,
		StartTime:    time.UnixMilli(int64(r.Info.StartTime)).UTC(),
		Metrics:      make(map[string]float64, len(r.Data.Metrics)),
		Tags:         make(map[string]string, len(r.Data.Tags)),
	}
	if run.ID == "" {
		run.ID = r.Info.RunUUID
	}
	for _, m := range r.Data.Metrics {
		run.Metrics[m.Key] = float64(m.Value)
	}
	for _, t := range r.Data.Tags {
		run.Tags[t.Key] = t.Value
	}
	return run
}

// SearchRuns pages through runs/search until the server stops returning a token.
func (b *RESTBackend) SearchRuns(ctx context.Context, q Query) ([]Run, error) {
	req := restSearchRequest{
		ExperimentIDs: q.ExperimentIDs,
		Filter:        q.Filter(),
		RunViewType:   "ACTIVE_ONLY",
		MaxResults:    b.pageSize,
		OrderBy:       []string{OrderStartTimeDesc},
	}

	var runs []Run
	for {
		var resp restSearchResponse
		if err := b.call(ctx, fasthttp.MethodPost, pathSearchRuns, nil, req, &resp); err != nil {
			return nil, fmt.Errorf("search runs: %w", err)
		}
		for _, r := range resp.Runs {
			runs = append(runs, r.toRun())
		}
		if resp.NextPageToken == "" {
			return runs, nil
		}
		req.PageToken = resp.NextPageToken
	}
}
// #endregion search-runs

// #region transport
func (b *RESTBackend) call(ctx context.Context, method, path string, args map[string]string, body, out interface{}) error {
	// fasthttp has no context support; honour cancellation between requests.
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.baseURL + path)
	req.Header.SetMethod(method)
	for k, v := range args {
		req.URI().QueryArgs().Add(k, v)
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(data)
	}
	b.auth.apply(req)

	if err := b.client.Do(req, resp); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		apiErr := &APIError{Status: status}
		_ = json.Unmarshal(resp.Body(), apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
// #endregion transport

// #region json-helpers
// flexInt64 accepts both 123 and "123"; protobuf JSON may quote int64 fields.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse int64 %q: %w", s, err)
	}
	*f = flexInt64(v)
	return nil
}

// flexFloat accepts plain numbers and quoted values such as "NaN".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse float %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}
// #endregion json-helpers
