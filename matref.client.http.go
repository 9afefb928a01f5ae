package matref

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClientConfig configures the HTTP client of a remote material store.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:5030/api".
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as X-API-Key when set.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each request.
	// Default: 60 seconds
	Timeout time.Duration `yaml:"timeout"`

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client `yaml:"-"`

	// Logger receives request logs. Default: no-op.
	Logger *zap.Logger `yaml:"-"`
}

// responseEnvelope is the JSON wrapper of every API answer. Success is
// nil when the body is not an envelope at all.
type responseEnvelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// materialIDsBody is the body of the batch lookup
type materialIDsBody struct {
	MaterialIDs []string `json:"material_ids"`
}

// createdBody is the data of a create answer
type createdBody struct {
	MaterialID string `json:"material_id"`
}

// materialUpdateBody is the wire form of MaterialUpdate
type materialUpdateBody struct {
	Name        *string         `json:"name,omitempty"`
	Category    *string         `json:"category,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Tags        *[]string       `json:"tags,omitempty"`
	Description *string         `json:"description,omitempty"`
}

// HTTPClient talks to a material store over its JSON API.
// It implements ReferenceStore.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a client from config.
func NewHTTPClient(config ClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, NewConfigError(ErrMsgEmptyBaseURL, EnvAPIURL, nil)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultClientTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// ProcessReferences sends one batched lookup to the store.
func (c *HTTPClient) ProcessReferences(ctx context.Context, req *ResolutionRequest) (*ResolutionData, error) {
	var data *ResolutionData
	if err := c.do(ctx, http.MethodPost, RouteProcessReferences, nil, req, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetMaterial fetches one material.
func (c *HTTPClient) GetMaterial(ctx context.Context, id string) (*Material, error) {
	var m *Material
	if err := c.do(ctx, http.MethodGet, materialRoute(id), nil, nil, &m); err != nil {
		return nil, notFoundFor(err, id)
	}
	if m == nil {
		return nil, NewMaterialNotFoundError(id)
	}
	return m, nil
}

// GetMaterialsByIDs fetches the materials found for ids, in request order.
func (c *HTTPClient) GetMaterialsByIDs(ctx context.Context, ids []string) ([]*Material, error) {
	var materials []*Material
	if err := c.do(ctx, http.MethodPost, RouteMaterialsBatch, nil, materialIDsBody{MaterialIDs: ids}, &materials); err != nil {
		return nil, err
	}
	if materials == nil {
		materials = []*Material{}
	}
	return materials, nil
}

// ListMaterials fetches one page of materials.
func (c *HTTPClient) ListMaterials(ctx context.Context, opts ListOptions) (*MaterialPage, error) {
	query := url.Values{}
	if opts.Type != "" {
		query.Set(QueryParamType, string(opts.Type))
	}
	if len(opts.Tags) > 0 {
		query.Set(QueryParamTags, strings.Join(opts.Tags, QueryTagsSeparator))
	}
	if opts.Page > 0 {
		query.Set(QueryParamPage, strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set(QueryParamPageSize, strconv.Itoa(opts.PageSize))
	}
	return c.getPage(ctx, query)
}

// SearchMaterials fetches every material matching keyword.
func (c *HTTPClient) SearchMaterials(ctx context.Context, keyword string) (*MaterialPage, error) {
	query := url.Values{}
	query.Set(QueryParamKeyword, keyword)
	return c.getPage(ctx, query)
}

// CreateMaterial stores a new material and returns its ID.
func (c *HTTPClient) CreateMaterial(ctx context.Context, m *Material) (string, error) {
	var created createdBody
	if err := c.do(ctx, http.MethodPost, RouteMaterials, nil, m, &created); err != nil {
		return "", err
	}
	return created.MaterialID, nil
}

// UpdateMaterial changes the mutable fields of a material.
func (c *HTTPClient) UpdateMaterial(ctx context.Context, id string, update MaterialUpdate) (*Material, error) {
	body := materialUpdateBody{
		Name:        update.Name,
		Category:    update.Category,
		Description: update.Description,
	}
	if update.Tags != nil {
		tags := update.Tags
		body.Tags = &tags
	}
	if update.Content != nil {
		raw, err := json.Marshal(update.Content)
		if err != nil {
			return nil, &ResolutionError{Kind: TransportFailure, Message: ErrMsgEncodeRequest, Cause: err}
		}
		body.Content = raw
	}

	var m *Material
	if err := c.do(ctx, http.MethodPut, materialRoute(id), nil, body, &m); err != nil {
		return nil, notFoundFor(err, id)
	}
	return m, nil
}

// DeleteMaterial removes a material.
func (c *HTTPClient) DeleteMaterial(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, materialRoute(id), nil, nil, nil); err != nil {
		return notFoundFor(err, id)
	}
	return nil
}

// Tags fetches every distinct tag.
func (c *HTTPClient) Tags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := c.do(ctx, http.MethodGet, RouteMaterialsTags, nil, nil, &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// Health checks that the store answers.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, RouteHealth, nil, nil, nil)
}

func (c *HTTPClient) getPage(ctx context.Context, query url.Values) (*MaterialPage, error) {
	var page MaterialPage
	if err := c.do(ctx, http.MethodGet, RouteMaterials, query, nil, &page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []*Material{}
	}
	return &page, nil
}

// do performs one API call and decodes the envelope's data into out.
// Unreachable stores and non-envelope answers are TransportFailure;
// success=false answers are StoreRejected.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &ResolutionError{Kind: TransportFailure, Message: ErrMsgEncodeRequest, Cause: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return NewTransportError(err)
	}
	if in != nil {
		req.Header.Set(HeaderContentType, ContentTypeJSON)
	}
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}

	c.logger.Debug(LogMsgStoreRequest,
		zap.String(LogFieldMethod, method),
		zap.String(LogFieldURL, endpoint),
	)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return NewTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewTransportError(err)
	}

	c.logger.Debug(LogMsgStoreResponse,
		zap.String(LogFieldMethod, method),
		zap.String(LogFieldURL, endpoint),
		zap.Int(LogFieldStatus, resp.StatusCode),
		zap.Duration(LogFieldDuration, time.Since(start)),
	)

	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return NewUnexpectedStatusError(resp.StatusCode, err)
	}
	if env.Success == nil {
		return NewUnexpectedStatusError(resp.StatusCode, nil)
	}
	if !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return NewStoreRejectedError(msg, resp.StatusCode)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &ResolutionError{
			Kind:    TransportFailure,
			Message: ErrMsgDecodeResponse,
			Status:  resp.StatusCode,
			Cause:   err,
		}
	}
	return nil
}

// materialRoute returns the API path of one material
func materialRoute(id string) string {
	return strings.Replace(RouteMaterial, "{"+RouteVarID+"}", url.PathEscape(id), 1)
}

// notFoundFor turns a 404 rejection into a material not found error
func notFoundFor(err error, id string) error {
	var resErr *ResolutionError
	if errors.As(err, &resErr) && resErr.Kind == StoreRejected && resErr.Status == http.StatusNotFound {
		return NewMaterialNotFoundError(id)
	}
	return err
}
