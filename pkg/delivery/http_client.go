/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package delivery talks to the remote collection service and builds the records it accepts.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
)

const (
	// DefaultTimeout bounds every request so a degraded backend cannot stall a cycle.
	DefaultTimeout = 5 * time.Second

	apiKeyHeader    = "X-API-Key"
	maxErrorBodyLen = 512
	maxBodyLen      = 1 << 20

	healthPath   = "/health"
	projectsPath = "/api/projects"
	registerPath = "/api/producers/register"
	lookupPath   = "/api/participants/lookup"
	submitPath   = "/api/experiments/submit"
	queryPath    = "/api/experiments/query"

	participantRecordsPath = "/api/participants/%s/experiments"

	defaultQueryLimit = 100
)

// HTTPConfig configures HTTPClient.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Doer defaults to a plain *http.Client.
	Doer HTTPDoer
}

// HTTPClient implements Client over the service's JSON HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	doer    HTTPDoer
	logger  logger.Logger
}

var (
	_ Client       = (*HTTPClient)(nil)
	_ RecordReader = (*HTTPClient)(nil)
)

func NewHTTPClient(cfg HTTPConfig, log logger.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	doer := cfg.Doer
	if doer == nil {
		doer = &http.Client{}
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		doer:    doer,
		logger:  log,
	}
}

// response is a fully read HTTP response.
type response struct {
	status int
	body   []byte
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload interface{}) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLen))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %w", ErrTransport, path, err)
	}

	return &response{status: resp.StatusCode, body: data}, nil
}

func statusError(resp *response) error {
	body := resp.body
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen]
	}

	return fmt.Errorf("%w: %d, response: %s", ErrUnexpectedStatus, resp.status, string(body))
}

func isSuccess(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}

// HealthCheck reports whether GET /health answers 200.
func (c *HTTPClient) HealthCheck(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Health check failed")

		return false
	}

	return resp.status == http.StatusOK
}

func (c *HTTPClient) ListGroups(ctx context.Context) ([]models.Group, error) {
	resp, err := c.do(ctx, http.MethodGet, projectsPath, nil)
	if err != nil {
		return nil, err
	}

	if resp.status != http.StatusOK {
		return nil, statusError(resp)
	}

	var list models.GroupList
	if err := json.Unmarshal(resp.body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode project list: %w", err)
	}

	return list.Projects, nil
}

func (c *HTTPClient) Register(ctx context.Context, reg *models.Registration) error {
	resp, err := c.do(ctx, http.MethodPost, registerPath, reg)
	if err != nil {
		return err
	}

	switch {
	case isSuccess(resp.status):
		c.logger.Info().Str("producer_id", reg.ProducerID).Msg("Registered producer")

		return nil
	case resp.status == http.StatusConflict || strings.Contains(strings.ToLower(string(resp.body)), "already"):
		c.logger.Info().Str("producer_id", reg.ProducerID).Msg("Producer already registered")

		return nil
	default:
		return statusError(resp)
	}
}

func (c *HTTPClient) LookupIdentity(ctx context.Context, memorableID string) (*models.Participant, error) {
	return c.FindParticipant(ctx, models.ParticipantQuery{MemorableID: memorableID})
}

// FindParticipant looks a participant up by memorable id, email or external id.
func (c *HTTPClient) FindParticipant(ctx context.Context, q models.ParticipantQuery) (*models.Participant, error) {
	params := url.Values{}

	if q.MemorableID != "" {
		params.Set("memorable_id", q.MemorableID)
	}

	if q.Email != "" {
		params.Set("email", q.Email)
	}

	if q.ExternalID != "" {
		params.Set("external_id", q.ExternalID)
	}

	if len(params) == 0 {
		return nil, ErrMissingIdentifier
	}

	query := params.Encode()

	resp, err := c.do(ctx, http.MethodGet, lookupPath+"?"+query, nil)
	if err != nil {
		return nil, err
	}

	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: participant %s", ErrNotFound, query)
	default:
		return nil, statusError(resp)
	}

	var participant models.Participant
	if err := json.Unmarshal(resp.body, &participant); err != nil {
		return nil, fmt.Errorf("failed to decode participant: %w", err)
	}

	if participant.ParticipantID == "" {
		return nil, fmt.Errorf("%w: participant %s has no id", ErrNotFound, query)
	}

	return &participant, nil
}

// QueryRecords lists submitted records matching q, newest first as ordered by the service.
func (c *HTTPClient) QueryRecords(ctx context.Context, q models.RecordQuery) ([]models.StoredRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	if q.ParticipantID != "" {
		params.Set("participant_id", q.ParticipantID)
	}

	if q.ProjectID != "" {
		params.Set("project_id", q.ProjectID)
	}

	if q.ExperimentType != "" {
		params.Set("experiment_type", q.ExperimentType)
	}

	resp, err := c.do(ctx, http.MethodGet, queryPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	if resp.status != http.StatusOK {
		return nil, statusError(resp)
	}

	var result models.RecordQueryResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode record query: %w", err)
	}

	return result.Data, nil
}

// ParticipantRecords lists every record of one participant, optionally of one experiment type.
func (c *HTTPClient) ParticipantRecords(
	ctx context.Context, participantID, experimentType string,
) ([]models.StoredRecord, error) {
	if participantID == "" {
		return nil, ErrMissingIdentifier
	}

	path := fmt.Sprintf(participantRecordsPath, url.PathEscape(participantID))
	if experimentType != "" {
		path += "?" + url.Values{"experiment_type": []string{experimentType}}.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: participant %q", ErrNotFound, participantID)
	default:
		return nil, statusError(resp)
	}

	var list models.ParticipantRecordList
	if err := json.Unmarshal(resp.body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode participant records: %w", err)
	}

	return list.Experiments, nil
}

func (c *HTTPClient) SubmitRecord(ctx context.Context, record *models.Record) (*models.SubmitResult, error) {
	resp, err := c.do(ctx, http.MethodPost, submitPath, record)
	if err != nil {
		return nil, err
	}

	if !isSuccess(resp.status) {
		return nil, statusError(resp)
	}

	result := models.SubmitResult{ExternalID: record.ExternalID}

	if len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, &result); err != nil {
			c.logger.Warn().Err(err).Str("external_id", record.ExternalID).Msg("Could not decode submit response")
		}
	}

	return &result, nil
}

// Close releases idle connections held by the default transport.
func (c *HTTPClient) Close() error {
	if hc, ok := c.doer.(*http.Client); ok {
		hc.CloseIdleConnections()
	}

	return nil
}
