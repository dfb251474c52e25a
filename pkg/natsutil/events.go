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

// Package natsutil mirrors accepted detection records onto NATS JetStream as CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/beaconradar/pkg/logger"
	"github.com/carverauto/beaconradar/pkg/models"
)

const (
	DefaultStream        = "BEACONS"
	DefaultSubjectPrefix = "beacons.detections"

	detectionEventType = "com.carverauto.beaconradar.detection.submitted"
	cloudEventsVersion = "1.0"
)

var errMissingURL = errors.New("events url is required")

// EventsConfig enables the optional JetStream mirror.
type EventsConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Stream        string `json:"stream"`
	Domain        string `json:"domain,omitempty"`
	SubjectPrefix string `json:"subject_prefix"`
	CredsFile     string `json:"creds_file,omitempty"`
	CertFile      string `json:"cert_file,omitempty"`
	KeyFile       string `json:"key_file,omitempty"`
	CAFile        string `json:"ca_file,omitempty"`
}

// Publisher is the part of jetstream.JetStream used to emit events.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// DetectionPublisher publishes one CloudEvent per accepted record on
// <prefix>.<location>.
type DetectionPublisher struct {
	js     Publisher
	prefix string
	source string
	logger logger.Logger
}

func NewDetectionPublisher(js Publisher, subjectPrefix, source string, log logger.Logger) *DetectionPublisher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}

	return &DetectionPublisher{
		js:     js,
		prefix: strings.TrimSuffix(subjectPrefix, "."),
		source: source,
		logger: log,
	}
}

// DetectionSubject builds the subject for a location. Characters that NATS treats
// specially are replaced so a location always maps to exactly one token.
func DetectionSubject(prefix, location string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		default:
			return r
		}
	}, location)

	if token == "" {
		token = "unknown"
	}

	return prefix + "." + token
}

// PublishDetection emits the record as a CloudEvent. The caller decides whether a failure matters.
func (p *DetectionPublisher) PublishDetection(
	ctx context.Context, producerID string, record *models.Record, result *models.SubmitResult) error {
	now := time.Now().UTC()

	data := models.DetectionEventData{
		ExternalID:    record.ExternalID,
		ParticipantID: record.ParticipantID,
		ProducerID:    producerID,
		QualityScore:  record.QualityScore,
		Summary:       record.SummaryData,
		SubmittedAt:   now,
	}

	if result != nil {
		data.BackendID = result.ID
	}

	event := models.CloudEvent{
		SpecVersion:     cloudEventsVersion,
		ID:              uuid.New().String(),
		Source:          p.source,
		Type:            detectionEventType,
		DataContentType: "application/json",
		Subject:         DetectionSubject(p.prefix, record.SummaryData.ScannerLocation),
		Time:            &now,
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal detection event: %w", err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, payload, jetstream.WithMsgID(record.ExternalID))
	if err != nil {
		return fmt.Errorf("failed to publish detection event: %w", err)
	}

	p.logger.Debug().
		Str("subject", event.Subject).
		Str("external_id", record.ExternalID).
		Uint64("seq", ack.Sequence).
		Msg("Published detection event")

	return nil
}

// Connect dials NATS, makes sure the stream captures <prefix>.> and returns a publisher
// together with a close function for the connection.
func Connect(ctx context.Context, cfg *EventsConfig, source string, log logger.Logger) (*DetectionPublisher, func(), error) {
	if cfg.URL == "" {
		return nil, nil, errMissingURL
	}

	nc, err := nats.Connect(cfg.URL, connectOptions(cfg, log)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream

	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	stream := cfg.Stream
	if stream == "" {
		stream = DefaultStream
	}

	if err := ensureStream(ctx, js, stream, prefix+".>"); err != nil {
		nc.Close()

		return nil, nil, err
	}

	log.Info().Str("url", cfg.URL).Str("stream", stream).Msg("Detection events enabled")

	return NewDetectionPublisher(js, prefix, source, log), nc.Close, nil
}

func connectOptions(cfg *EventsConfig, log logger.Logger) []nats.Option {
	opts := []nats.Option{
		nats.Name("beaconradar"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	if cfg.CAFile != "" {
		opts = append(opts, nats.RootCAs(cfg.CAFile))
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		opts = append(opts, nats.ClientCert(cfg.CertFile, cfg.KeyFile))
	}

	return opts
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	cfg := stream.CachedInfo().Config

	subjects := ensureSubjectList(cfg.Subjects, subject)
	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, name, err)
	}

	return nil
}

// ensureSubjectList appends subject unless an existing pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	if slices.ContainsFunc(subjects, func(pattern string) bool { return matchesSubject(pattern, subject) }) {
		return subjects
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern covers subject using NATS wildcard rules.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
