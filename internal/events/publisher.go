// Package events publishes domain events to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mathieu-neron/nichescope/internal/logging"
)

// Subjects.
const (
	SubjectAnalysisCompleted = "niche.analysis.completed"
	SubjectAnalysisRefreshed = "niche.analysis.refreshed"
	SubjectSnapshotCaptured  = "competitor.snapshot.captured"
)

// AnalysisEvent is published when a niche analysis run is stored or refreshed.
type AnalysisEvent struct {
	RunID          string    `json:"runId"`
	UserID         string    `json:"userId,omitempty"`
	Query          string    `json:"query"`
	NicheCount     int       `json:"nicheCount"`
	TopNiche       string    `json:"topNiche,omitempty"`
	TopOpportunity int       `json:"topOpportunity"`
	At             time.Time `json:"at"`
}

// SnapshotEvent is published when a competitor snapshot is captured.
type SnapshotEvent struct {
	ChannelID        string    `json:"channelId"`
	SubscriberCount  int64     `json:"subscriberCount"`
	OpportunityScore int       `json:"opportunityScore"`
	TrendScore       int       `json:"trendScore"`
	At               time.Time `json:"at"`
}

// Publisher sends events over a NATS connection. A Publisher without a
// connection drops events silently.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials NATS. An empty URL or a failed connection returns a disabled
// Publisher rather than an error.
func Connect(url string) *Publisher {
	log := logging.Component("nats")
	if url == "" {
		log.Warn().Msg("no URL configured, events disabled")
		return &Publisher{}
	}

	nc, err := nats.Connect(url,
		nats.Name("nichescope"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Warn().Err(err).Msg("connection failed, events disabled")
		return &Publisher{}
	}

	log.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("connected, events enabled")
	return &Publisher{nc: nc}
}

// NewPublisher wraps an existing connection. A nil connection disables publishing.
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.nc != nil
}

// Connected reports whether the underlying connection is currently up.
func (p *Publisher) Connected() bool {
	return p.Enabled() && p.nc.IsConnected()
}

// Publish JSON-encodes v and publishes it on subject.
func (p *Publisher) Publish(subject string, v any) error {
	if !p.Enabled() {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.nc.Drain()
}
