package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/clinicvoice/agent-backend/internal/model"
	"github.com/clinicvoice/agent-backend/pkg/logger"
	"github.com/clinicvoice/agent-backend/pkg/metrics"
)

const (
	// StreamName is the name of the session events stream.
	StreamName = "AGENT_EVENTS"

	// SubjectPrefix is the prefix for all session event subjects.
	SubjectPrefix = "session"
)

// Config holds NATS connection configuration.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// NATSSink publishes session events to a JetStream stream, one subject per
// session and event type, so a UI consumer sees them in order.
type NATSSink struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes a NATS connection and ensures the events stream exists.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*NATSSink, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sink := &NATSSink{conn: nc, js: js, logger: log}
	if err := sink.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return sink, nil
}

func (s *NATSSink) ensureStream(ctx context.Context) error {
	_, err := s.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = s.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Per-session tool call and summary events for the UI",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// ToolCallSubject returns the subject for a session's tool_call events.
func ToolCallSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.tool_call", SubjectPrefix, sessionID)
}

// SummarySubject returns the subject for a session's summary event.
func SummarySubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.summary", SubjectPrefix, sessionID)
}

// EndCallSubject returns the subject for a session's end_call signal.
func EndCallSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.end_call", SubjectPrefix, sessionID)
}

func (s *NATSSink) publish(ctx context.Context, subject string, eventType model.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event", zap.String("subject", subject), zap.Error(err))
		metrics.NotifyPublishFailures.WithLabelValues(string(eventType)).Inc()
		return
	}

	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		// Best effort: log, count, move on.
		s.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
		metrics.NotifyPublishFailures.WithLabelValues(string(eventType)).Inc()
	}
}

func (s *NATSSink) PublishToolCall(ctx context.Context, sessionID string, event model.ToolCallEvent) {
	s.publish(ctx, ToolCallSubject(sessionID), model.EventTypeToolCall, event)
}

func (s *NATSSink) PublishSummary(ctx context.Context, sessionID string, summary model.ConversationSummary) {
	s.publish(ctx, SummarySubject(sessionID), model.EventTypeSummary, model.SummaryEvent{
		Type:    model.EventTypeSummary,
		Summary: summary,
	})
}

func (s *NATSSink) PublishEndCall(ctx context.Context, sessionID string) {
	s.publish(ctx, EndCallSubject(sessionID), model.EventTypeEndCall, model.EndCallEvent{
		Type: model.EventTypeEndCall,
	})
}

// Close closes the NATS connection.
func (s *NATSSink) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// IsConnected reports NATS connectivity.
func (s *NATSSink) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
