package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Rrens/projecthub/internal/domain"
	"github.com/Rrens/projecthub/internal/logging"
)

// VersionStore keeps a monotonically increasing version per project
type VersionStore interface {
	Bump(ctx context.Context, projectID string) (int64, error)
	Current(ctx context.Context, projectID string) (int64, error)
}

// Relay forwards encoded envelopes to every server instance, this one included
type Relay interface {
	Publish(ctx context.Context, payload []byte) error
}

// Envelope is a routed message as carried over the relay
type Envelope struct {
	Global  bool    `json:"global"`
	Message Message `json:"message"`
}

// DispatcherOptions configures a Dispatcher
type DispatcherOptions struct {
	// ScopeSubresources publishes task, milestone, member and file events to
	// the project room. When false they are broadcast to every session and
	// clients filter by project id.
	ScopeSubresources bool
	Versions          VersionStore
	Relay             Relay
}

// Dispatcher turns domain events into realtime messages and routes them
// through the broker. It is the sink services emit into after a successful
// write.
type Dispatcher struct {
	broker   *Broker
	versions VersionStore
	relay    Relay
	scoped   bool
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher publishing through broker
func NewDispatcher(broker *Broker, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		broker:   broker,
		versions: opts.Versions,
		relay:    opts.Relay,
		scoped:   opts.ScopeSubresources,
		logger:   logging.WithComponent("dispatcher"),
	}
}

// Emit publishes event to the sessions that should see it. Failures are
// logged; a missed event is repaired by the client's next reload.
func (d *Dispatcher) Emit(ctx context.Context, event domain.Event) {
	projectID := event.ProjectID.String()

	if d.versions != nil {
		version, err := d.versions.Bump(ctx, projectID)
		if err != nil {
			d.logger.Warn().Err(err).Str("project_id", projectID).Msg("failed to bump project version")
		} else {
			event.Version = version
		}
	}

	msg, err := MessageFromEvent(event)
	if err != nil {
		d.logger.Error().Err(err).Str("project_id", projectID).Msg("failed to encode event")
		return
	}

	env := Envelope{
		Global:  !event.IsProjectScoped() && !d.scoped,
		Message: msg,
	}

	if d.relay != nil {
		data, err := json.Marshal(env)
		if err == nil {
			err = d.relay.Publish(ctx, data)
		}
		if err == nil {
			return
		}
		d.logger.Warn().Err(err).Str("type", msg.Type).Msg("relay publish failed, delivering locally")
	}

	d.Route(env)
}

// Route delivers an envelope to the local broker
func (d *Dispatcher) Route(env Envelope) int {
	var delivered int
	if env.Global {
		delivered = d.broker.PublishGlobal(env.Message)
	} else {
		delivered = d.broker.Publish(env.Message.ProjectID, env.Message)
	}

	d.logger.Debug().
		Str("type", env.Message.Type).
		Str("project_id", env.Message.ProjectID).
		Bool("global", env.Global).
		Int("delivered", delivered).
		Msg("event routed")

	return delivered
}

// HandleRelayed routes an envelope received from the relay
func (d *Dispatcher) HandleRelayed(payload []byte) error {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("failed to decode relayed envelope: %w", err)
	}
	d.Route(env)
	return nil
}

// CurrentVersion returns the project's version, or 0 without a version store
func (d *Dispatcher) CurrentVersion(ctx context.Context, projectID string) int64 {
	if d.versions == nil {
		return 0
	}
	version, err := d.versions.Current(ctx, projectID)
	if err != nil {
		d.logger.Warn().Err(err).Str("project_id", projectID).Msg("failed to read project version")
		return 0
	}
	return version
}
