package subscribers

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/PathGAN/internal/events"
)

// LoggerSubscriber logs training events to structured logs
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // If non-nil, only log these event types
	devMode         bool            // If true, log full event details
}

// NewLoggerSubscriber creates a new logger subscriber
func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

// ID returns the subscriber's unique identifier
func (ls *LoggerSubscriber) ID() string {
	return ls.id
}

// SetEventFilter sets which event types to log (nil means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}

	ls.eventTypeFilter = make(map[string]bool)
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

// SetDevMode enables or disables development mode logging
func (ls *LoggerSubscriber) SetDevMode(enabled bool) {
	ls.devMode = enabled
}

// InterestedIn returns true if the subscriber wants to receive this event type
func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

// HandleEvent processes an event by logging it
func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	eventLogger := ls.logger.With().
		Str("event_type", event.Type()).
		Str("run_id", event.RunID()).
		Time("timestamp", event.Timestamp()).
		Logger()

	var logEvent *zerolog.Event
	switch ls.logLevel {
	case zerolog.TraceLevel:
		logEvent = eventLogger.Trace()
	case zerolog.DebugLevel:
		logEvent = eventLogger.Debug()
	case zerolog.WarnLevel:
		logEvent = eventLogger.Warn()
	case zerolog.ErrorLevel:
		logEvent = eventLogger.Error()
	default:
		logEvent = eventLogger.Info()
	}

	switch e := event.(type) {
	case *events.RunStartedEvent:
		logEvent.
			Int("epochs", e.Epochs).
			Int("batch_size", e.BatchSize).
			Int("dataset_size", e.DatasetSize).
			Int("path_length", e.PathLength).
			Int("noise_dim", e.NoiseDim)

	case *events.EpochCompletedEvent:
		logEvent.
			Int("epoch", e.Epoch).
			Int("total_epochs", e.TotalEpochs).
			Int("batches", e.Batches).
			Float64("d_loss", e.DiscriminatorLoss).
			Float64("g_loss", e.GeneratorLoss).
			Dur("duration", e.Duration)

	case *events.RunFinishedEvent:
		logEvent.
			Int("epochs", e.Epochs).
			Dur("duration", e.Duration)

	case *events.RunFailedEvent:
		logEvent.
			Int("epoch", e.Epoch).
			Int("batch", e.Batch).
			Str("error", e.Err)

	case *events.PhaseTransitionEvent:
		logEvent.
			Str("from_phase", e.FromPhase).
			Str("to_phase", e.ToPhase).
			Str("reason", e.Reason)

	case *events.ModelSavedEvent:
		logEvent.
			Str("path", e.Path).
			Int("parameters", e.Parameters)
	}

	if ls.devMode {
		if jsonData, err := json.Marshal(event); err == nil {
			logEvent.RawJSON("event_data", jsonData)
		}
	}

	logEvent.Msg("Training event")
}
