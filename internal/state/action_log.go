// Package state holds the constructed state containers for the story session
// and the listener profiles. Containers are passed by reference to whatever
// needs them; mutation goes through their defined actions only, and every
// action runs through one logging decorator.
package state

import (
	"time"

	"go.uber.org/zap"
)

// payload values longer than this are truncated before logging.
const maxLoggedValueLen = 120

// ActionEvent is one structured record of a store mutation.
type ActionEvent struct {
	Store   string                 `json:"store"`
	Action  string                 `json:"action"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Time    time.Time              `json:"time"`
}

// EventSink receives action events as they happen. The debug stream hub
// implements it; a nil sink is fine.
type EventSink interface {
	Publish(ActionEvent)
}

// ActionLogger is the cross-cutting logging decorator applied at the
// state-container boundary. It is observability only and never affects
// control flow.
type ActionLogger struct {
	logger *zap.Logger
	sink   EventSink
}

func NewActionLogger(logger *zap.Logger, sink EventSink) *ActionLogger {
	return &ActionLogger{logger: logger, sink: sink}
}

// Log records one store action with a redacted/truncated payload.
func (l *ActionLogger) Log(store, action string, payload map[string]interface{}) {
	if l == nil {
		return
	}
	truncated := truncatePayload(payload)

	l.logger.Debug("store action",
		zap.String("store", store),
		zap.String("action", action),
		zap.Any("payload", truncated))

	if l.sink != nil {
		l.sink.Publish(ActionEvent{
			Store:   store,
			Action:  action,
			Payload: truncated,
			Time:    time.Now(),
		})
	}
}

func truncatePayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if s, ok := v.(string); ok && len(s) > maxLoggedValueLen {
			out[k] = s[:maxLoggedValueLen] + "..."
			continue
		}
		out[k] = v
	}
	return out
}
