package events

import (
	"encoding/json"
	"log/slog"
)

// eventEnvelope is used for initial JSON parsing to determine event type.
type eventEnvelope struct {
	Type EventType `json:"type"`
}

// ParseEvent parses a journal line into a typed Event.
// Returns nil with no error for unknown event types (forward compatibility
// with journals written by newer builds).
func ParseEvent(line []byte) (Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}

	var ev Event
	var err error

	switch envelope.Type {
	case EventCycleStart:
		var e CycleStartEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventCycleStop:
		var e CycleStopEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventStateChanged:
		var e StateChangedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventViewActivate:
		var e ViewActivateEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventViewReady:
		var e ViewReadyEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventViewLoadTimeout:
		var e ViewLoadTimeoutEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventViewRender:
		var e ViewRenderEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventFetchRetry:
		var e FetchRetryEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventFetchFailed:
		var e FetchFailedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventFetchOK:
		var e FetchOKEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventRotationHeld:
		var e RotationHeldEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventRotationResumed:
		var e RotationResumedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventWatchdogRecovered:
		var e WatchdogRecoveredEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventConfigReloaded:
		var e ConfigReloadedEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	case EventError:
		var e ErrorEvent
		err = json.Unmarshal(line, &e)
		ev = &e

	default:
		slog.Debug("skipping unknown event type", "type", envelope.Type)
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	return ev, nil
}
