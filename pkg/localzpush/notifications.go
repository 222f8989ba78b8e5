package localzpush

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/logging"
)

const (
	payloadKey   = "localz"
	actionKey    = "action"
	forceKey     = "force"
	actionLocate = "locate"
)

// RemoteNotificationReceived handles an inbound push. A silent "locate" push
// ({"localz":{"action":"locate","force":bool}}) reports the current location;
// every payload is then offered to the observer. completion is called exactly
// once with the combined result, even when the observer panics.
func (s *Service) RemoteNotificationReceived(ctx context.Context, payload map[string]any, state AppState, completion func(FetchResult)) {
	done := once(completion)
	result := FetchNoData
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Push handling panicked", zap.Any("panic", r))
			result = FetchFailed
		}
		done(result)
	}()

	logging.LogPayload("Remote notification received", payload)

	if force, ok := locateAction(payload); ok {
		sent, err := s.locate(ctx, force, TriggerPush)
		switch {
		case err != nil:
			s.failure(err)
			result = FetchFailed
		case sent:
			result = FetchNewData
		}
	}

	ack := s.dispatcher.Dispatch(events.NotificationReceived{Payload: payload, State: state})
	if ack.Delivered {
		result = combine(result, ack.Result)
	}
}

// BackgroundFetch is called when the OS grants background time. A location
// report is attempted if location services are enabled; completion is called
// exactly once.
func (s *Service) BackgroundFetch(ctx context.Context, completion func(FetchResult)) {
	done := once(completion)
	result := FetchNoData
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Background fetch panicked", zap.Any("panic", r))
			result = FetchFailed
		}
		done(result)
	}()

	if !s.IsLocationTrackingEnabled() {
		return
	}
	sent, err := s.locate(ctx, false, TriggerBackground)
	switch {
	case err != nil:
		s.failure(err)
		result = FetchFailed
	case sent:
		result = FetchNewData
	}
}

func locateAction(payload map[string]any) (force bool, ok bool) {
	body, isMap := payload[payloadKey].(map[string]any)
	if !isMap {
		return false, false
	}
	if action, _ := body[actionKey].(string); action != actionLocate {
		return false, false
	}
	force, _ = body[forceKey].(bool)
	return force, true
}

// combine merges two fetch results: failure wins, then new data
func combine(a, b FetchResult) FetchResult {
	switch {
	case a == FetchFailed || b == FetchFailed:
		return FetchFailed
	case a == FetchNewData || b == FetchNewData:
		return FetchNewData
	default:
		return FetchNoData
	}
}

// once wraps completion so only the first call goes through. A nil
// completion is allowed.
func once(completion func(FetchResult)) func(FetchResult) {
	var o sync.Once
	return func(r FetchResult) {
		o.Do(func() {
			if completion != nil {
				completion(r)
			}
		})
	}
}
