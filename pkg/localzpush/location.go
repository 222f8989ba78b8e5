package localzpush

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/localz/localzpush-go/internal/backend"
	"github.com/localz/localzpush-go/internal/events"
	"github.com/localz/localzpush-go/internal/location"
	"github.com/localz/localzpush-go/internal/logging"
	"github.com/localz/localzpush-go/internal/sdkerrors"
	"github.com/localz/localzpush-go/internal/store"
)

// Report triggers sent with location reports
const (
	TriggerUpdate     = "update"
	TriggerPush       = "push"
	TriggerBackground = "background"
)

// EnableLocationServices requests location permission if it has not been
// decided yet and turns on location reporting. It fails with
// LocationError.PermissionDenied when the device or the user says no. Errors
// are also sent to the observer's DidFail.
func (s *Service) EnableLocationServices(ctx context.Context) error {
	p := s.locations
	if p != nil && p.ServicesEnabled() && p.Authorization() == location.AuthorizationNotDetermined {
		if _, err := p.RequestAuthorization(ctx); err != nil {
			err = fmt.Errorf("location authorization request failed: %w", err)
			s.failure(err)
			return err
		}
	}

	permErr := location.CheckPermission(p)
	err := s.store.Update(func(tx *store.Tx) error {
		tx.SetBool(store.KeyLocationEnabled, permErr == nil)
		return nil
	})
	if err != nil {
		err = fmt.Errorf("failed to persist location setting: %w", err)
		s.failure(err)
		return err
	}
	if permErr != nil {
		s.failure(permErr)
		return permErr
	}

	logging.Info("Location services enabled")
	return nil
}

// LocationUpdated feeds a position from the OS. It is reported to the backend
// when location services are enabled, the device is registered and the
// dynamic tracking policy allows it. The bool says whether a report was sent.
// Permission and backend errors are also sent to the observer's DidFail.
func (s *Service) LocationUpdated(ctx context.Context, loc Location) (bool, error) {
	if !s.IsLocationTrackingEnabled() {
		return false, nil
	}
	if err := location.CheckPermission(s.locations); err != nil {
		s.failure(err)
		return false, err
	}
	sent, err := s.report(ctx, loc, false, TriggerUpdate)
	if err != nil {
		s.failure(err)
	}
	return sent, err
}

// locate fetches a fresh position from the provider and reports it
func (s *Service) locate(ctx context.Context, force bool, trigger string) (bool, error) {
	if err := location.CheckPermission(s.locations); err != nil {
		return false, err
	}
	loc, err := s.locations.CurrentLocation(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get current location: %w", err)
	}
	return s.report(ctx, loc, force, trigger)
}

func (s *Service) report(ctx context.Context, loc Location, force bool, trigger string) (bool, error) {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()

	now := s.now()
	if loc.Timestamp.IsZero() {
		loc.Timestamp = now
	}

	switch st := s.registrar.State(); st {
	case StateRegistered, StateUpdateFailed:
	default:
		logging.Debug("Location not reported, device not registered", zap.String("state", st.String()))
		return false, nil
	}

	if !force && !s.policy.ShouldReport(loc, now) {
		logging.Debug("Location not reported, policy gate closed", zap.String("trigger", trigger))
		return false, nil
	}

	err := s.client.ReportLocation(ctx, s.registrar.DeviceID(), backend.LocationReport{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Accuracy:  loc.Accuracy,
		Timestamp: loc.Timestamp,
		Trigger:   trigger,
	})
	if err != nil {
		return false, err
	}
	if err := s.policy.RecordReport(loc, now); err != nil {
		return true, err
	}

	logging.Debug("Location reported",
		zap.String("trigger", trigger),
		zap.Float64("lat", loc.Latitude),
		zap.Float64("lng", loc.Longitude),
	)
	return true, nil
}

// failure forwards an error to the observer's DidFail
func (s *Service) failure(err error) {
	if sdkerrors.IsLocationError(err) {
		logging.Warn("Location error", zap.Error(err))
	} else {
		logging.Error("SDK error", zap.Error(err))
	}
	s.dispatcher.Dispatch(events.Failure{Err: err})
}
