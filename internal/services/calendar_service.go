package services

import (
	"context"
	"time"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/integrations/graph"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Calendar Service
// Office 365 calendar through Microsoft Graph
// ===========================================================================

type CalendarService interface {
	CreateEvent(ctx context.Context, tenantID uuid.UUID, in graph.NewEvent) (*graph.Event, error)
	ListEvents(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]graph.Event, error)
}

type calendarService struct {
	settings SettingsService
	graph    *graph.Client
	logger   *zap.Logger
}

func NewCalendarService(settings SettingsService, client *graph.Client, logger *zap.Logger) CalendarService {
	return &calendarService{settings: settings, graph: client, logger: logger}
}

// withCredentials runs fn with the tenant's Graph credentials and persists
// the refresh token when Microsoft rotated it during the call
func (s *calendarService) withCredentials(ctx context.Context, tenantID uuid.UUID, fn func(creds *graph.Credentials) error) error {
	settings, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if !settings.O365.Configured() {
		return notConfigured("Office 365")
	}

	creds := graphCredentials(settings.O365)
	callErr := fn(&creds)

	if creds.RefreshToken != "" && creds.RefreshToken != settings.O365.RefreshToken {
		if err := s.settings.SaveO365RefreshToken(ctx, tenantID, creds.RefreshToken); err != nil {
			s.logger.Error("save rotated o365 refresh token failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
	if callErr != nil {
		return apperrors.External("Office 365", callErr)
	}
	return nil
}

func (s *calendarService) CreateEvent(ctx context.Context, tenantID uuid.UUID, in graph.NewEvent) (*graph.Event, error) {
	if in.Subject == "" {
		return nil, apperrors.Invalid("Le titre de l'événement est requis")
	}
	if !in.End.After(in.Start) {
		return nil, apperrors.Invalid("La fin de l'événement doit suivre son début")
	}

	var ev *graph.Event
	err := s.withCredentials(ctx, tenantID, func(creds *graph.Credentials) error {
		var err error
		ev, err = s.graph.CreateEvent(ctx, creds, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("calendar event created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("event_id", ev.ID),
	)
	return ev, nil
}

func (s *calendarService) ListEvents(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]graph.Event, error) {
	if !end.After(start) {
		return nil, apperrors.Invalid("Période invalide")
	}
	var events []graph.Event
	err := s.withCredentials(ctx, tenantID, func(creds *graph.Credentials) error {
		var err error
		events, err = s.graph.ListEvents(ctx, creds, start, end)
		return err
	})
	return events, err
}
