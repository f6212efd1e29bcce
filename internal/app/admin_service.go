package app

import (
	"context"
	"fmt"
	"time"

	"otp_forwarder_bot/internal/domain/otp"
	"otp_forwarder_bot/internal/domain/session"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// Status is the operational snapshot reported by /status.
type Status struct {
	State               session.State
	ConsecutiveFailures int
	StoredEntries       int
	Observed            int64
	Pipeline            Stats
}

type AdminService struct {
	dedup           otp.Repository
	sessions        *SessionController
	detector        *ChangeDetector
	otps            *OTPService
	retention       time.Duration
	adminTelegramID int64
	logger          *logrus.Entry
}

func NewAdminService(
	dedup otp.Repository,
	sessions *SessionController,
	detector *ChangeDetector,
	otps *OTPService,
	retention time.Duration,
	adminID int64,
	logger *logrus.Entry,
) *AdminService {
	return &AdminService{
		dedup:           dedup,
		sessions:        sessions,
		detector:        detector,
		otps:            otps,
		retention:       retention,
		adminTelegramID: adminID,
		logger:          logger,
	}
}

// IsAdmin reports whether the Telegram user may run admin commands.
func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminTelegramID != 0 && telegramID == s.adminTelegramID
}

// Status collects the current session state and pipeline counters.
func (s *AdminService) Status(ctx context.Context, performingAdminID int64) (*Status, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}

	stored, err := s.dedup.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count dedup entries: %w", err)
	}

	return &Status{
		State:               s.sessions.State(),
		ConsecutiveFailures: s.sessions.ConsecutiveFailures(),
		StoredEntries:       stored,
		Observed:            s.detector.Observed(),
		Pipeline:            s.otps.Stats(),
	}, nil
}

// Purge runs the retention purge on behalf of an admin.
func (s *AdminService) Purge(ctx context.Context, performingAdminID int64) (int, error) {
	if !s.IsAdmin(performingAdminID) {
		return 0, ErrAdminNotAuthorized
	}
	return s.PurgeExpired(ctx)
}

// PurgeExpired removes dedup entries older than the retention window.
// It is also the job run by the purge scheduler.
func (s *AdminService) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := s.dedup.ClearOldDuplicates(ctx, s.retention)
	if err != nil {
		return 0, fmt.Errorf("failed to clear old dedup entries: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"removed":   removed,
		"retention": s.retention.String(),
	}).Info("Cleared old duplicate entries")
	return removed, nil
}
