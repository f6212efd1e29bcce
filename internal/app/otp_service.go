// internal/app/otp_service.go
package app

import (
	"context"
	"sync"
	"time"

	"otp_forwarder_bot/internal/domain/otp"

	"github.com/sirupsen/logrus"
)

// Outcome is the result of processing one detected row.
type Outcome string

const (
	OutcomeDispatched     Outcome = "DISPATCHED"
	OutcomeDuplicate      Outcome = "DUPLICATE"
	OutcomeNoOTP          Outcome = "NO_OTP"
	OutcomeRowNotReady    Outcome = "ROW_NOT_READY"
	OutcomeDispatchFailed Outcome = "DISPATCH_FAILED"
)

// Stats summarizes what the pipeline did since start.
type Stats struct {
	Outcomes       map[Outcome]int
	LastDispatchAt time.Time
	LastOTPKey     string
}

// OTPService turns a detected row into at most one notification per (OTP, phone) pair.
type OTPService struct {
	dedup    otp.Repository
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
	logger   *logrus.Entry

	mu    sync.Mutex
	stats Stats
}

func NewOTPService(dedup otp.Repository, notifier Notifier, loc *time.Location, logger *logrus.Entry) *OTPService {
	return &OTPService{
		dedup:    dedup,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
		stats:    Stats{Outcomes: map[Outcome]int{}},
	}
}

// ProcessRow extracts, deduplicates and dispatches the row given by its cell texts.
// A pair is recorded only after the endpoint acknowledged the message; a failed
// dispatch is not retried.
func (s *OTPService) ProcessRow(ctx context.Context, cells []string) Outcome {
	rec, err := otp.Extract(cells)
	if err != nil {
		s.logger.WithError(err).WithField("cells", len(cells)).Warn("Row not ready, skipping")
		return s.count(OutcomeRowNotReady, "")
	}
	if !rec.HasOTP() {
		s.logger.WithField("service", rec.ServiceID).Info("No OTP found in message, skipping")
		return s.count(OutcomeNoOTP, "")
	}

	logCtx := s.logger.WithFields(logrus.Fields{
		"otp":     rec.OTP,
		"phone":   rec.PhoneNumber,
		"service": rec.ServiceID,
	})

	dup, err := s.dedup.IsDuplicate(ctx, rec.OTP, rec.PhoneNumber)
	if err != nil {
		logCtx.WithError(err).Warn("Dedup lookup failed, treating OTP as new")
	}
	if dup {
		logCtx.Info("Duplicate OTP detected, skipping")
		return s.count(OutcomeDuplicate, "")
	}

	at := s.now()
	if !s.notifier.Dispatch(ctx, FormatOTPMessage(rec, at, s.loc)) {
		logCtx.Error("Failed to deliver OTP notification; it will not be retried")
		return s.count(OutcomeDispatchFailed, "")
	}

	if err := s.dedup.Record(ctx, rec.OTP, rec.PhoneNumber, at); err != nil {
		logCtx.WithError(err).Error("Failed to save dedup entry; the OTP may be sent again")
	}
	logCtx.Info("OTP processed and sent successfully")

	s.mu.Lock()
	s.stats.LastDispatchAt = at
	s.mu.Unlock()
	return s.count(OutcomeDispatched, otp.DedupKey(rec.OTP, rec.PhoneNumber))
}

// Stats returns a copy of the pipeline counters.
func (s *OTPService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{
		Outcomes:       make(map[Outcome]int, len(s.stats.Outcomes)),
		LastDispatchAt: s.stats.LastDispatchAt,
		LastOTPKey:     s.stats.LastOTPKey,
	}
	for k, v := range s.stats.Outcomes {
		out.Outcomes[k] = v
	}
	return out
}

func (s *OTPService) count(o Outcome, key string) Outcome {
	s.mu.Lock()
	s.stats.Outcomes[o]++
	if key != "" {
		s.stats.LastOTPKey = key
	}
	s.mu.Unlock()
	return o
}
