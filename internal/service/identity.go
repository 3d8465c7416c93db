package service

import (
	"context"
	"sync"
	"time"

	"wasender/internal/errors"
	"wasender/internal/models"
	"wasender/internal/validation"

	"github.com/sirupsen/logrus"
)

// IdentityLinkManager tracks the operator's real-number identity and gates
// campaign dispatch on a verified link. Verification itself is an opaque
// asynchronous signal keyed by the submitted phone number; a connect attempt
// that is not confirmed within the timeout reverts to UNVERIFIED and may be
// retried.
type IdentityLinkManager struct {
	mu            sync.Mutex
	identity      models.RealIdentity
	verifyTimeout time.Duration
	timer         *time.Timer
	generation    uint64
	logger        *logrus.Logger
}

func NewIdentityLinkManager(verifyTimeout time.Duration, logger *logrus.Logger) *IdentityLinkManager {
	return &IdentityLinkManager{
		identity:      models.RealIdentity{State: models.VerificationStateUnverified},
		verifyTimeout: verifyTimeout,
		logger:        logger,
	}
}

// Connect normalizes the submitted number, moves the identity to VERIFYING
// and arms the verification timeout. A connect attempt while another number
// is already linked replaces it.
func (m *IdentityLinkManager) Connect(ctx context.Context, phoneNumber string) (models.RealIdentity, error) {
	normalized, err := validation.NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return models.RealIdentity{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.generation++
	gen := m.generation

	m.identity = models.RealIdentity{
		PhoneNumber: normalized,
		State:       models.VerificationStateVerifying,
		ConnectedAt: time.Now(),
	}

	m.timer = time.AfterFunc(m.verifyTimeout, func() {
		m.onVerificationTimeout(gen)
	})

	m.logger.WithField("phone", normalized).Info("Identity verification started")
	return m.identity, nil
}

// Confirm resolves a pending verification for the given number. It is the
// entry point for the external confirmation channel.
func (m *IdentityLinkManager) Confirm(phoneNumber string) error {
	normalized, err := validation.NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.identity.State != models.VerificationStateVerifying || m.identity.PhoneNumber != normalized {
		return errors.New(errors.ErrCodeNotFound, "no pending verification for this number")
	}

	m.stopTimerLocked()
	m.identity.State = models.VerificationStateVerified
	m.logger.WithField("phone", normalized).Info("Identity verified")
	return nil
}

// Disconnect clears the linked identity. In-flight dispatches are rejected at
// their next precondition check.
func (m *IdentityLinkManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.generation++
	m.identity = models.RealIdentity{State: models.VerificationStateUnverified}
	m.logger.Info("Identity disconnected")
}

// IsAuthorized reports whether a verified identity is linked.
func (m *IdentityLinkManager) IsAuthorized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity.State == models.VerificationStateVerified
}

// Identity returns a snapshot of the current identity.
func (m *IdentityLinkManager) Identity() models.RealIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

func (m *IdentityLinkManager) onVerificationTimeout(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A newer connect or a confirmation has superseded this timer
	if gen != m.generation || m.identity.State != models.VerificationStateVerifying {
		return
	}

	m.logger.WithField("phone", m.identity.PhoneNumber).Warn("Identity verification timed out")
	m.identity = models.RealIdentity{State: models.VerificationStateUnverified}
}

func (m *IdentityLinkManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
