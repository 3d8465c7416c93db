package service

import (
	"context"
	"testing"
	"time"

	"wasender/internal/errors"
	"wasender/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentity(t *testing.T, timeout time.Duration) *IdentityLinkManager {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewIdentityLinkManager(timeout, logger)
}

func TestIdentityConnectStartsVerification(t *testing.T) {
	m := newTestIdentity(t, time.Minute)

	identity, err := m.Connect(context.Background(), "+1 (555) 010-1234")
	require.NoError(t, err)

	assert.Equal(t, "+15550101234", identity.PhoneNumber)
	assert.Equal(t, models.VerificationStateVerifying, identity.State)
	assert.False(t, m.IsAuthorized())
}

func TestIdentityConnectRejectsMalformedNumber(t *testing.T) {
	m := newTestIdentity(t, time.Minute)

	_, err := m.Connect(context.Background(), "not-a-number")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidNumberFormat, errors.GetCode(err))
}

func TestIdentityConfirmVerifies(t *testing.T) {
	m := newTestIdentity(t, time.Minute)

	_, err := m.Connect(context.Background(), "+15550101234")
	require.NoError(t, err)

	require.NoError(t, m.Confirm("+15550101234"))
	assert.True(t, m.IsAuthorized())
	assert.Equal(t, models.VerificationStateVerified, m.Identity().State)
}

func TestIdentityConfirmWrongNumber(t *testing.T) {
	m := newTestIdentity(t, time.Minute)

	_, err := m.Connect(context.Background(), "+15550101234")
	require.NoError(t, err)

	err = m.Confirm("+15559999999")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.GetCode(err))
	assert.False(t, m.IsAuthorized())
}

func TestIdentityVerificationTimeout(t *testing.T) {
	m := newTestIdentity(t, 20*time.Millisecond)

	_, err := m.Connect(context.Background(), "+15550101234")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return m.Identity().State == models.VerificationStateUnverified
	}, time.Second, 5*time.Millisecond)

	// The expired attempt can no longer be confirmed
	err = m.Confirm("+15550101234")
	require.Error(t, err)
	assert.False(t, m.IsAuthorized())
}

func TestIdentityTimeoutDoesNotClobberNewerConnect(t *testing.T) {
	m := newTestIdentity(t, 20*time.Millisecond)

	_, err := m.Connect(context.Background(), "+15550101234")
	require.NoError(t, err)

	// Second connect supersedes the first before its timer fires
	_, err = m.Connect(context.Background(), "+15550105678")
	require.NoError(t, err)
	require.NoError(t, m.Confirm("+15550105678"))

	// Wait past the first timer's deadline; verified state must survive
	time.Sleep(60 * time.Millisecond)
	assert.True(t, m.IsAuthorized())
	assert.Equal(t, "+15550105678", m.Identity().PhoneNumber)
}

func TestIdentityDisconnectClearsLink(t *testing.T) {
	m := newTestIdentity(t, time.Minute)

	_, err := m.Connect(context.Background(), "+15550101234")
	require.NoError(t, err)
	require.NoError(t, m.Confirm("+15550101234"))
	require.True(t, m.IsAuthorized())

	m.Disconnect()
	assert.False(t, m.IsAuthorized())
	assert.Equal(t, models.VerificationStateUnverified, m.Identity().State)
	assert.Empty(t, m.Identity().PhoneNumber)
}
