package automation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation"
	"github.com/ginjaninja78/dwg-batch-duplicator/internal/automation/automationtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSession_ConnectsOnceAndShowsApplication(t *testing.T) {
	fake := automationtest.NewFake()

	session, err := automation.OpenSession(context.Background(), fake, automation.SessionOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Connects())
	assert.Equal(t, []string{"connect", "visible true"}, fake.Calls())

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	assert.Equal(t, 1, fake.Releases())
	assert.Zero(t, fake.Quits())
}

func TestSession_QuitOnClose(t *testing.T) {
	fake := automationtest.NewFake()

	session, err := automation.OpenSession(context.Background(), fake, automation.SessionOptions{QuitOnClose: true})
	require.NoError(t, err)
	require.NoError(t, session.Close())

	assert.Equal(t, 1, fake.Quits())
	assert.Equal(t, 1, fake.Releases())
	calls := fake.Calls()
	assert.Equal(t, []string{"quit", "release app"}, calls[len(calls)-2:])
}

func TestOpenSession_ConnectFailure(t *testing.T) {
	fake := automationtest.NewFake()
	fake.ConnectErr = errors.New("class not registered")

	_, err := automation.OpenSession(context.Background(), fake, automation.SessionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class not registered")
	assert.Zero(t, fake.Releases())
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", automation.ErrBusy, true},
		{"wrapped sentinel", fmt.Errorf("open: %w", automation.ErrBusy), true},
		{"retry later", automationtest.RetryLater, true},
		{"call rejected", automationtest.HRESULTError(0x80010001), true},
		{"wrapped hresult", fmt.Errorf("open: %w", automationtest.RetryLater), true},
		{"access denied", automationtest.AccessDenied, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, automation.IsBusy(tt.err))
		})
	}
}
