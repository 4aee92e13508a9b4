package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportcompanion/companion/internal/runtime/config"
	"github.com/supportcompanion/companion/internal/runtime/message"
)

func activatedPOSOptions() *config.Options {
	opts := config.Default()
	opts.POS = config.POSOptions{
		Activate: true,
		Device:   "A77",
		Port:     "COM3",
		Protocol: "zvt",
		EthIP:    "10.0.0.5",
	}
	return opts
}

func TestPOSManager_RequiresRequester(t *testing.T) {
	_, err := NewPOSManager(nil, nil, nil)
	assert.Error(t, err)
}

func TestPOSManager_PingSendsTerminalParams(t *testing.T) {
	native := &fakeRequester{resp: message.Success("pong")}
	m, err := NewPOSManager(native, activatedPOSOptions(), nil)
	require.NoError(t, err)

	resp, err := m.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())

	seen := native.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, RouteEpaymentPing, seen[0].Name)
	params, ok := seen[0].Params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A77", params["device"])
	assert.Equal(t, "COM3", params["port"])
	assert.Equal(t, "zvt", params["protocol"])
	assert.Equal(t, "10.0.0.5", params["ethip"])
}

func TestPOSManager_DeactivatedRefusesLocally(t *testing.T) {
	native := &fakeRequester{resp: message.Success("pong")}
	m, err := NewPOSManager(native, config.Default(), nil)
	require.NoError(t, err)

	_, err = m.Ping(context.Background())
	var fe *message.FailureError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "pos", fe.Type)
	assert.Empty(t, native.seen(), "a deactivated terminal must not be probed")
}

func TestPOSManager_ProcessMergesCallerParamsOverTerminal(t *testing.T) {
	native := &fakeRequester{resp: message.Success("approved")}
	m, err := NewPOSManager(native, activatedPOSOptions(), nil)
	require.NoError(t, err)

	_, err = m.Process(context.Background(), map[string]any{
		"amount": 1299,
		"device": "override",
	})
	require.NoError(t, err)

	seen := native.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, RouteEpaymentProcess, seen[0].Name)
	params := seen[0].Params.(map[string]any)
	assert.EqualValues(t, 1299, params["amount"])
	assert.Equal(t, "override", params["device"], "caller keys win over configured terminal")
	assert.Equal(t, "zvt", params["protocol"])
}

func TestPOSManager_SupportQueriesBypassActivationGate(t *testing.T) {
	native := &fakeRequester{resp: message.Success([]string{"zvt", "opi"})}
	m, err := NewPOSManager(native, config.Default(), nil)
	require.NoError(t, err)

	_, err = m.SupportedDevices(context.Background())
	require.NoError(t, err)
	_, err = m.SupportedProtocols(context.Background())
	require.NoError(t, err)

	seen := native.seen()
	require.Len(t, seen, 2)
	assert.Equal(t, RouteEpaymentSupportedDevices, seen[0].Name)
	assert.Equal(t, RouteEpaymentSupportedProtocols, seen[1].Name)
}

func TestPOSManager_ApplyOptionsSwitchesTerminal(t *testing.T) {
	native := &fakeRequester{resp: message.Success("pong")}
	m, err := NewPOSManager(native, config.Default(), nil)
	require.NoError(t, err)

	_, err = m.Ping(context.Background())
	require.Error(t, err)

	m.ApplyOptions(activatedPOSOptions())
	_, err = m.Ping(context.Background())
	require.NoError(t, err)
}
