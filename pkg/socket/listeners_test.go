package socket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_SymmetricRegistration(t *testing.T) {
	r := newRegistry()
	var got []string
	sub := r.onEvent("company-1-ticket", func(p json.RawMessage) {
		got = append(got, string(p))
	})

	require.Equal(t, 1, r.dispatch("company-1-ticket", json.RawMessage(`{"a":1}`)))
	require.Len(t, got, 1)

	sub.Cancel()
	require.Equal(t, 0, r.dispatch("company-1-ticket", json.RawMessage(`{"a":2}`)))
	require.Len(t, got, 1)

	// Cancelling twice is harmless.
	sub.Cancel()
}

func TestRegistry_DispatchOnlyMatchingEvent(t *testing.T) {
	r := newRegistry()
	calls := 0
	r.onEvent("company-1-appMessage", func(json.RawMessage) { calls++ })

	r.dispatch("company-1-ticket", nil)
	require.Equal(t, 0, calls)
	r.dispatch("company-1-appMessage", nil)
	require.Equal(t, 1, calls)
}

func TestRegistry_LifecycleFanout(t *testing.T) {
	r := newRegistry()
	var kinds []string
	subA := r.onLifecycle(func(ev LifecycleEvent) { kinds = append(kinds, "a:"+ev.Kind) })
	r.onLifecycle(func(ev LifecycleEvent) { kinds = append(kinds, "b:"+ev.Kind) })

	r.notifyLifecycle(LifecycleEvent{Kind: LifecycleConnect})
	require.Len(t, kinds, 2)

	subA.Cancel()
	kinds = nil
	r.notifyLifecycle(LifecycleEvent{Kind: LifecycleDisconnect})
	require.Equal(t, []string{"b:" + LifecycleDisconnect}, kinds)
}

func TestScopeRef_UpgradeKeepsContinuity(t *testing.T) {
	ref := NewScopeRef("uuid-route-param")
	require.Equal(t, "uuid-route-param", ref.Current())
	require.True(t, ref.Matches("uuid-route-param"))
	require.False(t, ref.Matches("42"))

	ref.Upgrade("42")
	require.Equal(t, "42", ref.Current())
	// Events tagged with either identifier match during the window.
	require.True(t, ref.Matches("42"))
	require.True(t, ref.Matches("uuid-route-param"))
	require.False(t, ref.Matches("7"))
}
