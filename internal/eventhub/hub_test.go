package eventhub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	sent   [][]byte
	failAt int // fail the call at this 0-indexed attempt, -1 never
	calls  int
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	defer func() { f.calls++ }()
	if f.failAt == f.calls {
		return errors.New("write failed")
	}
	f.sent = append(f.sent, data)
	return nil
}

func TestBroadcastDeliversToAllConnectionsOnNamespace(t *testing.T) {
	h := New(nil)
	a := &fakeConn{failAt: -1}
	b := &fakeConn{failAt: -1}
	h.Connect("proj", a)
	h.Connect("proj", b)
	h.Connect("other", &fakeConn{failAt: -1})

	require.NoError(t, h.Broadcast(context.Background(), Event{Name: "memory_stored", Namespace: "proj", Data: map[string]any{"id": 1}}))

	require.Len(t, a.sent, 1)
	require.Len(t, b.sent, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(a.sent[0], &decoded))
	require.Equal(t, "memory_stored", decoded["event"])
	require.Equal(t, float64(1), decoded["id"])
}

func TestBroadcastDisconnectsFailingConnection(t *testing.T) {
	h := New(nil)
	bad := &fakeConn{failAt: 0}
	h.Connect("proj", bad)
	require.Equal(t, 1, h.ConnectionCount("proj"))

	require.NoError(t, h.Broadcast(context.Background(), Event{Name: "x", Namespace: "proj"}))

	require.Equal(t, 0, h.ConnectionCount("proj"))
}

func TestDisconnectRemovesOnlyTheGivenConnection(t *testing.T) {
	h := New(nil)
	a := &fakeConn{failAt: -1}
	b := &fakeConn{failAt: -1}
	h.Connect("proj", a)
	h.Connect("proj", b)

	h.Disconnect("proj", a)
	require.Equal(t, 1, h.ConnectionCount("proj"))

	require.NoError(t, h.Broadcast(context.Background(), Event{Name: "x", Namespace: "proj"}))
	require.Len(t, b.sent, 1)
}
