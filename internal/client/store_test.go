package client_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/client"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

// tickClock advances one millisecond per call.
func tickClock() func() time.Time {
	var n atomic.Int64
	base := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return base.Add(time.Duration(n.Add(1)) * time.Millisecond) }
}

type sentBroadcast struct{ action, key, value, category string }

type fakeSender struct {
	sent []sentBroadcast
	err  error
}

func (f *fakeSender) Send(_ context.Context, action, key, value, category string) (*payload.Payload, error) {
	f.sent = append(f.sent, sentBroadcast{action, key, value, category})
	if f.err != nil {
		return nil, f.err
	}
	return payload.New(action, category, key, value), nil
}

var binding = client.Binding{Filter: "com.x.SCAN", Category: "scanner", Event: "scan", Actions: []string{"CODE"}}

func TestStore_SetDataSameReference(t *testing.T) {
	t.Parallel()
	s := client.NewStore(binding, &fakeSender{}, client.WithClock(tickClock()))
	assert.Zero(t, s.Timestamp())
	assert.Nil(t, s.Data())

	ev := payload.NewEvent("scan", map[string]string{"CODE": "1"}, nil)
	s.SetData(ev)
	first := s.Timestamp()
	s.SetData(ev)
	second := s.Timestamp()

	assert.Greater(t, second, first, "timestamp advances even when data is unchanged")
	assert.Same(t, ev, s.Event())
}

func TestStore_SetDataComparesIdentityNotContent(t *testing.T) {
	t.Parallel()
	s := client.NewStore(binding, &fakeSender{}, client.WithClock(tickClock()))

	a := payload.NewEvent("scan", map[string]string{"CODE": "1"}, nil)
	b := &payload.Event{ID: a.ID, Name: a.Name, Fields: map[string]string{"CODE": "1"}, At: a.At}
	s.SetData(a)
	s.SetData(b)
	assert.Same(t, b, s.Event())
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()
	s := client.NewStore(binding, &fakeSender{}, client.WithClock(tickClock()))
	s.SetData(payload.NewEvent("scan", map[string]string{"CODE": "1"}, nil))
	before := s.Timestamp()

	s.Clear()
	assert.Nil(t, s.Event())
	assert.Nil(t, s.Data())
	assert.Greater(t, s.Timestamp(), before)
}

func TestStore_Handle(t *testing.T) {
	t.Parallel()
	s := client.NewStore(binding, &fakeSender{})
	_, ok := s.Handle()
	assert.False(t, ok)

	s.SetReceiverHandle(0)
	h, ok := s.Handle()
	assert.True(t, ok, "handle 0 is a real handle")
	assert.EqualValues(t, 0, h)

	s.ClearReceiverHandle()
	_, ok = s.Handle()
	assert.False(t, ok)
}

func TestStore_DataIsACopy(t *testing.T) {
	t.Parallel()
	s := client.NewStore(binding, &fakeSender{})
	s.SetData(payload.NewEvent("scan", map[string]string{"CODE": "1"}, nil))
	d := s.Data()
	d["CODE"] = "changed"
	assert.Equal(t, "1", s.Data()["CODE"])
}

func TestStore_Watch(t *testing.T) {
	t.Parallel()
	s := client.NewStore(binding, &fakeSender{}, client.WithClock(tickClock()))
	updates, cancel := s.Watch()

	s.SetData(payload.NewEvent("scan", map[string]string{"CODE": "1"}, nil))
	s.SetData(payload.NewEvent("scan", map[string]string{"CODE": "2"}, nil))

	// Only the latest state is kept for a reader that fell behind.
	st := <-updates
	assert.Equal(t, "2", st.Data()["CODE"])
	select {
	case extra := <-updates:
		t.Fatalf("unexpected buffered state %+v", extra)
	default:
	}

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)
	assert.NotPanics(t, func() { s.Clear() })
}

func TestStore_SendBroadcast(t *testing.T) {
	t.Parallel()
	out := &fakeSender{}
	s := client.NewStore(binding, out)

	require.NoError(t, s.SendBroadcast(context.Background(), "hello", "MSG"))
	require.Len(t, out.sent, 1)
	assert.Equal(t, sentBroadcast{"com.x.SCAN", "MSG", "hello", "scanner"}, out.sent[0])
}
