package xen

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenmsg/xen/wire"
	"github.com/xenmsg/xen/xenmock"
)

// loopback wires two Channels together over an in-memory net.Pipe. It lives
// here (rather than importing xentest) because xentest imports this
// package.
func loopback(t *testing.T, aOpts, bOpts []ChannelOption) (a, b *Channel) {
	t.Helper()
	sideA, sideB := net.Pipe()
	a = NewChannel(sideA, append([]ChannelOption{WithChannelID("a")}, aOpts...)...)
	b = NewChannel(sideB, append([]ChannelOption{WithChannelID("b")}, bOpts...)...)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func TestSerialMonotonicity(t *testing.T) {
	a, b := loopback(t, nil, nil)
	_ = b

	var serials []uint64
	for i := 0; i < 5; i++ {
		s, err := a.SendCommand("noop")
		require.NoError(t, err)
		serials = append(serials, s)
	}
	for i := 1; i < len(serials); i++ {
		assert.Greater(t, serials[i], serials[i-1])
	}
	assert.Equal(t, uint64(1), serials[0])
}

func TestScenarioEmptyEventRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var got Message
	a, b := loopback(t, nil, []ChannelOption{
		WithEventHandler(func(serial uint64, text string) {
			mu.Lock()
			got = Message{Category: CategoryEvent, Serial: serial, Text: text}
			mu.Unlock()
		}),
	})

	serial, err := a.SendEvent("")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), serial)

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got.Serial == 1
	}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, CategoryEvent, got.Category)
	assert.Equal(t, "", got.Text)
}

func TestScenarioCommandResultCorrelation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	evaluator := xenmock.NewMockEvaluator(ctrl)
	evaluator.EXPECT().Evaluate("return 1+1").Return(2.0, nil)
	evaluator.EXPECT().Stringify(2.0).Return("2")

	var mu sync.Mutex
	var replyCategory Category
	var replySerial uint64
	var replyText string

	a, b := loopback(t,
		[]ChannelOption{WithResponseHandler(func(category Category, serial uint64, text string) {
			mu.Lock()
			replyCategory, replySerial, replyText = category, serial, text
			mu.Unlock()
		})},
		[]ChannelOption{WithEvaluator(evaluator)},
	)
	_ = b

	serial, err := a.SendCommand("return 1+1")
	require.NoError(t, err)

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return replySerial == serial
	}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, CategoryResult, replyCategory)
	assert.Equal(t, "2", replyText)
}

func TestScenarioColonInText(t *testing.T) {
	var mu sync.Mutex
	var got Message
	a, b := loopback(t, nil, []ChannelOption{
		WithEventHandler(func(serial uint64, text string) {
			mu.Lock()
			got = Message{Serial: serial, Text: text}
			mu.Unlock()
		}),
	})
	_, err := a.SendEvent("a:b:c")
	require.NoError(t, err)

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got.Text != ""
	}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "a:b:c", got.Text)
}

func TestScenarioUnsolicitedErrorsDoNotCollide(t *testing.T) {
	var mu sync.Mutex
	var received []string
	a, b := loopback(t, []ChannelOption{
		WithResponseHandler(func(category Category, serial uint64, text string) {
			mu.Lock()
			received = append(received, text)
			mu.Unlock()
		}),
	}, nil)
	_ = a

	require.NoError(t, b.SendError(0, "first"))
	require.NoError(t, b.SendError(0, "second"))

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, received)
}

func TestErrorIsolationSpuriousErrIsDroppedNotDeliveredAndChannelStaysOpen(t *testing.T) {
	var mu sync.Mutex
	delivered := 0
	a, b := loopback(t, []ChannelOption{
		WithResponseHandler(func(category Category, serial uint64, text string) {
			mu.Lock()
			delivered++
			mu.Unlock()
		}),
	}, nil)

	// b sends an ERR correlated to a serial a never issued as a command.
	require.NoError(t, b.SendError(999, "not mine"))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	got := delivered
	mu.Unlock()
	assert.Equal(t, 0, got, "spurious ERR must be dropped, not delivered")

	assert.False(t, a.isClosed(), "a spurious ERR must not close the channel")

	// the channel must still work afterwards.
	_, err := a.SendCommand("still alive")
	assert.NoError(t, err)
}

func TestSendAfterCloseFailsWithClosedError(t *testing.T) {
	a, b := loopback(t, nil, nil)
	_ = b
	require.NoError(t, a.Close())

	_, err := a.SendCommand("x")
	var closedErr *ClosedError
	assert.ErrorAs(t, err, &closedErr)
}

func TestScenarioChunkedArrivalYieldsBothEnvelopesInOrder(t *testing.T) {
	var mu sync.Mutex
	var events []Message
	sideA, sideB := net.Pipe()
	a := NewChannel(sideA, WithDispatcher(func(_ *Channel, category Category, serial uint64, text string) {
		mu.Lock()
		events = append(events, Message{Category: category, Serial: serial, Text: text})
		mu.Unlock()
	}))
	defer a.Close()
	defer sideB.Close()

	// "CMD:1:hi" (8 bytes) then "EVT:2:" (6 bytes), framed and then split
	// into three chunks at arbitrary points that do not align with either
	// frame boundary (spec §8 scenario 3, "chunked arrival").
	var buf bytes.Buffer
	require.NoError(t, wire.WriteFrame(&buf, []byte("CMD:1:hi")))
	require.NoError(t, wire.WriteFrame(&buf, []byte("EVT:2:")))
	stream := buf.Bytes()
	chunks := []string{string(stream[:7]), string(stream[7:18]), string(stream[18:])}

	go func() {
		for _, chunk := range chunks {
			_, _ = sideB.Write([]byte(chunk))
		}
	}()

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, CategoryCommand, events[0].Category)
	assert.Equal(t, uint64(1), events[0].Serial)
	assert.Equal(t, "hi", events[0].Text)
	assert.Equal(t, CategoryEvent, events[1].Category)
	assert.Equal(t, uint64(2), events[1].Serial)
	assert.Equal(t, "", events[1].Text)
}

func TestMalformedHeaderClosesChannel(t *testing.T) {
	sideA, sideB := net.Pipe()
	a := NewChannel(sideA)
	defer a.Close()

	go func() {
		_, _ = sideB.Write([]byte("!5:hello"))
	}()

	require.True(t, waitFor(t, time.Second, a.isClosed))
	var protoErr *ProtocolError
	assert.ErrorAs(t, a.Err(), &protoErr)
}

func TestEmptyCategoryInTextModeReachesUnknownCategoryNotRawHandler(t *testing.T) {
	var mu sync.Mutex
	var rawCalled bool
	var unknown Message
	sideA, sideB := net.Pipe()
	a := NewChannel(sideA,
		WithRawHandler(func(payload []byte) {
			mu.Lock()
			rawCalled = true
			mu.Unlock()
		}),
		WithDispatcher(func(ch *Channel, category Category, serial uint64, text string) {
			if category.Known() {
				t.Fatalf("unexpected known category %q", category)
			}
			mu.Lock()
			unknown = Message{Category: category, Serial: serial, Text: text}
			mu.Unlock()
		}),
	)
	defer a.Close()
	defer sideB.Close()

	require.NoError(t, wire.WriteFrame(sideB, []byte(":5:x")))

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return unknown.Serial == 5
	}))
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, rawCalled, "a malformed text-mode envelope must not reach the binary raw handler")
	assert.Equal(t, Category(""), unknown.Category)
	assert.Equal(t, "x", unknown.Text)
}

func TestWithChannelTraceAcceptsPartialHooksWithoutPanicking(t *testing.T) {
	sideA, sideB := net.Pipe()
	a := NewChannel(sideA, WithChannelTrace(DiagnosticHooks))
	defer a.Close()
	defer sideB.Close()

	_, err := sideB.Write([]byte("junk"))
	require.NoError(t, err)

	require.True(t, waitFor(t, time.Second, a.isClosed))
}

func TestDispatchOrderPreservesArrivalOrder(t *testing.T) {
	var mu sync.Mutex
	var order []uint64
	a, b := loopback(t, nil, []ChannelOption{
		WithEventHandler(func(serial uint64, text string) {
			mu.Lock()
			order = append(order, serial)
			mu.Unlock()
		}),
	})
	_ = a

	const n = 20
	for i := 0; i < n; i++ {
		_, err := b.SendEvent("tick")
		require.NoError(t, err)
	}

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == n
	}))
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i])
	}
}
