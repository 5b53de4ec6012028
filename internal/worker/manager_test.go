package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"orientachat/internal/service/ai"
	"orientachat/internal/service/shell"

	"github.com/stretchr/testify/require"
)

type echoChats struct{}

func (echoChats) NewChat(context.Context) (ai.Chat, error) { return echoChats{}, nil }

func (echoChats) Stream(_ context.Context, turn ai.Turn) <-chan ai.Chunk {
	out := make(chan ai.Chunk, 1)
	out <- ai.Chunk{Text: turn.Prompt()}
	close(out)
	return out
}

type silentSynth struct{}

func (silentSynth) Synthesize(context.Context, string) ([]byte, error) { return []byte{0, 0}, nil }

func countingBuilder(builds *atomic.Int32) Builder {
	return func(ctx context.Context, visitorID string) (*shell.Shell, error) {
		builds.Add(1)
		return shell.New(ctx, shell.Config{
			VisitorID:   visitorID,
			Chats:       echoChats{},
			Synthesizer: silentSynth{},
		})
	}
}

func TestEnsureBuildsOncePerVisitor(t *testing.T) {
	var builds atomic.Int32
	m := NewManager(countingBuilder(&builds), WithIdleTimeout(time.Hour))
	defer m.Close()

	first, err := m.Ensure(context.Background(), "a")
	require.NoError(t, err)
	again, err := m.Ensure(context.Background(), "a")
	require.NoError(t, err)
	require.Same(t, first, again)

	_, err = m.Ensure(context.Background(), "b")
	require.NoError(t, err)
	require.EqualValues(t, 2, builds.Load())
	require.Equal(t, 2, m.Len())

	_, err = m.Ensure(context.Background(), "")
	require.Error(t, err)
}

func TestEnsureConcurrentKeepsOneShell(t *testing.T) {
	var builds atomic.Int32
	m := NewManager(countingBuilder(&builds), WithIdleTimeout(time.Hour))
	defer m.Close()

	var wg sync.WaitGroup
	got := make([]*shell.Shell, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sh, err := m.Ensure(context.Background(), "same")
			require.NoError(t, err)
			got[i] = sh
		}(i)
	}
	wg.Wait()
	for _, sh := range got {
		require.Same(t, got[0], sh)
	}
	require.Equal(t, 1, m.Len())
}

func TestEnsureBuildError(t *testing.T) {
	boom := errors.New("no provider")
	m := NewManager(func(context.Context, string) (*shell.Shell, error) { return nil, boom })
	defer m.Close()

	_, err := m.Ensure(context.Background(), "a")
	require.ErrorIs(t, err, boom)
	require.Zero(t, m.Len())
}

func TestGetAndReset(t *testing.T) {
	var builds atomic.Int32
	m := NewManager(countingBuilder(&builds), WithIdleTimeout(time.Hour))
	defer m.Close()

	_, err := m.Get("a")
	require.ErrorIs(t, err, ErrVisitorNotFound)

	sh, err := m.Ensure(context.Background(), "a")
	require.NoError(t, err)
	sh.Start()

	require.NoError(t, m.Reset(context.Background(), "a"))
	_, err = m.Get("a")
	require.ErrorIs(t, err, ErrVisitorNotFound)
	require.ErrorIs(t, m.Reset(context.Background(), "a"), ErrVisitorNotFound)

	fresh, err := m.Ensure(context.Background(), "a")
	require.NoError(t, err)
	require.NotSame(t, sh, fresh)
	require.Equal(t, shell.ViewLanding, fresh.State().View)
}

func TestResetPurgesStoredFlags(t *testing.T) {
	store := shell.NewMemoryStore()
	build := func(ctx context.Context, visitorID string) (*shell.Shell, error) {
		return shell.New(ctx, shell.Config{
			VisitorID:   visitorID,
			Chats:       echoChats{},
			Synthesizer: silentSynth{},
			Store:       shell.Namespace(store, visitorID),
		})
	}
	m := NewManager(build, WithIdleTimeout(time.Hour), WithPurger(store))
	defer m.Close()

	sh, err := m.Ensure(context.Background(), "a")
	require.NoError(t, err)
	require.NoError(t, sh.AcceptConsent(context.Background()))
	other, err := m.Ensure(context.Background(), "b")
	require.NoError(t, err)
	require.NoError(t, other.AcceptConsent(context.Background()))

	require.NoError(t, m.Reset(context.Background(), "a"))
	fresh, err := m.Ensure(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, fresh.State().ConsentVisible)

	_, ok, _ := store.Get(context.Background(), shell.VisitorPrefix("b")+shell.ConsentKey)
	require.True(t, ok)
}

func TestShutdownExpiredRetiresIdleVisitors(t *testing.T) {
	var builds atomic.Int32
	m := NewManager(countingBuilder(&builds), WithIdleTimeout(time.Minute))
	defer m.Close()

	clock := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	m.mu.Lock()
	m.now = func() time.Time { return clock }
	m.mu.Unlock()

	_, err := m.Ensure(context.Background(), "old")
	require.NoError(t, err)
	clock = clock.Add(45 * time.Second)
	_, err = m.Ensure(context.Background(), "recent")
	require.NoError(t, err)

	clock = clock.Add(30 * time.Second)
	require.Equal(t, 1, m.shutdownExpired())
	_, err = m.Get("old")
	require.ErrorIs(t, err, ErrVisitorNotFound)
	_, err = m.Get("recent")
	require.NoError(t, err)
}

func TestCloseRejectsNewVisitors(t *testing.T) {
	var builds atomic.Int32
	m := NewManager(countingBuilder(&builds))
	_, err := m.Ensure(context.Background(), "a")
	require.NoError(t, err)

	m.Close()
	require.Zero(t, m.Len())
	_, err = m.Ensure(context.Background(), "b")
	require.Error(t, err)
	m.Close()
}
