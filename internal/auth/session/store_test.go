package session

import (
	"sync"
	"testing"
	"time"

	"github.com/scrum0/scrum0/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestStoreInitialState(t *testing.T) {
	t.Parallel()

	st := NewStore().State()
	require.Nil(t, st.User)
	require.True(t, st.Loading)
	require.Empty(t, st.Error)
	require.Nil(t, st.Connection)
	require.Equal(t, domain.PhaseUninitialized, st.Phase)
}

func TestStorePhase(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.set(withLoading(true))
	require.Equal(t, domain.PhaseLoading, s.State().Phase)

	s.set(withLoading(false))
	require.Equal(t, domain.PhaseAnonymous, s.State().Phase)

	s.set(withUser(&domain.Profile{ID: "u1"}))
	require.Equal(t, domain.PhaseAuthenticated, s.State().Phase)

	s.set(withError("boom"))
	require.Equal(t, domain.PhaseErrored, s.State().Phase)
}

func TestStoreEverySetNotifiesOnce(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var got []bool
	s.Subscribe(func(st State) { got = append(got, st.Loading) })

	s.set(withLoading(false))
	s.set(withLoading(true))
	s.set(withLoading(true))

	require.Equal(t, []bool{false, true, true}, got)
}

func TestStoreRegistrationOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var order []string
	s.Subscribe(func(State) { order = append(order, "a") })
	s.Subscribe(func(State) { order = append(order, "b") })
	s.Subscribe(func(State) { order = append(order, "c") })

	s.set(withLoading(false))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestStoreUnsubscribe(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var a, b int
	unsubA := s.Subscribe(func(State) { a++ })
	s.Subscribe(func(State) { b++ })

	s.set(withLoading(false))
	unsubA()
	unsubA()
	s.set(withLoading(true))

	require.Equal(t, 1, a)
	require.Equal(t, 2, b)
}

func TestStoreUnsubscribeDuringNotification(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var unsubB func()
	var b, c int
	s.Subscribe(func(State) { unsubB() })
	unsubB = s.Subscribe(func(State) { b++ })
	s.Subscribe(func(State) { c++ })

	require.NotPanics(t, func() { s.set(withLoading(false)) })
	require.Zero(t, b)
	require.Equal(t, 1, c)

	s.set(withLoading(true))
	require.Zero(t, b)
	require.Equal(t, 2, c)
}

func TestStoreReentrantSetIsQueued(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var seenA, seenB []string
	s.Subscribe(func(st State) {
		seenA = append(seenA, st.Error)
		if st.Error == "first" {
			s.set(withError("second"))
		}
	})
	s.Subscribe(func(st State) { seenB = append(seenB, st.Error) })

	s.set(withError("first"))

	require.Equal(t, []string{"first", "second"}, seenA)
	require.Equal(t, []string{"first", "second"}, seenB)
	require.Equal(t, "second", s.State().Error)
}

func TestStoreRecoversFromPanickingObserver(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var got []string
	s.Subscribe(func(st State) {
		if st.Error == "boom" {
			panic("observer failed")
		}
	})
	s.Subscribe(func(st State) { got = append(got, st.Error) })

	require.Panics(t, func() { s.set(withError("boom")) })

	s.set(withError("after"))
	s.set(withError(""))
	require.Equal(t, []string{"after", ""}, got)
}

func TestStoreStateIsACopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.set(
		withUser(&domain.Profile{ID: "u1", Username: "alice"}),
		withConnection(domain.ConnectionStatus{Connected: true, Configured: true}),
	)

	st := s.State()
	st.User.Username = "mallory"
	st.Connection.Connected = false

	again := s.State()
	require.Equal(t, "alice", again.User.Username)
	require.True(t, again.Connection.Connected)
}

func TestStoreConcurrentSets(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var mu sync.Mutex
	rounds := 0
	s.Subscribe(func(State) {
		mu.Lock()
		rounds++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.set(withLoading(false))
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return rounds == 50
	}, time.Second, 5*time.Millisecond)
}
