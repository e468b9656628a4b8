package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type counter struct {
	N     int
	Items []string
}

func TestStore_UpdateNotifiesInOrder(t *testing.T) {
	s := New(counter{})

	var seen []int
	cancel := s.Subscribe(func(c counter) { seen = append(seen, c.N) })

	s.Update(func(c *counter) { c.N = 1 })
	s.Update(func(c *counter) { c.N++ })
	require.Equal(t, []int{1, 2}, seen)
	require.Equal(t, 2, s.Get().N)

	cancel()
	cancel()
	s.Update(func(c *counter) { c.N = 10 })
	require.Equal(t, []int{1, 2}, seen)
}

func TestStore_MultipleSubscribers(t *testing.T) {
	s := New(counter{})

	var a, b int
	s.Subscribe(func(c counter) { a = c.N })
	cancelB := s.Subscribe(func(c counter) { b = c.N })
	cancelB()

	got := s.Update(func(c *counter) { c.N = 5 })
	require.Equal(t, 5, got.N)
	require.Equal(t, 5, a)
	require.Zero(t, b)
}

func TestStore_SubscriberMayReadStore(t *testing.T) {
	s := New(counter{})

	var read int
	s.Subscribe(func(counter) { read = s.Get().N })
	s.Update(func(c *counter) { c.N = 3 })
	require.Equal(t, 3, read)
}
