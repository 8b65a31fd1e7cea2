package markerstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markers.sqlite3")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestLastRedirectRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	_, ok, err := s.LastRedirect()
	require.NoError(t, err)
	assert.False(t, ok)

	stamp := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.SetLastRedirect(stamp))

	got, ok, err := s.LastRedirect()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stamp.UnixMilli(), got.UnixMilli())
}

func TestReturnPathRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	require.NoError(t, s.SetReturnPath("/mail/inbox"))
	p, ok, err := s.ReturnPath()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/mail/inbox", p)

	require.NoError(t, s.ClearReturnPath())
	_, ok, err = s.ReturnPath()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.sqlite3")
	s, err := Open(path)
	require.NoError(t, err)

	stamp := time.Now()
	require.NoError(t, s.SetLastRedirect(stamp))
	require.NoError(t, s.Close())

	// A full restart must still observe the recent redirect.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.LastRedirect()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stamp.UnixMilli(), got.UnixMilli())
}

func Test401LogEvictsOldest(t *testing.T) {
	s, _ := openTestStore(t)

	base := time.Unix(1700000000, 0)
	for i := 0; i < EventCap+10; i++ {
		require.NoError(t, s.Record401(base.Add(time.Duration(i)*time.Second)))
	}

	events, err := s.Recent401s(0)
	require.NoError(t, err)
	require.Len(t, events, EventCap)

	// Oldest first, and the first ten entries must have been evicted.
	assert.Equal(t, base.Add(10*time.Second).UnixMilli(), events[0].UnixMilli())
	assert.Equal(t, base.Add(time.Duration(EventCap+9)*time.Second).UnixMilli(), events[len(events)-1].UnixMilli())
}

func TestRecent401sLimit(t *testing.T) {
	s, _ := openTestStore(t)

	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record401(base.Add(time.Duration(i)*time.Second)))
	}

	events, err := s.Recent401s(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), events[0].UnixMilli())
}

func TestMemoryStoreBehavesLikeSQLite(t *testing.T) {
	m := NewMemory()

	_, ok, err := m.LastRedirect()
	require.NoError(t, err)
	assert.False(t, ok)

	stamp := time.Now()
	require.NoError(t, m.SetLastRedirect(stamp))
	got, ok, err := m.LastRedirect()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stamp, got)

	for i := 0; i < EventCap+5; i++ {
		require.NoError(t, m.Record401(stamp.Add(time.Duration(i)*time.Second)))
	}
	events, err := m.Recent401s(0)
	require.NoError(t, err)
	assert.Len(t, events, EventCap)
}
