package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each Azure-backed Socket keeps its own matchesFilter/SetSubscribe copy
// (blobSocket, queueSocket, tableSocket) since none of them share a base
// type with tcpSocket; exercised here without a live Azure backend since
// filtering is pure in-memory state.

func Test_BlobSocket_SetSubscribe_RejectsNonSub(t *testing.T) {
	s := &blobSocket{kind: KindPub}
	assert.ErrorIs(t, s.SetSubscribe([]byte("x")), ErrNotSubSocket)
}

func Test_BlobSocket_MatchesFilter_NoSubsAcceptsEverything(t *testing.T) {
	s := &blobSocket{kind: KindSub}
	assert.True(t, s.matchesFilter([]byte("anything")))
}

func Test_BlobSocket_MatchesFilter_PrefixMatch(t *testing.T) {
	s := &blobSocket{kind: KindSub}
	require.NoError(t, s.SetSubscribe([]byte("weather.")))

	assert.True(t, s.matchesFilter([]byte("weather.sf")))
	assert.False(t, s.matchesFilter([]byte("sports.nba")))
}

func Test_QueueSocket_MatchesFilter_PrefixMatch(t *testing.T) {
	s := &queueSocket{kind: KindSub}
	require.NoError(t, s.SetSubscribe([]byte("a")))
	require.NoError(t, s.SetSubscribe([]byte("b")))

	assert.True(t, s.matchesFilter([]byte("alpha")))
	assert.True(t, s.matchesFilter([]byte("beta")))
	assert.False(t, s.matchesFilter([]byte("gamma")))
}

func Test_TableSocket_SetSubscribe_RejectsNonSub(t *testing.T) {
	s := &tableSocket{kind: KindRouter}
	assert.ErrorIs(t, s.SetSubscribe([]byte("x")), ErrNotSubSocket)
}

func Test_TableSocket_MatchesFilter_PrefixMatch(t *testing.T) {
	s := &tableSocket{kind: KindSub}
	require.NoError(t, s.SetSubscribe([]byte("x")))

	assert.True(t, s.matchesFilter([]byte("xyz")))
	assert.False(t, s.matchesFilter([]byte("abc")))
}
