package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPair(t *testing.T, serverKind, clientKind SocketKind) (server, client Socket) {
	t.Helper()
	srv, err := (tcpDriver{}).NewSocket(serverKind)
	require.NoError(t, err)
	require.NoError(t, srv.Bind("127.0.0.1:0"))

	addr := srv.(*tcpSocket).ln.Addr().String()

	cli, err := (tcpDriver{}).NewSocket(clientKind)
	require.NoError(t, err)
	require.NoError(t, cli.Connect(addr))

	// Give the accept loop a moment to register the inbound connection.
	deadline := time.Now().Add(time.Second)
	for {
		if _, err := srv.(*tcpSocket).currentPeer(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server never saw an accepted peer")
		}
		time.Sleep(time.Millisecond)
	}
	return srv, cli
}

func Test_TCPSocket_RoundTrip_NodeRouter(t *testing.T) {
	router, node := dialPair(t, KindRouter, KindNode)
	defer router.Close()
	defer node.Close()

	require.NoError(t, node.SendFrame([]byte("sockid"), true))
	require.NoError(t, node.SendFrame([]byte("header"), false))

	payload, more, err := router.RecvFrame()
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []byte("sockid"), payload)

	payload, more, err = router.RecvFrame()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []byte("header"), payload)
}

func Test_TCPSocket_RouterReply_SameConn(t *testing.T) {
	router, node := dialPair(t, KindRouter, KindNode)
	defer router.Close()
	defer node.Close()

	require.NoError(t, node.SendFrame([]byte("ping"), false))
	_, _, err := router.RecvFrame()
	require.NoError(t, err)

	require.NoError(t, router.SendFrame([]byte("pong"), false))
	payload, more, err := node.RecvFrame()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []byte("pong"), payload)
}

func Test_TCPSocket_PollIn_TimesOutWithoutData(t *testing.T) {
	router, node := dialPair(t, KindRouter, KindNode)
	defer router.Close()
	defer node.Close()

	ready, err := node.PollIn(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
}

func Test_TCPSocket_PollIn_ReadyAfterSend(t *testing.T) {
	router, node := dialPair(t, KindRouter, KindNode)
	defer router.Close()
	defer node.Close()

	require.NoError(t, node.SendFrame([]byte("x"), false))
	ready, err := router.PollIn(time.Second)
	require.NoError(t, err)
	assert.True(t, ready)
}

func Test_TCPSocket_Drain_ConsumesRestOfGroup(t *testing.T) {
	router, node := dialPair(t, KindRouter, KindNode)
	defer router.Close()
	defer node.Close()

	require.NoError(t, node.SendFrame([]byte("a"), true))
	require.NoError(t, node.SendFrame([]byte("b"), true))
	require.NoError(t, node.SendFrame([]byte("c"), false))

	require.NoError(t, router.Drain())

	// The group is fully consumed; a fresh send/recv pair still works.
	require.NoError(t, node.SendFrame([]byte("next"), false))
	payload, more, err := router.RecvFrame()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []byte("next"), payload)
}

func Test_TCPSocket_SendFrame_NoPeer(t *testing.T) {
	s, err := (tcpDriver{}).NewSocket(KindNode)
	require.NoError(t, err)
	defer s.Close()

	err = s.SendFrame([]byte("x"), false)
	assert.ErrorIs(t, err, ErrNoPeer)
}

func Test_TCPSocket_SetSubscribe_RejectsNonSub(t *testing.T) {
	s, err := (tcpDriver{}).NewSocket(KindNode)
	require.NoError(t, err)
	defer s.Close()

	err = s.SetSubscribe([]byte("topic"))
	assert.ErrorIs(t, err, ErrNotSubSocket)
}

func Test_TCPSocket_PubSub_FiltersByPrefix(t *testing.T) {
	pub, sub := dialPair(t, KindPub, KindSub)
	defer pub.Close()
	defer sub.Close()

	require.NoError(t, sub.SetSubscribe([]byte("sports.")))

	require.NoError(t, pub.SendFrame([]byte("weather.rain"), false))
	require.NoError(t, pub.SendFrame([]byte("sports.score"), false))

	payload, more, err := sub.RecvFrame()
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []byte("sports.score"), payload)
}
