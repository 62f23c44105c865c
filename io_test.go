package spdnet

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atsika/spdnet/transport"
)

// connectedPair binds a router and connects a node socket to it over tcp,
// returning both wrapped as bare Nodes against an unpooled Context.
func connectedPair(t *testing.T, addr string) (router, node *Node) {
	t.Helper()
	ctx := newTestContext(t)

	routerSock, err := transport.Open("tcp", KindRouter)
	require.NoError(t, err)
	require.NoError(t, routerSock.Bind(addr))
	t.Cleanup(func() { _ = routerSock.Close() })

	nodeSock, err := transport.Open("tcp", KindNode)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nodeSock.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := nodeSock.Connect(addr); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("could not connect node socket to router")
		}
		time.Sleep(10 * time.Millisecond)
	}

	router = &Node{ctx: ctx, kind: KindRouter, sock: routerSock}
	node = &Node{ctx: ctx, kind: KindNode, sock: nodeSock}
	return router, node
}

func Test_Sendmsg_Recvmsg_RoundTrip(t *testing.T) {
	router, node := connectedPair(t, "127.0.0.1:17801")

	out := NewMessageData([]byte("id"), []byte("hdr"), []byte("payload"))
	defer out.Close()
	require.NoError(t, node.Sendmsg(out))

	in := NewMessage()
	defer in.Close()
	require.NoError(t, router.Recvmsg(in))

	assert.Equal(t, []byte("id"), in.Get(PartSockid).Bytes())
	assert.Equal(t, []byte("hdr"), in.Get(PartHeader).Bytes())
	assert.Equal(t, []byte("payload"), in.Get(PartContent).Bytes())

	meta, ok := in.Meta()
	require.True(t, ok)
	assert.Equal(t, KindNode, meta.NodeType)

	envelope := in.Envelope()
	assert.Equal(t, []byte{byte(KindNode)}, envelope.Bytes())
}

func Test_RecvmsgTimeout_ExpiresWithoutData(t *testing.T) {
	router, _ := connectedPair(t, "127.0.0.1:17802")

	msg := NewMessage()
	defer msg.Close()
	err := router.RecvmsgTimeout(msg, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func Test_RecvmsgTimeout_SucceedsOnceDataArrives(t *testing.T) {
	router, node := connectedPair(t, "127.0.0.1:17803")

	out := NewMessageData(nil, []byte(VerbAlive), nil)
	defer out.Close()
	require.NoError(t, node.Sendmsg(out))

	msg := NewMessage()
	defer msg.Close()
	require.NoError(t, router.RecvmsgTimeout(msg, time.Second))
	assert.Equal(t, VerbAlive, string(msg.Get(PartHeader).Bytes()))
}

func Test_Recvmsg_DrainsFramingErrorAndRecovers(t *testing.T) {
	router, node := connectedPair(t, "127.0.0.1:17804")

	// A malformed group: 8th frame still marked "more" instead of ending
	// the group (spec.md §8 scenario 5). The leading frame stands in for
	// the type byte a KindNode sender's Sendmsg would normally prepend,
	// which router-side Recvmsg always reads as the envelope frame.
	sock := node.sock
	require.NoError(t, sock.SendFrame([]byte{byte(KindNode)}, true))
	require.NoError(t, sock.SendFrame([]byte("id"), true))
	require.NoError(t, sock.SendFrame(nil, true))
	require.NoError(t, sock.SendFrame([]byte("hdr"), true))
	require.NoError(t, sock.SendFrame(nil, true))
	require.NoError(t, sock.SendFrame([]byte("content"), true))
	require.NoError(t, sock.SendFrame(nil, true))
	require.NoError(t, sock.SendFrame([]byte("meta-but-more"), true)) // malformed

	bad := NewMessage()
	err := router.Recvmsg(bad)
	assert.ErrorIs(t, err, ErrFramingError)
	bad.Close()

	// A subsequent, well-formed send must be received cleanly — no stale
	// suffix left over from the drained group.
	good := NewMessageData(nil, []byte("next"), nil)
	defer good.Close()
	require.NoError(t, node.Sendmsg(good))

	msg := NewMessage()
	defer msg.Close()
	require.NoError(t, router.Recvmsg(msg))
	assert.Equal(t, "next", string(msg.Get(PartHeader).Bytes()))
}

func Test_RecvmsgAsync_FiresCallbackOnMessage(t *testing.T) {
	router, node := connectedPair(t, "127.0.0.1:17805")

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	var gotHeader string
	require.NoError(t, router.RecvmsgAsync(func(n *Node, msg *Message, arg any, err error) {
		defer wg.Done()
		gotErr = err
		if msg != nil {
			gotHeader = string(msg.Get(PartHeader).Bytes())
			msg.Close()
		}
	}, nil, time.Second))

	out := NewMessageData(nil, []byte("async-hello"), nil)
	defer out.Close()
	require.NoError(t, node.Sendmsg(out))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		router.PollAsync()
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	require.NoError(t, gotErr)
	assert.Equal(t, "async-hello", gotHeader)
}

func Test_RecvmsgAsync_FiresTimeoutWhenDeadlinePasses(t *testing.T) {
	router, _ := connectedPair(t, "127.0.0.1:17806")

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	require.NoError(t, router.RecvmsgAsync(func(n *Node, msg *Message, arg any, err error) {
		defer wg.Done()
		gotErr = err
	}, nil, 20*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	router.PollAsync()
	wg.Wait()

	assert.ErrorIs(t, gotErr, ErrTimeout)
}
