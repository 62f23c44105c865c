package pool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spdnet "github.com/atsika/spdnet"
	"github.com/atsika/spdnet/pool"
)

func Test_DefaultPool_AddTracksAllNodes(t *testing.T) {
	p := pool.New()
	defer p.Close()

	ctx, err := spdnet.New(spdnet.WithPool(p))
	require.NoError(t, err)
	defer ctx.Close()

	n, err := spdnet.NewNode(ctx, spdnet.KindNode)
	require.NoError(t, err)

	assert.Equal(t, 1, p.AllNodes().Len())

	require.NoError(t, n.Destroy())
	assert.Equal(t, 0, p.AllNodes().Len())
}

func Test_DefaultPool_PutThenGetRecyclesSameNode(t *testing.T) {
	p := pool.New()
	defer p.Close()

	ctx, err := spdnet.New(spdnet.WithPool(p))
	require.NoError(t, err)
	defer ctx.Close()

	first, err := spdnet.NewNode(ctx, spdnet.KindNode)
	require.NoError(t, err)
	require.NoError(t, first.Destroy())

	second, err := spdnet.NewNode(ctx, spdnet.KindNode)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func Test_DefaultPool_ScanLoop_SendsKeepaliveWhenDue(t *testing.T) {
	const addr = "127.0.0.1:17712"

	p := pool.New(pool.WithScanInterval(5 * time.Millisecond))
	defer p.Close()

	ctx, err := spdnet.New(
		spdnet.WithPool(p),
		spdnet.WithMinAliveInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	defer ctx.Close()

	router, err := spdnet.NewNode(ctx, spdnet.KindRouter)
	require.NoError(t, err)
	defer router.Destroy()
	require.NoError(t, router.Bind(addr))

	node, err := spdnet.NewNode(ctx, spdnet.KindNode)
	require.NoError(t, err)
	defer node.Destroy()
	require.NoError(t, node.SetAlive(10 * time.Millisecond))
	require.NoError(t, node.Connect(addr))

	before := ctx.Metrics().GetAliveCount()
	require.Eventually(t, func() bool {
		return ctx.Metrics().GetAliveCount() > before
	}, 2*time.Second, 10*time.Millisecond, "pool scan loop should send ALIVE once the deadline is due")
}
