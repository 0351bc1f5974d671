package printer

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverHosts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	found, err := DiscoverHosts(context.Background(), []string{"127.0.0.2", "127.0.0.1"}, DiscoverOptions{
		Port:         port,
		ProbeTimeout: 200 * time.Millisecond,
		Workers:      2,
	})
	require.NoError(t, err)
	assert.Contains(t, found, net.JoinHostPort("127.0.0.1", portStr))
}

func TestDiscoverHosts_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DiscoverHosts(ctx, []string{"127.0.0.1"}, DiscoverOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCompareAddr(t *testing.T) {
	assert.Negative(t, compareAddr("10.0.0.2:9100", "10.0.0.10:9100"))
	assert.Positive(t, compareAddr("10.0.0.10:9100", "10.0.0.2:9100"))
	assert.Zero(t, compareAddr("x", "x"))
}
