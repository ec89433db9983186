package ssh

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netshellpro/netshellpro/simulate"
)

func startSimulator(t *testing.T) *simulate.Server {
	t.Helper()
	srv, err := simulate.Start(&simulate.Config{
		Listen: "127.0.0.1:0",
		Devices: map[string]simulate.DeviceConfig{
			"admin": {Hostname: "nx-sim-01", Password: "admin", PageSize: 20, Banner: "Nexus simulator"},
		},
	})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func simInfo(srv *simulate.Server, password string) *ConnectionInfo {
	return &ConnectionInfo{Host: "127.0.0.1", Port: srv.Port(), Username: "admin", Password: password}
}

func integrationFramer(s Shell) *Framer {
	return NewFramer(s, FramerOptions{PollTimeout: 200 * time.Millisecond, MaxIdlePolls: 10})
}

func TestConnectAndExchangeAgainstSimulator(t *testing.T) {
	srv := startSimulator(t)
	client := NewClient(&Config{ConnectTimeout: 5 * time.Second})

	sess, err := client.Connect(context.Background(), simInfo(srv, "admin"))
	require.NoError(t, err)
	defer sess.Close()
	assert.Equal(t, StateReady, sess.State())

	f := integrationFramer(sess)
	banner, err := f.ReadFrame()
	require.NoError(t, err)
	assert.True(t, banner.Complete)
	assert.Contains(t, banner.Text, "Nexus simulator")

	frame, err := f.Exchange("show version")
	require.NoError(t, err)
	assert.True(t, frame.Complete)
	assert.Contains(t, frame.Text, "NXOS: version 9.3(8)")

	// 分页开启时应自动翻页并取得完整配置
	frame, err = f.Exchange("show running-config")
	require.NoError(t, err)
	assert.True(t, frame.Complete)
	assert.Greater(t, frame.Pages, 0)
	assert.Contains(t, frame.Text, "interface Ethernet1/12")
	assert.NotContains(t, frame.Text, "--More--")

	frame, err = f.Exchange("show bgp summary")
	require.NoError(t, err)
	assert.Contains(t, frame.Text, "% Invalid command")
}

func TestConnectRejectsBadPassword(t *testing.T) {
	srv := startSimulator(t)
	client := NewClient(&Config{ConnectTimeout: 5 * time.Second})

	_, err := client.Connect(context.Background(), simInfo(srv, "wrong"))
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, srv.Port(), ce.Port)
}

func TestConnectFailsFastOnUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	client := NewClient(&Config{ConnectTimeout: time.Second})
	start := time.Now()
	_, err = client.Connect(context.Background(), &ConnectionInfo{Host: "127.0.0.1", Port: port, Username: "a", Password: "b"})
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Less(t, time.Since(start), 3*time.Second, "连接失败应在超时内返回")
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := startSimulator(t)
	sess, err := NewClient(nil).Connect(context.Background(), simInfo(srv, "admin"))
	require.NoError(t, err)

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
	assert.Equal(t, StateClosed, sess.State())

	_, err = sess.Receive(10 * time.Millisecond)
	assert.True(t, errors.Is(err, ErrSessionClosed))
	assert.ErrorIs(t, sess.Send("show version\n"), ErrSessionClosed)
}

func TestReceiveTimeout(t *testing.T) {
	srv := startSimulator(t)
	sess, err := NewClient(nil).Connect(context.Background(), simInfo(srv, "admin"))
	require.NoError(t, err)
	defer sess.Close()

	// 读空 banner 与提示符
	_, err = integrationFramer(sess).ReadFrame()
	require.NoError(t, err)

	_, err = sess.Receive(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "connecting", StateConnecting.String())
}
