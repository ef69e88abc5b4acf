//go:build linux
// +build linux

package hnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func waitFor(t *testing.T, fd int, events int16) {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, 2000)
		if err == unix.EINTR {
			continue
		}
		require.NoError(t, err)
		require.Equal(t, 1, n, "fd %d not ready", fd)
		return
	}
}

func closeOnCleanup(t *testing.T, fd int) {
	t.Cleanup(func() { unix.Close(fd) })
}

func TestTCPConnectAcceptLoopback(t *testing.T) {
	ln, err := TCPServer(0, "127.0.0.1", 16, false)
	require.NoError(t, err)
	closeOnCleanup(t, ln)
	port, err := LocalPort(ln)
	require.NoError(t, err)
	require.NotZero(t, port)

	c, err := TCPNonblockConnect("127.0.0.1", port)
	require.NoError(t, err)
	closeOnCleanup(t, c)
	waitFor(t, c, unix.POLLOUT)
	assert.NoError(t, SockError(c))

	waitFor(t, ln, unix.POLLIN)
	fd, sa, err := TCPAccept(ln)
	require.NoError(t, err)
	closeOnCleanup(t, fd)

	ip, peerPort := IPPort(sa)
	assert.Equal(t, "127.0.0.1", ip)
	localPort, err := LocalPort(c)
	require.NoError(t, err)
	assert.Equal(t, localPort, peerPort)

	_, err = unix.Write(c, []byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := unix.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestTCPAcceptWouldBlock(t *testing.T) {
	ln, err := TCPServer(0, "127.0.0.1", 16, true)
	require.NoError(t, err)
	closeOnCleanup(t, ln)
	require.NoError(t, Nonblock(ln))

	_, _, err = TCPAccept(ln)
	require.Error(t, err)
	assert.True(t, IsTemporaryError(err))

	var herr *Error
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, "accept", herr.Op)
}

func TestTCPConnectRefused(t *testing.T) {
	ln, err := TCPServer(0, "127.0.0.1", 16, false)
	require.NoError(t, err)
	port, err := LocalPort(ln)
	require.NoError(t, err)
	require.NoError(t, unix.Close(ln))

	c, err := TCPNonblockConnect("127.0.0.1", port)
	if err != nil {
		assert.ErrorIs(t, err, unix.ECONNREFUSED)
		return
	}
	closeOnCleanup(t, c)
	waitFor(t, c, unix.POLLOUT)
	assert.ErrorIs(t, SockError(c), unix.ECONNREFUSED)
}

func TestTCPServerAddressInUse(t *testing.T) {
	ln, err := TCPServer(0, "127.0.0.1", 16, false)
	require.NoError(t, err)
	closeOnCleanup(t, ln)
	port, err := LocalPort(ln)
	require.NoError(t, err)

	_, err = TCPServer(port, "127.0.0.1", 16, false)
	assert.ErrorIs(t, err, unix.EADDRINUSE)
}

func TestTCPServerRejectsWrongFamily(t *testing.T) {
	_, err := TCPServer(0, "::1", 16, false)
	assert.ErrorIs(t, err, ErrNoAddress)

	_, err = TCP6Server(0, "127.0.0.1", 16, false)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestResolveBadPort(t *testing.T) {
	_, err := TCPNonblockConnect("127.0.0.1", 70000)
	assert.ErrorIs(t, err, ErrBadPort)

	_, err = UDPServer(-1, "", false)
	assert.ErrorIs(t, err, ErrBadPort)
}

func TestResolveWildcardAndLoopback(t *testing.T) {
	sas, err := resolve("", 80, unix.AF_INET, true)
	require.NoError(t, err)
	require.Len(t, sas, 1)
	ip, port := IPPort(sas[0])
	assert.Equal(t, "0.0.0.0", ip)
	assert.Equal(t, 80, port)

	sas, err = resolve("", 80, unix.AF_UNSPEC, false)
	require.NoError(t, err)
	require.Len(t, sas, 2)
	ip, _ = IPPort(sas[0])
	assert.Equal(t, "::1", ip)
	ip, _ = IPPort(sas[1])
	assert.Equal(t, "127.0.0.1", ip)
}

func TestSocketOptions(t *testing.T) {
	ln, err := TCPServer(0, "127.0.0.1", 16, false)
	require.NoError(t, err)
	closeOnCleanup(t, ln)
	port, err := LocalPort(ln)
	require.NoError(t, err)
	c, err := TCPNonblockConnect("127.0.0.1", port)
	require.NoError(t, err)
	closeOnCleanup(t, c)

	require.NoError(t, EnableTCPNoDelay(c))
	v, err := unix.GetsockoptInt(c, unix.IPPROTO_TCP, unix.TCP_NODELAY)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, KeepAlive(c, 300))
	v, err = unix.GetsockoptInt(c, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE)
	require.NoError(t, err)
	assert.Equal(t, 300, v)
	v, err = unix.GetsockoptInt(c, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL)
	require.NoError(t, err)
	assert.Equal(t, 100, v)
	v, err = unix.GetsockoptInt(c, unix.IPPROTO_TCP, unix.TCP_KEEPCNT)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	require.NoError(t, KeepAlive(c, 2))
	v, err = unix.GetsockoptInt(c, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, SendTimeout(c, 1500))
	require.NoError(t, SetRecvBuffer(c, 64*1024))
	require.NoError(t, SetSendBuffer(c, 64*1024))

	flags, err := unix.FcntlInt(uintptr(c), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.O_NONBLOCK)
}

func TestUDPEchoLoopback(t *testing.T) {
	srv, err := UDPServer(0, "127.0.0.1", false)
	require.NoError(t, err)
	closeOnCleanup(t, srv)
	port, err := LocalPort(srv)
	require.NoError(t, err)

	c, n, err := UDPNonblockSendTo("127.0.0.1", port, []byte("hello"))
	require.NoError(t, err)
	closeOnCleanup(t, c)
	assert.Equal(t, 5, n)

	buf := make([]byte, 64)
	waitFor(t, srv, unix.POLLIN)
	n, sa, err := RecvFrom(srv, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	ip, _ := IPPort(sa)
	assert.Equal(t, "127.0.0.1", ip)

	_, err = SendTo(srv, buf[:n], sa)
	require.NoError(t, err)

	waitFor(t, c, unix.POLLIN)
	n, _, err = RecvFrom(c, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestRecvFromWouldBlock(t *testing.T) {
	srv, err := UDPServer(0, "127.0.0.1", true)
	require.NoError(t, err)
	closeOnCleanup(t, srv)
	require.NoError(t, Nonblock(srv))

	_, _, err = RecvFrom(srv, make([]byte, 8))
	assert.True(t, IsTemporaryError(err))
}

func TestCloseFd(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC))
	defer unix.Close(fds[1])

	assert.NoError(t, CloseFd(fds[0]))
	assert.NoError(t, CloseFd(fds[0]), "closing twice is a no-op")
	assert.False(t, isFDValid(fds[0]))
	assert.True(t, isFDValid(fds[1]))
}

func TestRecvBatch(t *testing.T) {
	srv, err := UDPServer(0, "127.0.0.1", false)
	require.NoError(t, err)
	closeOnCleanup(t, srv)
	port, err := LocalPort(srv)
	require.NoError(t, err)

	c, _, err := UDPNonblockSendTo("127.0.0.1", port, []byte("one"))
	require.NoError(t, err)
	closeOnCleanup(t, c)
	cport, err := LocalPort(c)
	require.NoError(t, err)
	sas, err := Resolve("127.0.0.1", port)
	require.NoError(t, err)
	for _, msg := range []string{"two", "three"} {
		_, err := SendTo(c, []byte(msg), sas[0])
		require.NoError(t, err)
	}

	b := NewBatch(8, 64)
	waitFor(t, srv, unix.POLLIN)
	n, err := RecvBatch(srv, b)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 3, b.Len())

	var got []string
	for i := 0; i < b.Len(); i++ {
		data, sa := b.Datagram(i)
		got = append(got, string(data))
		ip, p := IPPort(sa)
		assert.Equal(t, "127.0.0.1", ip)
		assert.Equal(t, cport, p)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)

	_, err = RecvBatch(srv, b)
	assert.True(t, IsTemporaryError(err))
	assert.Zero(t, b.Len())
}

func TestRecvBatchTruncatesToSlot(t *testing.T) {
	srv, err := UDP6Server(0, "::1", false)
	if err != nil {
		t.Skipf("no IPv6 loopback: %v", err)
	}
	closeOnCleanup(t, srv)
	port, err := LocalPort(srv)
	require.NoError(t, err)

	c, _, err := UDPNonblockSendTo("::1", port, []byte("0123456789"))
	require.NoError(t, err)
	closeOnCleanup(t, c)

	b := NewBatch(2, 4)
	waitFor(t, srv, unix.POLLIN)
	n, err := RecvBatch(srv, b)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	data, sa := b.Datagram(0)
	assert.Equal(t, "0123", string(data))
	ip, _ := IPPort(sa)
	assert.Equal(t, "::1", ip)
}
