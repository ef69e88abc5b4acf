//go:build linux
// +build linux

package echo

import (
	"net"
	"strconv"
	"time"

	"github.com/fzft/hevent/he"
	"github.com/fzft/hevent/hnet"
	"github.com/fzft/hevent/log"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type Client struct {
	node

	// OnReply, when set, receives every chunk read back from the server.
	// It runs on the loop goroutine and must not keep data.
	OnReply func(data []byte)

	conn    *session
	dialFd  int
	udpFd   int
	udpPeer unix.Sockaddr
	backoff *backoff.Backoff
	retryAt time.Time
	closing bool

	lines LineReader
	in    *input
}

// NewClient creates the loop and starts connecting (TCP) or sends the
// greeting datagram (UDP).
func NewClient(cfg Config) (*Client, error) {
	c := &Client{dialFd: -1, udpFd: -1}
	if err := c.setup(cfg); err != nil {
		return nil, err
	}
	c.backoff = &backoff.Backoff{
		Min:    cfg.ReconnectMin,
		Max:    cfg.ReconnectMax,
		Factor: 2,
		Jitter: false,
	}
	c.onCron = c.maybeReconnect
	c.onFree = func(s *session) {
		if s == c.conn {
			c.conn = nil
		}
	}

	var err error
	if cfg.Proto == UDP {
		err = c.startUDP()
	} else {
		c.connect()
	}
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Interact makes the client forward lines read from lines to the server.
// Passing nil uses the terminal.
func (c *Client) Interact(lines LineReader) error {
	if lines == nil {
		lines = newTerminal()
	}
	in, err := newInput(lines)
	if err != nil {
		return err
	}
	if err := c.el.CreateFileEvent(in.r, he.Readable, c.readInputHandler, nil); err != nil {
		unix.Close(in.r)
		unix.Close(in.w)
		return err
	}
	c.lines = lines
	c.in = in
	go in.pump(c.cfg.Prompt)
	return nil
}

// Connected reports whether a TCP connection is established.
func (c *Client) Connected() bool {
	return c.conn != nil
}

func (c *Client) peer() string {
	return net.JoinHostPort(c.cfg.peerAddr(), strconv.Itoa(c.cfg.Port))
}

func (c *Client) connect() {
	c.stats.Connects++
	fd, err := hnet.TCPNonblockConnect(c.cfg.peerAddr(), c.cfg.Port)
	if err != nil {
		log.Logger.Warn("Could not connect socket", zap.String("peer", c.peer()), zap.Error(err))
		c.scheduleReconnect()
		return
	}
	if err := c.el.CreateFileEvent(fd, he.Writable, c.connectTCPHandler, nil); err != nil {
		log.Logger.Error("Unrecoverable error creating client file event", zap.Error(err))
		unix.Close(fd)
		c.scheduleReconnect()
		return
	}
	c.dialFd = fd
}

func (c *Client) scheduleReconnect() {
	if c.closing {
		return
	}
	d := c.backoff.Duration()
	c.retryAt = time.Now().Add(d)
	log.Logger.Info("reconnect scheduled", zap.String("peer", c.peer()), zap.Duration("in", d))
}

// maybeReconnect runs from the cron, so retries happen at cron granularity.
func (c *Client) maybeReconnect() {
	if c.cfg.Proto != TCP || c.conn != nil || c.retryAt.IsZero() || c.closing {
		return
	}
	if time.Now().Before(c.retryAt) {
		return
	}
	c.retryAt = time.Time{}
	c.connect()
}

func (c *Client) connectTCPHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	el.DeleteFileEvent(fd, he.Writable)
	c.dialFd = -1
	if err := hnet.SockError(fd); err != nil {
		log.Logger.Warn("client connect failed", zap.String("peer", c.peer()), zap.Error(err))
		unix.Close(fd)
		c.scheduleReconnect()
		return
	}
	if err := hnet.EnableTCPNoDelay(fd); err != nil {
		log.Logger.Debug("tcp nodelay", zap.Error(err))
	}
	if err := hnet.KeepAlive(fd, c.cfg.KeepAlive); err != nil {
		log.Logger.Debug("tcp keepalive", zap.Error(err))
	}

	sess := newSession(fd, c.peer())
	if err := el.CreateFileEvent(fd, he.Readable, c.readTCPHandler, sess); err != nil {
		log.Logger.Error("Could not register connection", zap.Error(err))
		unix.Close(fd)
		c.scheduleReconnect()
		return
	}
	c.sessions[fd] = sess
	c.conn = sess
	c.backoff.Reset()
	log.Logger.Info("Connected", zap.String("peer", sess.peer), zap.Stringer("session", sess.id))

	if len(c.cfg.Greeting) > 0 {
		if err := c.send(sess, c.cfg.Greeting); err != nil {
			log.Logger.Warn("Error writing greeting", zap.Error(err))
			c.free(sess)
			c.scheduleReconnect()
		}
	}
}

func (c *Client) readTCPHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	sess := clientData.(*session)
	n, err := unix.Read(fd, c.buf)
	if err != nil {
		if hnet.IsTemporaryError(err) {
			return
		}
		log.Logger.Info("Reading from server", zap.String("peer", sess.peer), zap.Error(err))
		c.free(sess)
		c.scheduleReconnect()
		return
	}
	if n == 0 {
		log.Logger.Info("Server closed connection", zap.String("peer", sess.peer))
		c.free(sess)
		c.scheduleReconnect()
		return
	}
	c.reply(c.buf[:n])
}

func (c *Client) reply(data []byte) {
	c.stats.BytesIn += uint64(len(data))
	log.Logger.Info("read", zap.ByteString("data", data))
	if c.OnReply != nil {
		c.OnReply(data)
	}
}

func (c *Client) startUDP() error {
	sas, err := hnet.Resolve(c.cfg.peerAddr(), c.cfg.Port)
	if err != nil {
		return err
	}
	fd, written, err := hnet.UDPNonblockSendTo(c.cfg.peerAddr(), c.cfg.Port, c.cfg.Greeting)
	if err != nil {
		log.Logger.Error("Could not create client UDP socket", zap.Error(err))
		return err
	}
	if err := c.el.CreateFileEvent(fd, he.Readable, c.readUDPHandler, nil); err != nil {
		log.Logger.Error("Unrecoverable error creating client file event", zap.Error(err))
		unix.Close(fd)
		return err
	}
	c.udpFd = fd
	c.udpPeer = sas[0]
	c.stats.BytesOut += uint64(written)
	return nil
}

func (c *Client) readUDPHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	n, sa, err := hnet.RecvFrom(fd, c.buf)
	if err != nil {
		if !hnet.IsTemporaryError(err) {
			log.Logger.Warn("Reading datagram", zap.Error(err))
		}
		return
	}
	c.stats.Datagrams++
	ip, port := hnet.IPPort(sa)
	log.Logger.Debug("datagram", zap.String("ip", ip), zap.Int("port", port))
	c.reply(c.buf[:n])
}

func (c *Client) readInputHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	n, err := unix.Read(fd, c.buf)
	if err != nil {
		if hnet.IsTemporaryError(err) {
			return
		}
		log.Logger.Warn("Reading input", zap.Error(err))
		n = 0
	}
	if n == 0 {
		log.Logger.Info("input closed, stopping")
		el.DeleteFileEvent(fd, he.Readable)
		el.Stop()
		return
	}
	c.forward(c.buf[:n])
}

func (c *Client) forward(line []byte) {
	if c.cfg.Proto == UDP {
		written, err := hnet.SendTo(c.udpFd, line, c.udpPeer)
		if err != nil {
			log.Logger.Warn("Error writing datagram", zap.Error(err))
			return
		}
		c.stats.BytesOut += uint64(written)
		return
	}
	if c.conn == nil {
		log.Logger.Warn("not connected, dropping input", zap.ByteString("data", line))
		return
	}
	if err := c.send(c.conn, line); err != nil {
		log.Logger.Warn("Error writing to server", zap.Error(err))
		c.free(c.conn)
		c.scheduleReconnect()
	}
}

// Close releases the connection, the input pipe and the loop. A prompt still
// blocked on the terminal is closed too.
func (c *Client) Close() error {
	c.closing = true
	return c.close(func() error {
		if c.dialFd >= 0 {
			c.el.DeleteFileEvent(c.dialFd, he.Writable)
			unix.Close(c.dialFd)
			c.dialFd = -1
		}
		if c.in != nil {
			c.el.DeleteFileEvent(c.in.r, he.Readable)
			unix.Close(c.in.r)
			c.in = nil
		}
		if c.lines != nil {
			c.lines.Close()
			c.lines = nil
		}
		if c.udpFd >= 0 {
			c.el.DeleteFileEvent(c.udpFd, he.Readable)
			err := unix.Close(c.udpFd)
			c.udpFd = -1
			if err != nil {
				return &hnet.Error{Op: "close", Err: err}
			}
		}
		return nil
	})
}
