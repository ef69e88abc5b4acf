//go:build linux
// +build linux

package echo

import (
	"net"
	"os"
	"strconv"

	"github.com/fzft/hevent/he"
	"github.com/fzft/hevent/hnet"
	"github.com/fzft/hevent/log"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type Server struct {
	node
	fd    int
	batch *hnet.Batch
}

// NewServer binds the listening (TCP) or receiving (UDP) socket and
// registers it with a new loop.
func NewServer(cfg Config) (*Server, error) {
	s := &Server{fd: -1}
	if err := s.setup(cfg); err != nil {
		return nil, err
	}
	if err := s.listen(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *Server) listen() error {
	var (
		fd  int
		err error
		cfg = s.cfg
	)
	switch {
	case cfg.Proto == TCP && cfg.IPv6:
		fd, err = hnet.TCP6Server(cfg.Port, cfg.Addr, cfg.Backlog, cfg.ReusePort)
	case cfg.Proto == TCP:
		fd, err = hnet.TCPServer(cfg.Port, cfg.Addr, cfg.Backlog, cfg.ReusePort)
	case cfg.IPv6:
		fd, err = hnet.UDP6Server(cfg.Port, cfg.Addr, cfg.ReusePort)
	default:
		fd, err = hnet.UDPServer(cfg.Port, cfg.Addr, cfg.ReusePort)
	}
	if err != nil {
		log.Logger.Error("Could not create server listening socket", zap.String("proto", cfg.Proto), zap.Error(err))
		return err
	}
	if err := hnet.Nonblock(fd); err != nil {
		unix.Close(fd)
		return err
	}

	proc := s.acceptTCPHandler
	if cfg.Proto == UDP {
		proc = s.readUDPHandler
		s.batch = hnet.NewBatch(udpBatchSize, readBufferSize)
	}
	if err := s.el.CreateFileEvent(fd, he.Readable, proc, nil); err != nil {
		log.Logger.Error("Unrecoverable error creating server file event", zap.Error(err))
		unix.Close(fd)
		return err
	}
	s.fd = fd
	port, _ := hnet.LocalPort(fd)
	log.Logger.Info("listening", zap.String("proto", cfg.Proto), zap.String("addr", cfg.Addr), zap.Int("port", port))
	return nil
}

// Port returns the bound port, useful when listening on port 0.
func (s *Server) Port() (int, error) {
	return hnet.LocalPort(s.fd)
}

func (s *Server) Close() error {
	return s.close(func() error {
		if s.fd < 0 {
			return nil
		}
		s.el.DeleteFileEvent(s.fd, he.Readable)
		err := os.NewSyscallError("close", unix.Close(s.fd))
		s.fd = -1
		return err
	})
}

func (s *Server) acceptTCPHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	for remaining := s.cfg.MaxAcceptsPerCall; remaining > 0; remaining-- {
		cfd, sa, err := hnet.TCPAccept(fd)
		if err != nil {
			if !hnet.IsTemporaryError(err) {
				log.Logger.Warn("Accepting client connection", zap.Error(err))
			}
			return
		}
		ip, port := hnet.IPPort(sa)
		peer := net.JoinHostPort(ip, strconv.Itoa(port))

		if err := hnet.Nonblock(cfd); err != nil {
			log.Logger.Warn("Could not make client non-blocking", zap.Error(err))
			unix.Close(cfd)
			continue
		}
		if err := hnet.EnableTCPNoDelay(cfd); err != nil {
			log.Logger.Debug("tcp nodelay", zap.Error(err))
		}
		if err := hnet.KeepAlive(cfd, s.cfg.KeepAlive); err != nil {
			log.Logger.Debug("tcp keepalive", zap.Error(err))
		}

		sess := newSession(cfd, peer)
		if err := el.CreateFileEvent(cfd, he.Readable, s.readTCPHandler, sess); err != nil {
			log.Logger.Warn("Could not register client", zap.String("peer", peer), zap.Error(err))
			unix.Close(cfd)
			continue
		}
		s.sessions[cfd] = sess
		s.stats.Accepted++
		log.Logger.Info("Accepted", zap.String("peer", peer), zap.Int("fd", cfd), zap.Stringer("session", sess.id))
	}
}

func (s *Server) readTCPHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	sess := clientData.(*session)
	n, err := unix.Read(fd, s.buf)
	if err != nil {
		if hnet.IsTemporaryError(err) {
			return
		}
		log.Logger.Info("Reading from client", zap.String("peer", sess.peer), zap.Error(err))
		s.free(sess)
		return
	}
	if n == 0 {
		log.Logger.Info("Client closed connection", zap.String("peer", sess.peer), zap.Stringer("session", sess.id))
		s.free(sess)
		return
	}
	s.stats.BytesIn += uint64(n)
	log.Logger.Debug("read", zap.Int("fd", fd), zap.ByteString("data", s.buf[:n]))
	if err := s.send(sess, s.buf[:n]); err != nil {
		log.Logger.Info("Error writing to client", zap.String("peer", sess.peer), zap.Error(err))
		s.free(sess)
	}
}

// readUDPHandler drains up to one batch of datagrams per readiness event and
// echoes each back to its sender.
func (s *Server) readUDPHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	n, err := hnet.RecvBatch(fd, s.batch)
	if err != nil {
		if !hnet.IsTemporaryError(err) {
			log.Logger.Warn("Reading datagrams", zap.Error(err))
		}
		return
	}
	for i := 0; i < n; i++ {
		data, sa := s.batch.Datagram(i)
		if sa == nil {
			continue
		}
		s.stats.Datagrams++
		s.stats.BytesIn += uint64(len(data))
		ip, port := hnet.IPPort(sa)
		log.Logger.Debug("read", zap.ByteString("data", data), zap.String("ip", ip), zap.Int("port", port))

		written, err := hnet.SendTo(fd, data, sa)
		if err != nil {
			if !hnet.IsTemporaryError(err) {
				log.Logger.Warn("Error writing datagram", zap.String("ip", ip), zap.Int("port", port), zap.Error(err))
			}
			continue
		}
		s.stats.BytesOut += uint64(written)
	}
}
