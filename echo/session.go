//go:build linux
// +build linux

package echo

import (
	"github.com/eapache/queue"
	"github.com/fzft/hevent/he"
	"github.com/fzft/hevent/hnet"
	"github.com/fzft/hevent/log"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// session is one connected stream socket. Bytes that could not be written
// immediately wait in out, oldest first; head is how much of the front
// chunk has already gone out.
type session struct {
	id      uuid.UUID
	fd      int
	peer    string
	out     *queue.Queue
	head    int
	pending int
}

func newSession(fd int, peer string) *session {
	return &session{
		id:   uuid.NewV4(),
		fd:   fd,
		peer: peer,
		out:  queue.New(),
	}
}

func (s *session) enqueue(data []byte) {
	chunk := make([]byte, len(data))
	copy(chunk, data)
	s.out.Add(chunk)
	s.pending += len(chunk)
}

// send writes data to the session, queueing whatever the socket does not
// take and asking the loop for writability until the queue drains.
func (n *node) send(s *session, data []byte) error {
	if s.out.Length() > 0 {
		s.enqueue(data)
		return nil
	}
	written, err := unix.Write(s.fd, data)
	if err != nil && !hnet.IsTemporaryError(err) {
		return err
	}
	if written < 0 {
		written = 0
	}
	n.stats.BytesOut += uint64(written)
	if written == len(data) {
		return nil
	}
	s.enqueue(data[written:])
	return n.el.CreateFileEvent(s.fd, he.Writable, n.writeHandler, s)
}

func (n *node) writeHandler(el *he.EventLoop, fd int, clientData interface{}, mask he.Mask) {
	s := clientData.(*session)
	for s.out.Length() > 0 {
		chunk := s.out.Peek().([]byte)
		written, err := unix.Write(fd, chunk[s.head:])
		if err != nil {
			if hnet.IsTemporaryError(err) {
				return
			}
			log.Logger.Warn("Error writing to peer", zap.Int("fd", fd), zap.String("peer", s.peer), zap.Error(err))
			n.free(s)
			return
		}
		n.stats.BytesOut += uint64(written)
		s.pending -= written
		s.head += written
		if s.head < len(chunk) {
			return
		}
		s.out.Remove()
		s.head = 0
	}
	el.DeleteFileEvent(fd, he.Writable)
}

// free drops every registration for the session and closes it.
func (n *node) free(s *session) {
	n.el.DeleteFileEvent(s.fd, he.Readable)
	n.el.DeleteFileEvent(s.fd, he.Writable)
	if err := unix.Close(s.fd); err != nil {
		log.Logger.Debug("close failed", zap.Int("fd", s.fd), zap.Error(err))
	}
	delete(n.sessions, s.fd)
	n.stats.Closed++
	if n.onFree != nil {
		n.onFree(s)
	}
}
