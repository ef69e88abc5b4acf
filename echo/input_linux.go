//go:build linux
// +build linux

package echo

import (
	"github.com/fzft/hevent/log"
	"github.com/peterh/liner"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// LineReader is the prompt an interactive client reads from. *liner.State
// satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

func newTerminal() LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return line
}

// input pumps prompted lines into a pipe. Only the read end is touched by
// the loop; the prompt runs on its own goroutine because it blocks.
type input struct {
	r, w  int
	lines LineReader
}

func newInput(lines LineReader) (*input, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	return &input{r: fds[0], w: fds[1], lines: lines}, nil
}

// pump runs until the prompt fails (EOF, Ctrl-C) and then closes the write
// end, which the loop sees as end of input.
func (in *input) pump(prompt string) {
	defer unix.Close(in.w)
	for {
		text, err := in.lines.Prompt(prompt)
		if err != nil {
			if err != liner.ErrPromptAborted {
				log.Logger.Debug("prompt closed", zap.Error(err))
			}
			return
		}
		if text != "" {
			in.lines.AppendHistory(text)
		}
		if _, err := unix.Write(in.w, []byte(text+"\n")); err != nil {
			log.Logger.Debug("input pipe", zap.Error(err))
			return
		}
	}
}
