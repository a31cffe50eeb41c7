package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

// LineReader is the part of a line editor the console loop needs.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// ErrInterrupt is returned by a LineReader when the user pressed Ctrl-C at
// the prompt.
var ErrInterrupt = readline.ErrInterrupt

func newTerminalReader(prompt, historyFile string) (LineReader, error) {
	instance, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("open line editor: %w", err)
	}
	return instance, nil
}

// scriptReader feeds lines from a file or test input.
type scriptReader struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

func newScriptReader(r io.Reader) *scriptReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	reader := &scriptReader{scanner: scanner}
	if closer, ok := r.(io.Closer); ok {
		reader.closer = closer
	}
	return reader
}

func (r *scriptReader) Readline() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scriptReader) SetPrompt(string) {}

func (r *scriptReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func isInterrupt(err error) bool {
	return errors.Is(err, ErrInterrupt)
}
