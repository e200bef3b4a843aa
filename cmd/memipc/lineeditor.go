package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	historyFileName = ".memipc_history"
	historySize     = 500
)

type lineReader interface {
	ReadLine(prompt string) (string, error)
}

// lineEditor uses readline on a terminal and a plain scanner otherwise.
type lineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
	out     io.Writer
}

func newLineEditor() *lineEditor {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return newScannerEditor(os.Stdin, os.Stdout)
	}
	cfg := &readline.Config{
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryFile = filepath.Join(home, historyFileName)
	}
	rl, err := readline.NewFromConfig(cfg)
	if err != nil {
		return newScannerEditor(os.Stdin, os.Stdout)
	}
	return &lineEditor{rl: rl}
}

func newScannerEditor(in io.Reader, out io.Writer) *lineEditor {
	return &lineEditor{scanner: bufio.NewScanner(in), out: out}
}

// ReadLine returns io.EOF on end of input or Ctrl-D. Ctrl-C clears the line.
func (e *lineEditor) ReadLine(prompt string) (string, error) {
	if e.rl != nil {
		e.rl.SetPrompt(prompt)
		line, err := e.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) != "" {
			_ = e.rl.SaveToHistory(line)
		}
		return line, nil
	}

	if e.out != nil {
		fmt.Fprint(e.out, prompt)
	}
	if !e.scanner.Scan() {
		if err := e.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return e.scanner.Text(), nil
}

func (e *lineEditor) Close() error {
	if e.rl != nil {
		return e.rl.Close()
	}
	return nil
}
