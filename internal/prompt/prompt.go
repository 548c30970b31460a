// Package prompt abstracts user interaction so the sync flow never depends
// on a specific front end (terminal, gamepad UI, scripted).
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter supplies the two interactions the sync client needs.
type Prompter interface {
	PromptText(prompt string) (string, error)
	PromptYesNo(prompt string) (bool, error)
}

// Terminal prompts on stdin/stdout.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stdout}
}

func (t *Terminal) PromptText(prompt string) (string, error) {
	fmt.Fprintf(t.Out, "%s: ", prompt)
	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (t *Terminal) PromptYesNo(prompt string) (bool, error) {
	fmt.Fprintf(t.Out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// Scripted replays canned answers, for tests and non-interactive use.
type Scripted struct {
	Texts   []string
	Answers []bool
}

func (s *Scripted) PromptText(string) (string, error) {
	if len(s.Texts) == 0 {
		return "", errors.New("no scripted text answer left")
	}
	text := s.Texts[0]
	s.Texts = s.Texts[1:]
	return text, nil
}

func (s *Scripted) PromptYesNo(string) (bool, error) {
	if len(s.Answers) == 0 {
		return false, errors.New("no scripted yes/no answer left")
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	return answer, nil
}
