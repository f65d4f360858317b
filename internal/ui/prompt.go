package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmptyInput is returned when the user enters nothing
var ErrEmptyInput = errors.New("no input entered")

// PromptSecret asks for a value without echoing it when stdin is a
// terminal. Piped input is read as a single line.
func PromptSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, Color(Bold, label+": "))

	var (
		value string
		err   error
	)
	if IsInteractive() {
		var raw []byte
		raw, err = term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		value = string(raw)
	} else {
		value, err = readLine(os.Stdin)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyInput
	}
	return value, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return line, nil
}
