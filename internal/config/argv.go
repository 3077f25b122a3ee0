package config

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseCommand splits a shell-style command line into a CommandConfig.
// Single quotes are literal, double quotes honor backslash escapes, and an
// unquoted # at the start of a word ends the line.
func ParseCommand(raw string) (CommandConfig, error) {
	argv, err := splitCommand(raw)
	if err != nil {
		return CommandConfig{}, err
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func mustParseCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

type splitState int

const (
	stateBlank splitState = iota
	stateWord
	stateSingle
	stateDouble
)

func splitCommand(input string) ([]string, error) {
	var (
		argv    []string
		word    strings.Builder
		state   = stateBlank
		escaped bool
		inWord  bool
	)

	emit := func() {
		if inWord {
			argv = append(argv, word.String())
		}
		word.Reset()
		inWord = false
	}

scan:
	for _, r := range input {
		if escaped {
			word.WriteRune(r)
			escaped = false
			continue
		}

		switch state {
		case stateSingle:
			if r == '\'' {
				state = stateWord
				continue
			}
			word.WriteRune(r)
		case stateDouble:
			switch r {
			case '\\':
				escaped = true
			case '"':
				state = stateWord
			default:
				word.WriteRune(r)
			}
		default:
			switch {
			case unicode.IsSpace(r):
				emit()
				state = stateBlank
			case r == '#' && state == stateBlank:
				break scan
			case r == '\\':
				escaped = true
				inWord = true
				state = stateWord
			case r == '\'':
				state = stateSingle
				inWord = true
			case r == '"':
				state = stateDouble
				inWord = true
			default:
				word.WriteRune(r)
				inWord = true
				state = stateWord
			}
		}
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case state == stateSingle || state == stateDouble:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	emit()
	return argv, nil
}
