package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// CommandKind tags the Command variant.
type CommandKind int

const (
	CommandInvalid CommandKind = iota
	CommandList
	CommandPut
	CommandQuit
)

func (k CommandKind) String() string {
	switch k {
	case CommandList:
		return VerbList
	case CommandPut:
		return VerbPut
	case CommandQuit:
		return VerbQuit
	default:
		return "INVALID"
	}
}

// Command is one parsed client request.
//
// Only the fields relevant to Kind are set:
//   - CommandPut: Name and DeclaredSize
//   - CommandInvalid: Raw (original text) and Reason (reply reason)
type Command struct {
	Kind         CommandKind
	Name         string
	DeclaredSize uint64
	Raw          string
	Reason       string
}

// List, Put and Quit build valid commands, mostly for clients.
func List() Command { return Command{Kind: CommandList} }

func Put(name string, size uint64) Command {
	return Command{Kind: CommandPut, Name: name, DeclaredSize: size}
}

func Quit() Command { return Command{Kind: CommandQuit} }

func invalid(raw, reason string) Command {
	return Command{Kind: CommandInvalid, Raw: raw, Reason: reason}
}

// ParseCommand decodes a single control message.
//
// The message is split on ASCII whitespace and the first token selects the
// variant. Anything that does not form a valid command yields CommandInvalid
// with the original text preserved in Raw.
func ParseCommand(line []byte) Command {
	raw := string(line)
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return invalid(raw, ReasonUnknownCommand)
	}

	switch strings.ToUpper(fields[0]) {
	case VerbList:
		return List()

	case VerbQuit:
		return Quit()

	case VerbPut:
		if len(fields) != 3 {
			return invalid(raw, ReasonMalformedPut)
		}
		name := fields[1]
		if err := ValidateName(name); err != nil {
			return invalid(raw, ReasonMalformedPut)
		}
		size, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return invalid(raw, ReasonMalformedPut)
		}
		return Put(name, size)

	default:
		return invalid(raw, ReasonUnknownCommand)
	}
}

// Encode renders the command in its wire form.
func (c Command) Encode() ([]byte, error) {
	var msg string
	switch c.Kind {
	case CommandList:
		msg = VerbList
	case CommandQuit:
		msg = VerbQuit
	case CommandPut:
		if err := ValidateName(c.Name); err != nil {
			return nil, err
		}
		msg = fmt.Sprintf("%s %s %d", VerbPut, c.Name, c.DeclaredSize)
	default:
		return nil, fmt.Errorf("cannot encode invalid command %q", c.Raw)
	}

	if len(msg) > MaxMessageSize {
		return nil, fmt.Errorf("command of %d bytes: %w", len(msg), ErrMessageTooLarge)
	}
	return []byte(msg), nil
}

// ValidateName checks that name can be used as a single entry under the
// storage root.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	case !utf8.ValidString(name):
		return fmt.Errorf("name %q is not valid UTF-8: %w", name, ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("name %q: %w", name, ErrInvalidName)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("name %q contains a path separator: %w", name, ErrInvalidName)
	case bytes.ContainsFunc([]byte(name), isASCIISpace):
		return fmt.Errorf("name %q contains whitespace: %w", name, ErrInvalidName)
	}
	return nil
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
