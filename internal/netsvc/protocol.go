// Package netsvc implements the TCP line-protocol server that sits in
// front of a vfs.Manager: the listener, per-connection worker, command
// parser and response formatter of §6. None of this package touches the
// backing file directly — every command becomes at most one call into
// vfs.Manager (QUIT and malformed lines make none).
package netsvc

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/cstdev/simdiskd/internal/vfs"
)

// Protocol-level errors, surfaced verbatim as "ERROR: <message>" (§7
// ProtocolError: "malformed command line. Kind-specific message.").
var (
	errEmptyCommand    = errors.New("Empty command")
	errUnknownVerb     = errors.New("Unknown command.")
	errCreateNeedsName = errors.New("CREATE requires a file name")
	errWriteNeedsArgs  = errors.New("WRITE requires a file name and content")
	errReadNeedsName   = errors.New("READ requires a file name")
	errDeleteNeedsName = errors.New("DELETE requires a file name")
)

// command is one parsed client request line.
type command struct {
	verb    string
	name    string
	content string
}

// parseCommand splits line into a verb, an optional name token, and an
// optional content remainder, per §6's grammar ("tokens separated by runs
// of whitespace; at most three tokens ... content is everything after the
// second token; may contain spaces").
func parseCommand(line string) (command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return command{}, errEmptyCommand
	}

	verb, remainder := splitFirstToken(trimmed)
	if remainder == "" {
		return command{verb: verb}, nil
	}

	name, content := splitFirstToken(remainder)

	return command{verb: verb, name: name, content: content}, nil
}

// splitFirstToken returns the first whitespace-delimited token of s and
// whatever remains after the following run of whitespace (trimmed of
// leading whitespace only — internal spacing of the remainder, which
// matters for WRITE's content, is preserved untouched).
func splitFirstToken(s string) (token, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}

	token = s[:i]
	rest = strings.TrimLeftFunc(s[i:], unicode.IsSpace)

	return token, rest
}

// response is what a dispatched command produces: either a line to
// terminate with a newline, or raw bytes to terminate with a newline
// (READ's success reply is the unmodified file content, not a formatted
// line). closeAfter signals the connection should be closed once the
// reply is flushed (QUIT).
type response struct {
	line       string
	raw        []byte
	isRaw      bool
	closeAfter bool
}

// dispatch executes one parsed command against m and builds its reply.
func dispatch(m *vfs.Manager, line string) response {
	cmd, err := parseCommand(line)
	if err != nil {
		return response{line: "ERROR: " + err.Error()}
	}

	switch strings.ToUpper(cmd.verb) {
	case "CREATE":
		return dispatchCreate(m, cmd)
	case "WRITE":
		return dispatchWrite(m, cmd)
	case "READ":
		return dispatchRead(m, cmd)
	case "DELETE":
		return dispatchDelete(m, cmd)
	case "LIST":
		return dispatchList(m)
	case "QUIT":
		return response{line: "SUCCESS: Disconnecting.", closeAfter: true}
	default:
		return response{line: "ERROR: " + errUnknownVerb.Error()}
	}
}

func dispatchCreate(m *vfs.Manager, cmd command) response {
	if cmd.name == "" {
		return response{line: "ERROR: " + errCreateNeedsName.Error()}
	}

	if err := m.Create(cmd.name); err != nil {
		return response{line: "ERROR: " + errorMessage(err)}
	}

	return response{line: fmt.Sprintf("SUCCESS: File '%s' created.", cmd.name)}
}

func dispatchWrite(m *vfs.Manager, cmd command) response {
	if cmd.name == "" {
		return response{line: "ERROR: " + errWriteNeedsArgs.Error()}
	}

	if err := m.Write(cmd.name, []byte(cmd.content)); err != nil {
		return response{line: "ERROR: " + errorMessage(err)}
	}

	return response{line: fmt.Sprintf("SUCCESS: File '%s' written.", cmd.name)}
}

func dispatchRead(m *vfs.Manager, cmd command) response {
	if cmd.name == "" {
		return response{line: "ERROR: " + errReadNeedsName.Error()}
	}

	content, err := m.Read(cmd.name)
	if err != nil {
		return response{line: "ERROR: " + errorMessage(err)}
	}

	return response{raw: content, isRaw: true}
}

func dispatchDelete(m *vfs.Manager, cmd command) response {
	if cmd.name == "" {
		return response{line: "ERROR: " + errDeleteNeedsName.Error()}
	}

	if err := m.Delete(cmd.name); err != nil {
		return response{line: "ERROR: " + errorMessage(err)}
	}

	return response{line: fmt.Sprintf("SUCCESS: File '%s' deleted.", cmd.name)}
}

func dispatchList(m *vfs.Manager) response {
	names := m.List()
	if len(names) == 0 {
		return response{line: "No files in filesystem."}
	}

	return response{line: strings.Join(names, ", ")}
}

// errorMessage returns err's message unchanged; callers prepend "ERROR: ".
// vfs errors carry no such prefix and read naturally on their own (e.g.
// "file ghost does not exist").
func errorMessage(err error) string {
	return err.Error()
}
