// simdiskctl is an interactive client for simdiskd's TCP line protocol.
//
// Usage:
//
//	simdiskctl [-a addr]                  Start an interactive session
//	simdiskctl [-a addr] -e 'LIST'        Run one command and exit
//	simdiskctl [-a addr] snapshot <dir>   Export every file to dir
//
// Commands (in REPL, case-insensitive):
//
//	create <name>
//	write  <name> <content...>
//	read   <name>
//	delete <name>
//	list
//	quit / exit
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "simdiskctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := flag.NewFlagSet("simdiskctl", flag.ContinueOnError)
	flagSet.SetOutput(os.Stderr)

	addr := flagSet.StringP("addr", "a", "127.0.0.1:9000", "simdiskd server address")
	exec := flagSet.StringP("exec", "e", "", "run one command non-interactively and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}

	rest := flagSet.Args()

	if len(rest) > 0 && rest[0] == "snapshot" {
		if len(rest) < 2 {
			return errors.New("snapshot requires an output directory")
		}

		return runSnapshot(*addr, rest[1])
	}

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", *addr, err)
	}

	defer conn.Close()

	client := &client{conn: conn, reader: bufio.NewReader(conn)}

	if *exec != "" {
		reply, err := client.send(*exec)
		if err != nil {
			return err
		}

		fmt.Println(reply)

		return nil
	}

	return runREPL(client)
}

// client is a thin line-protocol client: send a command, read one reply
// line, per §6.
type client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (c *client) send(line string) (string, error) {
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		return "", fmt.Errorf("write command: %w", err)
	}

	reply, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}

	return strings.TrimSuffix(reply, "\n"), nil
}

// historyFile returns the path to the REPL history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".simdiskctl_history")
}

// runREPL drives an interactive session using a liner.State for
// readline-style editing and history, matching the teacher's sloty REPL.
func runREPL(c *client) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(replCompleter)

	if f, err := os.Open(historyFile()); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("simdiskctl - connected to %s\n", c.conn.RemoteAddr())
	fmt.Println("Type 'help' for available commands.")

	for {
		input, err := line.Prompt("simdiskctl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		verb := strings.ToLower(strings.Fields(input)[0])

		switch verb {
		case "exit", "quit", "q":
			sendQuitBestEffort(c)

			saveHistory(line)

			return nil
		case "help", "?":
			printHelp()
		case "clear", "cls":
			fmt.Print("\033[H\033[2J")
		default:
			reply, err := c.send(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)

				saveHistory(line)

				return err
			}

			fmt.Println(reply)
		}
	}

	saveHistory(line)

	return nil
}

func sendQuitBestEffort(c *client) {
	_, _ = c.send("QUIT")
}

func saveHistory(line *liner.State) {
	path := historyFile()
	if path == "" {
		return
	}

	if f, err := os.Create(path); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

func replCompleter(line string) []string {
	commands := []string{"create ", "write ", "read ", "delete ", "list", "quit", "help"}

	var matches []string

	for _, cmd := range commands {
		if strings.HasPrefix(cmd, strings.ToLower(line)) {
			matches = append(matches, cmd)
		}
	}

	return matches
}

func printHelp() {
	fmt.Println(`Commands:
  create <name>              Create an empty file
  write  <name> <content>    Replace a file's content
  read   <name>              Print a file's content
  delete <name>              Delete a file
  list                       List all files
  quit / exit                Disconnect
  help                       Show this help`)
}

// runSnapshot exports every file on the remote simdiskd into dir: one
// file per name, each written atomically so a reader never observes a
// partially written file (§12: "a pure client of the public wire
// protocol; it adds no new server-side operation").
func runSnapshot(addr, dir string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}

	defer conn.Close()

	c := &client{conn: conn, reader: bufio.NewReader(conn)}

	listing, err := c.send("LIST")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	names := parseListing(listing)

	for _, name := range names {
		reply, err := c.send("READ " + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		if strings.HasPrefix(reply, "ERROR:") {
			return fmt.Errorf("read %s: %s", name, reply)
		}

		dest := filepath.Join(dir, name)

		if err := atomic.WriteFile(dest, strings.NewReader(reply)); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
	}

	sendQuitBestEffort(c)

	fmt.Printf("snapshot: exported %d file(s) to %s\n", len(names), dir)

	return nil
}

// parseListing turns LIST's reply into a slice of names, handling the
// "No files in filesystem." sentinel.
func parseListing(reply string) []string {
	if reply == "No files in filesystem." {
		return nil
	}

	var names []string

	for _, part := range strings.Split(reply, ",") {
		name := strings.TrimSpace(part)
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}
