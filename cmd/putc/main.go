package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/marmos91/putd/pkg/client"
	"github.com/marmos91/putd/pkg/diag"
	"github.com/marmos91/putd/pkg/journal"
	journalCSV "github.com/marmos91/putd/pkg/journal/csv"
	"github.com/marmos91/putd/pkg/journal/samples"
)

const (
	logFile = "client_log.csv"
	prompt  = ">> command (list, put <file>, quit): "
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: putc <host> <port>")
		os.Exit(1)
	}

	ctx := context.Background()
	addr := net.JoinHostPort(os.Args[1], os.Args[2])

	c, err := client.Dial(ctx, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()
	fmt.Printf("Connected to server at %s\n", addr)

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if interactive {
			fmt.Print(prompt)
		}
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "list":
			if err := runList(ctx, c); err != nil {
				fmt.Printf("Error: %v\n", err)
				if errors.Is(err, client.ErrConnectionClosed) {
					return
				}
			}

		case "put":
			if len(parts) != 2 {
				fmt.Println("Usage: put <file>")
				continue
			}
			if err := runPut(ctx, c, parts[1]); err != nil {
				fmt.Printf("Error: %v\n", err)
				// A failed payload leaves the stream out of sync.
				if errors.Is(err, client.ErrUploadFailed) || errors.Is(err, client.ErrConnectionClosed) {
					return
				}
			}

		case "quit":
			if err := c.Quit(ctx); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			fmt.Println("Closing connection.")
			return

		default:
			fmt.Println("Invalid command. Try: list, put <file> or quit.")
		}
	}

	fmt.Println("Closing connection.")
}

func runList(ctx context.Context, c *client.Client) error {
	names, err := c.List(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n--- Files on server ---")
	if len(names) == 0 {
		fmt.Println("(none)")
	}
	for _, name := range names {
		fmt.Println(name)
	}
	fmt.Println("-----------------------")
	return nil
}

func runPut(ctx context.Context, c *client.Client, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %q not found", path)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", path)
	}

	name := filepath.Base(path)
	size := uint64(info.Size())

	collector := diag.NewCollector(diag.New(true), c.Conn())
	fmt.Printf("Sending '%s' (%d bytes)...\n", name, size)

	result, err := c.Put(ctx, name, size, f, client.WithChunkHook(func(int) { collector.Capture() }))
	if err != nil {
		return err
	}
	fmt.Println("[Server]: SUCCESS: UPLOAD_COMPLETE")

	rec := journal.NewRecord(result, c.Conn().RemoteAddr().String(), nil, collector.Samples())

	sink, openErr := journalCSV.Open(logFile)
	if openErr != nil {
		return openErr
	}
	defer func() { _ = sink.Close() }()

	if err := sink.RecordTransfer(ctx, rec); err != nil {
		return err
	}
	fmt.Printf("Transfer logged to '%s'.\n", logFile)

	if len(rec.Samples) > 0 {
		dump := samples.FileName(name)
		if err := samples.Write(dump, rec.Samples); err != nil {
			return err
		}
		fmt.Printf("TCP metrics logged to '%s'.\n", dump)
	}

	return nil
}
