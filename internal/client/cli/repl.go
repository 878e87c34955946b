package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Buckets(ctx context.Context) error
	Use(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Info(ctx context.Context, args []string) error
	Upload(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Expose(ctx context.Context, args []string) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// It returns on EOF or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help                          show available commands
//	  - login                         mint a token and discover buckets
//	  - exit | quit                   leave the program
//
//	Logged in:
//	  - buckets                       list buckets offered by the server
//	  - use <bucket>                  select the bucket later commands act on
//	  - ls [path]                     raw listing of the bucket
//	  - info [filename...]            recorded files with owner and digest
//	  - upload <path> [overwrite]     upload a local file
//	  - move <file> <bucket> [overwrite]
//	  - delete <file>
//	  - expose <file>                 print the internal redirect path
//	  - logout
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("fs %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if cmd == "exit" || cmd == "quit" {
			printlnFn("Bye!")
			return
		}
		if cmd == "help" {
			if a.isLoggedIn() {
				printlnFn("Available commands: buckets, use, ls, info, upload, move, delete, expose, logout, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}
			continue
		}

		var cmdErr error
		switch cmd {
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "buckets":
			cmdErr = a.Buckets(ctx)
		case "use":
			cmdErr = a.Use(ctx, args)
		case "l", "ls":
			cmdErr = a.List(ctx, args)
		case "info":
			cmdErr = a.Info(ctx, args)
		case "upload":
			cmdErr = a.Upload(ctx, args)
		case "move":
			cmdErr = a.Move(ctx, args)
		case "delete":
			cmdErr = a.Delete(ctx, args)
		case "expose":
			cmdErr = a.Expose(ctx, args)
		default:
			printlnFn("Unknown command:", cmd)
		}
		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
