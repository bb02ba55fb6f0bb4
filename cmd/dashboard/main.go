package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/blikh/co2-dashboard/cmd/dashboard/commands"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		commands.Run(os.Args[2:], logger, version)
	case "init":
		commands.Init(os.Args[2:], logger)
	case "login":
		commands.Login(os.Args[2:], logger)
	case "whoami":
		commands.WhoAmI(os.Args[2:], logger)
	case "logout":
		commands.Logout(os.Args[2:], logger)
	case "groups":
		commands.Groups(os.Args[2:], logger)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: dashboard <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run       Start the dashboard web server")
	fmt.Fprintln(os.Stderr, "  init      Write a starter config")
	fmt.Fprintln(os.Stderr, "  login     Store and verify an access token")
	fmt.Fprintln(os.Stderr, "  whoami    Show the identity behind the stored token")
	fmt.Fprintln(os.Stderr, "  logout    Forget the stored token")
	fmt.Fprintln(os.Stderr, "  groups    List the groups visible to the stored token")
	fmt.Fprintln(os.Stderr, "  version   Print the build version")
}
