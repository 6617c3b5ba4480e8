// tetea-admin is a small session-aware CLI against the CMS API. It keeps a
// persisted session between runs and demonstrates the hydration flow: stored
// identity is shown immediately, but only a server round trip confirms it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/NjengaIWJ/tetea-jamii/internal/client"
)

func main() {
	baseURL := flag.String("server", envOr("TETEA_SERVER", "http://localhost:8080"), "API base URL")
	statePath := flag.String("state", defaultStatePath(), "session state file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	c, err := client.New(client.Options{
		BaseURL:   *baseURL,
		StatePath: *statePath,
		// API paths readable without a session; everything else needs one
		PublicPaths: []string{"/api/articles", "/api/partners", "/api/documents"},
		SafePath:    "/api/articles",
		Timeout:     15 * time.Second,
	})
	if err != nil {
		fatal("init client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch args[0] {
	case "login":
		runLogin(ctx, c, args[1:])
	case "logout":
		if err := c.Logout(ctx); err != nil {
			fatal("logout: %v", err)
		}
		fmt.Println("signed out")
	case "whoami":
		runWhoami(ctx, c)
	case "get":
		runGet(ctx, c, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func runLogin(ctx context.Context, c *client.Client, args []string) {
	if len(args) < 1 {
		fatal("usage: tetea-admin login <email>")
	}
	fmt.Fprint(os.Stderr, "password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fatal("read password: %v", err)
	}

	identity, err := c.Login(ctx, args[0], string(password))
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("signed in as %s (%s)\n", identity.Email, identity.Role)
}

func runWhoami(ctx context.Context, c *client.Client) {
	// show the persisted hint first, the way the dashboard renders it
	if hint, err := c.Identity(); err == client.ErrNotHydrated && hint != nil {
		fmt.Printf("last known: %s (unconfirmed)\n", hint.Email)
	}

	if err := c.Hydrate(ctx); err != nil {
		fatal("hydrate: %v", err)
	}

	identity, err := c.Identity()
	if err != nil {
		fmt.Println("not signed in")
		os.Exit(1)
	}
	fmt.Printf("%s (%s)\n", identity.Email, identity.Role)
}

func runGet(ctx context.Context, c *client.Client, args []string) {
	if len(args) < 1 {
		fatal("usage: tetea-admin get <path>")
	}
	path := args[0]
	if !strings.HasPrefix(path, "/") {
		path = "/api/" + path
	}

	if err := c.Hydrate(ctx); err != nil {
		fatal("hydrate: %v", err)
	}

	if target, redirected := c.Resolve(path); redirected {
		fmt.Fprintf(os.Stderr, "not signed in; %s needs a session, showing %s instead\n", path, target)
		path = target
	}

	env, err := c.Do(ctx, "GET", path, nil)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(string(env.Data))
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tetea", "session.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tetea-admin [flags] <command>

commands:
  login <email>   sign in and store the session
  logout          sign out and clear the session
  whoami          confirm the stored session with the server
  get <path>      GET an API path (e.g. articles, admins)`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
