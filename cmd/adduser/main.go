package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"budgetly/internal/auth"
	"budgetly/internal/backend"
	"budgetly/internal/cli"
	"budgetly/internal/config"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/services"

	"golang.org/x/term"
)

func main() {
	cli.LoadEnvFile()
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	defaults := config.Load()

	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "E-mail address used to log in")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	backendType := fs.String("backend", defaults.DataBackend, "Data backend: sqlite or postgres")
	dbPath := fs.String("db", defaults.SQLiteDBPath, "Path to the SQLite database file")
	databaseURL := fs.String("database-url", defaults.DatabaseURL, "Postgres connection URL")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" || *email == "" {
		fmt.Fprintln(stdout, "Usage: adduser -name <name> -email <email> [-password <password>] [-backend sqlite|postgres] [-db <path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: name, email")
	}
	if *backendType == config.BackendMemory {
		return fmt.Errorf("the memory backend does not persist users")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	logger := log.New(log.Config{Level: slog.LevelWarn, Output: stderr})
	store, err := backend.NewFactory(logger).CreateStore(ctx, backend.Config{
		Type:         backend.BackendType(*backendType),
		SQLiteDBPath: *dbPath,
		DatabaseURL:  *databaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	accounts := services.NewAccountService(store.Users(), auth.NewHasher(0), nil, logger)
	user, err := accounts.Signup(ctx, *name, *email, password)
	switch {
	case errors.Is(err, core.ErrConflict):
		return fmt.Errorf("user %s already exists", core.NormalizeEmail(*email))
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Email, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
