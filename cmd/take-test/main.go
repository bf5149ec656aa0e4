// Command take-test is the candidate command line: sign in, list open tests,
// take one against the clock and look up results.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/nefziamine/skill-evaluator/internal/apiclient"
	"github.com/nefziamine/skill-evaluator/internal/clientconfig"
	"github.com/nefziamine/skill-evaluator/internal/credstore"
	"github.com/nefziamine/skill-evaluator/internal/logger"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"golang.org/x/term"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to skilleval.yaml")
	flag.Usage = printUsage
	flag.Parse()

	if err := run(configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", describe(err))
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	if len(args) < 1 {
		printUsage()
		return nil
	}

	cfg, err := clientconfig.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	store := credstore.NewFileStore(cfg.CredentialsPath)
	client, err := apiclient.New(cfg.APIURL, store,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		apiclient.WithLogger(log),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "login":
		return login(ctx, client, args[1:])

	case "logout":
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil

	case "tests":
		tests, err := client.ListTests(ctx)
		if err != nil {
			return err
		}
		renderTests(os.Stdout, tests)
		return nil

	case "sessions":
		sessions, err := client.ListSessions(ctx)
		if err != nil {
			return err
		}
		renderSessions(os.Stdout, sessions)
		return nil

	case "take":
		testID, err := idArg(args, "take <test_id>")
		if err != nil {
			return err
		}
		r := &runner{in: os.Stdin, out: os.Stdout, log: log}
		if cfg.Autosave {
			r.openStream = func(ctx context.Context, testID int64) (answerStream, error) {
				stream, err := client.OpenAutosaveStream(ctx, testID)
				if err != nil {
					return nil, err
				}
				return stream, nil
			}
		}
		_, err = r.take(ctx, client, testID)
		if errors.Is(err, errLeft) {
			return nil
		}
		return err

	case "result":
		sessionID, err := idArg(args, "result <session_id>")
		if err != nil {
			return err
		}
		result, err := client.SessionResult(ctx, sessionID)
		if err != nil {
			return err
		}
		rank, err := client.SessionRank(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Msg("Rank unavailable")
			rank = nil
		}
		renderSessionResult(os.Stdout, result, rank)
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func login(ctx context.Context, client *apiclient.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var username string
	fs.StringVar(&username, "u", "", "Username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return errors.New("username is required")
	}

	password, err := readPassword(reader)
	if err != nil {
		return err
	}

	resp, err := client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if resp.User.Role != model.RoleCandidate {
		fmt.Printf("Note: %s is a %s account; only candidates can take tests.\n", resp.User.Username, resp.User.Role)
	}
	fmt.Printf("Logged in as %s until %s.\n", resp.User.Username, resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

// readPassword hides the input on a terminal and falls back to a plain line otherwise.
func readPassword(reader *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println() // Newline after password input
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func idArg(args []string, usage string) (int64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: take-test %s", usage)
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[1])
	}
	return id, nil
}

// describe turns well-known API failures into advice.
func describe(err error) error {
	if errors.Is(err, credstore.ErrNoCredentials) {
		return errors.New("not logged in, run: take-test login")
	}
	switch apiclient.ErrorCode(err) {
	case string(response.ErrTokenInvalid), string(response.ErrTokenRevoked):
		return errors.New("your login is no longer valid, run: take-test login")
	case string(response.ErrSessionCompleted):
		return errors.New("you already completed this test")
	case string(response.ErrSessionNotFinished):
		return errors.New("this attempt is still running")
	}
	return err
}

func printUsage() {
	fmt.Println("Usage: take-test [flags] <command>")
	fmt.Println("Commands:")
	fmt.Println("  login [-u username]   sign in and remember the token")
	fmt.Println("  logout                revoke the token and forget it")
	fmt.Println("  tests                 list open tests")
	fmt.Println("  take <test_id>        start or resume a test")
	fmt.Println("  sessions              list your attempts")
	fmt.Println("  result <session_id>   show the result of a finished attempt")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
