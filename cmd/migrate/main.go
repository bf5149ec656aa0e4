package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	dir := flag.String("path", "migrations", "directory holding the *.up.sql / *.down.sql files")
	dsn := flag.String("database", "", "database URL (defaults to DATABASE_URL)")
	flag.Usage = usage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	dbURL := *dsn
	if dbURL == "" {
		dbURL = cfg.DatabaseURL
	}
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+*dir, dbURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dir).Msg("Failed to initialize migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Close migrations")
		}
	}()

	if err := run(m, flag.Args(), log); err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("Migration failed")
	}
}

func run(m *migrate.Migrate, args []string, log zerolog.Logger) error {
	switch args[0] {
	case "up":
		return report(m, m.Up(), log, "Migrated up")
	case "down":
		return report(m, m.Down(), log, "Migrated down")
	case "steps":
		n, err := intArg(args, "steps")
		if err != nil {
			return err
		}
		return report(m, m.Steps(n), log, "Applied steps")
	case "force":
		v, err := intArg(args, "force")
		if err != nil {
			return err
		}
		return report(m, m.Force(v), log, "Forced version")
	case "version":
		return report(m, nil, log, "Current version")
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// report logs the schema version after a command; "no change" counts as success.
func report(m *migrate.Migrate, err error, log zerolog.Logger, msg string) error {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		log.Info().Bool("no_change", err != nil).Msg(msg + ": no migrations applied")
		return nil
	case verr != nil:
		return verr
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Bool("no_change", err != nil).Msg(msg)
	return nil
}

func intArg(args []string, cmd string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a numeric argument", cmd)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", cmd, args[1])
	}
	return n, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [flags] <command>")
	fmt.Fprintln(os.Stderr, "Commands: up, down, steps <n>, version, force <version>")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
