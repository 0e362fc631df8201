// Command galaxygen generates regions offline into a SQLite file and the
// snapshot archive, and mints operator tokens for the admin API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"galaxy-server/internal/auth"
	"galaxy-server/internal/galaxy"
	"galaxy-server/internal/shared/config"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/tables"
	"galaxy-server/internal/universe"
)

const usage = `usage: galaxygen <command> [flags]

commands:
  generate   generate a region into a SQLite file and the archive
  token      print a signed JWT (needs JWT_SECRET)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "generate":
		err = generate(ctx, args[1:], stdout, stderr)
	case "token":
		err = token(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "galaxygen: %v\n", err)
		if kind := errors.KindOf(err); kind != errors.KindInternal {
			fmt.Fprintf(stderr, "kind: %s\n", kind)
			if details := errors.DetailsOf(err); len(details) > 0 {
				b, _ := json.Marshal(details)
				fmt.Fprintf(stderr, "details: %s\n", b)
			}
		}
		return 1
	}
	return 0
}

func generate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		kind      = fs.String("kind", string(universe.KindPlayerOwned), "region kind: player_owned, terran_space or central_nexus")
		name      = fs.String("name", "", "region name (defaults by kind for platform regions)")
		sectors   = fs.Int("sectors", 0, "total sectors (0 keeps the committed size for district regeneration)")
		seed      = fs.Int64("seed", 0, "generation seed (0 picks one)")
		districts = fs.String("districts", "", "comma separated nexus districts to regenerate")
		force     = fs.Bool("force", false, "replace an existing region")
		preserve  = fs.Bool("preserve", false, "keep player ownership when replacing")
		tablesF   = fs.String("tables", "", "path to a generation tables YAML override")
		out       = fs.String("out", "galaxy.db", "SQLite output file")
		archiveF  = fs.String("archive", "data/archive", "snapshot archive directory (empty to disable)")
		workers   = fs.Int("workers", runtime.NumCPU(), "parallel workers")
		level     = fs.String("log-level", "info", "log level: debug, info, warn or error")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLevel(*level)}))

	t, err := tables.Load(*tablesF)
	if err != nil {
		return err
	}

	repo, err := universe.OpenSQLite(*out, logger)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", *out, err)
	}
	defer repo.Close()

	store := universe.NewStore()
	var archive *universe.Archive
	if *archiveF != "" {
		archive = universe.NewArchive(*archiveF, logger)
		if _, err := archive.Restore(store); err != nil {
			return err
		}
	}
	if _, err := store.Hydrate(ctx, repo); err != nil {
		return err
	}

	blueprint, err := galaxy.NewBlueprint(t, store, repo, archive, galaxy.NewMemoryLocker(), galaxy.Options{Workers: *workers}, logger)
	if err != nil {
		return err
	}

	req := galaxy.Request{
		RegionKind:         universe.RegionKind(*kind),
		RegionName:         *name,
		TotalSectors:       *sectors,
		ForceRegenerate:    *force,
		PreservePlayerData: *preserve,
		Seed:               *seed,
	}
	if *districts != "" {
		for _, d := range strings.Split(*districts, ",") {
			req.DistrictsToRegenerate = append(req.DistrictsToRegenerate, strings.TrimSpace(d))
		}
	}

	res, err := blueprint.Generate(ctx, req, func(s galaxy.State) {
		logger.Debug("Generation state", "state", s)
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func token(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		id       = fs.Int("id", 1, "player id")
		username = fs.String("username", "operator", "username")
		role     = fs.String("role", auth.RoleAdmin, "role: admin or player")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if config.GlobalConfig == nil {
		if err := config.Init(); err != nil {
			return err
		}
	}

	tok, err := auth.GenerateJWT(*id, *username, *role)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, tok)
	return nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
