// Command dailyset inspects daily boards and operates the game database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/playperu/dailyset/internal/cache"
	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/database"
	"github.com/playperu/dailyset/internal/leaderboard"
	"github.com/playperu/dailyset/internal/migrations"
	"github.com/playperu/dailyset/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func dateFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "date",
		Usage: "puzzle date as YYYY-MM-DD, today (UTC) when empty",
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Usage:   "path of the SQLite database",
		Value:   "data/dailyset.db",
		Sources: cli.EnvVars("DB_PATH"),
	}
}

func newApp(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "dailyset",
		Usage: "inspect daily boards and operate the game database",
		Commands: []*cli.Command{
			{
				Name:  "board",
				Usage: "print the board of a date and how many triples it holds",
				Flags: []cli.Flag{dateFlag()},
				Action: func(_ context.Context, cmd *cli.Command) error {
					date, err := dailyset.NormalizeDate(cmd.String("date"), time.Now())
					if err != nil {
						return err
					}
					board := dailyset.GenerateBoard(date)
					return printJSON(stdout, boardOutput{
						Date:    date,
						Board:   board,
						Triples: len(dailyset.FindAllTriples(board)),
					})
				},
			},
			{
				Name:  "triples",
				Usage: "list every triple on the board of a date",
				Flags: []cli.Flag{dateFlag()},
				Action: func(_ context.Context, cmd *cli.Command) error {
					date, err := dailyset.NormalizeDate(cmd.String("date"), time.Now())
					if err != nil {
						return err
					}
					triples := dailyset.FindAllTriples(dailyset.GenerateBoard(date))
					if triples == nil {
						triples = []dailyset.Triple{}
					}
					return printJSON(stdout, triples)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply pending schema migrations",
				Flags: []cli.Flag{dbFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					db, err := database.Open(ctx, cmd.String("db"))
					if err != nil {
						return err
					}
					defer db.Close()
					if err := migrations.Run(ctx, db); err != nil {
						return err
					}
					version, err := migrations.Version(ctx, db)
					if err != nil {
						return err
					}
					fmt.Fprintf(stdout, "schema at version %d\n", version)
					return nil
				},
			},
			{
				Name:  "leaderboard",
				Usage: "print the ranked standings of a date",
				Flags: []cli.Flag{
					dbFlag(),
					dateFlag(),
					&cli.IntFlag{Name: "limit", Usage: "number of standings", Value: 10},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					date, err := dailyset.NormalizeDate(cmd.String("date"), time.Now())
					if err != nil {
						return err
					}
					limit := int(cmd.Int("limit"))
					if limit < 1 {
						return fmt.Errorf("limit must be positive, got %d", limit)
					}

					db, err := database.Open(ctx, cmd.String("db"))
					if err != nil {
						return err
					}
					defer db.Close()
					if err := migrations.Run(ctx, db); err != nil {
						return err
					}

					ranker := leaderboard.NewRanker(store.NewSQLite(db), cache.New[[]dailyset.Standing](), time.Minute)
					leaders, err := ranker.Rank(ctx, date, limit)
					if err != nil {
						return err
					}
					if leaders == nil {
						leaders = []dailyset.Standing{}
					}
					return printJSON(stdout, leaderboardOutput{Date: date, Leaders: leaders})
				},
			},
		},
	}
}

type boardOutput struct {
	Date    string         `json:"date"`
	Board   dailyset.Board `json:"board"`
	Triples int            `json:"triples"`
}

type leaderboardOutput struct {
	Date    string              `json:"date"`
	Leaders []dailyset.Standing `json:"leaders"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
