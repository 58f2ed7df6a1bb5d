package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/yourusername/gridiron-edge/internal/backtest"
	"github.com/yourusername/gridiron-edge/internal/engine"
	"github.com/yourusername/gridiron-edge/internal/models"
)

func recommendCmd() *cobra.Command {
	var (
		gameID, league, home, away, venue string
		kickoff, asOf                     string
		neutral                           bool
		projectedTotal, situational       float64
		percentage, bankroll              float64
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Evaluate every market of a game",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, time.Minute)
			defer cancel()

			var game *models.GameRecord
			if home != "" && away != "" {
				at, err := time.Parse(time.RFC3339, kickoff)
				if err != nil {
					return fmt.Errorf("invalid --kickoff: %w", err)
				}
				game = &models.GameRecord{
					GameID:      gameID,
					League:      league,
					HomeTeamID:  home,
					AwayTeamID:  away,
					Kickoff:     at,
					Venue:       venue,
					NeutralSite: neutral,
				}
			} else {
				var err error
				if game, err = rt.Engine.LookupGame(ctx, gameID); err != nil {
					return err
				}
			}

			in := engine.GameInput{
				Game:                  game,
				SituationalAdjustment: situational,
				PercentageSignals:     percentage,
				Bankroll:              decimal.NewFromFloat(bankroll),
			}
			if cmd.Flags().Changed("projected-total") {
				in.ProjectedTotal = &projectedTotal
			}
			if asOf != "" {
				at, err := time.Parse(time.RFC3339, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				in.AsOf = at
			}

			recs, err := rt.Engine.ComputeRecommendation(ctx, in, rt.Engine.Risk())
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	}

	f := cmd.Flags()
	f.StringVar(&gameID, "game", "", "Game id")
	f.StringVar(&league, "league", "nfl", "League of an ad hoc game")
	f.StringVar(&home, "home", "", "Home team id of an ad hoc game")
	f.StringVar(&away, "away", "", "Away team id of an ad hoc game")
	f.StringVar(&venue, "venue", "", "Venue of an ad hoc game, used for the weather forecast")
	f.StringVar(&kickoff, "kickoff", "", "Kickoff of an ad hoc game (RFC3339)")
	f.BoolVar(&neutral, "neutral", false, "Game is played at a neutral site")
	f.StringVar(&asOf, "as-of", "", "Evaluate as of this time (RFC3339), default now")
	f.Float64Var(&projectedTotal, "projected-total", 0, "Projected game total in points")
	f.Float64Var(&situational, "situational", 0, "Situational adjustment in home points")
	f.Float64Var(&percentage, "percentage", 0, "Percentage signals in units")
	f.Float64Var(&bankroll, "bankroll", 0, "Bankroll override")
	_ = cmd.MarkFlagRequired("game")
	return cmd
}

func outcomeCmd() *cobra.Command {
	var (
		result      string
		margin, clv float64
	)
	cmd := &cobra.Command{
		Use:   "outcome <prediction-id>",
		Short: "Record the settled result of a prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid prediction id: %w", err)
			}
			ctx, cancel := withTimeout(cmd, 30*time.Second)
			defer cancel()

			outcome, err := rt.Engine.RecordOutcome(ctx, id, models.GameResult(result), margin, clv)
			var integrity *models.CalibrationIntegrityError
			if errors.As(err, &integrity) {
				return fmt.Errorf("refused: %w", err)
			}
			if err != nil {
				return err
			}
			return printJSON(outcome)
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "win, loss or push")
	cmd.Flags().Float64Var(&margin, "margin", 0, "Actual home margin (spread) or combined points (total)")
	cmd.Flags().Float64Var(&clv, "clv", 0, "Closing line value in points")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		league string
		days   int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the calibration report of a league",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, 30*time.Second)
			defer cancel()
			report, err := rt.Engine.GetCalibrationReport(ctx, league, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&league, "league", "nfl", "League")
	cmd.Flags().IntVar(&days, "days", 0, "Window in days, default from configuration")
	return cmd
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List source quality records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(rt.Engine.GetSourceHealth())
		},
	}
}

func suppressCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "suppress <source-id>",
		Short: "Remove a source's influence until reinstated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.Engine.SuppressSource(args[0], reason)
			fmt.Printf("source %s suppressed\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the source is suppressed")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func reinstateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reinstate <source-id>",
		Short: "Restore a suppressed source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.Engine.ReinstateSource(args[0]); err != nil {
				return err
			}
			fmt.Printf("source %s reinstated\n", args[0])
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		league string
		value  float64
	)
	cmd := &cobra.Command{
		Use:   "seed <team-id>",
		Short: "Create the initial rating of a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, 30*time.Second)
			defer cancel()
			if err := rt.Engine.Ratings().Seed(ctx, args[0], league, value); err != nil {
				return err
			}
			fmt.Printf("%s seeded at %.2f\n", args[0], value)
			return nil
		},
	}
	cmd.Flags().StringVar(&league, "league", "nfl", "League")
	cmd.Flags().Float64Var(&value, "rating", 0, "Initial rating in points")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func sweepCmd() *cobra.Command {
	var (
		league string
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply completed games from the game feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, 5*time.Minute)
			defer cancel()
			n, err := rt.Engine.SweepCompleted(ctx, league, time.Now().UTC().Add(-since))
			if err != nil {
				return err
			}
			fmt.Printf("%d games applied\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&league, "league", "nfl", "League")
	cmd.Flags().DurationVar(&since, "since", 72*time.Hour, "Look back this far")
	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Retry deferred rating updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd, 5*time.Minute)
			defer cancel()
			n, err := rt.Engine.ReplayDeferred(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d deferred games applied\n", n)
			return nil
		},
	}
}

func monitorCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "monitor <game-id>",
		Short: "Watch line movement on the odds stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.Stream == nil {
				return fmt.Errorf("no stream_url configured: %w", models.ErrDataUnavailable)
			}
			ctx, cancel := withTimeout(cmd, window+30*time.Second)
			defer cancel()

			go func() {
				if err := rt.Stream.Run(ctx); err != nil {
					appLog.WithError(err).Debug("Odds stream stopped")
				}
			}()

			movement, err := rt.Engine.MonitorLineMovement(ctx, args[0], window)
			if err != nil {
				return err
			}
			return printJSON(struct {
				GameID       string      `json:"game_id"`
				Complete     bool        `json:"complete"`
				Observations int         `json:"observations"`
				Moves        interface{} `json:"moves"`
			}{movement.GameID, movement.Complete, len(movement.Observations), movement.Moves()})
		},
	}
	cmd.Flags().DurationVar(&window, "window", 5*time.Minute, "How long to watch")
	return cmd
}

func backtestCmd() *cobra.Command {
	var (
		start, end, league, equityPath string
		lead                           time.Duration
		bankroll                       float64
		iterations, windowDays         int
		stepDays, minBets              int
		seed                           int64
		asJSON                         bool
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay completed games with point-in-time ratings",
		RunE: func(cmd *cobra.Command, args []string) error {
			bc := cfg.Backtest
			if start != "" {
				bc.StartDate = start
			}
			if end != "" {
				bc.EndDate = end
			}
			if league != "" {
				bc.League = league
			}
			if cmd.Flags().Changed("lead") {
				bc.DecisionLeadHours = int(lead.Hours())
			}
			if bankroll > 0 {
				bc.InitialBankroll = bankroll
			}
			if cmd.Flags().Changed("iterations") {
				bc.MonteCarloIterations = iterations
			}
			if cmd.Flags().Changed("window-days") {
				bc.WindowDays = windowDays
			}
			if cmd.Flags().Changed("step-days") {
				bc.StepDays = stepDays
			}
			if cmd.Flags().Changed("min-bets") {
				bc.MinBetsPerWindow = minBets
			}

			btCfg, err := backtest.FromConfig(&bc)
			if err != nil {
				return err
			}
			btCfg.Seed = seed
			bt, err := rt.Engine.Backtest(btCfg)
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd, 30*time.Minute)
			defer cancel()
			report, err := bt.Evaluate(ctx, backtest.WalkForwardConfig{
				WindowDays: bc.WindowDays,
				StepDays:   bc.StepDays,
				MinBets:    bc.MinBetsPerWindow,
			})
			if err != nil {
				return err
			}

			if equityPath != "" {
				f, err := os.Create(equityPath)
				if err != nil {
					return fmt.Errorf("failed to create equity file: %w", err)
				}
				defer f.Close()
				if err := report.State.EquityCurve.WriteCSV(f); err != nil {
					return fmt.Errorf("failed to write equity curve: %w", err)
				}
			}

			if asJSON {
				return printJSON(report)
			}
			fmt.Print(report.Summary())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&start, "start", "", "First day (2006-01-02), default from configuration")
	f.StringVar(&end, "end", "", "Last day (2006-01-02), default from configuration")
	f.StringVar(&league, "league", "", "League, default from configuration")
	f.DurationVar(&lead, "lead", time.Hour, "Evaluate this long before kickoff")
	f.Float64Var(&bankroll, "bankroll", 0, "Starting bankroll, default from configuration")
	f.IntVar(&iterations, "iterations", 0, "Monte Carlo iterations, 0 to skip")
	f.IntVar(&windowDays, "window-days", 0, "Walk-forward window in days, 0 to skip")
	f.IntVar(&stepDays, "step-days", 0, "Walk-forward step in days")
	f.IntVar(&minBets, "min-bets", 0, "Minimum plays for a walk-forward window to count")
	f.Int64Var(&seed, "seed", 0, "Monte Carlo seed, 0 for a random seed")
	f.StringVar(&equityPath, "equity-csv", "", "Write the equity curve to this file")
	f.BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	return cmd
}
