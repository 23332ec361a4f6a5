package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"flashnotes/internal/app"
	"flashnotes/internal/config"
	"flashnotes/internal/domain"
)

// NewDrillCmd runs a quiz in the terminal over the signed-in operator's notes.
func NewDrillCmd(configPath *string) *cobra.Command {
	var token, owner string
	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Quiz yourself on your notes in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			comps, err := buildComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			if token == "" && owner != "" {
				if token, err = comps.provider.IssueToken(domain.User{ID: owner}); err != nil {
					return err
				}
			}
			user, err := comps.workspace.SignIn(ctx, token)
			if err != nil {
				return err
			}

			listing, err := comps.list.Refresh(ctx, user.ID, app.SortByDate)
			if err != nil {
				return err
			}
			if listing.Stale {
				fmt.Fprintln(cmd.ErrOrStderr(), domain.MessageOf(listing.Cause))
			}

			session, err := app.StartQuiz(ctx, user.ID, comps.cache, comps.remote, app.WithQuizLogger(logger))
			if err != nil {
				return errors.New(domain.MessageOf(err))
			}
			return runDrill(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), session)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "sign-in token")
	cmd.Flags().StringVar(&owner, "owner", "", "issue a local token for this owner id instead of --token")
	return cmd
}

const drillHelp = "[enter] reveal/next  [m] missed  [s] skip  [q] quit"

// runDrill reads one command per line until quit or end of input.
func runDrill(ctx context.Context, in io.Reader, out io.Writer, session *app.QuizSession) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, drillHelp)
	printView(out, session.View())

	for scanner.Scan() {
		view := session.View()
		var err error
		switch cmd := strings.TrimSpace(strings.ToLower(scanner.Text())); {
		case cmd == "q":
			return nil
		case cmd == "m":
			view, err = session.MarkMissed(ctx)
			if err == nil {
				fmt.Fprintf(out, "marked missed (%d)\n", view.MissCount)
				continue
			}
		case cmd == "s":
			view, err = session.Advance()
		case cmd == "" && view.State == app.StateAwaitingAnswer:
			view, err = session.Reveal()
		case cmd == "" && view.State == app.StateAnswerShown:
			view, err = session.Advance()
		case view.State == app.StateCycleComplete && (cmd == "" || cmd == "r"):
			view, err = session.Restart()
		default:
			fmt.Fprintln(out, drillHelp)
			continue
		}
		if err != nil {
			fmt.Fprintln(out, "!", domain.MessageOf(err))
			continue
		}
		printView(out, view)
	}
	return scanner.Err()
}

func printView(out io.Writer, v app.QuizView) {
	switch v.State {
	case app.StateCycleComplete:
		fmt.Fprintf(out, "cycle complete (%d questions). [enter] to restart, [q] to quit\n", v.Total)
	case app.StateAwaitingAnswer:
		fmt.Fprintf(out, "\n[%d/%d] %s\nQ: %s\n", v.Seen, v.Total, v.Title, v.Question)
	case app.StateAnswerShown:
		fmt.Fprintf(out, "A: %s\n", v.Answer)
		if v.Explanation != "" {
			fmt.Fprintf(out, "   %s\n", v.Explanation)
		}
	}
}
