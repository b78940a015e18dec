package cmds

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/helpdesk-chat/pkg/sessionlist"
	"github.com/go-go-golems/helpdesk-chat/pkg/ui"
)

func NewChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive support chat",
		Long: `Open the interactive support chat. The previously active conversation
is restored when possible. Type /help inside the chat for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd, appOptions{tui: true})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return runChat(cmd.Context(), app)
		},
	}
}

func runChat(parent context.Context, app *App) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Manager.Hydrate(ctx); err != nil {
		// The TUI shows the failure in its status line.
		log.Warn().Err(err).Msg("starting without the previous conversation")
	}

	model, err := ui.New(ctx, ui.Options{
		Manager:  app.Manager,
		Articles: app.Articles,
		Renderer: app.TerminalRenderer(),
		Events:   app.Bus.Publisher,
	})
	if err != nil {
		return err
	}
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	refresher, err := sessionlist.NewRefresher(sessionlist.Config{
		Client:    app.Client,
		Scheduler: sessionlist.NewTickerScheduler(app.Config.SessionList.PollInterval),
		Limit:     app.Config.SessionList.Limit,
		OnUpdate:  func(s sessionlist.Snapshot) { p.Send(ui.SessionsMsg(s)) },
	})
	if err != nil {
		return err
	}

	unsubscribe := app.Manager.Subscribe(refresher)
	defer unsubscribe()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return refresher.Run(egCtx) })
	eg.Go(func() error { return app.watchSessionEvents(egCtx, refresher) })
	eg.Go(func() error {
		<-egCtx.Done()
		p.Quit()
		return nil
	})
	eg.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil {
			return errors.Wrap(err, "chat ui")
		}
		return nil
	})
	return eg.Wait()
}
