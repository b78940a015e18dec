package cmds

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/config"
	"github.com/go-go-golems/helpdesk-chat/pkg/kbclient"
	"github.com/go-go-golems/helpdesk-chat/pkg/lifecycle"
	"github.com/go-go-golems/helpdesk-chat/pkg/logging"
	"github.com/go-go-golems/helpdesk-chat/pkg/persistence/sessionstore"
	"github.com/go-go-golems/helpdesk-chat/pkg/redisstream"
	"github.com/go-go-golems/helpdesk-chat/pkg/render"
	"github.com/go-go-golems/helpdesk-chat/pkg/sessionlist"
)

// App bundles the services a command needs. Commands open it lazily so
// that "render" and "--help" work without any configuration.
type App struct {
	Config   *config.Config
	Client   chat.ConversationClient
	Articles chat.ArticleFetcher
	Store    sessionstore.Store
	Manager  *lifecycle.Manager
	Bus      *redisstream.Bus

	logCloser io.Closer
}

type appOptions struct {
	// tui routes logs to a file unless one was configured and prepares
	// the event consumer group.
	tui bool
}

// RegisterGlobalFlags adds the persistent flags shared by all commands.
// Flags already registered on the root (clay adds config and log-*) are
// left as they are.
func RegisterGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	str := func(name, usage string) {
		if f.Lookup(name) == nil {
			f.String(name, "", usage)
		}
	}
	str("config", "Config file (default $XDG_CONFIG_HOME/helpdesk-chat/config.yaml)")
	str("api-url", "Knowledge base API base URL")
	str("api-token", "Bearer token for the API")
	str("articles-url", "Base URL for external article links")
	if f.Lookup("offline") == nil {
		f.Bool("offline", false, "Use the built-in offline assistant instead of the API")
	}
	str("session-store", "Session store backend (memory, file, sqlite, redis)")
	str("session-store-path", "Path for the file and sqlite session stores")
	str("log-level", "Log level (trace, debug, info, warn, error)")
	str("log-format", "Log format (auto, text, json)")
	str("log-file", "Write logs to this file")
}

// loadConfig resolves defaults, file, env and finally flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		p, err := homedir.Expand(path)
		if err != nil {
			return nil, errors.Wrap(err, "expand config path")
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	setString := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	setString("api-url", &cfg.API.BaseURL)
	setString("api-token", &cfg.API.Token)
	setString("articles-url", &cfg.Articles.BaseURL)
	setString("session-store", &cfg.SessionStore.Backend)
	setString("session-store-path", &cfg.SessionStore.Path)
	setString("log-level", &cfg.Log.Level)
	setString("log-format", &cfg.Log.Format)
	setString("log-file", &cfg.Log.File)
	if flags.Changed("offline") {
		cfg.Offline, _ = flags.GetBool("offline")
	}

	for _, p := range []*string{&cfg.SessionStore.Path, &cfg.Log.File} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, errors.Wrapf(err, "expand path %s", *p)
		}
		*p = expanded
	}
	return cfg, nil
}

func openApp(cmd *cobra.Command, opts appOptions) (*App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logSettings := cfg.Log
	if opts.tui && logSettings.File == "" {
		logSettings.Level = "error"
		logSettings.Format = logging.FormatJSON
		logSettings.File = os.DevNull
	}
	closer, err := logging.Init(logSettings)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		_ = closer.Close()
		return nil, err
	}

	app := &App{Config: cfg, logCloser: closer}
	if cfg.Offline {
		mem := kbclient.NewInMemoryClient()
		app.Client, app.Articles = mem, mem
		log.Debug().Msg("using offline assistant")
	} else {
		hc, err := kbclient.NewHTTPClient(cfg.API.BaseURL,
			kbclient.WithToken(cfg.API.Token),
			kbclient.WithTimeout(cfg.API.Timeout),
		)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Client, app.Articles = hc, hc
	}

	app.Store, err = sessionstore.Open(cfg.SessionStore)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Manager, err = lifecycle.NewManager(lifecycle.Config{Client: app.Client, Store: app.Store})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	// Only the TUIs subscribe; one-shot commands just publish.
	cfg.Events = cfg.Events.ForInstance()
	if cfg.Events.Enabled && opts.tui {
		if err := redisstream.EnsureGroupAtTail(cmd.Context(), cfg.Events.Addr, redisstream.TopicSessions, cfg.Events.Group); err != nil {
			log.Warn().Err(err).Msg("could not prepare redis consumer group")
		}
	}
	app.Bus, err = redisstream.BuildBus(cfg.Events)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Manager.Subscribe(redisstream.NewSessionPublisher(app.Bus.Publisher))

	return app, nil
}

func (a *App) TerminalRenderer() *render.TerminalRenderer {
	return render.NewTerminalRenderer(a.Config.Articles.BaseURL)
}

// publish reports a session change to other running instances.
func (a *App) publish(ev redisstream.SessionEvent) {
	if a.Bus == nil {
		return
	}
	if err := redisstream.Publish(a.Bus.Publisher, ev); err != nil {
		log.Warn().Err(err).Str("session_id", ev.SessionID).Msg("failed to publish session event")
	}
}

// watchSessionEvents refreshes the session list whenever another command
// or instance reports a change. A broken event stream only disables this
// shortcut; polling keeps going.
func (a *App) watchSessionEvents(ctx context.Context, refresher *sessionlist.Refresher) error {
	err := redisstream.Consume(ctx, a.Bus.Subscriber, func(ev redisstream.SessionEvent) {
		log.Debug().Str("type", string(ev.Type)).Str("session_id", ev.SessionID).Msg("session event")
		refresher.Trigger()
	})
	if err != nil {
		log.Warn().Err(err).Msg("session events unavailable, relying on polling")
	}
	return nil
}

// currentSessionID reads the stored session binding without loading it.
func (a *App) currentSessionID(ctx context.Context) (string, error) {
	id, ok, err := a.Store.Load(ctx)
	if err != nil {
		return "", errors.Wrap(err, "read stored session")
	}
	if !ok {
		return "", nil
	}
	return id, nil
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var first error
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
	return first
}

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
