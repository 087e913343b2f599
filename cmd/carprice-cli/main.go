package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"carprice/internal/authstate"
	"carprice/internal/client"
	"carprice/internal/config"
	"carprice/internal/observability"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const appName = "carprice"

var version = "dev"

// session is the per-run state shared by all commands.
type session struct {
	client *client.Client
	store  *authstate.Store
	jar    *client.FileJar
	api    *url.URL
	logger *slog.Logger
}

func main() {
	_ = godotenv.Load()

	var s session

	app := &cli.App{
		Name:    appName,
		Usage:   "Used-car price predictions from the command line",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "API base URL",
				EnvVars: []string{"CARPRICE_API_URL"},
			},
			&cli.StringFlag{
				Name:    "cookie-file",
				Usage:   "file holding the session cookies",
				EnvVars: []string{"CARPRICE_COOKIE_FILE"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log requests and session refreshes",
			},
		},
		Before: func(c *cli.Context) error {
			return s.open(c)
		},
		After: func(c *cli.Context) error {
			return s.close()
		},
		Commands: commands(&s),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (s *session) open(c *cli.Context) error {
	cfg, err := config.ParseClient()
	if err != nil {
		return err
	}
	if v := c.String("api-url"); v != "" {
		cfg.APIURL = v
	}
	if v := c.String("cookie-file"); v != "" {
		cfg.CookieFile = v
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}

	observability.InitLoggerTo(os.Stderr, cfg.LogLevel, "text")
	return s.start(cfg, observability.FromContext(c.Context))
}

func (s *session) start(cfg *config.ClientConfig, logger *slog.Logger) error {
	var err error
	s.logger = logger
	if s.api, err = url.Parse(cfg.APIURL); err != nil {
		return fmt.Errorf("parse api url: %w", err)
	}
	if s.jar, err = client.OpenFileJar(cfg.CookieFile); err != nil {
		return err
	}

	s.client, err = client.New(client.Config{
		BaseURL:        cfg.APIURL,
		CSRFCookieName: cfg.CSRFCookieName,
		CSRFHeaderName: cfg.CSRFHeaderName,
		Timeout:        cfg.Timeout,
		Jar:            s.jar,
		Logger:         s.logger,
	})
	if err != nil {
		return err
	}

	s.store = authstate.New(s.client, s.logger)
	s.store.OnChange(func(sess authstate.Session) {
		if sess.Status == authstate.StatusAnonymous {
			s.logger.Debug("session ended")
		}
	})
	return nil
}

// logout ends the session locally whatever the backend answered, so the
// saved cookie file no longer carries it.
func (s *session) logout(ctx context.Context) authstate.Session {
	sess := s.store.Logout(ctx)
	s.jar.Clear(s.api)
	return sess
}

// close persists whatever the server last set, including cleared cookies.
func (s *session) close() error {
	if s.store != nil {
		s.store.Close()
	}
	if s.jar == nil {
		return nil
	}
	if err := s.jar.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
