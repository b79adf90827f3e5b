package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"video_social_generator/config"
	"video_social_generator/generator"
	"video_social_generator/pipeline"
	"video_social_generator/publisher"
	"video_social_generator/server"
	"video_social_generator/transcript"
	"video_social_generator/websearch"
)

const version = "1.0.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "video-social-generator",
		Usage:   "Turn YouTube transcripts into social media posts",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultPath, Usage: "path to config.json"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logs"},
		},
		Commands: []*cli.Command{
			serveCmd(),
			transcriptCmd(),
			generateCmd(),
		},
	}
}

// app bundles everything a command needs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	cache  *transcript.Cache
	orch   *pipeline.Orchestrator
}

func setup(c *cli.Context, jsonLogs bool) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var logger *slog.Logger
	if jsonLogs {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	slog.SetDefault(logger)

	yt := transcript.NewYouTube(
		transcript.WithHTTPClient(&http.Client{Timeout: cfg.YouTube.Timeout.Std()}),
		transcript.WithRetry(cfg.YouTube.MaxTries, 500*time.Millisecond),
		transcript.WithLogger(logger),
	)
	resolver, err := transcript.NewResolver(yt, logger)
	if err != nil {
		return nil, err
	}
	cache := transcript.NewCache(resolver, transcript.WithTTL(cfg.TranscriptTTL.Std()))

	writerLLM, agentLLM, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}
	writer, err := generator.NewWriter(writerLLM, logger)
	if err != nil {
		return nil, err
	}
	agentOpts := []generator.AgentOption{
		generator.WithMaxSteps(cfg.LLM.MaxSteps),
		generator.WithLogger(logger),
	}
	if cfg.WebSearch.Enabled {
		agentOpts = append(agentOpts, generator.WithSearch(websearch.New(
			websearch.WithRegion(cfg.WebSearch.Region),
			websearch.WithMaxResults(cfg.WebSearch.MaxResults),
			websearch.WithRateLimit(cfg.WebSearch.RequestsPerSecond),
			websearch.WithLogger(logger),
		)))
	}
	agent, err := generator.NewAgent(agentLLM, writer, agentOpts...)
	if err != nil {
		return nil, err
	}
	orch, err := pipeline.New(cache, agent, writer, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, cache: cache, orch: orch}, nil
}

// buildLLM returns the per-post writer model and the agent model.
func buildLLM(cfg config.Config) (generator.LLMClient, generator.ToolLLM, error) {
	switch cfg.LLM.Provider {
	case "mock":
		return generator.MockLLM{}, generator.MockLLM{}, nil
	case "openai", "deepseek":
		settings := generator.LLMSettings{
			Provider:        cfg.LLM.Provider,
			Model:           cfg.LLM.Model,
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		}
		writer, err := generator.NewOpenAILLMFromConfig(&settings)
		if err != nil {
			return nil, nil, err
		}
		settings.Model = cfg.LLM.AgentModel
		settings.MaxOutputTokens = 0
		agent, err := generator.NewOpenAILLMFromConfig(&settings)
		if err != nil {
			return nil, nil, err
		}
		return writer, agent, nil
	default:
		return nil, nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides config.server_addr)"},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c, true)
			if err != nil {
				return err
			}
			srv, err := server.New(a.orch, a.cache, a.cfg, a.logger)
			if err != nil {
				return err
			}
			listen := a.cfg.ServerAddr
			if addr := c.String("addr"); addr != "" {
				listen = addr
			}

			httpSrv := &http.Server{
				Addr:              listen,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       2 * time.Minute,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("starting web server", slog.String("addr", listen), slog.String("provider", a.cfg.LLM.Provider))
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
}

func transcriptCmd() *cli.Command {
	return &cli.Command{
		Name:  "transcript",
		Usage: "Print the transcript of a video",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "video", Required: true, Usage: "YouTube video id or URL"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Value: transcript.DefaultLanguage, Usage: "transcript language code"},
			&cli.BoolFlag{Name: "refresh", Usage: "bypass the cache"},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c, false)
			if err != nil {
				return err
			}
			text, err := a.cache.Get(c.Context, c.String("video"), c.String("language"), c.Bool("refresh"))
			if err != nil {
				return errors.New(transcript.Describe(err))
			}
			fmt.Fprintln(c.App.Writer, text)
			return nil
		},
	}
}

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate posts for a video",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "video", Required: true, Usage: "YouTube video id or URL"},
			&cli.StringSliceFlag{Name: "platform", Aliases: []string{"p"}, Usage: "target platform (repeatable)"},
			&cli.StringFlag{Name: "language", Aliases: []string{"l"}, Usage: "output language (defaults to config.default_language)"},
			&cli.StringFlag{Name: "out", Usage: "directory to export posts as .md and .html"},
			&cli.BoolFlag{Name: "stream", Usage: "generate platform by platform and print progress"},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c, false)
			if err != nil {
				return err
			}
			req := pipeline.Request{
				VideoID:   c.String("video"),
				Platforms: c.StringSlice("platform"),
				Language:  a.cfg.DefaultLanguage,
			}
			if len(req.Platforms) == 0 {
				req.Platforms = a.cfg.DefaultPlatforms
			}
			if c.IsSet("language") {
				req.Language = c.String("language")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var res *pipeline.Result
			if c.Bool("stream") {
				res, err = streamToWriter(ctx, a.orch, req, c.App.Writer)
			} else {
				res, err = a.orch.Run(ctx, req)
				if err == nil {
					for _, p := range res.Posts {
						fmt.Fprintf(c.App.Writer, "== %s ==\n%s\n\n", p.Platform, p.Content)
					}
				}
			}
			if err != nil {
				return err
			}

			if dir := c.String("out"); dir != "" {
				paths, err := publisher.WriteBatch(dir, res, a.logger)
				if err != nil {
					return err
				}
				a.logger.Info("batch exported", slog.String("dir", dir), slog.Int("files", len(paths)))
			}
			return nil
		},
	}
}
