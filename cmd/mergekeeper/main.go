package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/mergekeeper/internal/cfg"
	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/keeper"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/provider/github"
)

const appName = "mergekeeper"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func registerShutdown(name string, srv *http.Server) {
	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating "+name+" server",
			logfields.Event(name+"_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down "+name+" server failed",
				logfields.Event(name+"_server_termination_failed"),
				zap.Error(err),
			)
		}
	})
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, mux *http.ServeMux) {
	httpsServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Minute,
	}

	registerShutdown("https", &httpsServer)

	go func() {
		defer panicHandler()

		logger.Info(
			"https server started",
			logfields.Event("https_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpsServer.ListenAndServeTLS(certFile, keyFile)
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("https server terminated", logfields.Event("https_server_terminated"))
			return
		}

		logger.Fatal(
			"https server terminated unexpectedly",
			logfields.Event("https_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: time.Minute,
	}

	registerShutdown("http", &httpServer)

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	EnvFile     *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/mergekeeper/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the mergekeeper configuration file",
		),
		EnvFile: pflag.String(
			"env-file",
			"",
			"path to a .env file, its variables overwrite settings of the configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nMerge pull requests of dependency update bots when they become mergeable.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	config := cfg.Default()

	file, err := os.Open(*args.ConfigFile)
	switch {
	case err == nil:
		defer file.Close()

		config, err = cfg.Load(file)
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)

	case errors.Is(err, fs.ErrNotExist) && !pflag.CommandLine.Changed("cfg-file"):
		// the default configuration file is optional, settings can be
		// passed via environment variables

	default:
		exitOnErr("could not open configuration file", err)
	}

	if *args.EnvFile != "" {
		exitOnErr(
			fmt.Sprintf("could not load env file: %s", *args.EnvFile),
			godotenv.Load(*args.EnvFile),
		)
	}

	exitOnErr("applying environment variables failed", config.ApplyEnv(os.Getenv))
	exitOnErr("invalid configuration", config.Validate())

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustKeeperConfig(config *cfg.Config) *keeper.Config {
	durations, err := config.Merge.Durations()
	exitOnErr("invalid merge configuration", err)

	return &keeper.Config{
		TrustedIdentities:   config.Merge.TrustedIdentities,
		FilterQuery:         config.Merge.FilterQuery,
		SquashMerges:        config.Merge.SquashMerges,
		DeleteBranches:      config.Merge.DeleteBranches,
		PollInitialInterval: durations.PollInitialInterval,
		PollIntervalStep:    durations.PollIntervalStep,
		PollTimeout:         durations.PollTimeout,
		MergeRetryInterval:  durations.MergeRetryInterval,
		CommentSignature:    config.Merge.CommentSignature,
	}
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	keeperCfg := mustKeeperConfig(config)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("metrics_endpoint", config.HTTPMetricsEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("github_user", config.GithubUser),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("github_api_url", config.GithubAPIURL),
		zap.String("github_graphql_url", config.GithubGraphQLURL),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.Strings("trusted_identities", keeperCfg.TrustedIdentities),
		zap.String("filter_query", keeperCfg.FilterQuery),
		zap.Bool("squash_merges", keeperCfg.SquashMerges),
		zap.Bool("delete_branches", keeperCfg.DeleteBranches),
		zap.Duration("poll_initial_interval", keeperCfg.PollInitialInterval),
		zap.Duration("poll_interval_step", keeperCfg.PollIntervalStep),
		zap.Duration("poll_timeout", keeperCfg.PollTimeout),
		zap.Duration("merge_retry_interval", keeperCfg.MergeRetryInterval),
		zap.String("comment_signature", keeperCfg.CommentSignature),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	githubClient, err := githubclt.New(
		githubclt.Credentials{
			User:  config.GithubUser,
			Token: config.GithubAPIToken,
		},
		githubclt.WithBaseURL(config.GithubAPIURL),
		githubclt.WithGraphQLURL(config.GithubGraphQLURL),
	)
	exitOnErr("could not create github client", err)

	dispatcher, err := keeper.NewDispatcher(githubClient, keeperCfg)
	exitOnErr("could not create event dispatcher", err)

	go dispatcher.Start()

	gh := github.New(
		[]chan<- *github.Event{dispatcher.C()},
		github.WithPayloadSecret(config.GithubWebHookSecret),
	)

	mux := http.NewServeMux()

	mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	if config.HTTPMetricsEndpoint != "" {
		mux.Handle(config.HTTPMetricsEndpoint, promhttp.Handler())
		logger.Info(
			"registered prometheus metrics http endpoint",
			logfields.Event("metrics_http_handler_registered"),
			zap.String("endpoint", config.HTTPMetricsEndpoint),
		)
	}

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			mux,
		)
	}

	// runs after the servers were shut down, no further events are sent
	// to the closed channel
	goodbye.RegisterWithPriority(func(context.Context, os.Signal) {
		logger.Info(
			"stopping event dispatcher, cancelling running pipelines",
			logfields.Event("event_dispatcher_stopping"),
		)

		dispatcher.Stop()
	}, 1)

	select {}
}
