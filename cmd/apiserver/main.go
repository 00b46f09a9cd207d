package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/talentbridge-io/talentbridge/internal/database"
	"github.com/talentbridge-io/talentbridge/internal/email"
	"github.com/talentbridge-io/talentbridge/internal/fflags"
	"github.com/talentbridge-io/talentbridge/internal/handlers"
	"github.com/talentbridge-io/talentbridge/internal/routers"
	"github.com/talentbridge-io/talentbridge/internal/util"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.18.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/credentials"
	"gorm.io/gorm"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("apiserver")
}

const expirySweepInterval = 15 * time.Minute

// @title               TalentBridge API
// @description         This is the TalentBridge API Server.
// @version             1.0
// @contact.name        The TalentBridge Authors
// @contact.url         https://github.com/talentbridge-io/talentbridge/issues
// @license.name        Apache 2.0
// @license.url         http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath            /
func main() {
	// Override to capitalize "Show"
	cli.HelpFlag.(*cli.BoolFlag).Usage = "Show help"
	app := &cli.Command{
		Name: "apiserver",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Value:   false,
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("TBAPI_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Value:   "0.0.0.0:8080",
				Usage:   "The address and port to listen for HTTP requests on",
				Sources: cli.EnvVars("TBAPI_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "oidc-url",
				Value:   "https://auth.talentbridge.127.0.0.1.nip.io",
				Usage:   "Address of oidc provider",
				Sources: cli.EnvVars("TBAPI_OIDC_URL"),
			},
			&cli.StringFlag{
				Name:    "oidc-backchannel-url",
				Value:   "",
				Usage:   "Backend address of oidc provider",
				Sources: cli.EnvVars("TBAPI_OIDC_BACKCHANNEL"),
			},
			&cli.BoolFlag{
				Name:    "insecure-tls",
				Value:   false,
				Usage:   "Trust any TLS certificate",
				Sources: cli.EnvVars("TBAPI_INSECURE_TLS"),
			},
			&cli.StringFlag{
				Name:    "oidc-client-id-web",
				Value:   "talentbridge-web",
				Usage:   "OIDC client id for web",
				Sources: cli.EnvVars("TBAPI_OIDC_CLIENT_ID_WEB"),
			},
			&cli.StringFlag{
				Name:    "oidc-client-id-cli",
				Value:   "talentbridge-cli",
				Usage:   "OIDC client id for cli",
				Sources: cli.EnvVars("TBAPI_OIDC_CLIENT_ID_CLI"),
			},
			&cli.StringFlag{
				Name:    "admin-role",
				Value:   "talentbridge-admin",
				Usage:   "Identity provider role that marks platform administrators",
				Sources: cli.EnvVars("TBAPI_ADMIN_ROLE"),
			},
			&cli.StringFlag{
				Name:    "db-host",
				Value:   "apiserver-db",
				Usage:   "Database host name",
				Sources: cli.EnvVars("TBAPI_DB_HOST"),
			},
			&cli.StringFlag{
				Name:    "db-port",
				Value:   "5432",
				Usage:   "Database port",
				Sources: cli.EnvVars("TBAPI_DB_PORT"),
			},
			&cli.StringFlag{
				Name:    "db-user",
				Value:   "apiserver",
				Usage:   "Database user",
				Sources: cli.EnvVars("TBAPI_DB_USER"),
			},
			&cli.StringFlag{
				Name:    "db-password",
				Value:   "secret",
				Usage:   "Database password",
				Sources: cli.EnvVars("TBAPI_DB_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "db-name",
				Value:   "apiserver",
				Usage:   "Database name",
				Sources: cli.EnvVars("TBAPI_DB_NAME"),
			},
			&cli.StringFlag{
				Name:    "db-sslmode",
				Value:   "disable",
				Usage:   "Database ssl mode",
				Sources: cli.EnvVars("TBAPI_DB_SSLMODE"),
			},
			&cli.BoolFlag{
				Name:    "trace-insecure",
				Value:   false,
				Usage:   "Set OTLP endpoint to insecure mode",
				Sources: cli.EnvVars("TBAPI_TRACE_INSECURE"),
			},
			&cli.StringFlag{
				Name:    "trace-endpoint",
				Value:   "",
				Usage:   "OTLP endpoint for trace data",
				Sources: cli.EnvVars("TBAPI_TRACE_ENDPOINT_OTLP"),
			},
			&cli.StringFlag{
				Name:     "url",
				Usage:    "The server url",
				Required: true,
				Sources:  cli.EnvVars("TBAPI_URL"),
			},
			&cli.StringFlag{
				Name:     "redis-server",
				Usage:    "Redis host:port address",
				Value:    "redis:6379",
				Sources:  cli.EnvVars("TBAPI_REDIS_SERVER"),
				Required: true,
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database to be selected after connecting to the server.",
				Value:   1,
				Sources: cli.EnvVars("TBAPI_REDIS_DB"),
			},
			&cli.StringFlag{
				Name:    "smtp-host-port",
				Usage:   "SMTP server host:port address",
				Sources: cli.EnvVars("TBAPI_SMTP_HOST_PORT"),
			},
			&cli.StringFlag{
				Name:    "smtp-user",
				Usage:   "SMTP server user name",
				Sources: cli.EnvVars("TBAPI_SMTP_USER"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Usage:   "SMTP server password",
				Sources: cli.EnvVars("TBAPI_SMTP_PASSWORD"),
			},
			&cli.BoolFlag{
				Name:    "smtp-tls",
				Usage:   "Use TLS to connect to the SMTP server",
				Sources: cli.EnvVars("TBAPI_SMTP_TLS"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Usage:   "The from address to use for emails",
				Sources: cli.EnvVars("TBAPI_SMTP_FROM"),
			},
		},

		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, _ = signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
			ctx, span := tracer.Start(ctx, "Run")
			defer span.End()
			withLoggerAndDB(ctx, command, func(logger *zap.Logger, db *gorm.DB, dsn string) {
				if err := database.Migrations().Migrate(ctx, db); err != nil {
					log.Fatal(err)
				}

				wg := &sync.WaitGroup{}

				fflags := fflags.NewFFlags(logger.Sugar())

				redisClient := redis.NewClient(&redis.Options{
					Addr: command.String("redis-server"),
					DB:   int(command.Int("redis-db")),
				})
				err := util.RetryOperation(ctx, time.Second, 5, func() error {
					return redisClient.Ping(ctx).Err()
				})
				if err != nil {
					log.Fatal(err)
				}

				api, err := handlers.NewAPI(ctx, logger.Sugar(), db, fflags, redisClient)
				if err != nil {
					log.Fatal(err)
				}

				api.URL = command.String("url")
				if _, err := url.Parse(api.URL); err != nil {
					log.Fatal(err)
				}

				smtpServer := email.SmtpServer{
					HostPort: command.String("smtp-host-port"),
					User:     command.String("smtp-user"),
					Password: command.String("smtp-password"),
				}
				if command.Bool("smtp-tls") { // #nosec G402
					smtpServer.Tls = &tls.Config{
						InsecureSkipVerify: command.Bool("insecure-tls"),
					}
				}
				api.Notifier().SmtpServer = smtpServer
				api.Notifier().SmtpFrom = command.String("smtp-from")

				router, err := routers.NewAPIRouter(ctx, routers.APIRouterOptions{
					Logger:          logger.Sugar(),
					Api:             api,
					DB:              db,
					ClientIdWeb:     command.String("oidc-client-id-web"),
					ClientIdCli:     command.String("oidc-client-id-cli"),
					OidcURL:         command.String("oidc-url"),
					OidcBackchannel: command.String("oidc-backchannel-url"),
					InsecureTLS:     command.Bool("insecure-tls"),
					AdminRole:       command.String("admin-role"),
				})
				if err != nil {
					log.Fatal(err)
				}

				sweepEnabled, err := fflags.GetFlag("introduction-expiry-sweep")
				if err != nil {
					log.Fatal(err)
				}
				if sweepEnabled {
					util.GoWithWaitGroup(wg, func() {
						util.RunPeriodically(ctx, expirySweepInterval, func() {
							if err := api.SweepExpiredIntroductions(ctx); err != nil {
								logger.Sugar().Errorw("introduction expiry sweep failed", "error", err)
							}
						})
					})
				}

				httpServer := &http.Server{
					Addr:              command.String("listen"),
					Handler:           router,
					ReadTimeout:       5 * time.Second,
					ReadHeaderTimeout: 5 * time.Second,
					WriteTimeout:      10 * time.Second,
				}
				defer util.IgnoreError(httpServer.Close)

				serveErrors := make(chan error, 1)
				util.GoWithWaitGroup(wg, func() {
					if err = httpServer.ListenAndServe(); err != nil {
						serveErrors <- err
					}
				})

				// Wait for a shutdown signal or a server error
				beginShutdown := &sync.WaitGroup{}
				util.GoWithWaitGroup(beginShutdown, func() {
					select {
					case err := <-serveErrors:
						serveErrors <- err // put it back
					case <-ctx.Done():
					}
				})
				beginShutdown.Wait()

				// Try to do a graceful shutdown of the server for 5 seconds...
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				go func() {
					_ = httpServer.Shutdown(shutdownCtx)
				}()

				serversDone := make(chan struct{})
				go func() {
					wg.Wait()
					close(serversDone)
				}()

				err = nil
			forLoop:
				for {
					select {
					case err = <-serveErrors: // save any errors
					case <-shutdownCtx.Done():
						break forLoop
					case <-serversDone:
						break forLoop
					}
				}

				if err != nil && err != http.ErrServerClosed {
					log.Fatal(err)
				}
			})
			return nil
		},
	}
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "rollback",
		Usage: "Rollback the last database migration",
		Action: func(ctx context.Context, command *cli.Command) error {

			withLoggerAndDB(ctx, command, func(logger *zap.Logger, db *gorm.DB, dsn string) {
				if err := database.Migrations().RollbackLast(ctx, db); err != nil {
					log.Fatal(err)
				}
			})
			return nil
		},
	})
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "sweep",
		Usage: "Run a single introduction expiry sweep and exit",
		Action: func(ctx context.Context, command *cli.Command) error {

			withLoggerAndDB(ctx, command, func(logger *zap.Logger, db *gorm.DB, dsn string) {
				fflags := fflags.NewFFlags(logger.Sugar())
				api, err := handlers.NewAPI(ctx, logger.Sugar(), db, fflags, nil)
				if err != nil {
					log.Fatal(err)
				}
				if err := api.SweepExpiredIntroductions(ctx); err != nil {
					log.Fatal(err)
				}
			})
			return nil
		},
	})

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getLogger(command *cli.Command) *zap.Logger {
	var logger *zap.Logger
	var err error
	// set the log level
	if command.Bool("debug") {
		logConfig := zap.NewProductionConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		logger, err = logConfig.Build()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func withLoggerAndDB(ctx context.Context, command *cli.Command, f func(logger *zap.Logger, db *gorm.DB, dsn string)) {
	logger := getLogger(command)
	cleanup := initTracer(logger.Sugar(), command.Bool("trace-insecure"), command.String("trace-endpoint"))
	defer func() {
		if cleanup == nil {
			return
		}
		if err := cleanup(ctx); err != nil {
			logger.Error(err.Error())
		}
	}()

	db, dsn, err := database.NewDatabase(
		ctx,
		logger.Sugar(),
		command.String("db-host"),
		command.String("db-user"),
		command.String("db-password"),
		command.String("db-name"),
		command.String("db-port"),
		command.String("db-sslmode"),
	)
	if err != nil {
		log.Fatal(err)
	}

	f(logger, db, dsn)
}

func initTracer(logger *zap.SugaredLogger, insecure bool, collector string) func(context.Context) error {
	if collector == "" {
		logger.Info("No collector endpoint configured")
		otel.SetTracerProvider(
			sdktrace.NewTracerProvider(
				sdktrace.WithSampler(sdktrace.AlwaysSample()),
			),
		)
		return nil
	}
	secureOption := otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, ""))
	if insecure {
		secureOption = otlptracegrpc.WithInsecure()
	}
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			secureOption,
			otlptracegrpc.WithEndpoint(collector),
		),
	)
	if err != nil {
		logger.Errorf("Unable to create open telemetry exporter: %s", err.Error())
		return nil
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "apiserver"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		logger.Errorf("Unable to create resources: %s", err.Error())
		return nil
	}

	deployEnvironment := os.Getenv("TBAPI_ENVIRONMENT")
	if deployEnvironment == "" {
		deployEnvironment = "development"
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName("apiserver"),
				semconv.DeploymentEnvironment(deployEnvironment),
			)),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown
}
