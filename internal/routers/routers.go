package routers

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/talentbridge-io/talentbridge/internal/handlers"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const name = "github.com/talentbridge-io/talentbridge/internal/routers"

type APIRouterOptions struct {
	Logger          *zap.SugaredLogger
	Api             *handlers.API
	DB              *gorm.DB
	ClientIdWeb     string
	ClientIdCli     string
	OidcURL         string
	OidcBackchannel string
	InsecureTLS     bool
	AdminRole       string
}

func NewAPIRouter(ctx context.Context, o APIRouterOptions) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	loggerMiddleware := ginzap.GinzapWithConfig(o.Logger.Desugar(), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{
				zap.String("traceID", trace.SpanFromContext(c.Request.Context()).SpanContext().TraceID().String()),
			}
		},
	})

	r.Use(otelgin.Middleware(name, otelgin.WithPropagators(
		propagation.TraceContext{},
	)))
	r.Use(ginzap.RecoveryWithZap(o.Logger.Desugar(), true))

	newPrometheus().Use(r)

	private := r.Group("/api", loggerMiddleware)
	{
		api := o.Api

		validateJWT, err := newValidateJWT(ctx, o)
		if err != nil {
			return nil, err
		}
		private.Use(validateJWT)
		private.Use(ResolveActor(o.Logger, o.DB))

		// Feature Flags
		private.GET("fflags", api.ListFeatureFlags)
		private.GET("fflags/:name", api.GetFeatureFlag)

		// Introductions
		private.GET("/introductions", api.ListIntroductions)
		private.POST("/introductions", api.CreateIntroduction)
		private.GET("/introductions/:introduction", api.GetIntroduction)
		private.PATCH("/introductions/:introduction/status", api.UpdateIntroduction)

		// Job Roles
		private.GET("/job-roles", api.ListJobRoles)
		private.POST("/job-roles", api.CreateJobRole)
		private.GET("/job-roles/:job-role", api.GetJobRole)
		private.PATCH("/job-roles/:job-role/status", api.UpdateJobRole)

		// Candidates
		private.GET("/candidates/me", api.GetCurrentCandidate)
		private.PATCH("/candidates/me", api.UpdateCurrentCandidate)
		private.GET("/candidates/:candidate", api.GetCandidate)

		// Privacy Firewall
		private.POST("/privacy/block", api.BlockOrganization)
		private.POST("/privacy/unblock", api.UnblockOrganization)
		private.GET("/privacy/status", api.GetPrivacyStatus)

		// Organizations
		private.POST("/organizations", api.CreateOrganization)
		private.GET("/organizations/me/credits", api.GetOrganizationCredits)

		// Notifications
		private.GET("/notifications", api.ListNotifications)
	}

	// Don't log the health/readiness checks.
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "UP",
		})
	})
	r.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "UP",
		})
	})

	return r, nil
}

func newValidateJWT(ctx context.Context, o APIRouterOptions) (func(*gin.Context), error) {
	if o.InsecureTLS {
		transport := &http.Transport{
			// #nosec -- G402: TLS InsecureSkipVerify set true.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		client := &http.Client{Transport: transport}
		ctx = oidc.ClientContext(ctx, client)
	}

	oidcURL := o.OidcURL
	if o.OidcBackchannel != "" {
		ctx = oidc.InsecureIssuerURLContext(ctx, o.OidcURL)
		oidcURL = o.OidcBackchannel
	}
	provider, err := oidc.NewProvider(ctx, oidcURL)
	if err != nil {
		return nil, err
	}

	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return ValidateJWT(o.Logger, verifier, o.ClientIdWeb, o.ClientIdCli, o.AdminRole), nil
}

func newPrometheus() *ginprometheus.Prometheus {
	p := ginprometheus.NewPrometheus("apiserver")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		url := c.Request.URL.Path
		for _, p := range c.Params {
			switch p.Key {
			case "introduction", "job-role", "candidate":
				url = strings.Replace(url, p.Value, ":"+p.Key, 1)
			}
		}
		return url
	}
	return p
}
