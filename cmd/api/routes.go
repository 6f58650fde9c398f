package main

import (
	"context"
	"database/sql"

	"engagement-platform/internal/audit"
	"engagement-platform/internal/auth"
	"engagement-platform/internal/automation"
	"engagement-platform/internal/clients"
	"engagement-platform/internal/compliance"
	"engagement-platform/internal/config"
	"engagement-platform/internal/cron"
	"engagement-platform/internal/escalation"
	"engagement-platform/internal/httpapi"
	"engagement-platform/internal/leads"
	"engagement-platform/internal/plans"
	"engagement-platform/internal/rbac"
	"engagement-platform/internal/reporting"
	"engagement-platform/internal/ringgroup"
	"engagement-platform/internal/sequence"
	"engagement-platform/internal/teams"
	"engagement-platform/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type deps struct {
	handlers httpapi.Handlers
	runner   *cron.Runner
}

// callStarter adapts the ring-group router to the escalation queue's
// narrower start surface.
type callStarter struct {
	router *ringgroup.Router
}

func (c callStarter) Start(ctx context.Context, clientID, leadID string) error {
	_, err := c.router.Start(ctx, clientID, leadID)
	return err
}

// buildDeps wires the whole engagement core. Everything flows through
// constructor injection; no globals, no service locators.
func buildDeps(cfg config.Config, db *sql.DB, rdb *redis.Client, authManager *auth.Manager) deps {
	clientRepo := clients.NewPostgresRepo(db)
	leadRepo := leads.NewPostgresRepo(db)
	teamRepo := teams.NewPostgresRepo(db)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	planSvc := plans.NewService(plans.NewPostgresRepo(db), plans.NewRedisCounter(rdb))
	store := compliance.NewPostgresStore(db)

	transport := telephony.NewTwilioTransport(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.BaseURL)

	gateway := compliance.NewGateway(store, planSvc, transport, auditSvc, clientRepo)
	scheduler := sequence.NewScheduler(sequence.NewPostgresRepo(db), gateway, leadRepo, clientRepo)

	legCallbackURL := cfg.Twilio.CallbackBaseURL + "/webhooks/twilio/voice/leg"
	dialCompleteURL := cfg.Twilio.CallbackBaseURL + "/webhooks/twilio/voice/complete"

	router := ringgroup.NewRouter(ringgroup.NewPostgresRepo(db), teamRepo, leadRepo, clientRepo, transport, transport, scheduler)
	router.RingTimeout = cfg.Scheduler.RingTimeout
	router.StatusCallbackURL = legCallbackURL

	queue := escalation.NewQueue(escalation.NewPostgresRepo(db), leadRepo, teamRepo, clientRepo, transport).
		WithCalls(callStarter{router: router})
	queue.ClaimLinkBaseURL = cfg.Twilio.CallbackBaseURL
	queue.ClaimSLA = cfg.Scheduler.ClaimSLA
	queue.ClaimExpiry = cfg.Scheduler.ClaimExpiry

	automationSvc := automation.NewService(leadRepo, scheduler, router, queue, store, auditSvc)
	reportSvc := reporting.NewService(auditSvc)

	runner := cron.NewRunner(scheduler, queue, planSvc)
	runner.DispatchInterval = cfg.Scheduler.DispatchInterval
	runner.SweepInterval = cfg.Scheduler.SLASweepInterval

	return deps{
		handlers: httpapi.Handlers{
			Auth:            authManager,
			Clients:         clientRepo,
			Automation:      automationSvc,
			Sequences:       scheduler,
			Router:          router,
			Escalations:     queue,
			Reports:         reportSvc,
			Plans:           planSvc,
			LegCallbackURL:  legCallbackURL,
			DialCompleteURL: dialCompleteURL,
			RingTimeout:     cfg.Scheduler.RingTimeout,
		},
		runner: runner,
	}
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps, authMW gin.HandlerFunc) {
	h := d.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by Twilio signature validation in production.
	{
		r.POST("/webhooks/twilio/voice", h.HandleInboundVoice)
		r.POST("/webhooks/twilio/voice/leg", h.HandleLegStatus)
		r.POST("/webhooks/twilio/voice/complete", h.HandleDialComplete)
		r.POST("/webhooks/twilio/sms", h.HandleInboundSMS)
	}

	// Claim links (public: the unguessable token is the credential).
	r.POST("/claim/:token", h.Claim)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			cid, _ := auth.ClientID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "client_id": cid, "role": role})
		})

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", h.Login)
		}

		// SEQUENCE routes
		sequences := v1.Group("/sequences")
		sequences.Use(rbac.RequireClient())
		sequences.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleTeamMember))
		{
			sequences.POST("/start", h.StartSequence)
			sequences.POST("/cancel", h.CancelSequence)
		}

		// TRIGGER routes (external collaborators: forms, phone system events)
		triggers := v1.Group("/triggers")
		triggers.Use(rbac.RequireClient())
		triggers.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleTeamMember))
		{
			triggers.POST("/form", h.FormSubmission)
			triggers.POST("/missed-call", h.MissedCall)
		}

		// ESCALATION routes
		escalations := v1.Group("/escalations")
		escalations.Use(rbac.RequireClient())
		escalations.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleTeamMember))
		{
			escalations.POST("", h.EnqueueEscalation)
			escalations.POST("/:claim_id/resolve", h.ResolveEscalation)
		}

		// REPORTING routes
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireClient())
		reports.Use(rbac.RequireAnyRole(rbac.RoleOwner))
		{
			reports.GET("/compliance", h.ComplianceReport)
		}

		// PLAN usage
		usage := v1.Group("/usage")
		usage.Use(rbac.RequireClient())
		usage.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleTeamMember))
		{
			usage.GET("", h.PlanUsage)
		}
	}

	// Internal cron triggers, for external schedulers that prefer HTTP over
	// the in-process ticker. Owner-only; every body is idempotent.
	internal := r.Group("/internal/cron")
	internal.Use(authMW)
	internal.Use(rbac.RequireAnyRole(rbac.RoleOwner))
	{
		internal.POST("/dispatch", func(c *gin.Context) {
			d.runner.RunDispatch(c.Request.Context())
			c.JSON(200, gin.H{"status": "ok"})
		})
		internal.POST("/sweep", func(c *gin.Context) {
			d.runner.RunSweep(c.Request.Context())
			c.JSON(200, gin.H{"status": "ok"})
		})
		internal.POST("/reset-monthly", func(c *gin.Context) {
			d.runner.RunMonthlyReset(c.Request.Context())
			c.JSON(200, gin.H{"status": "ok"})
		})
	}
}
