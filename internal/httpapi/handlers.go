package httpapi

import (
	"errors"
	"net/http"
	"time"

	"engagement-platform/internal/auth"
	"engagement-platform/internal/automation"
	"engagement-platform/internal/clients"
	"engagement-platform/internal/escalation"
	"engagement-platform/internal/plans"
	"engagement-platform/internal/rbac"
	"engagement-platform/internal/reporting"
	"engagement-platform/internal/ringgroup"
	"engagement-platform/internal/sequence"
	"engagement-platform/internal/telephony"
	"engagement-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth        *auth.Manager
	Clients     clients.Repository
	Automation  *automation.Service
	Sequences   *sequence.Scheduler
	Router      *ringgroup.Router
	Escalations *escalation.Queue
	Reports     *reporting.Service
	Plans       *plans.Service

	// LegCallbackURL and DialCompleteURL are the public callback endpoints
	// baked into inbound-call TwiML.
	LegCallbackURL  string
	DialCompleteURL string

	RingTimeout time.Duration
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

// Login issues an access token.
//
// NOTE: Credential validation lives in the surrounding web application; this
// service only mints tokens for callers the gateway already authenticated.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.ClientID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, client_id, role required"})
		return
	}
	token, err := h.Auth.IssueAccess(time.Now(), req.UserID, req.ClientID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// --- Twilio webhooks ---

// HandleInboundVoice answers a live caller on a client number with the
// ring-group TwiML, or the voicemail offer when nobody is eligible.
func (h Handlers) HandleInboundVoice(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "bad form")
		return
	}
	to := c.Request.PostFormValue("To")
	from := c.Request.PostFormValue("From")

	client, err := h.Clients.GetByNumber(c.Request.Context(), to)
	if err != nil {
		logger.FromGin(c).Warn("inbound call for unknown number", "to", to)
		c.String(http.StatusNotFound, "unknown number")
		return
	}

	attempt, plan, err := h.Automation.HandleInboundCall(c.Request.Context(), client.ID, from)
	if err != nil {
		c.String(http.StatusInternalServerError, "call routing failed")
		return
	}

	var twiml string
	if len(plan) == 0 {
		twiml, err = telephony.RenderVoicemailOffer(client.CompanyName)
	} else {
		twiml, err = telephony.RenderRingGroup(telephony.RingGroupParams{
			AttemptID:       attempt.ID,
			MemberPhones:    plan,
			RingTimeout:     h.RingTimeout,
			LegCallbackURL:  h.LegCallbackURL,
			DialCompleteURL: h.DialCompleteURL,
		})
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "twiml render failed")
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(twiml))
}

// HandleLegStatus processes one member leg's status callback. A lost
// first-answer race is an expected no-op and still acknowledged with 200,
// otherwise Twilio retries the callback.
func (h Handlers) HandleLegStatus(c *gin.Context) {
	form, err := telephony.ParseLegStatus(c.Request)
	if err != nil {
		c.String(http.StatusBadRequest, "bad form")
		return
	}
	if form.Answered() {
		if _, err := h.Router.HandleLegAnswered(c.Request.Context(), form.AttemptID, form.MemberID, time.Now().UTC()); err != nil {
			c.String(http.StatusInternalServerError, "leg handling failed")
			return
		}
	}
	h.emptyTwiML(c)
}

// HandleDialComplete processes the aggregate dial outcome.
func (h Handlers) HandleDialComplete(c *gin.Context) {
	form, err := telephony.ParseDialComplete(c.Request)
	if err != nil {
		c.String(http.StatusBadRequest, "bad form")
		return
	}
	if err := h.Router.HandleDialComplete(c.Request.Context(), form.AttemptID, form.NoAnswer(), time.Now().UTC()); err != nil {
		c.String(http.StatusInternalServerError, "dial completion failed")
		return
	}
	h.emptyTwiML(c)
}

// HandleInboundSMS routes a lead's reply through the automation service
// (opt-out, human request, action-required).
func (h Handlers) HandleInboundSMS(c *gin.Context) {
	form, err := telephony.ParseInboundSMS(c.Request)
	if err != nil {
		c.String(http.StatusBadRequest, "bad form")
		return
	}

	client, err := h.Clients.GetByNumber(c.Request.Context(), form.To)
	if err != nil {
		logger.FromGin(c).Warn("inbound sms for unknown number", "to", form.To)
		c.String(http.StatusNotFound, "unknown number")
		return
	}

	if _, err := h.Automation.HandleInboundSMS(c.Request.Context(), automation.InboundMessage{
		ClientID: client.ID,
		From:     form.From,
		Body:     form.Body,
	}); err != nil {
		c.String(http.StatusInternalServerError, "inbound handling failed")
		return
	}
	h.emptyTwiML(c)
}

func (h Handlers) emptyTwiML(c *gin.Context) {
	twiml, err := telephony.RenderEmpty()
	if err != nil {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(twiml))
}

// --- Claim links ---

type claimRequest struct {
	MemberID string `json:"member_id"`
}

// Claim resolves an escalation claim link. Each typed failure maps to its own
// status so the claim page renders a distinct message per reason.
func (h Handlers) Claim(c *gin.Context) {
	token := c.Param("token")
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Escalations.Claim(c.Request.Context(), token, req.MemberID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "claim failed"})
		return
	}

	switch res.Failure {
	case escalation.FailureNone:
		c.JSON(http.StatusOK, gin.H{"claim": res.Claim})
	case escalation.FailureInvalid:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid"})
	case escalation.FailureAlreadyClaimed:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":      "already_claimed",
			"claimed_by": res.ClaimedByName,
		})
	case escalation.FailureExpired:
		c.AbortWithStatusJSON(http.StatusGone, gin.H{"error": "expired"})
	}
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
	Notes      string `json:"notes,omitempty"`
	ReturnToAI bool   `json:"return_to_ai"`
}

// ResolveEscalation records the outcome of a claimed escalation. Only the
// claiming member or an agency admin may resolve.
func (h Handlers) ResolveEscalation(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	role, _ := auth.Role(c.Request.Context())

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	err = h.Escalations.Resolve(c.Request.Context(), escalation.ResolveRequest{
		ClaimID:     c.Param("claim_id"),
		MemberID:    userID,
		AgencyAdmin: rbac.IsAgencyAdmin(role),
		Resolution:  req.Resolution,
		Notes:       req.Notes,
		ReturnToAI:  req.ReturnToAI,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "resolved"})
	case errors.Is(err, escalation.ErrNotClaimOwner):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not the claiming member"})
	case errors.Is(err, escalation.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "claim not found or not claimed"})
	case errors.Is(err, escalation.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "resolution required"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
	}
}

type enqueueRequest struct {
	LeadID          string `json:"lead_id"`
	Reason          string `json:"reason"`
	LastLeadMessage string `json:"last_lead_message,omitempty"`
	TriggerCall     bool   `json:"trigger_call,omitempty"`
}

// EnqueueEscalation opens a hand-off for the caller's client.
func (h Handlers) EnqueueEscalation(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return
	}

	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	claim, err := h.Escalations.Enqueue(c.Request.Context(), escalation.EnqueueRequest{
		ClientID:        clientID,
		LeadID:          req.LeadID,
		Reason:          req.Reason,
		LastLeadMessage: req.LastLeadMessage,
		TriggerCall:     req.TriggerCall,
	})
	if err != nil {
		if errors.Is(err, escalation.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id and reason required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"claim": claim})
}

// --- Sequences ---

type startSequenceRequest struct {
	LeadID   string                `json:"lead_id"`
	Type     sequence.SequenceType `json:"type"`
	AnchorAt time.Time             `json:"anchor_at,omitempty"`
	Vars     map[string]string     `json:"vars,omitempty"`
}

func (h Handlers) StartSequence(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return
	}

	var req startSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Sequences.Start(c.Request.Context(), sequence.StartRequest{
		ClientID: clientID,
		LeadID:   req.LeadID,
		Type:     req.Type,
		AnchorAt: req.AnchorAt,
		Vars:     req.Vars,
	})
	if err != nil {
		if errors.Is(err, sequence.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id and valid type required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "start failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"created":    res.Created,
		"ids":        res.IDs,
		"superseded": res.Superseded,
	})
}

type cancelSequenceRequest struct {
	LeadID string                `json:"lead_id"`
	Type   sequence.SequenceType `json:"type,omitempty"`
	Reason string                `json:"reason,omitempty"`
}

func (h Handlers) CancelSequence(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return
	}

	var req cancelSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled_by_client"
	}

	cancelled, err := h.Sequences.Cancel(c.Request.Context(), clientID, req.LeadID, req.Type, reason)
	if err != nil {
		if errors.Is(err, sequence.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid sequence type"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// --- Triggers ---

type formSubmissionRequest struct {
	Phone        string                `json:"phone"`
	Name         string                `json:"name"`
	SequenceType sequence.SequenceType `json:"sequence_type,omitempty"`
	AnchorAt     time.Time             `json:"anchor_at,omitempty"`
	Vars         map[string]string     `json:"vars,omitempty"`
}

func (h Handlers) FormSubmission(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return
	}

	var req formSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Automation.HandleFormSubmission(c.Request.Context(), automation.FormSubmission{
		ClientID:     clientID,
		Phone:        req.Phone,
		Name:         req.Name,
		SequenceType: req.SequenceType,
		AnchorAt:     req.AnchorAt,
		Vars:         req.Vars,
	})
	if err != nil {
		if errors.Is(err, automation.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "form handling failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": res.Created, "superseded": res.Superseded})
}

type missedCallRequest struct {
	Phone string `json:"phone"`
}

func (h Handlers) MissedCall(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return
	}

	var req missedCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	attempt, err := h.Automation.HandleMissedCall(c.Request.Context(), clientID, req.Phone)
	if err != nil {
		if errors.Is(err, automation.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call routing failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attempt": attempt})
}

// --- Plans ---

// PlanUsage reports the caller's message consumption for the current month
// against the configured plan limit.
func (h Handlers) PlanUsage(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return
	}

	used, err := h.Plans.CurrentUsage(c.Request.Context(), clientID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage lookup failed"})
		return
	}
	client, err := h.Clients.Get(c.Request.Context(), clientID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "client lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"month": time.Now().UTC().Format("2006-01"),
		"used":  used,
		"limit": client.MonthlyMessageLimit,
	})
}

// --- Reporting ---

// ComplianceReport aggregates the audit trail for the caller's client over
// ?from=RFC3339&to=RFC3339[&category=...].
func (h Handlers) ComplianceReport(c *gin.Context) {
	clientID, err := auth.ClientID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return
	}

	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339"})
		return
	}

	report, err := h.Reports.ComplianceReport(c.Request.Context(), reporting.ComplianceReportRequest{
		ClientID: clientID,
		Range:    reporting.TimeRange{From: from, To: to},
		Category: c.Query("category"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}
