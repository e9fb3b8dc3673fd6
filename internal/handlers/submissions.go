package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"galamsey-report-backend/internal/draft"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/submission"
	"galamsey-report-backend/internal/wallet"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultAwait is how long a request waits for a submission to settle before
// answering 202.
const DefaultAwait = 2 * time.Second

// ExplorerLinker builds block explorer links. *wallet.Client satisfies it.
type ExplorerLinker interface {
	ExplorerURL(txHash string) string
}

type SubmissionsHandler struct {
	registry    *submission.Registry
	medium      draft.Medium
	connections *wallet.Connections
	deps        submission.Deps
	explorer    ExplorerLinker
	await       time.Duration
	logger      zerolog.Logger
}

// NewSubmissionsHandler takes deps without Draft; each submission gets the
// caller's draft store.
func NewSubmissionsHandler(
	registry *submission.Registry,
	medium draft.Medium,
	connections *wallet.Connections,
	deps submission.Deps,
	explorer ExplorerLinker,
	logger zerolog.Logger,
) *SubmissionsHandler {
	return &SubmissionsHandler{
		registry:    registry,
		medium:      medium,
		connections: connections,
		deps:        deps,
		explorer:    explorer,
		await:       DefaultAwait,
		logger:      logger,
	}
}

// SetAwait changes how long requests wait for an outcome.
func (h *SubmissionsHandler) SetAwait(d time.Duration) {
	h.await = d
}

// CreateSubmission godoc
// @Summary     Submit the current draft
// @Description Validates and stores the draft, then records its hash on chain when a wallet is connected. Answers 200 once settled, or 202 while still running; poll GET /submissions/{id}.
// @Tags        submissions
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.SubmissionResponse
// @Success     202 {object} models.SubmissionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /submissions [post]
func (h *SubmissionsHandler) CreateSubmission(c *gin.Context) {
	if h.deps.Store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "database not available"})
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	sub, created := h.registry.Open(userID, func() *submission.Submission {
		deps := h.deps
		deps.Draft = draft.NewStore(h.medium, userID, h.logger)
		deps.Logger = h.logger
		return submission.New(userID, h.connections.Address(userID), deps)
	})
	if !created {
		// Double submit while the first is still running.
		h.respondState(c, sub.Snapshot())
		return
	}

	if err := h.run(c, sub.Start); err != nil {
		h.respondRunError(c, err)
		return
	}
	h.respondState(c, sub.Snapshot())
}

// GetSubmission godoc
// @Summary     Get submission status
// @Tags        submissions
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Submission ID"
// @Success     200 {object} models.SubmissionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /submissions/{id} [get]
func (h *SubmissionsHandler) GetSubmission(c *gin.Context) {
	sub, ok := h.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.toResponse(sub.Snapshot()))
}

// RetryChain godoc
// @Summary     Retry chain recording
// @Description Re-runs only the chain step for a stored report. Allowed from partially-succeeded.
// @Tags        submissions
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Submission ID"
// @Success     200 {object} models.SubmissionResponse
// @Success     202 {object} models.SubmissionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /submissions/{id}/retry-chain [post]
func (h *SubmissionsHandler) RetryChain(c *gin.Context) {
	sub, ok := h.lookup(c)
	if !ok {
		return
	}

	retry := func(ctx context.Context) error {
		return sub.RetryChain(ctx, h.connections.Address(sub.Owner()))
	}
	if err := h.run(c, retry); err != nil {
		h.respondRunError(c, err)
		return
	}
	h.respondState(c, sub.Snapshot())
}

// RetrySubmission godoc
// @Summary     Retry a failed submission
// @Description Runs the whole flow again from the kept draft. Allowed from failed.
// @Tags        submissions
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Submission ID"
// @Success     200 {object} models.SubmissionResponse
// @Success     202 {object} models.SubmissionResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /submissions/{id}/retry [post]
func (h *SubmissionsHandler) RetrySubmission(c *gin.Context) {
	sub, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := h.run(c, sub.Retry); err != nil {
		h.respondRunError(c, err)
		return
	}
	h.respondState(c, sub.Snapshot())
}

// DiscardSubmission godoc
// @Summary     Leave the confirmation step
// @Description Cancels in-flight work; late results are dropped.
// @Tags        submissions
// @Security    Bearer
// @Param       id path string true "Submission ID"
// @Success     204
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /submissions/{id} [delete]
func (h *SubmissionsHandler) DiscardSubmission(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid submission id"})
		return
	}

	if !h.registry.Discard(userID, id) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "submission not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SubmissionsHandler) lookup(c *gin.Context) (*submission.Submission, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid submission id"})
		return nil, false
	}

	sub, found := h.registry.Get(userID, id)
	if !found {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "submission not found"})
		return nil, false
	}
	return sub, true
}

// run starts fn detached from the request and waits up to h.await for it.
// Precondition errors come back immediately; outcomes are read from the
// snapshot.
func (h *SubmissionsHandler) run(c *gin.Context, fn func(context.Context) error) error {
	ctx := context.WithoutCancel(c.Request.Context())
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	timer := time.NewTimer(h.await)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return nil
	}
}

func (h *SubmissionsHandler) respondRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, submission.ErrRetryInFlight):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "chain recording already in progress", Code: "retry_in_flight"})
	case errors.Is(err, submission.ErrRetryNotAllowed):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "retry not allowed", Code: "retry_not_allowed"})
	case errors.Is(err, submission.ErrAlreadyStarted):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "submission already started", Code: "already_started"})
	case errors.Is(err, submission.ErrNoWallet):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "no wallet connected", Message: "Connect a wallet to record the report on chain.", Code: "no_wallet"})
	case errors.Is(err, submission.ErrWalletChanged):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "wallet changed", Message: "Reconnect the wallet the report was submitted with.", Code: "wallet_changed"})
	case errors.Is(err, submission.ErrDiscarded):
		c.JSON(http.StatusGone, models.ErrorResponse{Error: "submission discarded", Code: "discarded"})
	default:
		h.logger.Error().Err(err).Msg("Submission failed unexpectedly")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "submission failed"})
	}
}

func (h *SubmissionsHandler) respondState(c *gin.Context, st submission.State) {
	status := http.StatusAccepted
	if st.Status.Settled() {
		status = http.StatusOK
	}
	c.JSON(status, h.toResponse(st))
}

func (h *SubmissionsHandler) toResponse(st submission.State) models.SubmissionResponse {
	resp := models.SubmissionResponse{
		ID:            st.ID.String(),
		Status:        string(st.Status),
		DBSuccess:     st.DBSuccess,
		ChainSuccess:  st.ChainSuccess,
		ReportHash:    st.ReportHash,
		TxHash:        st.TxHash,
		Error:         st.LastError,
		Code:          st.Code,
		CanRetry:      st.Status == submission.StatusFailed,
		CanRetryChain: st.Status == submission.StatusPartiallySucceeded,
	}
	if st.DBSuccess {
		resp.ReportID = st.ReportID.String()
	}
	if st.TxHash != "" && h.explorer != nil {
		resp.ExplorerURL = h.explorer.ExplorerURL(st.TxHash)
	}
	if st.Rewards != nil {
		r := rewardsResponse(*st.Rewards)
		resp.Rewards = &r
	}
	return resp
}
