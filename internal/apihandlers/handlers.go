package apihandlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"transbooks/internal/app"
	"transbooks/internal/models"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// RegisterRoutes attaches the versioned API surface to the router.
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	jobGroup := v1.Group("/jobs")
	jobGroup.POST("", h.SubmitJobHandler)
	jobGroup.DELETE("", h.CancelHandler)
	jobGroup.POST("/:id/confirm", h.ConfirmJobHandler)
	jobGroup.GET("/:id", h.JobStatusHandler)
	jobGroup.GET("/:id/events", h.JobEventsHandler)

	userGroup := v1.Group("/users")
	userGroup.GET("/:id/balance", h.BalanceHandler)
	userGroup.POST("/:id/topup", h.TopupHandler)
	userGroup.PUT("/:id/format", h.SetFormatHandler)
}

// SubmitJobHandler accepts a multipart upload (fields: requester_id, file)
// and records a job pending confirmation, or rejects it with a reason.
func (h *APIHandler) SubmitJobHandler(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.PostForm("requester_id"), 10, 64)
	if err != nil {
		BadRequest(c, "requester_id must be an integer")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file upload: "+err.Error())
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		Internal(c, "open upload: "+err.Error())
		return
	}
	defer f.Close()
	source, err := io.ReadAll(f)
	if err != nil {
		Internal(c, "read upload: "+err.Error())
		return
	}

	job, err := h.App.Jobs.Submit(c.Request.Context(), requesterID, source, fileHeader.Filename)
	if err != nil {
		var ib *models.InsufficientBalanceError
		switch {
		case errors.As(err, &ib):
			InsufficientBalance(c, ib.Error(), ib.Deficit())
		case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNoText):
			BadRequest(c, err.Error())
		default:
			Internal(c, fmt.Sprintf("SubmitJobHandler: %v", err))
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"job_id":          job.ID,
		"filename":        job.Filename,
		"estimated_pages": job.PageCount,
		"estimated_cost":  job.Cost,
		"status":          job.Status,
	}})
}

type confirmRequest struct {
	RequesterID int64 `json:"requester_id"`
}

// ConfirmJobHandler promotes a pending job to running. The response returns
// immediately; progress is observed via the events stream.
func (h *APIHandler) ConfirmJobHandler(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RequesterID == 0 {
		BadRequest(c, "body must carry a non-zero requester_id")
		return
	}

	err := h.App.Jobs.Confirm(req.RequesterID, c.Param("id"))
	switch {
	case errors.Is(err, models.ErrNotFound):
		NotFound(c, "job not found or already consumed")
	case errors.Is(err, models.ErrJobActive):
		Conflict(c, err.Error())
	case err != nil:
		Internal(c, fmt.Sprintf("ConfirmJobHandler: %v", err))
	default:
		c.JSON(http.StatusAccepted, gin.H{"data": gin.H{
			"job_id": c.Param("id"),
			"status": models.JobStatusRunning,
		}})
	}
}

// CancelHandler cancels the requester's running job, or abandons their
// pending jobs when nothing is running.
func (h *APIHandler) CancelHandler(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.Query("requester_id"), 10, 64)
	if err != nil {
		BadRequest(c, "requester_id must be an integer")
		return
	}

	if h.App.Jobs.Cancel(requesterID) {
		c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"status": models.JobStatusCancelling}})
		return
	}
	if n := h.App.Jobs.CancelPending(requesterID); n > 0 {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"abandoned": n}})
		return
	}
	NotFound(c, "nothing active")
}

// JobStatusHandler returns a point-in-time snapshot of any known job.
func (h *APIHandler) JobStatusHandler(c *gin.Context) {
	ev, ok := h.App.Jobs.Status(c.Param("id"))
	if !ok {
		NotFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ev})
}

// JobEventsHandler streams progress over SSE until the terminal event.
func (h *APIHandler) JobEventsHandler(c *gin.Context) {
	events, ok := h.App.Jobs.Watch(c.Param("id"))
	if !ok {
		NotFound(c, "job not found or not confirmed")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(ev.Status), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// BalanceHandler returns the user's star balance.
func (h *APIHandler) BalanceHandler(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "user id must be an integer")
		return
	}
	balance, err := h.App.Ledger.Balance(c.Request.Context(), requesterID)
	if err != nil {
		Internal(c, fmt.Sprintf("BalanceHandler: %v", err))
		return
	}
	format, err := h.App.Ledger.Format(c.Request.Context(), requesterID)
	if err != nil {
		Internal(c, fmt.Sprintf("BalanceHandler: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"requester_id": requesterID,
		"balance":      balance,
		"format":       format,
	}})
}

var allowedFormats = map[string]bool{"md": true, "pdf": true, "epub": true}

type formatRequest struct {
	Format string `json:"format"`
}

// SetFormatHandler stores the user's preferred output format.
func (h *APIHandler) SetFormatHandler(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "user id must be an integer")
		return
	}
	var req formatRequest
	if err := c.ShouldBindJSON(&req); err != nil || !allowedFormats[req.Format] {
		BadRequest(c, "format must be one of md, pdf, epub")
		return
	}

	if _, err := h.App.Ledger.GetOrCreate(c.Request.Context(), requesterID, ""); err != nil {
		Internal(c, fmt.Sprintf("SetFormatHandler: %v", err))
		return
	}
	if err := h.App.Ledger.SetFormat(c.Request.Context(), requesterID, req.Format); err != nil {
		Internal(c, fmt.Sprintf("SetFormatHandler: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"requester_id": requesterID,
		"format":       req.Format,
	}})
}

type topupRequest struct {
	Amount  int64  `json:"amount"`
	Details string `json:"details"`
}

// TopupHandler credits purchased stars to a user's balance.
func (h *APIHandler) TopupHandler(c *gin.Context) {
	requesterID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "user id must be an integer")
		return
	}
	var req topupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if _, err := h.App.Ledger.GetOrCreate(c.Request.Context(), requesterID, ""); err != nil {
		Internal(c, fmt.Sprintf("TopupHandler: %v", err))
		return
	}
	balance, err := h.App.Ledger.Credit(c.Request.Context(), requesterID, req.Amount, models.TxTypeBuy, req.Details)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			BadRequest(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("TopupHandler: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"requester_id": requesterID,
		"balance":      balance,
	}})
}
