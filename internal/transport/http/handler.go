package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/docflow-service/internal/apperr"
	"github.com/richardliu001/docflow-service/internal/model"
	"github.com/richardliu001/docflow-service/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func RegisterHandlers(r *gin.Engine, docs *service.DocumentService, numbers *service.NumberService, log *zap.SugaredLogger) {
	v1 := r.Group("/v1", TenantMiddleware())
	{
		v1.POST("/documents", createHandler(docs, log))
		v1.GET("/documents/:id", getHandler(docs, log))
		v1.GET("/documents/:id/items", listItemsHandler(docs, log))
		v1.PUT("/documents/:id/items", replaceItemsHandler(docs, log))
		v1.POST("/documents/:id/submit", submitHandler(docs, log))
		v1.POST("/documents/:id/approve/:step", approveHandler(docs, log))
		v1.POST("/documents/:id/reject", reasonHandler(docs.Reject, log))
		v1.POST("/documents/:id/request-revision", reasonHandler(docs.RequestRevision, log))
		v1.POST("/documents/:id/cancel", reasonHandler(docs.Cancel, log))
		v1.POST("/documents/:id/post", postHandler(docs, log))
		v1.GET("/documents/:id/approvals", approvalsHandler(docs, log))
		v1.GET("/documents/:id/history", historyHandler(docs, log))

		v1.GET("/number-settings", listSettingsHandler(numbers, log))
		v1.GET("/number-settings/:key", getSettingsHandler(numbers, log))
		v1.PUT("/number-settings/:key", updateSettingsHandler(numbers, log))
	}
}

func tenantOf(c *gin.Context) string { return c.GetString(ctxTenant) }
func actorOf(c *gin.Context) string  { return c.GetString(ctxActor) }

// writeError maps engine errors to their stable code and HTTP status.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		log.Errorw("request failed", "path", c.FullPath(), "error", err)
		code, msg := "INTERNAL_ERROR", "internal error"
		if ok {
			code, msg = e.Code, e.Message
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": code, "message": msg})
		return
	}
	status := http.StatusBadRequest
	switch e.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": e.Code, "message": e.Message})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": msg})
}

type itemReq struct {
	ItemID      *string          `json:"item_id"`
	Description string           `json:"description" binding:"required"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Amount      *decimal.Decimal `json:"amount"`
}

func toItems(in []itemReq) []service.ItemInput {
	out := make([]service.ItemInput, 0, len(in))
	for _, it := range in {
		out = append(out, service.ItemInput{
			ItemID:      it.ItemID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		})
	}
	return out
}

type createReq struct {
	DocumentKey   string          `json:"document_key" binding:"required"`
	Module        string          `json:"module"`
	DocumentDate  *time.Time      `json:"document_date"`
	DueDate       *time.Time      `json:"due_date"`
	PostingDate   *time.Time      `json:"posting_date"`
	CurrencyCode  string          `json:"currency_code"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
	PersonID      *string         `json:"person_id"`
	PersonName    *string         `json:"person_name"`
	Notes         *string         `json:"notes"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Total         decimal.Decimal `json:"total"`
	Items         []itemReq       `json:"items" binding:"dive"`
}

func createHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in := service.CreateInput{
			DocumentKey:   req.DocumentKey,
			Module:        model.DocumentModule(req.Module),
			DueDate:       req.DueDate,
			PostingDate:   req.PostingDate,
			CurrencyCode:  req.CurrencyCode,
			ExchangeRate:  req.ExchangeRate,
			PersonID:      req.PersonID,
			PersonName:    req.PersonName,
			Notes:         req.Notes,
			DiscountTotal: req.DiscountTotal,
			TaxTotal:      req.TaxTotal,
			Total:         req.Total,
			Items:         toItems(req.Items),
		}
		if req.DocumentDate != nil {
			in.DocumentDate = *req.DocumentDate
		}
		doc, err := docs.Create(c, tenantOf(c), in, actorOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

func getHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := docs.Get(c, c.Param("id"), tenantOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func listItemsHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := docs.ListItems(c, c.Param("id"), tenantOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

type replaceItemsReq struct {
	Items []itemReq `json:"items" binding:"dive"`
}

func replaceItemsHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req replaceItemsReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		doc, err := docs.ReplaceItems(c, c.Param("id"), tenantOf(c), toItems(req.Items), actorOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func submitHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := docs.Submit(c, c.Param("id"), tenantOf(c), actorOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

type notesReq struct {
	Notes  *string `json:"notes"`
	Reason *string `json:"reason"`
}

func approveHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		step, err := strconv.Atoi(c.Param("step"))
		if err != nil || step < 0 {
			badRequest(c, "invalid step")
			return
		}
		var req notesReq
		_ = c.ShouldBindJSON(&req)
		doc, err := docs.ApproveStep(c, c.Param("id"), step, req.Notes, tenantOf(c), actorOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

type reasonFunc func(ctx context.Context, id string, reason *string, tenantID, actor string) (*model.Document, error)

// reasonHandler serves reject, request-revision and cancel, which share a body.
func reasonHandler(fn reasonFunc, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notesReq
		_ = c.ShouldBindJSON(&req)
		reason := req.Reason
		if reason == nil {
			reason = req.Notes
		}
		doc, err := fn(c, c.Param("id"), reason, tenantOf(c), actorOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func postHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := docs.Post(c, c.Param("id"), tenantOf(c), actorOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func approvalsHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		steps, err := docs.ListApprovals(c, c.Param("id"), tenantOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, steps)
	}
}

func historyHandler(docs *service.DocumentService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := docs.ListHistory(c, c.Param("id"), tenantOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func listSettingsHandler(numbers *service.NumberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := numbers.ListSettings(c, tenantOf(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func getSettingsHandler(numbers *service.NumberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := numbers.GetSettingsOrDefault(c, tenantOf(c), c.Param("key"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

type settingsReq struct {
	Prefix        *string `json:"prefix"`
	PaddingLength *int    `json:"padding_length"`
	IncludePeriod *bool   `json:"include_period"`
	PeriodFormat  *string `json:"period_format"`
}

func updateSettingsHandler(numbers *service.NumberService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req settingsReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		s, err := numbers.UpdateSettings(c, tenantOf(c), c.Param("key"), service.SettingsPatch{
			Prefix:        req.Prefix,
			PaddingLength: req.PaddingLength,
			IncludePeriod: req.IncludePeriod,
			PeriodFormat:  req.PeriodFormat,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}
