package reconcile

import (
	"net/http"

	"go-leave-ledger/internal/shared/apperror"
	"go-leave-ledger/internal/shared/response"
	"go-leave-ledger/internal/tenant"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("reconcile.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("reconcile.handler")
	}
	return &Handler{service: service, logger: l}
}

// Run triggers a reconciliation pass for the caller's company, optionally
// narrowed to one employee. The same logic runs offline via the reconciler
// command; this endpoint exists for on-demand repairs.
func (h *Handler) Run(c *gin.Context) {
	tn := tenant.FromGin(c)

	report, err := h.service.Run(c.Request.Context(), tn.CompanyID, c.Query("employee_id"))
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		h.logger.Warn("reconcile run failed",
			zap.Int("status", httpErr.Status),
			zap.String("code", httpErr.Code),
			zap.String("message", httpErr.Message),
		)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}

	response.Success(c, http.StatusOK, report, nil)
}
