package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
)

// MaterialHandler serves the per-project material status, inbound history
// and inbound registration.
type MaterialHandler struct {
	client *backend.Client
}

func NewMaterialHandler(client *backend.Client) *MaterialHandler {
	return &MaterialHandler{client: client}
}

// Summary serves the inbound progress header.
func (h *MaterialHandler) Summary(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	summary, err := h.client.MaterialSummary(backendCtx(c), projectID)
	if err != nil {
		BackendError(c, err, "자재 현황을 불러오지 못했습니다.")
		return
	}
	Success(c, "", summary)
}

// History serves inbound days, optionally filtered by keyword.
func (h *MaterialHandler) History(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := h.client.MaterialHistory(backendCtx(c), projectID, c.Query("keyword"))
	if err != nil {
		BackendError(c, err, "입고 이력을 불러오지 못했습니다.")
		return
	}
	Success(c, "", history)
}

// HistoryDetail serves the inbound lines of one day.
func (h *MaterialHandler) HistoryDetail(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	details, err := h.client.MaterialHistoryDetail(backendCtx(c), projectID, c.Query("keyword"), c.Query("date"))
	if err != nil {
		BackendError(c, err, "입고 상세를 불러오지 못했습니다.")
		return
	}
	Success(c, "", details)
}

// Search matches materials by keyword for inbound entry.
func (h *MaterialHandler) Search(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	results, err := h.client.SearchMaterials(backendCtx(c), projectID, c.Query("keyword"))
	if err != nil {
		BackendError(c, err, "자재 검색에 실패했습니다.")
		return
	}
	Success(c, "", results)
}

// rowErrors collects field messages per inbound row, keyed by row index.
type rowErrors map[int]map[string]string

// validateInbound checks every row before any backend call; an invalid batch
// never leaves the console.
func validateInbound(items []backend.MaterialInboundItem) rowErrors {
	errs := make(rowErrors)
	for i, item := range items {
		rowErrs := make(map[string]string)
		if item.DrawingNumber == "" {
			rowErrs["drawingNumber"] = "도면 번호는 필수 입력입니다."
		}
		if item.ItemName == "" {
			rowErrs["itemName"] = "품명은 필수 입력입니다."
		}
		if item.Quantity < 1 {
			rowErrs["quantity"] = msgQuantityMin
		}
		if len(rowErrs) > 0 {
			errs[i] = rowErrs
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// CreateInbound registers an inbound batch.
func (h *MaterialHandler) CreateInbound(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var items []backend.MaterialInboundItem
	if err := c.ShouldBindJSON(&items); err != nil || len(items) == 0 {
		BadRequest(c, "입고할 자재를 입력해주세요.")
		return
	}

	if errs := validateInbound(items); errs != nil {
		FieldError(c, "입력값을 다시 확인해주세요.", errs)
		return
	}

	result, err := h.client.CreateMaterialInbound(backendCtx(c), projectID, items)
	if err != nil {
		BackendError(c, err, "입고 등록에 실패했습니다.")
		return
	}
	Success(c, result.Message, nil)
}
