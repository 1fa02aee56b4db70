package handler

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/console/table"
)

const msgQuantityMin = "수량은 1 이상이어야 합니다."

// RailHandler serves the straight- and branch-rail tables of a project and
// the row edit and delete operations.
type RailHandler struct {
	client *backend.Client
}

func NewRailHandler(client *backend.Client) *RailHandler {
	return &RailHandler{client: client}
}

type straightRow struct {
	backend.StraightRail
	Progress string `json:"progress"`
}

type branchRow struct {
	backend.BranchRail
	Progress string `json:"progress"`
}

// tableView is the table payload common to both rail tables.
type tableView[R any] struct {
	Rows   []R             `json:"rows"`
	Total  int             `json:"total"`
	Filter string          `json:"filter"`
	Sort   string          `json:"sort"`
	Dir    table.Direction `json:"dir"`
}

// StraightColumns defines the straight-rail table: filterable by type,
// sortable on every numeric column.
func StraightColumns() []table.Column[backend.StraightRail] {
	return []table.Column[backend.StraightRail]{
		{
			Key:        "straightType",
			Label:      "타입",
			Value:      func(r backend.StraightRail) string { return r.StraightType },
			Sortable:   true,
			Filterable: true,
		},
		{
			Key:      "length",
			Label:    "길이",
			Value:    func(r backend.StraightRail) string { return strconv.Itoa(r.Length) },
			Compare:  func(a, b backend.StraightRail) int { return a.Length - b.Length },
			Sortable: true,
		},
		{
			Key:      "totalQuantity",
			Label:    "총 수량",
			Value:    func(r backend.StraightRail) string { return strconv.Itoa(r.TotalQuantity) },
			Compare:  func(a, b backend.StraightRail) int { return a.TotalQuantity - b.TotalQuantity },
			Sortable: true,
		},
		{
			Key:      "completedQuantity",
			Label:    "완료 수량",
			Value:    func(r backend.StraightRail) string { return strconv.Itoa(r.CompletedQuantity) },
			Compare:  func(a, b backend.StraightRail) int { return a.CompletedQuantity - b.CompletedQuantity },
			Sortable: true,
		},
		{
			Key:      "holePosition",
			Label:    "타공 위치",
			Value:    func(r backend.StraightRail) string { return strconv.Itoa(r.HolePosition) },
			Compare:  func(a, b backend.StraightRail) int { return a.HolePosition - b.HolePosition },
			Sortable: true,
		},
	}
}

// BranchColumns defines the branch-rail table: filterable by code and name.
func BranchColumns() []table.Column[backend.BranchRail] {
	return []table.Column[backend.BranchRail]{
		{
			Key:        "branchCode",
			Label:      "분기 코드",
			Value:      func(r backend.BranchRail) string { return r.BranchCode },
			Sortable:   true,
			Filterable: true,
		},
		{
			Key:        "branchName",
			Label:      "분기명",
			Value:      func(r backend.BranchRail) string { return r.BranchName },
			Sortable:   true,
			Filterable: true,
		},
		{
			Key:      "totalQuantity",
			Label:    "총 수량",
			Value:    func(r backend.BranchRail) string { return strconv.Itoa(r.TotalQuantity) },
			Compare:  func(a, b backend.BranchRail) int { return a.TotalQuantity - b.TotalQuantity },
			Sortable: true,
		},
		{
			Key:      "completedQuantity",
			Label:    "완료 수량",
			Value:    func(r backend.BranchRail) string { return strconv.Itoa(r.CompletedQuantity) },
			Compare:  func(a, b backend.BranchRail) int { return a.CompletedQuantity - b.CompletedQuantity },
			Sortable: true,
		},
	}
}

// Straight serves a project's straight-rail table with the requested filter
// and sort applied.
func (h *RailHandler) Straight(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	rails, err := h.client.StraightRails(backendCtx(c), projectID)
	if err != nil {
		BackendError(c, err, "직선 레일 목록을 불러오지 못했습니다.")
		return
	}

	t := table.New(table.Config[backend.StraightRail]{
		ID:      func(r backend.StraightRail) int64 { return r.StraightRailID },
		Columns: StraightColumns(),
	}, rails)
	applyTableParams(c, t.SetGlobalFilter, t.SetSort)

	rows := make([]straightRow, 0, len(rails))
	for _, r := range t.Rows() {
		rows = append(rows, straightRow{
			StraightRail: r,
			Progress:     backend.ProgressLabel(r.CompletedQuantity, r.TotalQuantity),
		})
	}
	sortKey, dir := t.SortState()
	Success(c, "", tableView[straightRow]{
		Rows:   rows,
		Total:  t.Len(),
		Filter: t.GlobalFilter(),
		Sort:   sortKey,
		Dir:    dir,
	})
}

// Branch serves a project's branch-rail table with the requested filter and
// sort applied.
func (h *RailHandler) Branch(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	rails, err := h.client.BranchRails(backendCtx(c), projectID)
	if err != nil {
		BackendError(c, err, "분기 레일 목록을 불러오지 못했습니다.")
		return
	}

	t := table.New(table.Config[backend.BranchRail]{
		ID:      func(r backend.BranchRail) int64 { return r.ProjectBranchID },
		Columns: BranchColumns(),
	}, rails)
	applyTableParams(c, t.SetGlobalFilter, t.SetSort)

	rows := make([]branchRow, 0, len(rails))
	for _, r := range t.Rows() {
		rows = append(rows, branchRow{
			BranchRail: r,
			Progress:   backend.ProgressLabel(r.CompletedQuantity, r.TotalQuantity),
		})
	}
	sortKey, dir := t.SortState()
	Success(c, "", tableView[branchRow]{
		Rows:   rows,
		Total:  t.Len(),
		Filter: t.GlobalFilter(),
		Sort:   sortKey,
		Dir:    dir,
	})
}

// shortageRow is one under-stocked material with its badge severity.
type shortageRow struct {
	backend.BomShortage
	Severity string `json:"severity"`
}

// capacityRow is one branch type's production card: backend figures plus the
// derived numbers the card renders.
type capacityRow struct {
	BranchTypeID      int64         `json:"branchTypeId"`
	Code              string        `json:"code"`
	Name              string        `json:"name"`
	ImageURL          string        `json:"imageUrl"`
	TotalQuantity     int           `json:"totalQuantity"`
	CompletedQuantity int           `json:"completedQuantity"`
	Capacity          int           `json:"capacity"`
	Producible        bool          `json:"producible"`
	Unproducible      int           `json:"unproducible"`
	Progress          string        `json:"progress"`
	Shortages         []shortageRow `json:"branchBomShortageList"`
}

// shortageSeverity buckets a shortage count for badge rendering.
func shortageSeverity(n int) string {
	switch {
	case n >= 50:
		return "HIGH"
	case n >= 10:
		return "MEDIUM"
	case n > 0:
		return "LOW"
	default:
		return "NONE"
	}
}

// Capacity serves a project's per-branch production status: remaining
// producible units, the unproducible remainder, and the shortage list worst
// first.
func (h *RailHandler) Capacity(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	capacities, err := h.client.BranchCapacities(backendCtx(c), projectID)
	if err != nil {
		BackendError(c, err, "생산 현황을 불러오지 못했습니다.")
		return
	}

	rows := make([]capacityRow, 0, len(capacities))
	for _, b := range capacities {
		unproducible := b.TotalQuantity - b.CompletedQuantity - b.Capacity
		if unproducible < 0 {
			unproducible = 0
		}

		shortages := make([]shortageRow, 0, len(b.Shortages))
		for _, s := range b.Shortages {
			shortages = append(shortages, shortageRow{BomShortage: s, Severity: shortageSeverity(s.Shortage)})
		}
		sort.SliceStable(shortages, func(i, j int) bool {
			return shortages[i].Shortage > shortages[j].Shortage
		})

		rows = append(rows, capacityRow{
			BranchTypeID:      b.BranchTypeID,
			Code:              b.Code,
			Name:              b.Name,
			ImageURL:          b.ImageURL,
			TotalQuantity:     b.TotalQuantity,
			CompletedQuantity: b.CompletedQuantity,
			Capacity:          b.Capacity,
			Producible:        b.Capacity > 0,
			Unproducible:      unproducible,
			Progress:          backend.ProgressLabel(b.CompletedQuantity, b.TotalQuantity),
			Shortages:         shortages,
		})
	}
	Success(c, "", rows)
}

// quantityPatch accepts the edit buffer as either a number or a string, the
// way the edit cell submits it.
type quantityPatch struct {
	TotalQuantity json.Number `json:"totalQuantity"`
}

// parseQuantity validates the edit buffer: integers of at least 1 pass,
// everything else fails with the field message and no backend call.
func parseQuantity(raw json.Number) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw.String()))
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// UpdateBranch commits a branch row's quantity edit.
func (h *RailHandler) UpdateBranch(c *gin.Context) {
	h.updateRail(c, func(ctx *gin.Context, id int64, quantity int) (*backend.Result, error) {
		return h.client.UpdateBranchRail(backendCtx(ctx), id, backend.UpdateRailRequest{TotalQuantity: quantity})
	})
}

// UpdateStraight commits a straight row's quantity edit.
func (h *RailHandler) UpdateStraight(c *gin.Context) {
	h.updateRail(c, func(ctx *gin.Context, id int64, quantity int) (*backend.Result, error) {
		return h.client.UpdateStraightRail(backendCtx(ctx), id, backend.UpdateRailRequest{TotalQuantity: quantity})
	})
}

func (h *RailHandler) updateRail(c *gin.Context, update func(*gin.Context, int64, int) (*backend.Result, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var patch quantityPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		FieldError(c, msgQuantityMin, gin.H{"totalQuantity": []string{msgQuantityMin}})
		return
	}
	quantity, ok := parseQuantity(patch.TotalQuantity)
	if !ok {
		FieldError(c, msgQuantityMin, gin.H{"totalQuantity": []string{msgQuantityMin}})
		return
	}

	result, err := update(c, id, quantity)
	if err != nil {
		BackendError(c, err, "수량 수정에 실패했습니다.")
		return
	}
	Success(c, result.Message, nil)
}

// DeleteBranch removes a branch row.
func (h *RailHandler) DeleteBranch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.client.DeleteBranchRail(backendCtx(c), id)
	if err != nil {
		BackendError(c, err, "분기 레일 삭제에 실패했습니다.")
		return
	}
	Success(c, result.Message, nil)
}

// DeleteStraight removes a straight row.
func (h *RailHandler) DeleteStraight(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := h.client.DeleteStraightRail(backendCtx(c), id)
	if err != nil {
		BackendError(c, err, "직선 레일 삭제에 실패했습니다.")
		return
	}
	Success(c, result.Message, nil)
}

// NormalStraightTypes lists registrable normal straight-rail types.
func (h *RailHandler) NormalStraightTypes(c *gin.Context) {
	types, err := h.client.NormalStraightTypes(backendCtx(c))
	if err != nil {
		BackendError(c, err, "직선 레일 타입을 불러오지 못했습니다.")
		return
	}
	Success(c, "", types)
}

// LoopStraightTypes lists registrable loop straight-rail types.
func (h *RailHandler) LoopStraightTypes(c *gin.Context) {
	types, err := h.client.LoopStraightTypes(backendCtx(c))
	if err != nil {
		BackendError(c, err, "루프 레일 타입을 불러오지 못했습니다.")
		return
	}
	Success(c, "", types)
}

// applyTableParams restores the browser's filter and sort state onto a table.
func applyTableParams(c *gin.Context, setFilter func(string), setSort func(string, table.Direction)) {
	setFilter(c.Query("filter"))
	setSort(c.Query("sort"), parseDirection(c.Query("dir")))
}

func parseDirection(raw string) table.Direction {
	switch strings.ToLower(raw) {
	case "asc":
		return table.DirectionAsc
	case "desc":
		return table.DirectionDesc
	default:
		return table.DirectionNone
	}
}
