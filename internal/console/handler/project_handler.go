package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
)

// ProjectHandler serves the project list, detail and creation endpoints.
type ProjectHandler struct {
	client *backend.Client
}

func NewProjectHandler(client *backend.Client) *ProjectHandler {
	return &ProjectHandler{client: client}
}

// Versions lists the selectable rail system versions.
func (h *ProjectHandler) Versions(c *gin.Context) {
	versions, err := h.client.Versions(backendCtx(c))
	if err != nil {
		BackendError(c, err, "버전 목록을 불러오지 못했습니다.")
		return
	}
	Success(c, "", versions)
}

// SortOptions lists the server-defined project sort keys.
func (h *ProjectHandler) SortOptions(c *gin.Context) {
	options, err := h.client.ProjectSortOptions(backendCtx(c))
	if err != nil {
		BackendError(c, err, "정렬 옵션을 불러오지 못했습니다.")
		return
	}
	Success(c, "", options)
}

// List serves the paginated project search. Blank filters are dropped so the
// backend sees only the parameters the user actually set.
func (h *ProjectHandler) List(c *gin.Context) {
	params := backend.ProjectListParams{
		Keyword:   c.Query("keyword"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Sort:      c.Query("sort"),
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		params.Page = &v
	}
	if v, err := strconv.Atoi(c.Query("size")); err == nil {
		params.Size = &v
	}
	if v, err := strconv.ParseInt(c.Query("versionId"), 10, 64); err == nil {
		params.VersionID = v
	}

	page, err := h.client.Projects(backendCtx(c), params)
	if err != nil {
		BackendError(c, err, "프로젝트 목록을 불러오지 못했습니다.")
		return
	}
	Success(c, "", page)
}

// Create registers a new project.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req backend.NewProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "입력값을 다시 확인해주세요.")
		return
	}
	if req.VersionID == 0 || req.Name == "" || req.Region == "" || req.StartDate == "" || req.EndDate == "" {
		BadRequest(c, "프로젝트 정보를 모두 입력해주세요.")
		return
	}

	result, err := h.client.CreateProject(backendCtx(c), req)
	if err != nil {
		BackendError(c, err, "프로젝트 등록에 실패했습니다.")
		return
	}
	Success(c, result.Message, nil)
}

// Detail serves one project's header info.
func (h *ProjectHandler) Detail(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.client.Project(backendCtx(c), projectID)
	if err != nil {
		BackendError(c, err, "프로젝트 정보를 불러오지 못했습니다.")
		return
	}
	Success(c, "", detail)
}

// pathID parses a numeric path parameter, writing the 400 itself on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "잘못된 요청 경로입니다.")
		return 0, false
	}
	return id, true
}
