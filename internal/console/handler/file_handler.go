package handler

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/config"
	"github.com/railworks/railconsole/internal/console/bomsheet"
	"github.com/railworks/railconsole/internal/console/wizard"
)

// FileHandler proxies uploads and deletions to the backend file endpoint and
// serves the console's generated downloads.
type FileHandler struct {
	client *backend.Client
	cfg    config.UploadConfig
}

func NewFileHandler(client *backend.Client, cfg config.UploadConfig) *FileHandler {
	return &FileHandler{client: client, cfg: cfg}
}

var allowedImageMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Upload forwards a file to the backend. Image upload types get the format
// and size check here, before any bytes cross the wire.
func (h *FileHandler) Upload(c *gin.Context) {
	uploadType := backend.FileUploadType(c.Query("type"))
	if uploadType == "" {
		BadRequest(c, "업로드 유형을 지정해주세요.")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "업로드할 파일을 선택해주세요.")
		return
	}
	defer file.Close()

	if strings.HasSuffix(string(uploadType), "_IMAGE") {
		maxSize := h.cfg.MaxImageSize
		if maxSize <= 0 {
			maxSize = wizard.MaxImageSize
		}
		mimeType := header.Header.Get("Content-Type")
		if (mimeType != "" && !allowedImageMIME[mimeType]) || header.Size > maxSize {
			BadRequest(c, wizard.ErrInvalidImage.Error())
			return
		}
	}

	uploaded, err := h.client.UploadFile(backendCtx(c), uploadType, header.Filename, file)
	if err != nil {
		BackendError(c, err, "파일 업로드에 실패했습니다.")
		return
	}
	Success(c, "파일을 업로드했습니다.", uploaded)
}

// Delete removes an uploaded file by its URL.
func (h *FileHandler) Delete(c *gin.Context) {
	fileURL := c.Query("fileUrl")
	if fileURL == "" {
		BadRequest(c, "삭제할 파일 주소를 지정해주세요.")
		return
	}

	result, err := h.client.DeleteFile(backendCtx(c), fileURL)
	if err != nil {
		BackendError(c, err, "파일 삭제에 실패했습니다.")
		return
	}
	Success(c, result.Message, nil)
}

// QuantityList streams a project's quantity-list spreadsheet, preserving the
// filename the backend suggested.
func (h *FileHandler) QuantityList(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := backendCtx(c)
	detail, err := h.client.Project(ctx, projectID)
	if err != nil {
		BackendError(c, err, "프로젝트 정보를 불러오지 못했습니다.")
		return
	}

	fallback := fmt.Sprintf("%s.xlsx", detail.Name)
	download, err := h.client.QuantityList(ctx, projectID, fallback)
	if err != nil {
		BackendError(c, err, "물량 산출 리스트 다운로드에 실패했습니다.")
		return
	}

	contentType := download.ContentType
	if contentType == "" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	setAttachment(c, download.Filename)
	c.Data(http.StatusOK, contentType, download.Body)
}

// BomTemplate serves the downloadable BOM import workbook.
func (h *FileHandler) BomTemplate(c *gin.Context) {
	f, err := bomsheet.Template()
	if err != nil {
		Error(c, http.StatusInternalServerError, "INTERNAL", "템플릿 생성에 실패했습니다.")
		return
	}
	defer f.Close()

	setAttachment(c, "BOM_템플릿.xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		// Headers are gone already; nothing left to do but log via gin recovery.
		_ = err
	}
}

// setAttachment writes a Content-Disposition that survives non-ASCII names.
func setAttachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}
