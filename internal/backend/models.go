package backend

import "fmt"

// UserInfo is the logged-in user as reported by GET /user/info.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type SignupRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LoginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// VersionInfo is a selectable rail system version.
type VersionInfo struct {
	VersionID   int64  `json:"versionId"`
	VersionName string `json:"versionName"`
}

// ProjectListParams filters the paginated project search. Zero values are
// omitted from the query string.
type ProjectListParams struct {
	Keyword   string
	Page      *int
	Size      *int
	VersionID int64
	StartDate string
	EndDate   string
	Sort      string
}

type ProjectSummary struct {
	ProjectID int64  `json:"projectId"`
	Version   string `json:"version"`
	Region    string `json:"region"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type ProjectDetail struct {
	VersionInfoID int64  `json:"versionInfoId"`
	Version       string `json:"version"`
	Region        string `json:"region"`
	Name          string `json:"name"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

type NewProjectRequest struct {
	VersionID int64  `json:"versionId"`
	Region    string `json:"region"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// SortOption is a server-defined project sort key.
type SortOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StraightRail is one straight-rail row of a project.
type StraightRail struct {
	StraightRailID    int64             `json:"straightRailId"`
	StraightType      string            `json:"straightType"`
	IsLoopRail        bool              `json:"isLoopRail"`
	Length            int               `json:"length"`
	TotalQuantity     int               `json:"totalQuantity"`
	CompletedQuantity int               `json:"completedQuantity"`
	HolePosition      int               `json:"holePosition"`
	LitzInfo          map[string]string `json:"litzInfo"`
}

// BranchRail is one branch-rail row of a project.
type BranchRail struct {
	ProjectBranchID   int64  `json:"projectBranchId"`
	BranchTypeID      int64  `json:"branchTypeId"`
	BranchCode        string `json:"branchCode"`
	BranchName        string `json:"branchName"`
	TotalQuantity     int    `json:"totalQuantity"`
	CompletedQuantity int    `json:"completedQuantity"`
	ImageURL          string `json:"imageUrl"`
}

// ProgressLabel renders completed/total as a percentage with one decimal.
// A zero total renders as a literal "0%", never a division error.
func ProgressLabel(completed, total int) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(completed)/float64(total)*100)
}

// StraightType is a registrable straight-rail type (normal or loop).
type StraightType struct {
	StraightTypeID int64  `json:"straightTypeId"`
	Name           string `json:"name"`
	Length         int    `json:"length"`
}

// BomLine is one material line of a branch BOM. Read-only on the client.
type BomLine struct {
	BranchBomID      int64   `json:"branchBomId"`
	ItemType         string  `json:"itemType"`
	DrawingNumber    string  `json:"drawingNumber"`
	ItemName         string  `json:"itemName"`
	Specification    string  `json:"specification"`
	UnitQuantity     float64 `json:"unitQuantity"`
	Unit             string  `json:"unit"`
	SuppliedMaterial bool    `json:"suppliedMaterial"`
}

// BranchBomInfo is the latest BOM for a branch code within a version.
type BranchBomInfo struct {
	BranchTypeID int64     `json:"branchTypeId"`
	VersionName  string    `json:"versionName"`
	VersionID    int64     `json:"versionId"`
	BranchCode   string    `json:"branchCode"`
	Version      string    `json:"version"`
	Lines        []BomLine `json:"branchDetailinfoDtoList"`
}

// BomShortage is one under-stocked material of a branch BOM.
type BomShortage struct {
	DrawingNumber string `json:"drawingNumber"`
	ItemName      string `json:"itemName"`
	Shortage      int    `json:"shortage"`
}

// BranchCapacity is the production status of one registered branch type: how
// many more units current material stock can build, and which materials fall
// short.
type BranchCapacity struct {
	BranchTypeID      int64         `json:"branchTypeId"`
	Code              string        `json:"code"`
	Name              string        `json:"name"`
	ImageURL          string        `json:"imageUrl"`
	TotalQuantity     int           `json:"totalQuantity"`
	CompletedQuantity int           `json:"completedQuantity"`
	Capacity          int           `json:"capacity"`
	Shortages         []BomShortage `json:"branchBomShortageList"`
}

// BranchRegisterItem registers quantity units of an already-typed branch.
type BranchRegisterItem struct {
	BranchTypeID int64 `json:"branchTypeId"`
	Quantity     int   `json:"quantity"`
}

type MaterialSummary struct {
	InboundPercent float64 `json:"inboundPercent"`
	UnitKindCount  int     `json:"unitKindCount"`
	TotalCount     int     `json:"totalCount"`
	InboundCount   int     `json:"inboundCount"`
	UsedCount      int     `json:"usedCount"`
}

// MaterialHistory is one inbound day in the per-project history.
type MaterialHistory struct {
	InboundDate   string `json:"inboundDate"`
	ItemKindCount int    `json:"itemKindCount"`
	TotalQuantity int    `json:"totalQuantity"`
}

// MaterialHistoryDetail is one inbound line on a given date.
type MaterialHistoryDetail struct {
	MaterialInboundID int64  `json:"materialInboundId"`
	DrawingNumber     string `json:"drawingNumber"`
	ItemName          string `json:"itemName"`
	Quantity          int    `json:"quantity"`
	InboundDate       string `json:"inboundDate"`
}

// MaterialSearchResult is a material matched by keyword for inbound entry.
type MaterialSearchResult struct {
	DrawingNumber string `json:"drawingNumber"`
	ItemName      string `json:"itemName"`
	Specification string `json:"specification"`
}

// MaterialInboundItem is one row of an inbound registration.
type MaterialInboundItem struct {
	DrawingNumber string `json:"drawingNumber"`
	ItemName      string `json:"itemName"`
	Quantity      int    `json:"quantity"`
}

// FileUploadType selects the upload purpose on the generic file endpoint.
type FileUploadType string

const (
	FileUploadBranchImage   FileUploadType = "BRANCH_IMAGE"
	FileUploadStraightImage FileUploadType = "STRAIGHT_IMAGE"
)

type UploadedFile struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

// UploadBomResult is the server-assigned type for a freshly uploaded BOM.
type UploadBomResult struct {
	BranchTypeID int64 `json:"branchTypeId"`
}

// UpdateRailRequest changes a rail row's editable quantity.
type UpdateRailRequest struct {
	TotalQuantity int `json:"totalQuantity"`
}
