package dto

// EnrollRequest is the JSON form of an enrollment. Images are base64 strings.
type EnrollRequest struct {
	StudentID string   `json:"student_id" form:"student_id"`
	Name      string   `json:"name" form:"name"`
	Class     string   `json:"class" form:"class"`
	Section   string   `json:"section" form:"section"`
	Images    []string `json:"images" form:"-"`
}

type EnrollResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	StudentID string `json:"student_id,omitempty"`
	NumImages int    `json:"num_images,omitempty"`
}

type SignatureResponse struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	NumImages int    `json:"num_images"`
	UpdatedAt string `json:"updated_at"`
}

type SignatureListResponse struct {
	Signatures []SignatureResponse `json:"signatures"`
	Total      int                 `json:"total"`
	Cached     int                 `json:"cached"`
	LoadedAt   string              `json:"loaded_at,omitempty"`
}
