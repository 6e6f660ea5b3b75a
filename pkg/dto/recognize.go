package dto

// RecognizeRequest is the JSON form of a recognition call. Image is base64,
// optionally as a data URL. Multipart uploads use the "image" file field.
type RecognizeRequest struct {
	Image  string `json:"image" form:"-"`
	Period string `json:"period" form:"period"`
	Date   string `json:"date" form:"date"`
}

type Detection struct {
	Name                    string     `json:"name"`
	ID                      string     `json:"id"`
	BBox                    [4]float32 `json:"bbox"`
	IsLive                  bool       `json:"isLive"`
	Spoofed                 bool       `json:"spoofed"`
	Emotion                 string     `json:"emotion"`
	RecognitionConfidence   float64    `json:"recognitionConfidence"`
	LivenessConfidence      float64    `json:"livenessConfidence"`
	AttendanceMarked        bool       `json:"attendanceMarked"`
	AttendanceAlreadyMarked bool       `json:"attendanceAlreadyMarked"`
	AttendanceError         string     `json:"attendanceError,omitempty"`
}

type RecognizeResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Date       string      `json:"date"`
	Period     string      `json:"period"`
	Policy     string      `json:"policy"`
	Detections []Detection `json:"detections"`
}
