package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

const timeFormat = "2006-01-02T15:04:05Z"

var errEmptyImage = errors.New("No image data provided.")

// decodeBase64Image accepts raw base64 or a data URL.
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errEmptyImage
	}
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func toAttendanceResponse(a models.Attendance) dto.AttendanceResponse {
	return dto.AttendanceResponse{
		ID:                    a.ID,
		StudentID:             a.StudentCode,
		Name:                  a.Name,
		Date:                  a.Date,
		Period:                a.Period,
		Time:                  a.Time,
		Emotion:               a.Emotion,
		SpoofStatus:           string(a.SpoofStatus),
		LivenessConfidence:    a.LivenessConfidence,
		RecognitionConfidence: a.RecognitionConfidence,
	}
}
