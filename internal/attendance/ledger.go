package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/storage"
)

const (
	MsgMarked        = "Attendance marked successfully"
	MsgAlreadyMarked = "Attendance already marked for this period"
	MsgUnknown       = "Student not recognized"
	MsgLowConfidence = "Recognition confidence below policy threshold"
	MsgNotLive       = "Liveness check failed"

	notificationType  = "attendance"
	notificationTitle = "Attendance Marked"
	timeLayout        = "15:04:05"
)

var ErrInvalidDate = errors.New("invalid date")

// Store persists attendance rows. InsertAttendance must be atomic and return
// storage.ErrAlreadyMarked when the key is taken.
type Store interface {
	AttendanceExists(ctx context.Context, key models.AttendanceKey) (bool, error)
	InsertAttendance(ctx context.Context, rec *models.Attendance, n *models.Notification) error
}

type Publisher interface {
	PublishAttendance(ctx context.Context, ev *models.AttendanceEvent) error
}

type MarkRequest struct {
	StudentID             string
	Name                  string
	Date                  string
	Period                string
	Emotion               string
	IsLive                bool
	LivenessConfidence    float64
	RecognitionConfidence float64
}

type Outcome struct {
	Committed     bool
	AlreadyMarked bool
	Message       string
	Record        *models.Attendance
}

// Ledger records at most one attendance row per student, date and period.
type Ledger struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

func NewLedger(store Store, publisher Publisher) *Ledger {
	return &Ledger{store: store, publisher: publisher, now: time.Now}
}

// NormalizeDate validates a YYYY-MM-DD date; empty means today.
func (l *Ledger) NormalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return l.now().Format(models.DateLayout), nil
	}
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.Format(models.DateLayout), nil
}

// Mark commits an attendance row when every precondition holds. Unmet
// preconditions and duplicates are reported in the Outcome; only storage
// failures return an error.
func (l *Ledger) Mark(ctx context.Context, req MarkRequest, policy Policy) (Outcome, error) {
	id := strings.TrimSpace(req.StudentID)
	switch {
	case id == "" || id == models.UnknownName:
		return l.skip("unknown", MsgUnknown), nil
	case !policy.Allows(req.RecognitionConfidence):
		return l.skip("low_confidence", MsgLowConfidence), nil
	case !req.IsLive:
		return l.skip("not_live", MsgNotLive), nil
	}

	date, err := l.NormalizeDate(req.Date)
	if err != nil {
		return Outcome{}, err
	}
	key := models.AttendanceKey{StudentCode: id, Date: date, Period: req.Period}

	exists, err := l.store.AttendanceExists(ctx, key)
	if err != nil {
		observability.AttendanceMarks.WithLabelValues("error").Inc()
		return Outcome{}, fmt.Errorf("check attendance: %w", err)
	}
	if exists {
		return l.duplicate(), nil
	}

	name := req.Name
	if name == "" {
		name = id
	}
	emotion := req.Emotion
	if emotion == "" {
		emotion = "Neutral"
	}
	rec := &models.Attendance{
		StudentCode:           id,
		Name:                  name,
		Date:                  date,
		Period:                req.Period,
		Time:                  l.now().Format(timeLayout),
		Emotion:               emotion,
		SpoofStatus:           models.SpoofStatusLive,
		LivenessConfidence:    req.LivenessConfidence,
		RecognitionConfidence: req.RecognitionConfidence,
	}
	note := &models.Notification{
		Type:    notificationType,
		Title:   notificationTitle,
		Message: fmt.Sprintf("Attendance marked for %s (%s)", name, id),
	}

	if err := l.store.InsertAttendance(ctx, rec, note); err != nil {
		if errors.Is(err, storage.ErrAlreadyMarked) {
			slog.Debug("attendance insert lost race", "student", id, "date", date, "period", req.Period)
			return l.duplicate(), nil
		}
		observability.AttendanceMarks.WithLabelValues("error").Inc()
		return Outcome{}, fmt.Errorf("record attendance: %w", err)
	}

	observability.AttendanceMarks.WithLabelValues("committed").Inc()
	slog.Info("attendance marked", "student", id, "date", date, "period", req.Period, "confidence", req.RecognitionConfidence)
	l.publish(ctx, rec)

	return Outcome{Committed: true, Message: MsgMarked, Record: rec}, nil
}

// IsMarked reports whether the student already has a row for date and period.
func (l *Ledger) IsMarked(ctx context.Context, studentID, date, period string) (bool, error) {
	date, err := l.NormalizeDate(date)
	if err != nil {
		return false, err
	}
	return l.store.AttendanceExists(ctx, models.AttendanceKey{StudentCode: studentID, Date: date, Period: period})
}

func (l *Ledger) skip(outcome, msg string) Outcome {
	observability.AttendanceMarks.WithLabelValues(outcome).Inc()
	return Outcome{Message: msg}
}

func (l *Ledger) duplicate() Outcome {
	observability.AttendanceMarks.WithLabelValues("already_marked").Inc()
	return Outcome{AlreadyMarked: true, Message: MsgAlreadyMarked}
}

func (l *Ledger) publish(ctx context.Context, rec *models.Attendance) {
	if l.publisher == nil {
		return
	}
	ev := &models.AttendanceEvent{
		RecordID:              rec.ID.String(),
		StudentCode:           rec.StudentCode,
		Name:                  rec.Name,
		Date:                  rec.Date,
		Period:                rec.Period,
		Time:                  rec.Time,
		Emotion:               rec.Emotion,
		SpoofStatus:           string(rec.SpoofStatus),
		RecognitionConfidence: rec.RecognitionConfidence,
		Timestamp:             rec.CreatedAt,
	}
	if err := l.publisher.PublishAttendance(ctx, ev); err != nil {
		slog.Error("failed to publish attendance event", "student", rec.StudentCode, "error", err)
	}
}
