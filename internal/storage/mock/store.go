// Package mock provides in-memory stand-ins for the Postgres and MinIO stores.
package mock

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/storage"
)

// Store mirrors PostgresStore. Set the *Err fields to inject failures.
type Store struct {
	mu            sync.RWMutex
	students      map[string]models.Student
	signatures    map[string]models.Signature
	attendance    map[models.AttendanceKey]models.Attendance
	notifications []models.Notification

	// HideExisting makes AttendanceExists always report false so the unique
	// constraint path is exercised.
	HideExisting bool

	PingErr         error
	ExistsErr       error
	InsertErr       error
	// InsertErrFor fails inserts for the listed student codes only.
	InsertErrFor    map[string]error
	NotificationErr error
	SignatureErr    error
}

func NewStore() *Store {
	return &Store{
		students:   map[string]models.Student{},
		signatures: map[string]models.Signature{},
		attendance: map[models.AttendanceKey]models.Attendance{},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.PingErr
}

func (s *Store) UpsertStudent(ctx context.Context, st *models.Student) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.students[st.Code]
	if !ok {
		cur = models.Student{ID: st.ID, Code: st.Code, Class: "Unknown", Section: "Unknown", CreatedAt: time.Now()}
		if cur.ID == uuid.Nil {
			cur.ID = uuid.New()
		}
	}
	cur.Name = st.Name
	if st.Class != "" {
		cur.Class = st.Class
	}
	if st.Section != "" {
		cur.Section = st.Section
	}
	s.students[st.Code] = cur
	out := cur
	return &out, nil
}

func (s *Store) GetStudent(ctx context.Context, code string) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[code]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) ListStudents(ctx context.Context, class, section string) ([]models.Student, error) {
	return s.filterStudents(func(st models.Student) bool {
		return (class == "" || st.Class == class) && (section == "" || st.Section == section)
	}), nil
}

func (s *Store) SearchStudents(ctx context.Context, q string, limit int) ([]models.Student, error) {
	q = strings.ToLower(q)
	out := s.filterStudents(func(st models.Student) bool {
		return strings.Contains(strings.ToLower(st.Name), q) || strings.Contains(strings.ToLower(st.Code), q)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) filterStudents(keep func(models.Student) bool) []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Student
	for _, st := range s.students {
		if keep(st) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *Store) UpsertSignature(ctx context.Context, code string, vector []float32, numImages int) (*models.Signature, error) {
	if s.SignatureErr != nil {
		return nil, s.SignatureErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sig, ok := s.signatures[code]
	if !ok {
		sig.CreatedAt = now
	}
	sig.StudentCode = code
	sig.Vector = append([]float32(nil), vector...)
	sig.NumImages = numImages
	sig.UpdatedAt = now
	s.signatures[code] = sig
	out := sig
	return &out, nil
}

// SaveEnrollment leaves the student untouched when the signature write fails.
func (s *Store) SaveEnrollment(ctx context.Context, st *models.Student, vector []float32, numImages int) (*models.Student, *models.Signature, error) {
	if s.SignatureErr != nil {
		return nil, nil, s.SignatureErr
	}
	student, err := s.UpsertStudent(ctx, st)
	if err != nil {
		return nil, nil, err
	}
	sig, err := s.UpsertSignature(ctx, student.Code, vector, numImages)
	if err != nil {
		return nil, nil, err
	}
	sig.Name = student.Name
	return student, sig, nil
}

func (s *Store) GetSignature(ctx context.Context, code string) (*models.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signatures[code]
	if !ok {
		return nil, nil
	}
	sig.Name = s.students[code].Name
	return &sig, nil
}

func (s *Store) ListSignatures(ctx context.Context, withVectors bool) ([]models.Signature, error) {
	if s.SignatureErr != nil {
		return nil, s.SignatureErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Signature, 0, len(s.signatures))
	for code, sig := range s.signatures {
		sig.Name = s.students[code].Name
		if !withVectors {
			sig.Vector = nil
		}
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentCode < out[j].StudentCode })
	return out, nil
}

func (s *Store) AttendanceExists(ctx context.Context, key models.AttendanceKey) (bool, error) {
	if s.ExistsErr != nil {
		return false, s.ExistsErr
	}
	if s.HideExisting {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.attendance[key]
	return ok, nil
}

// InsertAttendance is atomic: the row and the notification are stored together
// or not at all.
func (s *Store) InsertAttendance(ctx context.Context, rec *models.Attendance, n *models.Notification) error {
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if err := s.InsertErrFor[rec.StudentCode]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	if _, ok := s.attendance[key]; ok {
		return storage.ErrAlreadyMarked
	}
	if n != nil && s.NotificationErr != nil {
		return s.NotificationErr
	}

	now := time.Now()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = now
	s.attendance[key] = *rec
	if n != nil {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.CreatedAt = now
		s.notifications = append(s.notifications, *n)
	}
	return nil
}

func (s *Store) ListAttendance(ctx context.Context, date, period string) ([]models.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Attendance
	for k, a := range s.attendance {
		if k.Date == date && (period == "" || k.Period == period) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].StudentCode < out[j].StudentCode
	})
	return out, nil
}

func (s *Store) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.notifications {
		if !s.notifications[i].Read {
			s.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

// AttendanceCount returns the number of stored attendance rows.
func (s *Store) AttendanceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attendance)
}

// NotificationCount returns the number of stored notifications.
func (s *Store) NotificationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}

// Blobs mirrors MinIOStore for enrollment images.
type Blobs struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutErr error
}

func NewBlobs() *Blobs {
	return &Blobs{objects: map[string][]byte{}}
}

func (b *Blobs) PutEnrollmentImage(ctx context.Context, studentCode string, data []byte) (string, error) {
	if b.PutErr != nil {
		return "", b.PutErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := storage.EnrollmentKey(studentCode, uuid.New())
	b.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (b *Blobs) ReplaceEnrollmentImages(ctx context.Context, studentCode string, keep []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := map[string]bool{}
	for _, k := range keep {
		kept[k] = true
	}
	prefix := "enrollments/" + studentCode + "/"
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) && !kept[k] {
			delete(b.objects, k)
		}
	}
	return nil
}

// Keys returns every stored key in sorted order.
func (b *Blobs) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrInjected is a convenience error for failure tests.
var ErrInjected = errors.New("injected failure")
