package attendance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/storage/mock"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.AttendanceEvent
	err    error
}

func (p *recordingPublisher) PublishAttendance(ctx context.Context, ev *models.AttendanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func newTestLedger(store Store, pub Publisher) *Ledger {
	l := NewLedger(store, pub)
	l.now = func() time.Time { return time.Date(2025, 1, 10, 9, 15, 30, 0, time.Local) }
	return l
}

func liveRequest() MarkRequest {
	return MarkRequest{
		StudentID:             "106",
		Name:                  "Meera",
		Date:                  "2025-01-10",
		Period:                "P1",
		Emotion:               "Happy",
		IsLive:                true,
		LivenessConfidence:    72,
		RecognitionConfidence: 92,
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	store := mock.NewStore()
	pub := &recordingPublisher{}
	l := newTestLedger(store, pub)
	ctx := context.Background()

	first, err := l.Mark(ctx, liveRequest(), RoutinePolicy)
	if err != nil {
		t.Fatalf("Mark() error: %v", err)
	}
	if !first.Committed || first.AlreadyMarked || first.Message != MsgMarked {
		t.Fatalf("first Mark() = %+v", first)
	}
	rec := first.Record
	if rec.SpoofStatus != models.SpoofStatusLive || rec.Time != "09:15:30" || rec.Emotion != "Happy" {
		t.Errorf("record = %+v", rec)
	}

	second := liveRequest()
	second.Emotion = "Sad"
	second.RecognitionConfidence = 99
	out, err := l.Mark(ctx, second, StrictPolicy)
	if err != nil {
		t.Fatalf("second Mark() error: %v", err)
	}
	if out.Committed || !out.AlreadyMarked || !strings.Contains(out.Message, "already marked") {
		t.Errorf("second Mark() = %+v", out)
	}
	if store.AttendanceCount() != 1 || store.NotificationCount() != 1 {
		t.Errorf("rows = %d, notifications = %d, want 1 and 1", store.AttendanceCount(), store.NotificationCount())
	}

	notes, _ := store.ListNotifications(ctx, false, 0)
	if notes[0].Message != "Attendance marked for Meera (106)" || notes[0].Type != "attendance" || notes[0].Title != "Attendance Marked" {
		t.Errorf("notification = %+v", notes[0])
	}
	if len(pub.events) != 1 || pub.events[0].StudentCode != "106" || pub.events[0].Period != "P1" {
		t.Errorf("published = %+v", pub.events)
	}
}

func TestMarkPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MarkRequest)
		policy Policy
		msg    string
	}{
		{"unknown identity", func(r *MarkRequest) { r.StudentID = models.UnknownName }, RoutinePolicy, MsgUnknown},
		{"empty identity", func(r *MarkRequest) { r.StudentID = "  " }, RoutinePolicy, MsgUnknown},
		{"confidence at routine bar", func(r *MarkRequest) { r.RecognitionConfidence = 50 }, RoutinePolicy, MsgLowConfidence},
		{"confidence 40", func(r *MarkRequest) { r.RecognitionConfidence = 40 }, RoutinePolicy, MsgLowConfidence},
		{"below strict bar", func(r *MarkRequest) { r.RecognitionConfidence = 80 }, StrictPolicy, MsgLowConfidence},
		{"spoofed", func(r *MarkRequest) { r.IsLive = false }, RoutinePolicy, MsgNotLive},
		{"low confidence and spoofed", func(r *MarkRequest) { r.RecognitionConfidence = 40; r.IsLive = false }, RoutinePolicy, MsgLowConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewStore()
			store.ExistsErr = errors.New("store must not be consulted")
			l := newTestLedger(store, nil)

			req := liveRequest()
			tt.mutate(&req)
			out, err := l.Mark(context.Background(), req, tt.policy)
			if err != nil {
				t.Fatalf("Mark() error: %v", err)
			}
			if out.Committed || out.AlreadyMarked || out.Message != tt.msg {
				t.Errorf("Mark() = %+v, want message %q", out, tt.msg)
			}
			if store.AttendanceCount() != 0 {
				t.Error("row written despite failed precondition")
			}
		})
	}
}

func TestMarkConcurrentSingleCommit(t *testing.T) {
	store := mock.NewStore()
	l := newTestLedger(store, nil)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		dupes     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := l.Mark(context.Background(), liveRequest(), RoutinePolicy)
			if err != nil {
				t.Errorf("Mark() error: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if out.Committed {
				committed++
			}
			if out.AlreadyMarked {
				dupes++
			}
		}()
	}
	wg.Wait()

	if committed != 1 || dupes != n-1 {
		t.Errorf("committed = %d, already marked = %d", committed, dupes)
	}
	if store.AttendanceCount() != 1 {
		t.Errorf("AttendanceCount() = %d, want 1", store.AttendanceCount())
	}
}

func TestMarkTranslatesUniqueViolation(t *testing.T) {
	store := mock.NewStore()
	l := newTestLedger(store, nil)
	ctx := context.Background()

	if _, err := l.Mark(ctx, liveRequest(), RoutinePolicy); err != nil {
		t.Fatalf("Mark() error: %v", err)
	}
	store.HideExisting = true

	out, err := l.Mark(ctx, liveRequest(), RoutinePolicy)
	if err != nil {
		t.Fatalf("Mark() error: %v", err)
	}
	if !out.AlreadyMarked || out.Committed {
		t.Errorf("Mark() = %+v, want already marked", out)
	}
}

func TestMarkRollsBackOnNotificationFailure(t *testing.T) {
	store := mock.NewStore()
	store.NotificationErr = mock.ErrInjected
	pub := &recordingPublisher{}
	l := newTestLedger(store, pub)

	_, err := l.Mark(context.Background(), liveRequest(), RoutinePolicy)
	if !errors.Is(err, mock.ErrInjected) {
		t.Fatalf("Mark() error = %v, want injected failure", err)
	}
	if store.AttendanceCount() != 0 || store.NotificationCount() != 0 {
		t.Error("partial write retained")
	}
	if len(pub.events) != 0 {
		t.Error("event published for failed mark")
	}
}

func TestMarkStorageErrors(t *testing.T) {
	store := mock.NewStore()
	store.ExistsErr = mock.ErrInjected
	l := newTestLedger(store, nil)

	if _, err := l.Mark(context.Background(), liveRequest(), RoutinePolicy); !errors.Is(err, mock.ErrInjected) {
		t.Errorf("Mark() error = %v, want injected failure", err)
	}
}

func TestMarkPublishFailureIsNotFatal(t *testing.T) {
	store := mock.NewStore()
	l := newTestLedger(store, &recordingPublisher{err: errors.New("nats down")})

	out, err := l.Mark(context.Background(), liveRequest(), RoutinePolicy)
	if err != nil || !out.Committed {
		t.Errorf("Mark() = %+v, %v", out, err)
	}
}

func TestMarkDates(t *testing.T) {
	l := newTestLedger(mock.NewStore(), nil)
	ctx := context.Background()

	req := liveRequest()
	req.Date = ""
	out, err := l.Mark(ctx, req, RoutinePolicy)
	if err != nil || out.Record.Date != "2025-01-10" {
		t.Errorf("Mark(empty date) = %+v, %v", out, err)
	}

	req.Date = "10-01-2025"
	if _, err := l.Mark(ctx, req, RoutinePolicy); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Mark(bad date) error = %v, want ErrInvalidDate", err)
	}

	marked, err := l.IsMarked(ctx, "106", "", "P1")
	if err != nil || !marked {
		t.Errorf("IsMarked() = %v, %v", marked, err)
	}
	marked, _ = l.IsMarked(ctx, "106", "2025-01-10", "P2")
	if marked {
		t.Error("IsMarked() true for another period")
	}
}

func TestPolicies(t *testing.T) {
	if RoutinePolicy.Allows(50) || !RoutinePolicy.Allows(50.1) {
		t.Error("routine policy must require confidence above 50")
	}
	if StrictPolicy.Allows(85) || !StrictPolicy.Allows(92) {
		t.Error("strict policy must require confidence above 85")
	}

	p := NewPolicies(config.PolicyConfig{Strict: 90})
	if p.Routine.MinConfidence != 50 || p.Strict.MinConfidence != 90 {
		t.Errorf("NewPolicies() = %+v", p)
	}

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "routine", false},
		{"routine", "routine", false},
		{"STRICT", "strict", false},
		{"lenient", "", true},
	}
	for _, tt := range tests {
		got, err := PolicyByName(tt.name)
		if (err != nil) != tt.wantErr || got.Name != tt.want {
			t.Errorf("PolicyByName(%q) = %+v, %v", tt.name, got, err)
		}
	}
}
