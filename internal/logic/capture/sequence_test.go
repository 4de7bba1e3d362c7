package capture

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/pimaton/internal/hw/camera"
)

// mockCamera records calls and can fail on a given shot.
type mockCamera struct {
	mu           sync.Mutex
	calls        []string
	paths        []string
	configureErr error
	failOnShot   int // 1-based; 0 = never
	captureErr   error
}

func (m *mockCamera) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockCamera) Configure(camera.Settings) error {
	m.record("configure")
	return m.configureErr
}

func (m *mockCamera) StartPreview() error {
	m.record("start")
	return nil
}

func (m *mockCamera) StopPreview() error {
	m.record("stop")
	return nil
}

func (m *mockCamera) Capture(_ context.Context, path string) error {
	m.record("capture")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	if m.failOnShot > 0 && len(m.paths) == m.failOnShot {
		return m.captureErr
	}
	return nil
}

func (m *mockCamera) Close() error { return nil }

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

var fixedNow = time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC)

func newTestSequence(t *testing.T, cam *mockCamera, count int) *Sequence {
	t.Helper()
	seq, err := NewSequence(cam, camera.Settings{}, Params{Count: count, Prefix: "pimaton"})
	if err != nil {
		t.Fatalf("NewSequence: %v", err)
	}
	seq.SetSleeper(noSleep)
	seq.SetClock(func() time.Time { return fixedNow })
	return seq
}

func TestTakePictures_Counts(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 8} {
		cam := &mockCamera{}
		seq := newTestSequence(t, cam, n)

		taken, err := seq.TakePictures(context.Background(), "1717252200", "/photos")
		if err != nil {
			t.Fatalf("n=%d: TakePictures: %v", n, err)
		}
		if len(taken) != n {
			t.Errorf("n=%d: got %d filenames", n, len(taken))
		}
		if len(cam.paths) != n {
			t.Errorf("n=%d: camera captured %d times", n, len(cam.paths))
		}
	}
}

func TestTakePictures_FilenamesAndPaths(t *testing.T) {
	cam := &mockCamera{}
	seq := newTestSequence(t, cam, 2)

	taken, err := seq.TakePictures(context.Background(), "1717252200", "/photos/1717252200")
	if err != nil {
		t.Fatalf("TakePictures: %v", err)
	}

	want := []string{
		"pimaton_1717252200_01_2024-06-01T14:30:00.jpg",
		"pimaton_1717252200_02_2024-06-01T14:30:00.jpg",
	}
	for i := range want {
		if taken[i] != want[i] {
			t.Errorf("taken[%d] = %q, want %q", i, taken[i], want[i])
		}
		if wantPath := filepath.Join("/photos/1717252200", want[i]); cam.paths[i] != wantPath {
			t.Errorf("path[%d] = %q, want %q", i, cam.paths[i], wantPath)
		}
	}
}

func TestTakePictures_PreviewBracketsCaptures(t *testing.T) {
	cam := &mockCamera{}
	seq := newTestSequence(t, cam, 2)
	if _, err := seq.TakePictures(context.Background(), "k", t.TempDir()); err != nil {
		t.Fatal(err)
	}

	want := []string{"configure", "start", "capture", "capture", "stop"}
	if len(cam.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", cam.calls, want)
	}
	for i := range want {
		if cam.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, cam.calls[i], want[i])
		}
	}
}

func TestTakePictures_CaptureErrorWrapped(t *testing.T) {
	cause := errors.New("mmal: no data received from sensor")
	cam := &mockCamera{failOnShot: 2, captureErr: cause}
	seq := newTestSequence(t, cam, 3)

	taken, err := seq.TakePictures(context.Background(), "k", "/photos")
	if taken != nil {
		t.Errorf("expected no filenames on failure, got %v", taken)
	}
	var camErr *camera.Error
	if !errors.As(err, &camErr) {
		t.Fatalf("expected *camera.Error, got %T: %v", err, err)
	}
	if camErr.Op != "capture" {
		t.Errorf("Op = %q, want capture", camErr.Op)
	}
	if !errors.Is(err, cause) {
		t.Error("hardware cause should be preserved")
	}
	if cam.calls[len(cam.calls)-1] != "stop" {
		t.Error("preview should be stopped after a failed capture")
	}
}

func TestTakePictures_CameraErrorNotDoubleWrapped(t *testing.T) {
	inner := &camera.Error{Op: "capture", Path: "/x.jpg", Err: errors.New("boom")}
	cam := &mockCamera{failOnShot: 1, captureErr: inner}
	seq := newTestSequence(t, cam, 1)

	_, err := seq.TakePictures(context.Background(), "k", "/photos")
	if err != inner {
		t.Errorf("expected the camera's own error, got %v", err)
	}
}

func TestNewSequence_ConfigureError(t *testing.T) {
	cam := &mockCamera{configureErr: errors.New("invalid resolution")}
	_, err := NewSequence(cam, camera.Settings{}, Params{Count: 1})

	var camErr *camera.Error
	if !errors.As(err, &camErr) {
		t.Fatalf("expected *camera.Error, got %v", err)
	}
	if camErr.Op != "configure" {
		t.Errorf("Op = %q, want configure", camErr.Op)
	}
}

func TestTakePictures_ContextCancellation(t *testing.T) {
	cam := &mockCamera{}
	seq := newTestSequence(t, cam, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seq.TakePictures(ctx, "k", "/photos")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(cam.paths) != 0 {
		t.Errorf("no picture should be taken after cancellation, got %d", len(cam.paths))
	}
}

func TestTakePictures_WaitsBeforeEachShot(t *testing.T) {
	cam := &mockCamera{}
	seq, err := NewSequence(cam, camera.Settings{}, Params{
		Count:        3,
		Prefix:       "p",
		WarmUp:       2 * time.Second,
		BetweenShots: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	var waits []time.Duration
	seq.SetSleeper(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})

	if _, err := seq.TakePictures(context.Background(), "k", "/photos"); err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{2 * time.Second, time.Second, time.Second, time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep should return promptly when the context ends")
	}
}

func TestSleep_Zero(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) = %v, want nil", err)
	}
}
