package receiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"casic-ng/internal/casic"
	"casic-ng/internal/nmealog"
)

type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, w: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.r.Close()
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type openCall struct {
	device string
	baud   int
}

// withFakeOpen makes openFn hand out fresh fake ports and record each call.
func withFakeOpen(t *testing.T, openErr error) (*[]openCall, *[]*fakePort) {
	t.Helper()
	var mu sync.Mutex
	calls := []openCall{}
	ports := []*fakePort{}
	old := openFn
	openFn = func(device string, baud int) (io.ReadWriteCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, openCall{device: device, baud: baud})
		if openErr != nil {
			return nil, openErr
		}
		p := newFakePort()
		ports = append(ports, p)
		return p, nil
	}
	t.Cleanup(func() { openFn = old })
	return &calls, &ports
}

type fakeSink struct {
	mu       sync.Mutex
	statuses []casic.AntennaStatus
	err      error
}

func (f *fakeSink) PublishAntenna(now time.Time, status casic.AntennaStatus, sentence string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return f.err
}

func (f *fakeSink) got() []casic.AntennaStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]casic.AntennaStatus(nil), f.statuses...)
}

type fakeForward struct {
	sent []string
	err  error
}

func (f *fakeForward) Send(s string) error {
	f.sent = append(f.sent, s)
	return f.err
}

type fakeRecorder struct {
	lines []string
}

func (f *fakeRecorder) WriteSentence(now time.Time, s string) error {
	f.lines = append(f.lines, s)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func txtLine(text string) string {
	body := "GPTXT,01,01,01," + text
	return fmt.Sprintf("$%s*%02X", body, casic.Checksum([]byte(body)))
}

func TestFeed_AntennaChangesNotifySink(t *testing.T) {
	sink := &fakeSink{}
	s := New(Config{Device: "/dev/ttyFAKE"}, Options{Antenna: sink})

	s.Feed("$GPTXT,01,01,01,ANTENNA OPEN*25\r\n")
	s.Feed("$GPTXT,01,01,01,ANTENNA OPEN*25")
	s.Feed(txtLine("ANTENNA OK"))
	s.Close()

	got := sink.got()
	if len(got) != 2 || got[0] != casic.AntennaOpen || got[1] != casic.AntennaOK {
		t.Fatalf("sink statuses=%v want [open ok]", got)
	}
	snap := s.Snapshot()
	if !snap.AntennaValid || snap.Antenna != "ok" {
		t.Fatalf("antenna=%q valid=%v", snap.Antenna, snap.AntennaValid)
	}
	if snap.Txt != 3 || snap.Sentences != 3 {
		t.Fatalf("txt=%d sentences=%d", snap.Txt, snap.Sentences)
	}
	if snap.LastAntennaUTC == "" {
		t.Fatalf("expected last antenna time")
	}
	if snap.State != stateClosed {
		t.Fatalf("state=%q want %q", snap.State, stateClosed)
	}
}

// blockingSink holds every publish until release is closed.
type blockingSink struct {
	fakeSink
	release chan struct{}
}

func (b *blockingSink) PublishAntenna(now time.Time, status casic.AntennaStatus, sentence string) error {
	<-b.release
	return b.fakeSink.PublishAntenna(now, status, sentence)
}

func TestFeed_SlowSinkDoesNotBlockReads(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	s := New(Config{}, Options{Antenna: sink})

	done := make(chan struct{})
	go func() {
		s.Feed(txtLine("ANTENNA OPEN"))
		s.Feed(txtLine("ANTENNA OK"))
		s.Feed("$GNVTG,0.00,T,,M,0.00,N,0.00,K,A*23")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Feed blocked on the antenna sink")
	}
	if snap := s.Snapshot(); snap.Antenna != "ok" || snap.Sentences != 3 {
		t.Fatalf("snapshot=%+v", snap)
	}

	close(sink.release)
	s.Close()
	got := sink.got()
	if len(got) != 2 || got[0] != casic.AntennaOpen || got[1] != casic.AntennaOK {
		t.Fatalf("sink statuses=%v want [open ok]", got)
	}
}

func TestFeed_FullAntennaQueueDropsUpdate(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	s := New(Config{}, Options{Antenna: sink})
	defer s.Close()
	defer close(sink.release)

	// One update is held by the sink, antennaQueue more fill the buffer.
	texts := []string{"ANTENNA OPEN", "ANTENNA OK"}
	for i := 0; i < antennaQueue+3; i++ {
		s.Feed(txtLine(texts[i%2]))
	}
	waitFor(t, "dropped update", func() bool {
		return strings.HasPrefix(s.Snapshot().LastError, "receiver antenna queue full")
	})
}

func TestFeed_UnknownTextKeepsAntennaStatus(t *testing.T) {
	sink := &fakeSink{}
	s := New(Config{}, Options{Antenna: sink})

	s.Feed(txtLine("ANTENNA SHORT"))
	s.Feed(txtLine("SW=URANUS5,V5.1.0.0"))
	s.Close()

	snap := s.Snapshot()
	if snap.Antenna != "short" {
		t.Fatalf("antenna=%q want short", snap.Antenna)
	}
	if snap.TxtOther != 1 {
		t.Fatalf("txt_other=%d want 1", snap.TxtOther)
	}
	if len(sink.got()) != 1 {
		t.Fatalf("sink calls=%d want 1", len(sink.got()))
	}
}

func TestFeed_ParseErrorsCounted(t *testing.T) {
	s := New(Config{}, Options{})

	s.Feed("$GPTXT,01,01,01,ANTENNA OPEN*24")
	snap := s.Snapshot()
	if snap.BadChecksum != 1 {
		t.Fatalf("bad_checksum=%d want 1", snap.BadChecksum)
	}
	if !strings.Contains(snap.LastError, "checksum mismatch") {
		t.Fatalf("last_error=%q", snap.LastError)
	}

	s.Feed("$GPTXT,01,01,02,MS=7,7,1*5F")
	snap = s.Snapshot()
	if snap.Malformed != 1 {
		t.Fatalf("malformed=%d want 1", snap.Malformed)
	}
	if snap.AntennaValid {
		t.Fatalf("antenna should not be valid after failed parses")
	}
}

func TestFeed_PassThroughAndRecorder(t *testing.T) {
	fwd := &fakeForward{}
	rec := &fakeRecorder{}
	s := New(Config{}, Options{PassThrough: fwd, Recorder: rec})

	s.Feed("$GNVTG,0.00,T,,M,0.00,N,0.00,K,A*23")
	s.Feed("boot banner")
	s.Feed("   ")
	s.Feed("$GPTXT,01,01,01,ANTENNA OPEN*25")

	if len(fwd.sent) != 1 || fwd.sent[0] != "$GNVTG,0.00,T,,M,0.00,N,0.00,K,A*23" {
		t.Fatalf("forwarded=%q", fwd.sent)
	}
	if len(rec.lines) != 2 {
		t.Fatalf("recorded=%q", rec.lines)
	}
	snap := s.Snapshot()
	if snap.PassThrough != 1 || snap.Chatter != 1 || snap.Sentences != 2 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestFeed_ForwardErrorKept(t *testing.T) {
	s := New(Config{}, Options{PassThrough: &fakeForward{err: errors.New("unreachable")}})
	s.Feed("$GNVTG,0.00,T,,M,0.00,N,0.00,K,A*23")
	if got := s.Snapshot().LastError; got != "receiver forward failed: unreachable" {
		t.Fatalf("last_error=%q", got)
	}
}

func TestStart_SendsPlanAndReopensAtTargetBaud(t *testing.T) {
	calls, ports := withFakeOpen(t, nil)
	restart := casic.Hot
	sink := &fakeSink{}
	s := New(Config{
		Device:     "/dev/ttyFAKE",
		Baud:       9600,
		TargetBaud: 115200,
		UpdateRate: casic.Hz5,
		Restart:    &restart,
	}, Options{Antenna: sink})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Close()

	if len(*calls) != 2 || (*calls)[0].baud != 9600 || (*calls)[1].baud != 115200 {
		t.Fatalf("open calls=%+v", *calls)
	}
	first, second := (*ports)[0], (*ports)[1]
	if got := first.Written(); got != "$PCAS01,5*19\r\n" {
		t.Fatalf("first port written=%q", got)
	}
	if !first.isClosed() {
		t.Fatalf("expected first port closed after baud switch")
	}
	want := casic.UpdateRateSentence(casic.Hz5) + "\r\n" + "$PCAS10,0*1C\r\n"
	if got := second.Written(); got != want {
		t.Fatalf("second port written=%q want %q", got, want)
	}

	snap := s.Snapshot()
	if snap.State != stateMonitoring || snap.Baud != 115200 || snap.CommandsSent != 3 {
		t.Fatalf("snapshot=%+v", snap)
	}

	if _, err := io.WriteString(second.w, "$GPTXT,01,01,01,ANTENNA OPEN*25\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, "antenna open", func() bool { return s.Snapshot().Antenna == "open" })

	s.Close()
	if got := s.Snapshot().State; got != stateClosed {
		t.Fatalf("state=%q want %q", got, stateClosed)
	}
	if !second.isClosed() {
		t.Fatalf("expected port closed")
	}
}

func TestStart_NoCommandsJustMonitors(t *testing.T) {
	calls, ports := withFakeOpen(t, nil)
	s := New(Config{Device: "/dev/ttyFAKE", Baud: 38400, TargetBaud: 38400}, Options{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Close()
	if len(*calls) != 1 {
		t.Fatalf("open calls=%+v", *calls)
	}
	if got := (*ports)[0].Written(); got != "" {
		t.Fatalf("written=%q want nothing", got)
	}
}

func TestStart_OpenFailure(t *testing.T) {
	withFakeOpen(t, errors.New("no such device"))
	s := New(Config{Device: "/dev/ttyFAKE", Baud: 9600}, Options{})

	err := s.Start(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	snap := s.Snapshot()
	if snap.State != stateFailed {
		t.Fatalf("state=%q want %q", snap.State, stateFailed)
	}
	if !strings.Contains(snap.LastError, "no such device") {
		t.Fatalf("last_error=%q", snap.LastError)
	}
	s.Close()
	if got := s.Snapshot().State; got != stateClosed {
		t.Fatalf("state=%q want %q", got, stateClosed)
	}
}

func TestStart_ResetPulse(t *testing.T) {
	withFakeOpen(t, nil)
	var gotPin int
	var gotWidth time.Duration
	old := resetPulseFn
	resetPulseFn = func(pin int, width time.Duration) error {
		gotPin, gotWidth = pin, width
		return nil
	}
	t.Cleanup(func() { resetPulseFn = old })

	s := New(Config{Device: "/dev/ttyFAKE", Baud: 9600, ResetGPIO: 17, ResetPulse: 20 * time.Millisecond}, Options{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Close()
	if gotPin != 17 || gotWidth != 20*time.Millisecond {
		t.Fatalf("pulse pin=%d width=%s", gotPin, gotWidth)
	}
}

func TestStart_ResetFailureStopsStart(t *testing.T) {
	calls, _ := withFakeOpen(t, nil)
	old := resetPulseFn
	resetPulseFn = func(int, time.Duration) error { return errors.New("line busy") }
	t.Cleanup(func() { resetPulseFn = old })

	s := New(Config{Device: "/dev/ttyFAKE", Baud: 9600, ResetGPIO: 17, ResetPulse: time.Millisecond}, Options{})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(*calls) != 0 {
		t.Fatalf("port should not be opened after reset failure")
	}
}

func TestMonitor_EOFMarksFailed(t *testing.T) {
	_, ports := withFakeOpen(t, nil)
	s := New(Config{Device: "/dev/ttyFAKE", Baud: 9600}, Options{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Close()

	_ = (*ports)[0].w.Close()
	waitFor(t, "failed state", func() bool { return s.Snapshot().State == stateFailed })
	if got := s.Snapshot().LastError; got != "receiver read stopped: EOF" {
		t.Fatalf("last_error=%q", got)
	}
}

func TestStartReplay_FeedsRecords(t *testing.T) {
	sink := &fakeSink{}
	s := New(Config{}, Options{Antenna: sink})
	recs := []nmealog.Record{
		{Start: true},
		{Sentence: "$GNVTG,0.00,T,,M,0.00,N,0.00,K,A*23"},
		{Sentence: "$GPTXT,01,01,01,ANTENNA OPEN*25"},
	}
	if err := s.StartReplay(context.Background(), recs, 1, false); err != nil {
		t.Fatalf("StartReplay() error: %v", err)
	}
	defer s.Close()

	waitFor(t, "replayed sentences", func() bool { return s.Snapshot().Sentences == 2 })
	snap := s.Snapshot()
	if snap.State != stateMonitoring || snap.Antenna != "open" || snap.PassThrough != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestStartReplay_LoopWithoutSentencesStops(t *testing.T) {
	s := New(Config{}, Options{})
	if err := s.StartReplay(context.Background(), []nmealog.Record{{Start: true}}, 1, true); err != nil {
		t.Fatalf("StartReplay() error: %v", err)
	}

	waitFor(t, "failed state", func() bool { return s.Snapshot().State == stateFailed })
	if got := s.Snapshot().LastError; got != "receiver replay stopped: no sentence records" {
		t.Fatalf("last_error=%q", got)
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return")
	}
}
