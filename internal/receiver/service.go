package receiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"casic-ng/internal/casic"
	"casic-ng/internal/nmealog"
	"casic-ng/internal/resetline"
	"casic-ng/internal/serial"
)

// PassThrough receives every sentence the codec does not model.
type PassThrough interface {
	Send(sentence string) error
}

// AntennaSink is told about antenna status changes.
type AntennaSink interface {
	PublishAntenna(now time.Time, status casic.AntennaStatus, sentence string) error
}

// Recorder logs every received sentence.
type Recorder interface {
	WriteSentence(now time.Time, sentence string) error
}

type Options struct {
	PassThrough PassThrough
	Antenna     AntennaSink
	Recorder    Recorder
}

type Snapshot struct {
	State  string `json:"state"`
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`

	CommandsSent int `json:"commands_sent"`

	Antenna        string `json:"antenna"`
	AntennaValid   bool   `json:"antenna_valid"`
	LastAntennaUTC string `json:"last_antenna_utc,omitempty"`

	Sentences   uint64 `json:"sentences"`
	PassThrough uint64 `json:"pass_through"`
	Txt         uint64 `json:"txt"`
	TxtOther    uint64 `json:"txt_other"`
	Malformed   uint64 `json:"malformed"`
	BadChecksum uint64 `json:"bad_checksum"`
	Chatter     uint64 `json:"chatter"`

	LastError string `json:"last_error,omitempty"`
}

// antennaQueue bounds the status changes waiting for the sink.
const antennaQueue = 16

type antennaUpdate struct {
	now      time.Time
	status   casic.AntennaStatus
	sentence string
}

var (
	openFn       = serial.Open
	resetPulseFn = resetline.Pulse
)

type Service struct {
	cfg  Config
	opts Options
	fsm  *fsm.FSM

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closer io.Closer
	snap   Snapshot

	// Antenna sink calls happen on publishLoop, off the read loop.
	updates  chan antennaUpdate
	stopPub  chan struct{}
	pubDone  chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, opts Options) *Service {
	s := &Service{cfg: cfg, opts: opts, fsm: newLifecycle(cfg.Device)}
	s.snap = Snapshot{Device: cfg.Device, Baud: cfg.Baud, Antenna: casic.AntennaUnknown.String()}
	if opts.Antenna != nil {
		s.updates = make(chan antennaUpdate, antennaQueue)
		s.stopPub = make(chan struct{})
		s.pubDone = make(chan struct{})
		go s.publishLoop()
	}
	return s
}

// Start resets and configures the receiver, then monitors its output in the
// background until ctx is done or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("receiver service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	fire(s.fsm, eventOpen)

	port, err := s.configure(childCtx)
	if err != nil {
		s.mu.Lock()
		s.cancel = nil
		s.closer = nil
		s.mu.Unlock()
		cancel()
		s.setError(err.Error())
		fire(s.fsm, eventFail)
		return err
	}
	fire(s.fsm, eventConfigured)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = port.Close() }()
		s.monitor(childCtx, port)
	}()
	return nil
}

func (s *Service) configure(ctx context.Context) (io.ReadWriteCloser, error) {
	if s.cfg.ResetGPIO > 0 {
		if err := resetPulseFn(s.cfg.ResetGPIO, s.cfg.ResetPulse); err != nil {
			return nil, fmt.Errorf("receiver reset failed gpio=%d: %w", s.cfg.ResetGPIO, err)
		}
		log.Printf("receiver reset gpio=%d pulse=%s", s.cfg.ResetGPIO, s.cfg.ResetPulse)
	}

	baud := s.cfg.Baud
	port, err := s.open(baud)
	if err != nil {
		return nil, err
	}
	log.Printf("receiver opened device=%s baud=%d", s.cfg.Device, baud)

	for _, cmd := range Plan(s.cfg) {
		sentence := cmd.Sentence()
		if _, err := io.WriteString(port, sentence+"\r\n"); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("receiver write %s: %w", sentence, err)
		}
		log.Printf("receiver sent %s", sentence)
		s.mu.Lock()
		s.snap.CommandsSent++
		s.mu.Unlock()

		if err := sleepCtx(ctx, s.cfg.CommandGap); err != nil {
			_ = port.Close()
			return nil, err
		}

		if b, ok := cmd.(casic.BaudRate); ok && b.Bps() != baud {
			_ = port.Close()
			baud = b.Bps()
			port, err = s.open(baud)
			if err != nil {
				return nil, err
			}
			log.Printf("receiver reopened device=%s baud=%d", s.cfg.Device, baud)
		}
	}
	return port, nil
}

func (s *Service) open(baud int) (io.ReadWriteCloser, error) {
	port, err := openFn(s.cfg.Device, baud)
	if err != nil {
		return nil, fmt.Errorf("receiver open failed device=%s baud=%d: %w", s.cfg.Device, baud, err)
	}
	s.mu.Lock()
	s.closer = port
	s.snap.Baud = baud
	s.mu.Unlock()
	return port, nil
}

func (s *Service) monitor(ctx context.Context, r io.Reader) {
	reader := bufio.NewScanner(r)
	// Sentences are at most 82 bytes; leave room for line noise.
	reader.Buffer(make([]byte, 0, 256), 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !reader.Scan() {
			if ctx.Err() != nil {
				return
			}
			err := reader.Err()
			if err == nil {
				err = io.EOF
			}
			s.setError(fmt.Sprintf("receiver read stopped: %v", err))
			fire(s.fsm, eventFail)
			return
		}
		s.feed(time.Now().UTC(), reader.Text())
	}
}

// StartReplay feeds recorded sentences through the same path as live input.
func (s *Service) StartReplay(ctx context.Context, records []nmealog.Record, speed float64, loop bool) error {
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	fire(s.fsm, eventOpen)
	fire(s.fsm, eventConfigured)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := nmealog.Play(records, speed, loop, ctxSleeper{ctx: childCtx}, func(sentence string) error {
			if err := childCtx.Err(); err != nil {
				return err
			}
			s.feed(time.Now().UTC(), sentence)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.setError(fmt.Sprintf("receiver replay stopped: %v", err))
			fire(s.fsm, eventFail)
		}
	}()
	return nil
}

// Feed processes one received line. Leading/trailing whitespace, including
// CR/LF, is ignored.
func (s *Service) Feed(line string) {
	s.feed(time.Now().UTC(), line)
}

func (s *Service) feed(now time.Time, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "$") {
		s.mu.Lock()
		s.snap.Chatter++
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.snap.Sentences++
	s.mu.Unlock()

	if rec := s.opts.Recorder; rec != nil {
		if err := rec.WriteSentence(now, line); err != nil {
			s.setError(fmt.Sprintf("receiver record failed: %v", err))
		}
	}

	switch casic.Classify(line) {
	case casic.Txt:
		s.handleTxt(now, line)
	default:
		s.mu.Lock()
		s.snap.PassThrough++
		s.mu.Unlock()
		if pt := s.opts.PassThrough; pt != nil {
			if err := pt.Send(line); err != nil {
				s.setError(fmt.Sprintf("receiver forward failed: %v", err))
			}
		}
	}
}

func (s *Service) handleTxt(now time.Time, line string) {
	msg, err := casic.Parse(line)
	if err != nil {
		s.mu.Lock()
		if errors.Is(err, casic.ErrChecksumMismatch) {
			s.snap.BadChecksum++
		} else {
			s.snap.Malformed++
		}
		s.mu.Unlock()
		s.setError(err.Error())
		return
	}

	status := msg.Txt.AntennaStatus
	s.mu.Lock()
	s.snap.Txt++
	if status == casic.AntennaUnknown {
		// Other firmware text (version banners etc.) says nothing about
		// the antenna.
		s.snap.TxtOther++
		s.mu.Unlock()
		return
	}
	changed := !s.snap.AntennaValid || s.snap.Antenna != status.String()
	s.snap.Antenna = status.String()
	s.snap.AntennaValid = true
	s.snap.LastAntennaUTC = now.Format(time.RFC3339Nano)
	s.mu.Unlock()

	if !changed {
		return
	}
	log.Printf("receiver antenna=%s device=%s", status, s.cfg.Device)
	if s.updates == nil {
		return
	}
	select {
	case s.updates <- antennaUpdate{now: now, status: status, sentence: line}:
	default:
		s.setError(fmt.Sprintf("receiver antenna queue full, dropped antenna=%s", status))
	}
}

// publishLoop hands queued status changes to the sink until Close, then
// flushes whatever is still queued.
func (s *Service) publishLoop() {
	defer close(s.pubDone)
	for {
		select {
		case u := <-s.updates:
			s.publish(u)
		case <-s.stopPub:
			for {
				select {
				case u := <-s.updates:
					s.publish(u)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) publish(u antennaUpdate) {
	if err := s.opts.Antenna.PublishAntenna(u.now, u.status, u.sentence); err != nil {
		s.setError(fmt.Sprintf("receiver antenna publish failed: %v", err))
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
	if s.stopPub != nil {
		s.stopOnce.Do(func() { close(s.stopPub) })
		<-s.pubDone
	}
	fire(s.fsm, eventClose)
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	out := s.snap
	s.mu.Unlock()
	out.State = s.fsm.Current()
	return out
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type ctxSleeper struct {
	ctx context.Context
}

func (c ctxSleeper) Sleep(d time.Duration) { _ = sleepCtx(c.ctx, d) }
