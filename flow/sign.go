package flow

import (
	"context"
	"errors"
	"sync"

	"chatterbridge/log"
	"chatterbridge/signdetect"
)

var (
	CameraAlert = Alert{Message: signdetect.PermissionMessage}
	DetectAlert = Alert{Message: signdetect.FailureMessage}
)

type SignState int

const (
	SignIdle SignState = iota
	SignLoading
	SignResult
	SignError
)

func (s SignState) String() string {
	switch s {
	case SignLoading:
		return "loading"
	case SignResult:
		return "result"
	case SignError:
		return "error"
	}
	return "idle"
}

type SignView struct {
	State  SignState
	Media  signdetect.Media
	Result signdetect.Result
	Error  string
}

// Sign captures one piece of media and shows the detected label.
type Sign struct {
	detector signdetect.Detector
	sink     EventSink

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	view     SignView
	closed   bool
	captures int
}

func NewSign(d signdetect.Detector, sink EventSink) *Sign {
	if sink == nil {
		sink = NopSink{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	log.ScreenOpen("sign", "http")
	return &Sign{detector: d, sink: sink, ctx: ctx, cancel: cancel}
}

func (s *Sign) Snapshot() SignView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Capture runs permission, capture and detection. A canceled capture leaves
// the previous result on screen.
func (s *Sign) Capture(ctx context.Context, src signdetect.Source) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.view.State == SignLoading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.mu.Unlock()

	if err := src.RequestPermission(); err != nil {
		if errors.Is(err, signdetect.ErrCanceled) {
			return nil
		}
		log.Warnf("camera permission: %v", err)
		s.sink.Alert(CameraAlert)
		return err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer context.AfterFunc(s.ctx, cancel)()
	defer cancel()

	media, err := src.Capture(reqCtx)
	if errors.Is(err, signdetect.ErrCanceled) {
		return nil
	}
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.view = SignView{State: SignLoading, Media: media}
	s.mu.Unlock()
	s.sink.Changed()

	res, err := s.detector.Detect(reqCtx, media)
	if err != nil && s.ctx.Err() != nil {
		return ErrClosed
	}
	if err != nil {
		return s.fail(err)
	}

	log.Result("sign", res.Label)
	log.Confidence(res.Confidence)
	s.mu.Lock()
	s.view.State = SignResult
	s.view.Result = res
	s.captures++
	s.mu.Unlock()
	s.sink.Changed()
	return nil
}

func (s *Sign) fail(err error) error {
	log.Errorf("detect sign: %v", err)
	s.mu.Lock()
	s.view.State = SignError
	s.view.Result = signdetect.Result{}
	s.view.Error = signdetect.FailureMessage
	s.mu.Unlock()
	s.sink.Alert(DetectAlert)
	s.sink.Changed()
	return err
}

func (s *Sign) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	captures := s.captures
	s.mu.Unlock()
	s.cancel()
	log.ScreenClose("sign", captures)
}
