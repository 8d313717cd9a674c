package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agrifood.ai/internal/protocol"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/scenario"
)

// Recorder keeps a record of runs served over the socket.
type Recorder interface {
	pipeline.Tracer
	RecordRun(source string, out *scenario.Outcome)
}

type Server struct {
	runner   *scenario.Runner
	log      *zap.Logger
	recorder Recorder
	catalogs map[string]string

	upgrader websocket.Upgrader
	sem      chan struct{}
	nextID   atomic.Uint64
	idle     time.Duration
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRecorder(r Recorder) Option { return func(s *Server) { s.recorder = r } }

// WithCatalogs sets the catalog digests announced in WELCOME.
func WithCatalogs(d map[string]string) Option { return func(s *Server) { s.catalogs = d } }

// WithMaxRuns bounds the runs executing at once across all connections.
func WithMaxRuns(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

func NewServer(r *scenario.Runner, opts ...Option) *Server {
	s := &Server{
		runner: r,
		log:    zap.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sem:  make(chan struct{}, 4),
		idle: 120 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type session struct {
	id   string
	ctx  context.Context
	out  chan []byte
	runs sync.WaitGroup
}

func (ss *session) send(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return ss.push(b)
}

// push queues an encoded message for the writer.
func (ss *session) push(b []byte) bool {
	select {
	case ss.out <- b:
		return true
	case <-ss.ctx.Done():
		return false
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ss := &session{
			id:  fmt.Sprintf("S%d", s.nextID.Add(1)),
			ctx: ctx,
			out: make(chan []byte, 64),
		}
		log := s.log.With(zap.String("session", ss.id))
		log.Info("connected", zap.String("remote", r.RemoteAddr))

		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       ss.id,
			LeverCodes:      scenario.LeverCodes(),
			Catalogs:        s.catalogs,
			MaxRuns:         cap(s.sem),
		}
		if ps := s.runner.Presets(); ps != nil {
			welcome.Presets = ps.Names()
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}

		// Writer goroutine.
		var writer sync.WaitGroup
		writer.Add(1)
		go func() {
			defer writer.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-ss.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.idle))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if !s.dispatch(ss, log, msg) {
				break
			}
		}

		cancel()
		ss.runs.Wait()
		writer.Wait()
		log.Info("disconnected")
	}
}

// dispatch handles one client message. It returns false once the session
// is gone.
func (s *Server) dispatch(ss *session, log *zap.Logger, msg []byte) bool {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return ss.send(protocol.NewError("", protocol.ErrProtoBadRequest, "malformed message"))
	}
	if base.ProtocolVersion != protocol.Version {
		return ss.send(protocol.NewError(base.ReqID, protocol.ErrProtoBadRequest, "bad protocol_version"))
	}

	switch base.Type {
	case protocol.TypeRun:
		m, err := protocol.DecodeRun(msg)
		if err != nil {
			return ss.send(protocol.NewError(base.ReqID, protocol.ErrProtoBadRequest, err.Error()))
		}
		select {
		case s.sem <- struct{}{}:
		default:
			return ss.send(protocol.NewError(m.ReqID, protocol.ErrBusy, "too many runs in flight"))
		}
		ss.runs.Add(1)
		go func() {
			defer ss.runs.Done()
			defer func() { <-s.sem }()
			s.run(ss, log, m)
		}()
		return true

	case protocol.TypePresets:
		if err := protocol.Validate(protocol.TypePresets, msg); err != nil {
			return ss.send(protocol.NewError(base.ReqID, protocol.ErrProtoBadRequest, err.Error()))
		}
		list := protocol.PresetListMsg{
			Type:            protocol.TypePresetList,
			ProtocolVersion: protocol.Version,
			ReqID:           base.ReqID,
			Presets:         []scenario.Preset{},
		}
		if ps := s.runner.Presets(); ps != nil {
			list.Presets = ps.Presets
		}
		return ss.send(list)

	default:
		return ss.send(protocol.NewError(base.ReqID, protocol.ErrBadRequest, fmt.Sprintf("unknown type %q", base.Type)))
	}
}

func (s *Server) run(ss *session, log *zap.Logger, m protocol.RunMsg) {
	var tracers []pipeline.Tracer
	if s.recorder != nil {
		tracers = append(tracers, s.recorder)
	}
	if m.Progress {
		tracers = append(tracers, progress{ss: ss, reqID: m.ReqID})
	}
	out, err := s.runner.Run(ss.ctx, scenario.Request{
		Preset:    m.Preset,
		Levers:    m.Levers,
		Overrides: m.Overrides,
		Tracer:    pipeline.Tee(tracers...),
	})
	if err != nil {
		if ss.ctx.Err() != nil {
			return
		}
		code := errorCode(err)
		log.Warn("run failed", zap.String("req_id", m.ReqID), zap.String("code", code), zap.Error(err))
		ss.send(protocol.NewError(m.ReqID, code, err.Error()))
		return
	}
	if s.recorder != nil {
		s.recorder.RecordRun("ws:"+ss.id, out)
	}
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ReqID:           m.ReqID,
		Outcome:         out,
	}
	b, err := json.Marshal(res)
	if err != nil {
		log.Error("encode result", zap.String("run_id", out.RunID), zap.Error(err))
		ss.send(protocol.NewError(m.ReqID, protocol.ErrInternal, "result not encodable"))
		return
	}
	ss.push(b)
}

func errorCode(err error) string {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, scenario.ErrUnknownPreset):
		return protocol.ErrUnknownPreset
	case errors.Is(err, scenario.ErrUnknownLever), errors.As(err, &verr):
		return protocol.ErrInvalidLevers
	default:
		return protocol.ErrRunFailed
	}
}

// progress streams a PROGRESS message per finished step.
type progress struct {
	ss    *session
	reqID string
}

func (p progress) StepDone(rec pipeline.StepRecord) error {
	if !p.ss.send(protocol.NewProgress(p.reqID, rec.RunID, rec.Index, rec.Step, rec.TookMS, rec.Warnings)) {
		return p.ss.ctx.Err()
	}
	return nil
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
