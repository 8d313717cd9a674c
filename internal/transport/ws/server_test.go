package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"agrifood.ai/internal/protocol"
	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/scenario"
	"agrifood.ai/internal/sim/tuning"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memRecorder struct {
	mu    sync.Mutex
	steps int
	runs  []string
}

func (r *memRecorder) StepDone(pipeline.StepRecord) error {
	r.mu.Lock()
	r.steps++
	r.mu.Unlock()
	return nil
}

func (r *memRecorder) RecordRun(source string, out *scenario.Outcome) {
	r.mu.Lock()
	r.runs = append(r.runs, source+"/"+out.RunID)
	r.mu.Unlock()
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	ps, err := scenario.LoadPresets("")
	require.NoError(t, err)
	load := func(context.Context) (*baseline.Dataset, error) { return baseline.Demo(), nil }
	runner := scenario.NewRunner(baseline.NewCache(load), tuning.Defaults(), ps)

	srv := httptest.NewServer(NewServer(runner, opts...).Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		srv.Close()
	})
	return srv, conn
}

func readMsg(t *testing.T, conn *websocket.Conn) (protocol.BaseMessage, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	base, err := protocol.DecodeBase(b)
	require.NoError(t, err)
	return base, b
}

func readError(t *testing.T, conn *websocket.Conn) protocol.ErrorMsg {
	t.Helper()
	base, b := readMsg(t, conn)
	require.Equal(t, protocol.TypeError, base.Type, string(b))
	var e protocol.ErrorMsg
	require.NoError(t, json.Unmarshal(b, &e))
	return e
}

func sendJSON(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func TestWelcomeAndPresets(t *testing.T) {
	_, conn := newTestServer(t, WithCatalogs(map[string]string{"items": "abc"}), WithMaxRuns(2))

	base, b := readMsg(t, conn)
	require.Equal(t, protocol.TypeWelcome, base.Type)
	var w protocol.WelcomeMsg
	require.NoError(t, json.Unmarshal(b, &w))
	assert.NotEmpty(t, w.SessionID)
	assert.Contains(t, w.Presets, "Business as Usual")
	assert.Contains(t, w.LeverCodes, "d1")
	assert.Equal(t, "abc", w.Catalogs["items"])
	assert.Equal(t, 2, w.MaxRuns)

	sendJSON(t, conn, `{"type":"PRESETS","protocol_version":"1.0","req_id":"p1"}`)
	base, b = readMsg(t, conn)
	require.Equal(t, protocol.TypePresetList, base.Type)
	assert.Equal(t, "p1", base.ReqID)
	var list protocol.PresetListMsg
	require.NoError(t, json.Unmarshal(b, &list))
	assert.Len(t, list.Presets, len(w.Presets))
}

func TestRunStreamsProgressThenResult(t *testing.T) {
	rec := &memRecorder{}
	_, conn := newTestServer(t, WithRecorder(rec))
	readMsg(t, conn) // WELCOME

	sendJSON(t, conn, `{"type":"RUN","protocol_version":"1.0","req_id":"r1","preset":"Business as Usual","overrides":{"d1":20},"progress":true}`)

	var progress []protocol.ProgressMsg
	var res protocol.ResultMsg
	for {
		base, b := readMsg(t, conn)
		require.Equal(t, "r1", base.ReqID)
		if base.Type == protocol.TypeProgress {
			var p protocol.ProgressMsg
			require.NoError(t, json.Unmarshal(b, &p))
			progress = append(progress, p)
			continue
		}
		require.Equal(t, protocol.TypeResult, base.Type, string(b))
		require.NoError(t, json.Unmarshal(b, &res))
		break
	}

	require.NotNil(t, res.Outcome)
	assert.Equal(t, 20.0, res.Outcome.Levers.Ruminant)
	assert.Len(t, res.Outcome.Digest, 64)
	require.Len(t, progress, len(res.Outcome.Steps))
	for i, p := range progress {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, res.Outcome.Steps[i], p.Step)
		assert.Equal(t, res.Outcome.RunID, p.RunID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, len(res.Outcome.Steps), rec.steps)
	require.Len(t, rec.runs, 1)
	assert.True(t, strings.HasPrefix(rec.runs[0], "ws:"))
	assert.True(t, strings.HasSuffix(rec.runs[0], res.Outcome.RunID))
}

func TestRequestErrors(t *testing.T) {
	_, conn := newTestServer(t)
	readMsg(t, conn)

	cases := []struct {
		name string
		raw  string
		code string
	}{
		{"not json", `{"type":`, protocol.ErrProtoBadRequest},
		{"bad version", `{"type":"RUN","protocol_version":"0.9","req_id":"a"}`, protocol.ErrProtoBadRequest},
		{"schema", `{"type":"RUN","protocol_version":"1.0","req_id":"b","levers":{"ruminant":300}}`, protocol.ErrProtoBadRequest},
		{"unknown type", `{"type":"ACT","protocol_version":"1.0","req_id":"c"}`, protocol.ErrBadRequest},
		{"unknown preset", `{"type":"RUN","protocol_version":"1.0","req_id":"d","preset":"Nope"}`, protocol.ErrUnknownPreset},
		{"unknown lever", `{"type":"RUN","protocol_version":"1.0","req_id":"e","overrides":{"d9":1}}`, protocol.ErrInvalidLevers},
		{"out of range override", `{"type":"RUN","protocol_version":"1.0","req_id":"f","overrides":{"d1":500}}`, protocol.ErrInvalidLevers},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sendJSON(t, conn, tc.raw)
			e := readError(t, conn)
			assert.Equal(t, tc.code, e.Code, e.Message)
			assert.True(t, protocol.IsKnownCode(e.Code))
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, protocol.ErrUnknownPreset, errorCode(fmt.Errorf("x: %w", scenario.ErrUnknownPreset)))
	assert.Equal(t, protocol.ErrInvalidLevers, errorCode(scenario.ErrUnknownLever))
	assert.Equal(t, protocol.ErrInvalidLevers, errorCode(fmt.Errorf("levers: %w", scenario.Levers{Ruminant: 200}.Validate())))
	assert.Equal(t, protocol.ErrRunFailed, errorCode(errors.New("boom")))
}

func TestBusyWhenNoSlots(t *testing.T) {
	ps, err := scenario.LoadPresets("")
	require.NoError(t, err)
	block := make(chan struct{})
	load := func(ctx context.Context) (*baseline.Dataset, error) {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return baseline.Demo(), nil
	}
	runner := scenario.NewRunner(baseline.NewCache(load), tuning.Defaults(), ps)
	srv := httptest.NewServer(NewServer(runner, WithMaxRuns(1)).Handler())
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readMsg(t, conn)

	sendJSON(t, conn, `{"type":"RUN","protocol_version":"1.0","req_id":"slow"}`)
	sendJSON(t, conn, `{"type":"RUN","protocol_version":"1.0","req_id":"second"}`)
	e := readError(t, conn)
	assert.Equal(t, "second", e.ReqID)
	assert.Equal(t, protocol.ErrBusy, e.Code)

	close(block)
	base, _ := readMsg(t, conn)
	assert.Equal(t, protocol.TypeResult, base.Type)
	assert.Equal(t, "slow", base.ReqID)
}

func TestSessionQueuesEncodedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ss := &session{id: "S1", ctx: ctx, out: make(chan []byte, 1)}

	assert.False(t, ss.send(math.NaN()))
	assert.Empty(t, ss.out)

	msg := []byte(`{"type":"RESULT"}`)
	require.True(t, ss.push(msg))
	assert.Equal(t, msg, <-ss.out)

	require.True(t, ss.push(msg))
	cancel()
	assert.False(t, ss.push(msg))
}
