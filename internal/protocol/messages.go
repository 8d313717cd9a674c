package protocol

import (
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/scenario"
)

// WELCOME (server -> client), sent once the connection is upgraded.
type WelcomeMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	SessionID       string            `json:"session_id"`
	Presets         []string          `json:"presets"`
	LeverCodes      []string          `json:"lever_codes"`
	Catalogs        map[string]string `json:"catalogs,omitempty"`
	MaxRuns         int               `json:"max_runs,omitempty"`
}

// RUN (client -> server)
type RunMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	ReqID           string             `json:"req_id"`
	Preset          string             `json:"preset,omitempty"`
	Levers          *scenario.Levers   `json:"levers,omitempty"`
	Overrides       map[string]float64 `json:"overrides,omitempty"`
	Progress        bool               `json:"progress,omitempty"`
}

// PROGRESS (server -> client), one per finished step when requested.
type ProgressMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id"`
	RunID           string  `json:"run_id"`
	Index           int     `json:"index"`
	Step            string  `json:"step"`
	TookMS          float64 `json:"took_ms"`
	Warnings        int     `json:"warnings"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ReqID           string            `json:"req_id"`
	Outcome         *scenario.Outcome `json:"outcome"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// PRESETS (client -> server)
type PresetsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
}

// PRESET_LIST (server -> client)
type PresetListMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ReqID           string            `json:"req_id"`
	Presets         []scenario.Preset `json:"presets"`
}

func NewError(reqID, code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Code:            code,
		Message:         message,
	}
}

func NewProgress(reqID, runID string, index int, step string, tookMS float64, warns []diag.Warning) ProgressMsg {
	return ProgressMsg{
		Type:            TypeProgress,
		ProtocolVersion: Version,
		ReqID:           reqID,
		RunID:           runID,
		Index:           index,
		Step:            step,
		TookMS:          tookMS,
		Warnings:        len(warns),
	}
}
