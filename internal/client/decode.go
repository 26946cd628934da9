// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ManuGH/footage/internal/contract"
)

// wireEvent mirrors contract.ProgressEvent with every field left raw, so a
// field of the wrong type is dropped instead of failing the whole event.
type wireEvent struct {
	Message   json.RawMessage `json:"message"`
	Progress  json.RawMessage `json:"progress"`
	Status    json.RawMessage `json:"status"`
	TaskID    json.RawMessage `json:"task_id"`
	ResultURL json.RawMessage `json:"result_url"`
	Frames    json.RawMessage `json:"frames"`
}

// decodeEvent parses one event payload. Only a payload that is not a JSON
// object is an error. A non-numeric progress is ignored and a non-string
// status reads as still running.
func decodeEvent(data []byte) (contract.ProgressEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return contract.ProgressEvent{}, fmt.Errorf("decode event: payload is not an object")
	}
	var w wireEvent
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return contract.ProgressEvent{}, fmt.Errorf("decode event: %w", err)
	}

	ev := contract.ProgressEvent{
		Message:   rawString(w.Message),
		Status:    rawString(w.Status),
		TaskID:    rawString(w.TaskID),
		ResultURL: rawString(w.ResultURL),
	}
	var p float64
	if isNumber(w.Progress) && json.Unmarshal(w.Progress, &p) == nil {
		ev.Progress = &p
	}
	var frames contract.ProcessingProgress
	if isObject(w.Frames) && json.Unmarshal(w.Frames, &frames) == nil {
		ev.Frames = &frames
	}
	return ev, nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}
