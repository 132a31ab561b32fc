package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// sceneEvent is one entry in a scene JSON file, in the idiom of
// CWBudde-algo-piano's preset/json.go schema structs.
type sceneEvent struct {
	Type      string  `json:"type"` // note_on, note_off, sustain, pitch_bend, midi1
	AtSeconds float64 `json:"at_seconds"`
	Port      int16   `json:"port"`
	Channel   int16   `json:"channel"`
	Key       int16   `json:"key"`
	NoteID    int32   `json:"note_id"`
	Velocity  float64 `json:"velocity"`
	Level     int8    `json:"level"`
	PitchBend uint16  `json:"pitch_bend"`

	// Status/Data1/Data2 carry a raw 3-byte MIDI 1.0 message for the
	// "midi1" event type, translated by pkg/midi instead of calling the
	// manager directly.
	Status uint8 `json:"status"`
	Data1  uint8 `json:"data1"`
	Data2  uint8 `json:"data2"`
}

// scene is a small, fully-specified musical event script to replay
// through the manager and render to a WAV file.
type scene struct {
	SampleRate int          `json:"sample_rate"`
	Events     []sceneEvent `json:"events"`
}

// loadScene reads and validates a scene JSON file.
func loadScene(path string) (*scene, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s scene
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parsing scene %q: %w", path, err)
	}
	if s.SampleRate == 0 {
		s.SampleRate = 48000
	}
	for i, e := range s.Events {
		if e.Type == "" {
			return nil, fmt.Errorf("scene event %d: missing type", i)
		}
	}
	return &s, nil
}

// defaultScene is used when no -scene flag is given: a simple poly
// chord, a release, and a closing all-notes-off.
func defaultScene() *scene {
	return &scene{
		SampleRate: 48000,
		Events: []sceneEvent{
			{Type: "note_on", AtSeconds: 0.0, Channel: 0, Key: 60, NoteID: 1, Velocity: 0.8},
			{Type: "note_on", AtSeconds: 0.05, Channel: 0, Key: 64, NoteID: 2, Velocity: 0.8},
			{Type: "note_on", AtSeconds: 0.10, Channel: 0, Key: 67, NoteID: 3, Velocity: 0.8},
			// A raw MIDI 1.0 CC64 (sustain) message, translated by pkg/midi
			// instead of calling UpdateSustainPedal directly.
			{Type: "midi1", AtSeconds: 0.50, Channel: 0, Status: 0xB0, Data1: 64, Data2: 127},
			{Type: "note_off", AtSeconds: 1.0, Channel: 0, Key: 60, NoteID: 1, Velocity: 0.5},
			{Type: "note_off", AtSeconds: 1.0, Channel: 0, Key: 64, NoteID: 2, Velocity: 0.5},
			{Type: "note_off", AtSeconds: 1.0, Channel: 0, Key: 67, NoteID: 3, Velocity: 0.5},
			// A raw MIDI 1.0 CC123 (all notes off) releases the voices the
			// pedal is still holding.
			{Type: "midi1", AtSeconds: 1.5, Channel: 0, Status: 0xB0, Data1: 123, Data2: 0},
		},
	}
}
