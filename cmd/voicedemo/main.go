// Command voicedemo replays a small scripted musical scene through the
// voice-allocation engine and renders the result to a WAV file. It
// exists to exercise pkg/voice end-to-end against a real (if toy) host,
// the way examples/simplesynth exercised the teacher's allocator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	mymidi "github.com/kvlabs/voicemanager/pkg/midi"
	myvoice "github.com/kvlabs/voicemanager/pkg/voice"
)

func main() {
	scenePath := flag.String("scene", "", "Scene JSON file path (built-in demo scene if empty)")
	output := flag.String("output", "output.wav", "Output WAV file path")
	maxVoices := flag.Int("max-voices", 16, "Physical voice count")
	dialect := flag.String("dialect", "midi1", "MIDI dialect: midi1 or mpe")
	tailSeconds := flag.Float64("tail", 1.5, "Seconds of release tail to render after the last scripted event")
	flag.Parse()

	var sc *scene
	if *scenePath == "" {
		sc = defaultScene()
	} else {
		loaded, err := loadScene(*scenePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading scene: %v\n", err)
			os.Exit(1)
		}
		sc = loaded
	}

	cfg := myvoice.Config{MaxVoiceCount: *maxVoices}
	switch *dialect {
	case "midi1":
		cfg.Dialect = myvoice.MIDI1
	case "mpe":
		cfg.Dialect = myvoice.MIDI1MPE
		cfg.MPEGlobalChannel = 0
	default:
		fmt.Fprintf(os.Stderr, "unknown dialect %q\n", *dialect)
		os.Exit(1)
	}

	eng := newEngine(float64(sc.SampleRate), *maxVoices)
	m := myvoice.NewManager[*demoVoice](cfg, eng, eng)

	const blockSize = 128
	lastEventSeconds := 0.0
	for _, e := range sc.Events {
		if e.AtSeconds > lastEventSeconds {
			lastEventSeconds = e.AtSeconds
		}
	}
	totalFrames := int((lastEventSeconds + *tailSeconds) * float64(sc.SampleRate))
	if totalFrames < blockSize {
		totalFrames = blockSize
	}

	pending := sc.Events
	samples := make([]float32, 0, totalFrames*2)
	framesRendered := 0

	for framesRendered < totalFrames {
		frames := blockSize
		if framesRendered+frames > totalFrames {
			frames = totalFrames - framesRendered
		}
		blockStartSeconds := float64(framesRendered) / float64(sc.SampleRate)
		blockEndSeconds := float64(framesRendered+frames) / float64(sc.SampleRate)

		for len(pending) > 0 && pending[0].AtSeconds < blockEndSeconds && pending[0].AtSeconds >= blockStartSeconds {
			dispatchEvent(m, pending[0])
			pending = pending[1:]
		}

		block := eng.process(frames)
		samples = append(samples, block...)
		framesRendered += frames
	}

	fmt.Printf("Rendered %d frames (%.2fs) at %d Hz to %s\n", framesRendered, float64(framesRendered)/float64(sc.SampleRate), sc.SampleRate, *output)
	fmt.Printf("Final voice count: %d (gated: %d)\n", m.GetVoiceCount(), m.GetGatedVoiceCount())

	if err := writeWAV(*output, sc.SampleRate, samples); err != nil {
		fmt.Fprintf(os.Stderr, "error writing WAV: %v\n", err)
		os.Exit(1)
	}
}

func dispatchEvent(m *myvoice.Manager[*demoVoice], e sceneEvent) {
	switch e.Type {
	case "note_on":
		m.ProcessNoteOnEvent(e.Port, e.Channel, e.Key, e.NoteID, e.Velocity, 0)
	case "note_off":
		m.ProcessNoteOffEvent(e.Port, e.Channel, e.Key, e.NoteID, e.Velocity)
	case "sustain":
		m.UpdateSustainPedal(e.Port, e.Channel, e.Level)
	case "pitch_bend":
		m.RouteMIDIPitchBend(e.Port, e.Channel, e.PitchBend)
	case "midi1":
		mymidi.ApplyMIDI1Message(m, e.Port, [3]byte{e.Status, e.Data1, e.Data2})
	}
}

func writeWAV(path string, sampleRate int, samples []float32) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	const numChannels = 2
	encoder := wav.NewEncoder(file, sampleRate, 16, numChannels, 1)
	defer encoder.Close()

	buf := &audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: numChannels},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return encoder.Write(buf.AsIntBuffer())
}
