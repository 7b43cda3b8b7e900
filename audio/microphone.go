package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone streams the default input device through portaudio.
type Microphone struct {
	sampleRate  int
	stream      *portaudio.Stream
	audioChan   chan []float32
	isStreaming bool
	dropped     sync.Once
}

func NewMicrophone(sampleRate int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Microphone{sampleRate: sampleRate}, nil
}

func (m *Microphone) audioCallback(in []float32) {
	// PortAudio reuses its buffer.
	dataCopy := make([]float32, len(in))
	copy(dataCopy, in)

	// Never block the audio callback thread.
	select {
	case m.audioChan <- dataCopy:
	default:
		m.dropped.Do(func() { slog.Warn("audio channel buffer is full; dropping microphone frames") })
	}
}

func (m *Microphone) Start() (<-chan []float32, error) {
	m.audioChan = make(chan []float32, 16)

	host, err := portaudio.DefaultHostApi()
	if err != nil {
		close(m.audioChan)
		return nil, err
	}

	params := portaudio.HighLatencyParameters(host.DefaultInputDevice, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.sampleRate)

	stream, err := portaudio.OpenStream(params, m.audioCallback)
	if err != nil {
		close(m.audioChan)
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		close(m.audioChan)
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	m.stream = stream
	m.isStreaming = true
	return m.audioChan, nil
}

func (m *Microphone) Stop() error {
	if !m.isStreaming {
		return nil
	}
	if err := m.stream.Close(); err != nil {
		portaudio.Terminate()
		return err
	}
	m.isStreaming = false
	close(m.audioChan)
	return portaudio.Terminate()
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}
