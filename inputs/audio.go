package inputs

import (
	"context"
	"log/slog"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/audio"
)

// SampleRate is the rate audio sources are decoded or captured at.
const SampleRate = 44100

// openAudio decodes a file or URL with ffmpeg.
func openAudio(ctx context.Context, ch *api.Channel, f *api.Fetcher) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input := ch.URL
	if path, ok := f.Path(ch.URL); ok {
		input = path
	}
	return startAudio(ch, audio.NewFileInput(input, SampleRate))
}

// openMic captures the default microphone, falling back to silence.
func openMic(ch *api.Channel) (Pending, error) {
	var device audio.Device
	mic, err := audio.NewMicrophone(SampleRate)
	if err != nil {
		slog.Warn("could not initialize microphone; using silent fallback", "error", err)
		device = audio.NewNullDevice(SampleRate)
	} else {
		device = mic
	}
	p, err := startAudio(ch, device)
	if err != nil && mic != nil {
		slog.Warn("could not start microphone; using silent fallback", "error", err)
		return startAudio(ch, audio.NewNullDevice(SampleRate))
	}
	return p, err
}
