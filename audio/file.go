package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// chunkSamples is the number of samples per chunk sent by FileInput.
const chunkSamples = 1024

// FileInput decodes an audio file or URL with ffmpeg into mono float32 chunks,
// paced in real time and looping at the end.
type FileInput struct {
	source     string
	sampleRate int
	// FFmpegPath overrides the ffmpeg binary.
	FFmpegPath string
	// Loop restarts the file at its end.
	Loop bool

	mu         sync.Mutex
	cmd        *exec.Cmd
	pipeReader *io.PipeReader
	audioChan  chan []float32
}

func NewFileInput(source string, sampleRate int) *FileInput {
	return &FileInput{source: source, sampleRate: sampleRate, Loop: true}
}

func (d *FileInput) inputArgs() ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{"re": ""}
	if d.Loop {
		args["stream_loop"] = "-1"
	}
	return args
}

func (d *FileInput) Start() (<-chan []float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return nil, errors.New("audio file input already started")
	}

	pipeReader, pipeWriter := io.Pipe()
	ffmpegCmd := ffmpeg.Input(d.source, d.inputArgs()).
		Output("pipe:", ffmpeg.KwArgs{
			"f":  "f32le",
			"ac": "1",
			"ar": strconv.Itoa(d.sampleRate),
		}).
		WithOutput(pipeWriter).
		ErrorToStdOut()
	if d.FFmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(d.FFmpegPath)
	}
	d.cmd = ffmpegCmd.Compile()
	if err := d.cmd.Start(); err != nil {
		d.cmd = nil
		return nil, fmt.Errorf("failed to start ffmpeg for %s: %w", d.source, err)
	}
	d.pipeReader = pipeReader
	d.audioChan = make(chan []float32, 16)

	cmd := d.cmd
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("ffmpeg audio decoder finished", "source", d.source, "error", err)
		}
		pipeWriter.Close()
	}()
	go d.readLoop(pipeReader, d.audioChan)

	return d.audioChan, nil
}

func (d *FileInput) readLoop(r io.Reader, out chan<- []float32) {
	defer close(out)
	buf := make([]byte, chunkSamples*4)
	for {
		n, err := io.ReadFull(r, buf)
		if n >= 4 {
			samples := make([]float32, n/4)
			for i := range samples {
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
			}
			out <- samples
		}
		if err != nil {
			return
		}
	}
}

// Stop kills the decoder; the sample channel closes once the pipe drains.
func (d *FileInput) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil {
		return nil
	}
	var err error
	if d.cmd.Process != nil {
		err = d.cmd.Process.Kill()
	}
	d.pipeReader.Close()
	d.cmd = nil
	return err
}

func (d *FileInput) SampleRate() int {
	return d.sampleRate
}
