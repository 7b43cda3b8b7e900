package inputs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/pool"
)

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// probeVideoSize returns the dimensions of the first video stream.
func probeVideoSize(input string) (int, int, error) {
	out, err := ffmpeg.Probe(input)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe %s: %w", input, err)
	}
	return parseProbe(out)
}

func parseProbe(out string) (int, int, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return 0, 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	for _, s := range res.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, nil
		}
	}
	return 0, 0, errors.New("no video stream found")
}

// videoDecoder runs ffmpeg in real time and keeps the latest RGBA frame.
type videoDecoder struct {
	width, height int
	cmd           *exec.Cmd
	reader        *io.PipeReader

	mu    sync.Mutex
	frame []byte
	fresh bool
	err   error
	first chan struct{}
	once  sync.Once
}

func startVideo(input string, w, h int, flipY bool) (*videoDecoder, error) {
	out := ffmpeg.KwArgs{"f": "rawvideo", "pix_fmt": "rgba"}
	if flipY {
		out["vf"] = "vflip"
	}
	pipeReader, pipeWriter := io.Pipe()
	cmd := ffmpeg.Input(input, ffmpeg.KwArgs{"re": "", "stream_loop": "-1"}).
		Output("pipe:", out).
		WithOutput(pipeWriter).
		ErrorToStdOut().
		Compile()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg for %s: %w", input, err)
	}
	d := &videoDecoder{width: w, height: h, cmd: cmd, reader: pipeReader, first: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		pipeWriter.CloseWithError(err)
	}()
	go d.readFrames()
	return d, nil
}

func (d *videoDecoder) readFrames() {
	buf := make([]byte, d.width*d.height*4)
	for {
		if _, err := io.ReadFull(d.reader, buf); err != nil {
			d.mu.Lock()
			d.err = err
			d.mu.Unlock()
			d.once.Do(func() { close(d.first) })
			return
		}
		d.mu.Lock()
		if d.frame == nil {
			d.frame = make([]byte, len(buf))
		}
		copy(d.frame, buf)
		d.fresh = true
		d.mu.Unlock()
		d.once.Do(func() { close(d.first) })
	}
}

// waitFirst blocks until a frame is decoded or decoding fails.
func (d *videoDecoder) waitFirst(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.first:
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frame == nil {
		return fmt.Errorf("no video frame decoded: %w", d.err)
	}
	return nil
}

// latest returns the newest frame if it has not been returned before.
func (d *videoDecoder) latest(dst []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fresh {
		return false
	}
	copy(dst, d.frame)
	d.fresh = false
	return true
}

func (d *videoDecoder) stop() {
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.reader.Close()
}

type pendingVideo struct {
	ch  *api.Channel
	dec *videoDecoder
}

func openVideo(ctx context.Context, ch *api.Channel, f *api.Fetcher) (Pending, error) {
	input := ch.URL
	if path, ok := f.Path(ch.URL); ok {
		input = path
	}
	w, h, err := probeVideoSize(input)
	if err != nil {
		return nil, err
	}
	dec, err := startVideo(input, w, h, ch.FlipY)
	if err != nil {
		return nil, err
	}
	if err := dec.waitFirst(ctx); err != nil {
		dec.stop()
		return nil, fmt.Errorf("%s: %w", ch.URL, err)
	}
	return &pendingVideo{ch: ch, dec: dec}, nil
}

func (p *pendingVideo) Upload(dev graphics.Device, pl *pool.Pool) (Source, error) {
	frame := make([]byte, p.dec.width*p.dec.height*4)
	p.dec.latest(frame)
	tex, err := uploadRGBA(dev, pl, p.ch, p.dec.width, p.dec.height, frame)
	if err != nil {
		p.dec.stop()
		return nil, err
	}
	return &Video{texture2D: tex, dev: dev, ch: p.ch, dec: p.dec, frame: frame}, nil
}

func (p *pendingVideo) Discard() { p.dec.stop() }

// Video is a looping video source uploading the newest decoded frame each refresh.
type Video struct {
	*texture2D
	dev   graphics.Device
	ch    *api.Channel
	dec   *videoDecoder
	frame []byte
}

func (v *Video) Update() error {
	if v.handle == 0 || !v.dec.latest(v.frame) {
		return nil
	}
	return v.dev.UploadTexture(v.pool.Object(v.handle), graphics.TextureDesc{
		Width:  v.width,
		Height: v.height,
		Format: graphics.RGBA8(v.dev.Capabilities().API),
		Filter: v.ch.Filter,
		Wrap:   v.ch.Wrap,
		Pixels: v.frame,
	})
}

func (v *Video) Release() {
	v.dec.stop()
	v.texture2D.Release()
	slog.Debug("video source released", "url", v.ch.URL)
}
