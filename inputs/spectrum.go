package inputs

import (
	"log/slog"
	"math"
	"sync"

	fft "github.com/mjibson/go-dsp/fft"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/audio"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/pool"
)

const (
	minDecibels     = -100.0
	maxDecibels     = -30.0
	smoothingFactor = 0.8
)

// Spectrum turns a stream of samples into smoothed byte frequency bins,
// fftSize/2 of them, scaled over the minDecibels..maxDecibels range.
type Spectrum struct {
	fftSize       int
	historyBuffer []float32
	bufferPos     int
	mutex         sync.Mutex

	window  []float64
	lastFFT []float64
	bins    []byte
}

func NewSpectrum(fftSize int) *Spectrum {
	if fftSize <= 0 {
		fftSize = api.DefaultFFTSize
	}
	s := &Spectrum{
		fftSize:       fftSize,
		historyBuffer: make([]float32, fftSize*4),
		window:        blackmanWindow(fftSize),
		lastFFT:       make([]float64, fftSize/2),
		bins:          make([]byte, fftSize/2),
	}
	for i := range s.lastFFT {
		s.lastFFT[i] = minDecibels
	}
	return s
}

// Bins returns the number of frequency bins.
func (s *Spectrum) Bins() int { return s.fftSize / 2 }

// Write appends samples to the history ring.
func (s *Spectrum) Write(samples []float32) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	n := len(s.historyBuffer)
	for _, sample := range samples {
		s.historyBuffer[s.bufferPos] = sample
		s.bufferPos = (s.bufferPos + 1) % n
	}
}

// Listen consumes a device channel until it closes.
func (s *Spectrum) Listen(audioChan <-chan []float32) {
	for samples := range audioChan {
		s.Write(samples)
	}
}

func (s *Spectrum) recent(numSamples int) []float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	n := len(s.historyBuffer)
	out := make([]float64, numSamples)
	for i := 0; i < numSamples; i++ {
		out[i] = float64(s.historyBuffer[(s.bufferPos-numSamples+i+n)%n])
	}
	return out
}

// Compute analyzes the most recent fftSize samples and returns the bins.
// The returned slice is reused by the next call.
func (s *Spectrum) Compute() []byte {
	samples := s.recent(s.fftSize)
	for i := range samples {
		samples[i] *= s.window[i]
	}
	fftResult := fft.FFTReal(samples)

	for i := range s.bins {
		re := real(fftResult[i])
		im := imag(fftResult[i])
		magnitude := math.Sqrt(re*re+im*im) * (2.0 / float64(s.fftSize))
		db := 20 * math.Log10(magnitude+1e-9)

		s.lastFFT[i] = smoothingFactor*s.lastFFT[i] + (1.0-smoothingFactor)*db
		scaled := (s.lastFFT[i] - minDecibels) / (maxDecibels - minDecibels)
		s.bins[i] = byte(math.Round(math.Max(0, math.Min(1, scaled)) * 255))
	}
	return s.bins
}

// blackmanWindow generates a Blackman window, as used by Web Audio analysers.
func blackmanWindow(size int) []float64 {
	window := make([]float64, size)
	a0 := 0.42
	a1 := 0.5
	a2 := 0.08
	invSize := 1.0 / float64(size-1)
	for i := range window {
		t := float64(i) * invSize
		window[i] = a0 - (a1 * math.Cos(2*math.Pi*t)) + (a2 * math.Cos(4*math.Pi*t))
	}
	return window
}

// spectrumFormat is a single channel 8-bit format; core profiles lack luminance.
func spectrumFormat(target graphics.API) graphics.PixelFormat {
	if target == graphics.APIGLES2 {
		return graphics.PixelFormat{Internal: graphics.InternalLuminance, Format: graphics.FormatLuminance, Type: graphics.UnsignedByte}
	}
	return graphics.PixelFormat{Internal: graphics.InternalR8, Format: graphics.FormatRed, Type: graphics.UnsignedByte}
}

type pendingAudio struct {
	ch       *api.Channel
	device   audio.Device
	spectrum *Spectrum
}

// startAudio starts device and feeds a spectrum from it.
func startAudio(ch *api.Channel, device audio.Device) (Pending, error) {
	samples, err := device.Start()
	if err != nil {
		return nil, err
	}
	s := NewSpectrum(ch.FFTSize)
	if samples != nil {
		go s.Listen(samples)
	}
	return &pendingAudio{ch: ch, device: device, spectrum: s}, nil
}

func (p *pendingAudio) Upload(dev graphics.Device, pl *pool.Pool) (Source, error) {
	a := &Audio{dev: dev, ch: p.ch, device: p.device, spectrum: p.spectrum}
	obj, err := dev.CreateTexture(a.desc(make([]byte, p.spectrum.Bins())))
	if err != nil {
		p.Discard()
		return nil, err
	}
	a.texture2D = &texture2D{pool: pl, handle: pl.Add(obj, graphics.KindTexture2D), width: p.spectrum.Bins(), height: 1}
	return a, nil
}

func (p *pendingAudio) Discard() {
	if err := p.device.Stop(); err != nil {
		slog.Warn("failed to stop audio device", "error", err)
	}
}

// Audio exposes the frequency spectrum of an audio device as a bins x 1 texture.
type Audio struct {
	*texture2D
	dev      graphics.Device
	ch       *api.Channel
	device   audio.Device
	spectrum *Spectrum
}

func (a *Audio) desc(pix []byte) graphics.TextureDesc {
	return graphics.TextureDesc{
		Width:  a.spectrum.Bins(),
		Height: 1,
		Format: spectrumFormat(a.dev.Capabilities().API),
		Filter: a.ch.Filter,
		Wrap:   a.ch.Wrap,
		Pixels: pix,
	}
}

func (a *Audio) Update() error {
	if a.handle == 0 {
		return nil
	}
	return a.dev.UploadTexture(a.pool.Object(a.handle), a.desc(a.spectrum.Compute()))
}

func (a *Audio) Release() {
	if a.handle == 0 {
		return
	}
	if err := a.device.Stop(); err != nil {
		slog.Warn("failed to stop audio device", "error", err)
	}
	a.texture2D.Release()
}
