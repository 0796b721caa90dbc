package capture

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ffmpegSource reads frames from an ffmpeg subprocess emitting MJPEG on
// stdout. It covers RTSP/HTTP streams, V4L2 devices and local video files.
type ffmpegSource struct {
	device    string
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	buffer    []byte
	chunk     []byte
	seq       uint64
	closeOnce sync.Once
	closeErr  error
}

func newFFmpegSource(device string, opts Options) (*ffmpegSource, error) {
	var args []string

	switch {
	case strings.HasPrefix(device, "rtsp://"):
		args = []string{
			"-rtsp_transport", "tcp",
			"-i", device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", opts.FPS),
			"-q:v", "5",
			"-",
		}
	case isNetworkSource(device):
		args = []string{
			"-i", device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", opts.FPS),
			"-q:v", "5",
			"-",
		}
	case strings.HasPrefix(device, "/dev/"):
		// V4L2 device (USB camera)
		args = []string{
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
			"-framerate", fmt.Sprintf("%d", opts.FPS),
			"-i", device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		}
	default:
		// Local video file, read at native rate
		args = []string{
			"-re",
			"-i", device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", opts.FPS),
			"-q:v", "5",
			"-",
		}
	}

	cmd := exec.Command("ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg for %s: %w", device, err)
	}

	// Consume stderr so ffmpeg never blocks on a full pipe
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	log.Printf("[Capture] Opened ffmpeg source %s (fps: %d)", device, opts.FPS)

	return &ffmpegSource{
		device: device,
		cmd:    cmd,
		stdout: stdout,
		buffer: make([]byte, 0, 1024*1024),
		chunk:  make([]byte, 8192),
	}, nil
}

// Read blocks until the next complete JPEG frame is available.
func (s *ffmpegSource) Read() (*Frame, error) {
	for {
		if frame := extractJPEGFrame(&s.buffer); frame != nil {
			s.seq++
			return &Frame{
				Source:    s.device,
				Seq:       s.seq,
				Timestamp: time.Now(),
				Data:      frame,
			}, nil
		}

		n, err := s.stdout.Read(s.chunk)
		if n > 0 {
			s.buffer = append(s.buffer, s.chunk[:n]...)
			continue
		}
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("stream ended: %w", err)
			}
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
	}
}

// Close terminates the ffmpeg process. Safe to call more than once.
func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
			s.cmd.Wait()
		}
		s.closeErr = s.stdout.Close()
		log.Printf("[Capture] Closed source %s", s.device)
	})
	return s.closeErr
}

var _ Source = (*ffmpegSource)(nil)
