// Package capture provides frame sources for video inputs: RTSP streams,
// HTTP image endpoints, V4L2 devices and video files. All sources decode to
// JPEG frames through an ffmpeg image2pipe subprocess, except HTTP JPEG
// endpoints which are polled directly.
package capture

import (
	"fmt"
	"strings"
	"time"
)

// Frame is one captured video frame. The JPEG payload is immutable once
// read; consumers that annotate must decode into their own working copy.
type Frame struct {
	Source    string    // Source identifier
	Seq       uint64    // Frame sequence number
	Timestamp time.Time // Capture timestamp
	Data      []byte    // JPEG frame data
}

// Source is a video input owned by exactly one reader. Read blocks until
// the next frame or the backend's own timeout; Close releases the input and
// is safe to call more than once.
type Source interface {
	Read() (*Frame, error)
	Close() error
}

// Options configures how a source is opened.
type Options struct {
	FPS    int
	Width  int
	Height int
}

// Open creates a source for the given device string. Supported forms:
// rtsp:// and http(s):// stream URLs, http(s) JPEG image endpoints,
// /dev/videoN V4L2 devices and local video file paths.
func Open(device string, opts Options) (Source, error) {
	if device == "" {
		return nil, fmt.Errorf("capture device not specified")
	}
	if opts.FPS <= 0 {
		opts.FPS = 10
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}

	if isHTTPImageEndpoint(device) {
		return newHTTPSource(device, opts)
	}
	return newFFmpegSource(device, opts)
}

// isHTTPImageEndpoint reports whether the device is a polled JPEG URL
// rather than a continuous stream.
func isHTTPImageEndpoint(device string) bool {
	if !strings.HasPrefix(device, "http://") && !strings.HasPrefix(device, "https://") {
		return false
	}
	return strings.Contains(device, ".jpg") || strings.Contains(device, ".jpeg") ||
		strings.Contains(device, "image")
}

// isNetworkSource reports whether the device is an HTTP/RTSP URL.
func isNetworkSource(device string) bool {
	return strings.HasPrefix(device, "http://") ||
		strings.HasPrefix(device, "https://") ||
		strings.HasPrefix(device, "rtsp://")
}

// extractJPEGFrame extracts one complete JPEG frame from the buffer,
// consuming it. Returns nil when no complete frame is buffered yet.
func extractJPEGFrame(buffer *[]byte) []byte {
	if len(*buffer) < 4 {
		return nil
	}

	// Find JPEG start marker (FFD8)
	startIdx := -1
	for i := 0; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD8 {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return nil
	}

	// Find JPEG end marker (FFD9)
	endIdx := -1
	for i := startIdx + 2; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD9 {
			endIdx = i + 2
			break
		}
	}
	if endIdx == -1 {
		return nil
	}

	frame := make([]byte, endIdx-startIdx)
	copy(frame, (*buffer)[startIdx:endIdx])
	*buffer = (*buffer)[endIdx:]

	return frame
}
