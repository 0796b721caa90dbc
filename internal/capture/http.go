package capture

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// httpSource polls a JPEG image endpoint at a fixed interval. Used for
// cameras that expose a still-image URL instead of a stream.
type httpSource struct {
	url       string
	client    *http.Client
	ticker    *time.Ticker
	stopCh    chan struct{}
	seq       uint64
	closeOnce sync.Once
}

func newHTTPSource(url string, opts Options) (*httpSource, error) {
	interval := time.Second / time.Duration(opts.FPS)
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}

	s := &httpSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}

	// Probe once so an unreachable endpoint fails at open time
	if _, err := s.fetch(); err != nil {
		s.ticker.Stop()
		return nil, fmt.Errorf("image endpoint unreachable: %w", err)
	}

	log.Printf("[Capture] Opened HTTP image source %s (interval: %s)", url, interval)
	return s, nil
}

func (s *httpSource) fetch() ([]byte, error) {
	resp, err := s.client.Get(s.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Read blocks until the next poll tick, then fetches one image.
func (s *httpSource) Read() (*Frame, error) {
	select {
	case <-s.stopCh:
		return nil, fmt.Errorf("source closed")
	case <-s.ticker.C:
	}

	data, err := s.fetch()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame: %w", err)
	}

	s.seq++
	return &Frame{
		Source:    s.url,
		Seq:       s.seq,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// Close stops polling. Safe to call more than once.
func (s *httpSource) Close() error {
	s.closeOnce.Do(func() {
		s.ticker.Stop()
		close(s.stopCh)
	})
	return nil
}

var _ Source = (*httpSource)(nil)
