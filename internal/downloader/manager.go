package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"shortvid-saver/internal/utils"
	"shortvid-saver/pkg/models"
)

// progressInterval throttles in_progress events per download
const progressInterval = 500 * time.Millisecond

// Manager implements the DownloadService interface with a bounded worker
// pool. Identifiers are process-local and monotonically increasing.
type Manager struct {
	config *models.Config
	logger zerolog.Logger
	client *utils.HTTPClient

	queue  chan *job
	events chan models.DownloadEvent
	nextID atomic.Int64

	mu     sync.Mutex
	active map[int64]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type job struct {
	id       int64
	ctx      context.Context
	url      string
	filename string
	saveAs   bool
}

// NewManager creates a new download manager
func NewManager(cfg *models.Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	proxyURL := ""
	if cfg.Proxy.Enabled {
		proxyURL = cfg.Proxy.URL
	}

	client := utils.NewHTTPClient(utils.ClientConfig{
		Timeout:  time.Duration(cfg.Download.Timeout) * time.Second,
		ProxyURL: proxyURL,
	})

	return &Manager{
		config: cfg,
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
		client: client,
		queue:  make(chan *job, 100),
		events: make(chan models.DownloadEvent, 64),
		active: make(map[int64]context.CancelFunc),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetLogger sets the logger for the manager
func (m *Manager) SetLogger(logger zerolog.Logger) {
	m.logger = logger
	m.client.SetLogger(logger)
}

// Start starts the worker goroutines
func (m *Manager) Start() error {
	workers := m.config.Download.MaxWorkers
	if workers <= 0 {
		workers = 3
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	m.logger.Info().Int("workers", workers).Msg("Download manager started")
	return nil
}

// Stop cancels all active downloads and waits for workers to exit
func (m *Manager) Stop() error {
	m.cancel()
	m.wg.Wait()
	m.client.Close()
	m.logger.Info().Msg("Download manager stopped")
	return nil
}

// Begin enqueues a download and returns its numeric identifier. State
// transitions for the download arrive asynchronously on Events.
func (m *Manager) Begin(ctx context.Context, url, filename string, saveAs bool) (int64, error) {
	if url == "" {
		return 0, fmt.Errorf("empty download url")
	}
	if filename == "" {
		filename = "video.mp4"
	}

	id := m.nextID.Add(1)
	jobCtx, jobCancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.active[id] = jobCancel
	m.mu.Unlock()

	j := &job{
		id:       id,
		ctx:      jobCtx,
		url:      url,
		filename: filename,
		saveAs:   saveAs,
	}

	select {
	case m.queue <- j:
	default:
		m.finish(id)
		return 0, fmt.Errorf("download queue full")
	}

	m.emit(models.DownloadEvent{
		DownloadID: id,
		State:      models.DownloadPending,
		Filename:   filename,
	})

	return id, nil
}

// Events returns the asynchronous state-change channel
func (m *Manager) Events() <-chan models.DownloadEvent {
	return m.events
}

// Cancel interrupts an active download by identifier
func (m *Manager) Cancel(downloadID int64) error {
	m.mu.Lock()
	cancel, ok := m.active[downloadID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("download %d not found", downloadID)
	}
	cancel()
	return nil
}

// worker processes queued downloads
func (m *Manager) worker(id int) {
	defer m.wg.Done()

	m.logger.Debug().Int("worker_id", id).Msg("Download worker started")

	for {
		select {
		case <-m.ctx.Done():
			return
		case j := <-m.queue:
			m.process(j)
			m.finish(j.id)
		}
	}
}

func (m *Manager) finish(id int64) {
	m.mu.Lock()
	if cancel, ok := m.active[id]; ok {
		cancel()
		delete(m.active, id)
	}
	m.mu.Unlock()
}

func (m *Manager) emit(ev models.DownloadEvent) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn().
			Int64("download_id", ev.DownloadID).
			Str("state", string(ev.State)).
			Msg("Event channel full, dropping event")
	}
}

func (m *Manager) interrupt(j *job, received, total int64, err error) {
	m.logger.Error().Err(err).
		Int64("download_id", j.id).
		Str("url", j.url).
		Msg("Download interrupted")

	msg := err.Error()
	if kerr := models.KindOf(err); kerr == models.KindDownload403 {
		msg = "403: the link expired or anti-hotlinking rejected the request"
	}

	m.emit(models.DownloadEvent{
		DownloadID:    j.id,
		State:         models.DownloadInterrupted,
		BytesReceived: received,
		TotalBytes:    total,
		Percent:       percentOf(received, total),
		Filename:      j.filename,
		Error:         msg,
	})
}

// process streams one download to disk, emitting progress along the way
func (m *Manager) process(j *job) {
	outputPath, err := m.outputPath(j)
	if err != nil {
		m.interrupt(j, 0, 0, err)
		return
	}
	j.filename = filepath.Base(outputPath)

	req, err := http.NewRequestWithContext(j.ctx, "GET", j.url, nil)
	if err != nil {
		m.interrupt(j, 0, 0, err)
		return
	}

	resp, err := m.client.Do(req, map[string]string{
		"Referer": refererFor(j.url),
	})
	if err != nil {
		m.interrupt(j, 0, 0, models.WrapError(models.KindNetworkFailure, "", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		m.interrupt(j, 0, 0, models.NewError(models.KindDownload403, ""))
		return
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		m.interrupt(j, 0, 0, models.Errf(models.KindNetworkFailure,
			"unexpected status code: %d", resp.StatusCode))
		return
	}

	total := resp.ContentLength
	m.emit(models.DownloadEvent{
		DownloadID: j.id,
		State:      models.DownloadInProgress,
		TotalBytes: total,
		Filename:   j.filename,
	})

	file, err := os.Create(outputPath)
	if err != nil {
		m.interrupt(j, 0, total, err)
		return
	}

	received, copyErr := m.copyWithProgress(j, file, resp.Body, total)
	closeErr := file.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(outputPath)
		err := copyErr
		if err == nil {
			err = closeErr
		}
		if j.ctx.Err() != nil {
			err = models.WrapError(models.KindInterrupted, "", j.ctx.Err())
		}
		m.interrupt(j, received, total, err)
		return
	}

	m.logger.Info().
		Int64("download_id", j.id).
		Str("file", outputPath).
		Str("size", utils.FormatBytes(received)).
		Msg("Download completed")

	m.emit(models.DownloadEvent{
		DownloadID:    j.id,
		State:         models.DownloadComplete,
		BytesReceived: received,
		TotalBytes:    received,
		Percent:       100,
		Filename:      j.filename,
	})
}

func (m *Manager) copyWithProgress(j *job, dst io.Writer, src io.Reader, total int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var received int64
	lastEmit := time.Now()

	for {
		select {
		case <-j.ctx.Done():
			return received, j.ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return received, werr
			}
			received += int64(n)

			if time.Since(lastEmit) >= progressInterval {
				lastEmit = time.Now()
				m.emit(models.DownloadEvent{
					DownloadID:    j.id,
					State:         models.DownloadInProgress,
					BytesReceived: received,
					TotalBytes:    total,
					Percent:       percentOf(received, total),
					Filename:      j.filename,
				})
			}
		}
		if err == io.EOF {
			return received, nil
		}
		if err != nil {
			return received, err
		}
	}
}

// outputPath resolves the target path under the configured save directory.
// Unless saveAs was requested, an existing file gets a numbered suffix
// instead of being overwritten.
func (m *Manager) outputPath(j *job) (string, error) {
	dir := m.config.Download.SavePath
	if dir == "" {
		dir = "./downloads"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating save directory: %w", err)
	}

	name := utils.SanitizeFilename(j.filename)
	path := filepath.Join(dir, name)
	if j.saveAs {
		return path, nil
	}

	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	for i := 1; ; i++ {
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("error checking save path: %w", err)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
	}
}

func percentOf(received, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(received * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}

// refererFor returns the page origin the CDN expects for hotlink checks
func refererFor(url string) string {
	if strings.Contains(url, "tiktok") {
		return "https://www.tiktok.com/"
	}
	return "https://www.douyin.com/"
}
