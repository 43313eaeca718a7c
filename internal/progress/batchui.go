package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// BatchUI shows one bar per file while several files are processed
// concurrently. Off a terminal it prints one line per start and finish.
type BatchUI struct {
	out        io.Writer
	progress   *mpb.Progress
	isTerminal bool
	totalFiles int
	started    int32
	completed  int32
	failed     int32
	mu         sync.Mutex // serializes plain-text output
}

// FileBar tracks a single file.
type FileBar struct {
	bar        *mpb.Bar
	ui         *BatchUI
	index      int
	path       string
	size       int64
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	mu         sync.Mutex
}

// NewBatchUI creates a UI for totalFiles files writing to out. Bars are only
// drawn when out is a terminal.
func NewBatchUI(totalFiles int, out io.Writer) *BatchUI {
	isTerminal := false
	if f, ok := out.(*os.File); ok {
		isTerminal = term.IsTerminal(int(f.Fd()))
		if isTerminal {
			enableANSI(f)
		}
	}

	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &BatchUI{
		out:        out,
		progress:   p,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
	}
}

// AddFileBar registers a file about to be uploaded. size is the upload body
// size; it may be refined by the first Update.
func (u *BatchUI) AddFileBar(localPath string, size int64) *FileBar {
	index := int(atomic.AddInt32(&u.started, 1))
	fb := &FileBar{
		ui:         u,
		index:      index,
		path:       localPath,
		size:       size,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	name := truncatePath(localPath, 2)
	if u.isTerminal {
		fb.bar = u.progress.New(size,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("[%d/%d] %s", index, u.totalFiles, name), decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.OnComplete(decor.Name("processing…"), "done"),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		u.printf("Uploading [%d/%d]: %s (%.1f MiB)\n", index, u.totalFiles, name, float64(size)/(1024*1024))
	}
	return fb
}

// Update reports sent of total body bytes. It has the transfer client's
// progress callback signature.
func (f *FileBar) Update(sent, total int64) {
	if f.bar == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if total > 0 && total != f.size {
		f.size = total
		f.bar.SetTotal(total, false)
	}

	const updateInterval = 200 * time.Millisecond
	now := time.Now()
	if elapsed := now.Sub(f.lastUpdate); elapsed >= updateInterval || sent == f.size {
		f.bar.EwmaIncrBy(int(sent-f.lastBytes), elapsed)
		f.lastBytes = sent
		f.lastUpdate = now
	}
}

// Complete marks the file finished and prints a summary line. outputPath is
// where the result was written; err is the failure, if any.
func (f *FileBar) Complete(outputPath string, err error) {
	elapsed := time.Since(f.startTime).Round(100 * time.Millisecond)
	name := truncatePath(f.path, 2)

	var msg string
	if err == nil {
		if f.bar != nil {
			f.mu.Lock()
			f.bar.SetCurrent(f.size)
			f.bar.SetTotal(f.size, true)
			f.mu.Unlock()
		}
		msg = fmt.Sprintf("✓ %s → %s (%s)\n", name, outputPath, elapsed)
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		atomic.AddInt32(&f.ui.failed, 1)
		msg = fmt.Sprintf("✗ %s: %v\n", name, err)
	}
	atomic.AddInt32(&f.ui.completed, 1)

	if f.ui.isTerminal {
		f.ui.progress.Write([]byte(msg))
		return
	}
	f.ui.printf("%s", msg)
}

// Wait blocks until all bars complete.
func (u *BatchUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns a writer that prints above the bars.
func (u *BatchUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are being drawn.
func (u *BatchUI) IsTerminal() bool {
	return u.isTerminal
}

// Counts returns how many files have completed and how many of those failed.
func (u *BatchUI) Counts() (completed, failed int) {
	return int(atomic.LoadInt32(&u.completed)), int(atomic.LoadInt32(&u.failed))
}

func (u *BatchUI) printf(format string, args ...interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

// truncatePath keeps the last maxComponents elements of path.
// Example: truncatePath("/a/b/c/d/song.mp3", 2) → "…/d/song.mp3"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
