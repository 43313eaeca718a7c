package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/eightd/eightd/internal/config"
	"github.com/eightd/eightd/internal/constants"
	"github.com/eightd/eightd/internal/diskspace"
	"github.com/eightd/eightd/internal/events"
	"github.com/eightd/eightd/internal/logging"
	"github.com/eightd/eightd/internal/models"
	"github.com/eightd/eightd/internal/notify"
	"github.com/eightd/eightd/internal/progress"
	"github.com/eightd/eightd/internal/result"
	"github.com/eightd/eightd/internal/util/paths"
	"github.com/eightd/eightd/internal/validation"
	"github.com/eightd/eightd/internal/workflow"
)

// ErrOutputExists is returned when a result would overwrite an existing file.
var ErrOutputExists = errors.New("output file already exists (use --overwrite)")

// processRequest describes one process run.
type processRequest struct {
	Inputs         []string
	OutputDir      string
	Params         models.Parameters
	Concurrency    int
	Overwrite      bool
	Quiet          bool
	MaxUploadBytes int64
	Timeout        time.Duration
}

// processResult is the outcome for one input.
type processResult struct {
	Input  string
	Output string
	Err    error
}

// newProcessCmd creates the 'process' command.
func newProcessCmd() *cobra.Command {
	var (
		outputDir   string
		panning     int
		amplitude   int
		concurrency int
		overwrite   bool
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "process FILE...",
		Short: "Convert audio files to 8D without the browser",
		Long: `Send each FILE to the processing service and write the result next to it,
or into --output, as 8d_<name>.

Each file goes through the same steps as the browser UI: select, submit,
save the result, dismiss. Parameters are clamped to their allowed ranges
(panning frequency 1-15, amplitude 1-10).`,
		Example: `  eightd process song.mp3
  eightd process *.mp3 -o converted --panning-frequency 12 --amplitude 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := ensureProxyPassword(cfg); err != nil {
				return err
			}

			logger := GetLogger()
			if cfg.LogFile != "" {
				logger = newFileLogger(cfg, "cli")
				defer logger.Close()
			}

			client, err := newTransferClient(cfg, logger)
			if err != nil {
				return err
			}

			req := processRequest{
				Inputs:         args,
				OutputDir:      outputDir,
				Params:         models.Parameters{PanningFrequency: panning, Amplitude: amplitude},
				Concurrency:    concurrency,
				Overwrite:      overwrite,
				Quiet:          quiet,
				MaxUploadBytes: cfg.MaxUploadBytes(),
				Timeout:        cfg.RequestTimeout,
			}
			results := runProcess(GetContext(), req, client, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return summarize(results, outputDir, newNotifier(cfg, logger))
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: next to each input)")
	cmd.Flags().IntVarP(&panning, "panning-frequency", "p", constants.DefaultPanningFrequency,
		fmt.Sprintf("Panning frequency (%d-%d)", constants.PanningFrequencyMin, constants.PanningFrequencyMax))
	cmd.Flags().IntVarP(&amplitude, "amplitude", "a", constants.DefaultAmplitude,
		fmt.Sprintf("Amplitude (%d-%d)", constants.AmplitudeMin, constants.AmplitudeMax))
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", constants.DefaultProcessConcurrency, "Files converted at once")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing output files")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "No progress output")

	return cmd
}

func newNotifier(cfg *config.Config, logger *logging.Logger) *notify.Notifier {
	return notify.NewNotifier(&notify.Config{
		Enabled:      cfg.NotificationsEnabled,
		ShowComplete: true,
		ShowFailed:   true,
	}, logger)
}

// summarize notifies about the batch and turns failures into the command's error.
func summarize(results []processResult, outputDir string, n *notify.Notifier) error {
	var failed []processResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}

	for _, r := range failed {
		if diskspace.IsInsufficientSpaceError(r.Err) {
			n.Alert(r.Err.Error())
			break
		}
	}

	if len(results) == 1 && len(failed) == 1 {
		n.FileFailed(filepath.Base(failed[0].Input), failed[0].Err.Error())
	} else {
		dir := outputDir
		if dir == "" && len(results) > 0 {
			dir = filepath.Dir(results[0].Input)
		}
		n.BatchComplete(len(results)-len(failed), len(failed), dir)
	}

	switch len(failed) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s: %w", failed[0].Input, failed[0].Err)
	default:
		return fmt.Errorf("%d of %d file(s) failed", len(failed), len(results))
	}
}

// runProcess converts every input and returns one result per input, in order.
func runProcess(ctx context.Context, req processRequest, uploader workflow.Uploader, logger *logging.Logger, out, errOut io.Writer) []processResult {
	if req.Concurrency < 1 {
		req.Concurrency = 1
	}
	if logger == nil {
		logger = logging.Nop()
	}

	store := result.NewStore()
	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	trackers := newTrackerSet(req, out, errOut)
	routed := trackers.route(bus)

	plan, planErrs := planOutputs(req)
	if _, renamed := paths.ResolveCollisions(plan); renamed > 0 {
		logger.Warn().Int("files", renamed).Msg("Inputs share a name; output names include their position")
	}

	results := make([]processResult, len(req.Inputs))
	sem := make(chan struct{}, req.Concurrency)
	var wg sync.WaitGroup

	for i, f := range plan {
		if planErrs[i] != nil {
			results[i] = processResult{Input: f.Input, Err: planErrs[i]}
			trackers.complete("", f.Input, "", planErrs[i])
			continue
		}

		wg.Add(1)
		go func(i int, f paths.OutputFile) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = processResult{Input: f.Input, Err: ctx.Err()}
				return
			}

			sid := fmt.Sprintf("file-%d", f.Index)
			err := processOne(ctx, req, f, workflow.Options{
				SessionID: sid,
				Uploader:  uploader,
				Results:   store,
				Bus:       bus,
				Logger:    logger,
				Timeout:   req.Timeout,
			}, trackers)
			results[i] = processResult{Input: f.Input, Output: f.Output, Err: err}
			trackers.complete(sid, f.Input, f.Output, err)
		}(i, f)
	}

	wg.Wait()
	bus.Close()
	<-routed
	trackers.wait()

	if n := store.Len(); n != 0 {
		logger.Warn().Int("handles", n).Msg("Result handles still held after processing")
	}
	return results
}

// planOutputs computes every output path before anything is uploaded.
func planOutputs(req processRequest) ([]paths.OutputFile, []error) {
	plan := make([]paths.OutputFile, len(req.Inputs))
	errs := make([]error, len(req.Inputs))
	for i, input := range req.Inputs {
		plan[i] = paths.OutputFile{Index: i + 1, Input: input}
		outDir := req.OutputDir
		if outDir == "" {
			outDir = filepath.Dir(input)
		}
		plan[i].Output, errs[i] = validation.OutputPath(outDir, input, constants.OutputPrefix)
	}
	return plan, errs
}

// processOne drives a controller through select, submit, save and dismiss for one file.
func processOne(ctx context.Context, req processRequest, f paths.OutputFile, opts workflow.Options, trackers *trackerSet) error {
	input, output := f.Input, f.Output
	if !req.Overwrite {
		if _, err := os.Stat(output); err == nil {
			return ErrOutputExists
		}
	}

	info, err := os.Stat(input)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", input)
	}
	if req.MaxUploadBytes > 0 && info.Size() > req.MaxUploadBytes {
		return fmt.Errorf("file is too large (%d MB max)", req.MaxUploadBytes/(1024*1024))
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	trackers.add(opts.SessionID, input, info.Size())

	c := workflow.New(opts)
	defer c.Close()

	c.SetPanningFrequency(req.Params.PanningFrequency)
	c.SetAmplitude(req.Params.Amplitude)
	c.SelectFile(models.NewAudioFile(filepath.Base(input), "", data))

	if err := c.Submit(ctx); err != nil {
		return err
	}

	snap := c.Snapshot()
	if !snap.HasResult() {
		return errors.New("no result after submission")
	}
	defer c.DismissResult()

	return writeResult(output, snap.Result.Payload(), req.Overwrite)
}

// writeResult writes data to path through a temporary file. With overwrite
// the file is renamed into place; without it the file is linked, so a result
// that appeared since planning is never replaced.
func writeResult(path string, data []byte, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := diskspace.CheckAvailableSpace(path, int64(len(data)), constants.DiskSpaceSafetyMargin); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".8d-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set result permissions: %w", err)
	}
	if overwrite {
		if err := os.Rename(tmpPath, path); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to save result: %w", err)
		}
		return nil
	}

	defer os.Remove(tmpPath)
	err = os.Link(tmpPath, path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		return ErrOutputExists
	}
	// Filesystems without hard links get an exclusive create instead
	return writeExclusive(path, data)
}

// writeExclusive creates path and writes data, failing if path exists.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return ErrOutputExists
	}
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// tracker shows progress for one file. Events can arrive after the file
// completes; finished trackers ignore them.
type tracker struct {
	mu       sync.Mutex
	finished bool
	update   func(sent, total int64)
	complete func(output string, err error)
}

// trackerSet maps controller session IDs onto progress displays.
type trackerSet struct {
	mu     sync.Mutex
	byID   map[string]*tracker
	quiet  bool
	single *progress.CLIProgress
	batch  *progress.BatchUI
	out    io.Writer
}

func newTrackerSet(req processRequest, out, errOut io.Writer) *trackerSet {
	ts := &trackerSet{byID: make(map[string]*tracker), quiet: req.Quiet, out: out}
	switch {
	case req.Quiet:
	case len(req.Inputs) == 1:
		ts.single = progress.NewCLIProgress(errOut)
	default:
		ts.batch = progress.NewBatchUI(len(req.Inputs), errOut)
	}
	return ts
}

func (ts *trackerSet) add(sid, input string, size int64) {
	t := &tracker{update: func(int64, int64) {}, complete: func(string, error) {}}
	name := filepath.Base(input)

	switch {
	case ts.single != nil:
		t.update = progress.Callback(ts.single, name)
		t.complete = func(output string, err error) {
			if err != nil {
				ts.single.Error(err)
				return
			}
			ts.single.Finish()
			fmt.Fprintf(ts.out, "✓ %s → %s\n", name, output)
		}
	case ts.batch != nil:
		bar := ts.batch.AddFileBar(input, size)
		t.update = bar.Update
		t.complete = bar.Complete
	}

	ts.mu.Lock()
	ts.byID[sid] = t
	ts.mu.Unlock()
}

func (ts *trackerSet) get(sid string) *tracker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.byID[sid]
}

// complete finishes the tracker for sid. Files rejected before upload never
// got a tracker; in batch mode they still get a line.
func (ts *trackerSet) complete(sid, input, output string, err error) {
	t := ts.get(sid)
	if t == nil {
		if err != nil && !ts.quiet {
			fmt.Fprintf(ts.out, "✗ %s: %v\n", filepath.Base(input), err)
		}
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	t.complete(output, err)
}

// route forwards transfer progress events to trackers until bus closes.
func (ts *trackerSet) route(bus *events.EventBus) <-chan struct{} {
	done := make(chan struct{})
	ch := bus.Subscribe(events.EventTransferProgress)
	go func() {
		defer close(done)
		for ev := range ch {
			e, ok := ev.(*events.TransferProgressEvent)
			if !ok {
				continue
			}
			t := ts.get(e.SessionID)
			if t == nil {
				continue
			}
			t.mu.Lock()
			if !t.finished {
				t.update(e.BytesSent, e.BytesTotal)
			}
			t.mu.Unlock()
		}
	}()
	return done
}

func (ts *trackerSet) wait() {
	if ts.batch != nil {
		ts.batch.Wait()
	}
}
