package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"runview/internal/form"
	"runview/internal/logging"
	"runview/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	watchFile  string
	watchJSON  bool
	watchDelay = watch.DefaultWatchDelay
)

var watchCmd = &cobra.Command{
	Use:   "watch -f FILE",
	Short: "Re-submit a payload file every time it changes",
	Long: `Submits the file once, then again after every saved change.

A change arriving while a run is still in flight supersedes it; only the
latest run's answer is printed. Failed runs are reported and watching goes on.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFile, "file", "f", "", "Payload file to watch (required)")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print each answer as a JSON object")
	watchCmd.Flags().DurationVar(&watchDelay, "debounce", watch.DefaultWatchDelay, "Quiet period before a change is re-run")
	_ = watchCmd.MarkFlagRequired("file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	client := newClient(appCfg)
	defer client.Close()

	return watchFileRuns(ctx, form.New(client), watchFile, watchDelay, cmd.OutOrStdout(), watchJSON)
}

// watchFileRuns submits path on every settled change until ctx is done.
// Each change begins a new submission, cancelling the previous one.
func watchFileRuns(ctx context.Context, f *form.Form, path string, delay time.Duration, out io.Writer, asJSON bool) error {
	f.Opened("watch")
	g, gctx := errgroup.WithContext(ctx)
	var outMu sync.Mutex

	w, err := watch.New(path, delay, func(runCtx context.Context, content string) {
		f.SetInput(content)
		ticket := f.Begin(runCtx)
		g.Go(func() error {
			if !f.Execute(ticket) {
				logging.Get(logging.CategoryWatch).Debug("run #%d superseded", ticket.Seq)
				return nil
			}
			outMu.Lock()
			defer outMu.Unlock()
			return reportRun(out, f, ticket.Seq, path, asJSON)
		})
	})
	if err != nil {
		return err
	}

	logger.Info("watching payload file", zap.String("path", w.Path()), zap.String("endpoint", appCfg.Endpoint()))
	g.Go(func() error {
		return w.Run(gctx)
	})
	err = g.Wait()

	s := w.Stats()
	logger.Info("stopped watching",
		zap.String("path", w.Path()),
		zap.Int("changes", s.Changes),
		zap.Int("errors", s.Errors))
	return err
}

func reportRun(out io.Writer, f *form.Form, seq uint64, path string, asJSON bool) error {
	o := f.Outcome()
	if o.Seq != seq {
		return nil
	}
	if o.Status != form.StatusSuccess {
		if !o.Cancelled() {
			logger.Warn("run failed", zap.Uint64("run", seq), zap.Error(o.Err))
		}
		_, err := fmt.Fprintf(out, "--- run #%d %s: %s\n", seq, path, o.Message())
		return err
	}
	res, _ := f.Result()
	if _, err := fmt.Fprintf(out, "--- run #%d %s\n", seq, path); err != nil {
		return err
	}
	return printResult(out, res, asJSON)
}
