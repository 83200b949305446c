package main

import (
	"context"
	"fmt"

	"runview/internal/form"
	"runview/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the payload form in a browser",
	Long: `Starts a local web server with the payload form, the Run and Clear buttons,
and the RESULTS: and AST: regions. All browser tabs share one form.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (default from web.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	listen := appCfg.Web.Listen
	if serveListen != "" {
		listen = serveListen
	}

	client := newClient(appCfg)
	defer client.Close()

	srv, err := web.New(form.New(client), web.Config{
		Listen:   listen,
		Endpoint: appCfg.Endpoint(),
		Logger:   logger.Named("web"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "runview form on http://%s (evaluator %s)\n", listen, appCfg.Endpoint())
	return serveUntilDone(ctx, srv)
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down within web.ShutdownGrace.
func serveUntilDone(ctx context.Context, srv *web.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down browser form")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), web.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}
