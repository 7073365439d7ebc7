package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autohighlight/autohighlight/annotation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve rows to the highlighting UI and record submitted highlights",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default :5001)")
	serveCmd.Flags().Bool("interleaved", true, "Submitted indices count whitespace tokens: accept even indices only and halve them")
	_ = settings.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = settings.BindPFlag("server.interleaved", serveCmd.Flags().Lookup("interleaved"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// A broken rows file still starts the server; /api/columns then reports the problem.
	store, err := annotation.LoadStore(cfg.Data.RowsPath)
	if err != nil {
		klog.Errorf("Error reading rows file %s: %v", cfg.Data.RowsPath, err)
		store = annotation.EmptyStore()
	} else {
		klog.Infof("Loaded %s with %d rows and columns %v", cfg.Data.RowsPath, store.Len(), store.Columns())
	}

	srv := annotation.NewServer(store, &annotation.HighlightFile{Path: cfg.Data.HighlightsPath}, cfg.Server.Interleaved)
	srv.AllowedOrigins = cfg.Server.AllowedOrigins
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Listening on %s", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}
	klog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Wrap(httpServer.Shutdown(shutdownCtx), "shutdown")
}
