package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/bugboard/internal/api"
	"github.com/joescharf/bugboard/internal/daemon"
	"github.com/joescharf/bugboard/internal/tracker"
)

var serveDetach bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server",
	Long: `Start an HTTP server exposing the bug board as a JSON API under /api/v1.
By default it listens on port 8420. Use --port to change it and --detach to
run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveDetach {
			return serveDetachRun()
		}
		return serveRun(cmd.Context())
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8420, "port to listen on")
	serveCmd.Flags().BoolVarP(&serveDetach, "detach", "d", false, "Run in the background")
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "bugboard-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "bugboard-serve.log")
}

func serveRun(ctx context.Context) error {
	port := viper.GetInt("serve.port")
	pf := pidFile()
	if err := pf.Acquire(port); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	notices := &tracker.NoticeLog{}
	t, err := getTracker(ctx, notices)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(t, notices, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	ui.Info("Serving API at http://localhost:%d/api/v1", port)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// serveDetachRun re-executes the binary as a background server whose output
// goes to the serve log.
func serveDetachRun() error {
	if rec, running := pidFile().Status(); running {
		return fmt.Errorf("%w (pid %d, %s)", daemon.ErrAlreadyRunning, rec.PID, rec.Addr())
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open serve log: %w", err)
	}
	defer logFile.Close()

	port := viper.GetInt("serve.port")
	child := exec.Command(exe, "serve", "--port", fmt.Sprint(port))
	if cfg, _ := rootCmd.PersistentFlags().GetString("config"); cfg != "" {
		child.Args = append(child.Args, "--config", cfg)
	}
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if dryRun {
		ui.DryRunMsg("Would start: %v (log %s)", child.Args, logPath)
		return nil
	}
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	ui.Success("Server started in background (pid %d) on http://localhost:%d", child.Process.Pid, port)
	ui.VerboseLog("Log: %s", logPath)
	return child.Process.Release()
}

func serveStatusRun() error {
	rec, running := pidFile().Status()
	if !running {
		ui.Info("Server is not running.")
		return nil
	}
	ui.Success("Server running (pid %d) at %s since %s", rec.PID, rec.Addr(), rec.StartedAt.Local().Format(time.DateTime))
	return nil
}

func serveStopRun() error {
	if dryRun {
		ui.DryRunMsg("Would stop the background server")
		return nil
	}
	rec, err := pidFile().Stop(sigTERM())
	if err != nil {
		return err
	}
	ui.Success("Stopped server (pid %d)", rec.PID)
	return nil
}
