package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportwatch/am"
	"github.com/teranos/reportwatch/errors"
	"github.com/teranos/reportwatch/internal/mockbackend"
	"github.com/teranos/reportwatch/logger"
)

// MockCmd serves the scripted backend
var MockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a scripted report backend for local development",
	Long: `Serve the trigger endpoint and the report socket with scripted frames
taken from the [mock] section of am.toml. Edits to am.toml are picked up
without a restart.

Examples:
  reportwatch mock
  reportwatch mock --addr 127.0.0.1:9000 --token dev`,
	Args: cobra.NoArgs,
	RunE: runMock,
}

var (
	mockAddr  string
	mockToken string
	mockHold  bool
)

func init() {
	MockCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (default mock.addr)")
	MockCmd.Flags().StringVar(&mockToken, "token", "", "Require this bearer token (default auth.token)")
	MockCmd.Flags().BoolVar(&mockHold, "hold", false, "Keep sockets open after the last frame")
}

func mockScript(cfg *am.Config) mockbackend.Script {
	return mockbackend.Script{
		Frames:     cfg.Mock.Frames,
		FrameDelay: time.Duration(cfg.Mock.FrameDelayMS) * time.Millisecond,
		Hold:       mockHold,
	}
}

func runMock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := mockAddr
	if addr == "" {
		addr = cfg.Mock.Addr
	}
	token := mockToken
	if token == "" {
		token = cfg.Auth.Token
	}

	server := mockbackend.New(mockScript(cfg), mockbackend.WithToken(token))

	if path := projectConfig(); path != "" {
		watcher, err := am.NewConfigWatcher(path)
		if err != nil {
			logger.Warnw("Config hot reload unavailable", "path", path, logger.FieldError, err)
		} else {
			watcher.OnReload(func(next *am.Config) error {
				server.SetScript(mockScript(next))
				pterm.Info.Printfln("Reloaded %d mock frames from %s", len(next.Mock.Frames), path)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Success.Printfln("Mock backend listening on http://%s (%d frames)", addr, len(cfg.Mock.Frames))
	if err := server.ListenAndServe(ctx, addr); err != nil {
		return errors.Wrap(err, "mock backend stopped")
	}
	return nil
}

// projectConfig returns the highest-precedence config file that exists
func projectConfig() string {
	paths := am.ConfigPaths()
	for i := len(paths) - 1; i >= 0; i-- {
		if _, err := os.Stat(paths[i]); err == nil {
			return paths[i]
		}
	}
	return ""
}
