package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openpic/picguard/internal/bridge"
)

var (
	serveAddr           string
	servePolicy         string
	serveKeys           string
	serveVerifyEvidence bool
	serveBaseDir        string
	serveEvidenceRoot   string
	serveDebug          bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8787", "Listen address")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML")
	serveCmd.Flags().StringVar(&serveKeys, "keys", "", "Path to keyring JSON (default: PICGUARD_KEYS_PATH, then pic_keys.json)")
	serveCmd.Flags().BoolVar(&serveVerifyEvidence, "verify-evidence", false, "Verify evidence items during evaluation")
	serveCmd.Flags().StringVar(&serveBaseDir, "base-dir", "", "Base directory for file:// evidence refs")
	serveCmd.Flags().StringVar(&serveEvidenceRoot, "evidence-root", "", "Evidence root directory (overrides base-dir for refs)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Include diagnostic details in error responses")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP verification bridge",
	Long: "Runs the verification endpoint over HTTP for callers that cannot\n" +
		"embed the library. Supports hot-reload of policy and keyring files.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := bridge.Config{
		Addr:            serveAddr,
		PolicyPath:      servePolicy,
		KeyringPath:     keysPath(serveKeys),
		VerifyEvidence:  serveVerifyEvidence,
		ProposalBaseDir: serveBaseDir,
		EvidenceRootDir: serveEvidenceRoot,
		Debug:           serveDebug,
	}

	srv, err := bridge.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchPaths := []string{servePolicy, cfg.KeyringPath}
	reloader, err := bridge.NewReloader(srv, watchPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}
	if reloader != nil {
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down verification bridge...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "picguard bridge listening on %s\n", serveAddr)
	if servePolicy != "" {
		fmt.Fprintf(os.Stderr, "Policy: %s (hot-reload enabled)\n", servePolicy)
	}

	return srv.Start(ctx)
}
