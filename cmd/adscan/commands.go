package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/adscan/internal/classifier"
	"github.com/GriffinCanCode/adscan/internal/config"
	"github.com/GriffinCanCode/adscan/internal/grpcclient"
	"github.com/GriffinCanCode/adscan/internal/logging"
	"github.com/GriffinCanCode/adscan/internal/orchestrator"
	"github.com/GriffinCanCode/adscan/internal/rpc"
	"github.com/GriffinCanCode/adscan/internal/sampler"
	"github.com/GriffinCanCode/adscan/internal/screen"
	"github.com/GriffinCanCode/adscan/internal/video"
)

type mgrKey struct{}

func manager(cmd *cobra.Command) *orchestrator.Manager {
	return cmd.Context().Value(mgrKey{}).(*orchestrator.Manager)
}

func newRootCmd() *cobra.Command {
	var (
		root    string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:          "adscan",
		Short:        "adscan - classify images and videos as known-advertiser ads",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if root != "" {
				cfg.ReferenceRoot = root
			}
			level := cfg.LogLevel
			if verbose {
				level = "debug"
			}
			if _, err := logging.Setup(logging.Options{Level: level, Format: cfg.LogFormat, Out: cmd.ErrOrStderr()}); err != nil {
				return err
			}

			mgr, err := orchestrator.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), mgrKey{}, mgr))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if mgr, ok := cmd.Context().Value(mgrKey{}).(*orchestrator.Manager); ok {
				mgr.Stop()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&root, "root", "", "reference root (overrides REFERENCE_ROOT)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(classifyCmd(), explainCmd(), videoCmd(), screenCmd(), refsCmd(), healthCmd())
	return cmd
}

// fileResult is one line of classify output.
type fileResult struct {
	Input   string  `json:"input"`
	IsAd    bool    `json:"isAd"`
	Company *string `json:"company"`
	Error   string  `json:"error,omitempty"`
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file|url>...",
		Short: "Classify image files or URLs, one JSON line per input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := manager(cmd)
			enc := json.NewEncoder(cmd.OutOrStdout())

			failed := 0
			for _, in := range args {
				line := fileResult{Input: in}
				data, err := readInput(cmd.Context(), mgr, in)
				var res classifier.Result
				if err == nil {
					res, err = mgr.Detector.ClassifyBytes(cmd.Context(), data)
				}
				if err != nil {
					failed++
					line.Error = err.Error()
				}
				line.IsAd = res.IsAd
				if res.IsAd {
					line.Company = &res.Company
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d inputs could not be classified", failed, len(args))
			}
			return nil
		},
	}
}

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <file|url>",
		Short: "Show the best score per category for one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := manager(cmd)
			data, err := readInput(cmd.Context(), mgr, args[0])
			if err != nil {
				return err
			}
			rep, err := mgr.Detector.Explain(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
}

func videoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "video <file>",
		Short: "Sample a video file until a frame matches or the deadline passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := manager(cmd)
			ctx := cmd.Context()
			// Load references before playback starts so loading does not eat
			// into the sampling deadline.
			_ = mgr.Detector.Initialize(ctx)

			v, err := video.Open(ctx, args[0])
			if err != nil {
				return err
			}
			out := mgr.Detector.ClassifyVideo(ctx, v, sampler.Hooks{
				OnAttempt: func(n int, r classifier.Result) {
					fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d at %s: %s\n", n, v.Position().Round(10*time.Millisecond), r)
				},
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func screenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "screen",
		Short: "Sample the live screen until an ad appears or the deadline passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := manager(cmd)
			ctx := cmd.Context()
			_ = mgr.Detector.Initialize(ctx)

			src, err := screen.New()
			if err != nil {
				return err
			}
			defer src.Close()

			out := mgr.Detector.ClassifyVideo(ctx, src, sampler.Hooks{
				OnAttempt: func(n int, r classifier.Result) {
					fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d: %s\n", n, r)
				},
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func refsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "Load references and list categories in scan order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := manager(cmd)
			if err := mgr.Detector.Initialize(cmd.Context()); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tTHRESHOLD\tIMAGES")
			for _, info := range mgr.Detector.References() {
				fmt.Fprintf(tw, "%s\t%.2f\t%d\n", info.Name, info.Threshold, info.Images)
			}
			return tw.Flush()
		},
	}
}

func readInput(ctx context.Context, mgr *orchestrator.Manager, in string) ([]byte, error) {
	if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
		return mgr.Fetcher.Get(ctx, in)
	}
	return os.ReadFile(in)
}

func printReport(w io.Writer, rep classifier.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTHRESHOLD\tMAX SCORE\tCOMPARED\tEXCEEDED")
	for _, c := range rep.Categories {
		fmt.Fprintf(tw, "%s\t%.2f\t%.4f\t%d\t%v\n", c.Name, c.Threshold, c.MaxScore, c.Compared, c.Exceeded)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "result: %s\n", rep.Result)
	return err
}

func healthCmd() *cobra.Command {
	var (
		addr string
		wait time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's gRPC health status",
		Args:  cobra.NoArgs,
		// No detector is needed to probe a remote one.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := grpcclient.New(addr, rpc.ServiceName)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			if wait > 0 {
				wctx, cancel := context.WithTimeout(ctx, wait)
				defer cancel()
				if err := c.WaitReady(wctx, time.Second); err != nil {
					return err
				}
			}
			st, err := c.Check(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st)
			if st != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("detector is %s", st)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "server gRPC address")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait up to this long for the detector to become ready")
	return cmd
}
