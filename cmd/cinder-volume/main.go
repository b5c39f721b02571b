package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/younsl/cinder-volume/internal/models"
	"github.com/younsl/cinder-volume/internal/version"
	"github.com/younsl/cinder-volume/pkg/aws"
	"github.com/younsl/cinder-volume/pkg/config"
	"github.com/younsl/cinder-volume/pkg/formatter"
	"github.com/younsl/cinder-volume/pkg/logging"
	"github.com/younsl/cinder-volume/pkg/metrics"
	"github.com/younsl/cinder-volume/pkg/openstack"
	"github.com/younsl/cinder-volume/pkg/reconcile"
)

// newConnectFunc picks the storage backend for the parameters
var newConnectFunc = func(p config.Params, logger zerolog.Logger) reconcile.ConnectFunc {
	return func(ctx context.Context) (reconcile.VolumeService, error) {
		if p.Cloud == config.CloudAWS {
			c, err := aws.NewEBSClient(ctx, p.EBSCredentials(), logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		c, err := openstack.Connect(ctx, p.OpenStackCredentials(), logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// startSpinner creates and starts a spinner on w for the given state
func startSpinner(w io.Writer, state models.State) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = fmt.Sprintf(" Reconciling volume to state %s ...", state)
	s.Start()
	return s
}

func main() {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:   "cinder-volume",
		Short: "Create or delete block-storage volumes",
		Long: `cinder-volume converges one OpenStack Cinder (or AWS EBS) volume
to the desired state and prints a report for the calling automation engine.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If version flag is set, print version info and exit
			if showVersion {
				fmt.Fprintln(stdout, version.Get())
				return nil
			}

			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), v, stdout, stderr)
		},
	}

	config.RegisterFlags(rootCmd.Flags())
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	return rootCmd
}

// run performs one reconciliation and prints its report to stdout. The
// returned error only signals failure; the report already carries the message.
func run(ctx context.Context, v *viper.Viper, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := config.LoadOptions(v)
	logger := logging.New(stderr, opts.LogLevel)
	m := metrics.New()
	record := func(state models.State, result models.Result, err error, duration time.Duration) {
		m.Observe(state, result, err, duration)
		if opts.MetricsTextfile == "" {
			return
		}
		if werr := m.WriteTextfile(opts.MetricsTextfile); werr != nil {
			logger.Warn().Err(werr).Str("path", opts.MetricsTextfile).Msg("could not write metrics")
		}
	}
	// Parameter failures are recorded against the state as given.
	rejectParams := func(format string, err error) error {
		record(config.Load(v).DesiredState(), models.Result{}, err, 0)
		return fail(stdout, format, err)
	}

	format := opts.Output
	if !formatter.ValidFormat(format) {
		return rejectParams(formatter.FormatJSON, reconcile.NewError(reconcile.InvalidParametersError, nil,
			fmt.Sprintf("value of output must be one of: json, yaml, table, got: %s", format)))
	}

	if opts.ArgsFile != "" {
		if err := config.MergeArgsFile(v, opts.ArgsFile); err != nil {
			return rejectParams(format, reconcile.NewError(reconcile.InvalidParametersError, err, "loading parameters"))
		}
	}

	params := config.Load(v)
	if err := params.Validate(); err != nil {
		return rejectParams(format, reconcile.NewError(reconcile.InvalidParametersError, err, "validating parameters"))
	}
	state := params.DesiredState()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger.Debug().
		Str("cloud", params.Cloud).
		Str("state", string(state)).
		Bool("check", params.CheckMode).
		Msg("starting reconciliation")

	reconciler := reconcile.New(newConnectFunc(params, logger), reconcile.Options{
		CheckMode: params.CheckMode,
		Logger:    logger,
	})

	var s *spinner.Spinner
	if opts.Spinner {
		s = startSpinner(stderr, state)
	}

	startTime := time.Now()
	result, err := reconciler.Reconcile(ctx, params.Spec(), state)
	duration := time.Since(startTime)

	if s != nil {
		s.FinalMSG = fmt.Sprintf("✓ Volume reconciled - Completed in %.2f seconds\n", duration.Seconds())
		if err != nil {
			s.FinalMSG = fmt.Sprintf("✗ Reconciliation failed after %.2f seconds\n", duration.Seconds())
		}
		s.Stop()
	}

	record(state, result, err, duration)

	if err != nil {
		return fail(stdout, format, err)
	}
	return formatter.PrintResult(stdout, format, result, formatter.Run{StartTime: startTime, Duration: duration})
}

func fail(stdout io.Writer, format string, err error) error {
	if perr := formatter.PrintFailure(stdout, format, err); perr != nil {
		return perr
	}
	return err
}
