package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// buildRootCmdWith constructs the command tree. Results go to out, logs to errOut.
func buildRootCmdWith(o *Options, out, errOut io.Writer) *cobra.Command {
	o.Out = out
	root := &cobra.Command{
		Use:           "gpusieve",
		Short:         "Sieve data preparation and dispatch for GPU trial factoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.ConfigPath, "config", envStr("GPUSIEVE_CONFIG", ""), "Config file (.yaml, .yml, .json, .toml)")
	pf.IntVar(&o.Config.SievePrimes, "primes", 0, "Requested sieving-prime budget (default 82486)")
	pf.IntVar(&o.Config.SieveSizeMbits, "sieve-size-mbits", 0, "Bitmap capacity in Mbits, 4..128 (default 64)")
	pf.BoolVar(&o.Config.MoreClasses, "more-classes", false, "Exclude 2..11 from sieving (5 not sieved, 49 inline)")
	pf.BoolVar(&o.Config.RawBench, "raw-bench", false, "Leave the bitmap all ones and skip every kernel")
	pf.StringVar(&o.Config.LogLevel, "log-level", envStr("GPUSIEVE_LOG_LEVEL", ""), "Log level: debug|info|warn|error")
	pf.StringVar(&o.Config.LogFile, "log-file", "", "Append logs to this file instead of stderr")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		// Environment defaults count as explicit settings.
		if o.Config.LogLevel != "" {
			_ = flags.Set("log-level", o.Config.LogLevel)
		}
		return o.resolve(flags, errOut)
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) { o.close() }

	planCmd := &cobra.Command{
		Use:     "plan",
		Short:   "Solve the sieving-prime budget and print the plan",
		Example: "  gpusieve plan --primes 200000\n  gpusieve plan --primes 5000 --more-classes",
		Args:    cobra.NoArgs,
		RunE:    func(cmd *cobra.Command, args []string) error { return fnPlan(o) },
	}

	var withRows bool
	layoutCmd := &cobra.Command{
		Use:   "layout",
		Short: "Encode primeInfo and print its bands",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return fnLayout(o, withRows) },
	}
	layoutCmd.Flags().BoolVar(&withRows, "rows", false, "Include every row descriptor")

	var ra runArgs
	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Drive one class through the sieve on the host backend",
		Example: "  gpusieve run --exponent 66362159 --kmin 1000 --krange 100000000",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fnRun(cmd.Context(), o, ra)
		},
	}
	runCmd.Flags().Uint32Var(&ra.Exponent, "exponent", 0, "Mersenne exponent")
	runCmd.Flags().Uint64Var(&ra.KMin, "kmin", 0, "First k of the class")
	runCmd.Flags().Uint64Var(&ra.KRange, "krange", 0, "Number of candidates to sieve")
	_ = runCmd.MarkFlagRequired("exponent")
	_ = runCmd.MarkFlagRequired("krange")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Initialize a sieve and serve its status over HTTP",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return fnServe(cmd.Context(), o) },
	}
	serveCmd.Flags().StringVar(&o.Config.Addr, "addr", envStr("GPUSIEVE_ADDR", ""), "HTTP listen address")

	root.AddCommand(planCmd, layoutCmd, runCmd, serveCmd)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	root.AddCommand(completionCmd)

	return root
}
