package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/linkcheck"
)

type linkCheckFlags struct {
	input       string
	output      string
	concurrency int
	timeout     time.Duration
	userAgent   string
}

func newLinkCheckCmd() *cobra.Command {
	flags := &linkCheckFlags{}
	cmd := &cobra.Command{
		Use:   "linkcheck",
		Short: "Reports broken job links",
		Long: `Reads a JSON array of {"url", "company"} objects, sends a HEAD request to each
url, and writes "url | status" for every link that answered with an error status
or could not be reached.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLinkCheck(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.input, "input", "i", "remote_jobs.json", "JSON file of links to check")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "broken_links.txt", "report file")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "parallel probes (default from config)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "per-link timeout (default from config)")
	cmd.Flags().StringVar(&flags.userAgent, "user-agent", "", "user agent (default from config)")
	return cmd
}

func runLinkCheck(cmd *cobra.Command, flags *linkCheckFlags) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg := linkcheck.Config{
		Concurrency: rt.cfg.LinkCheck.Concurrency,
		Timeout:     rt.cfg.LinkCheckTimeout(),
		UserAgent:   rt.cfg.LinkCheck.UserAgent,
	}
	if flags.concurrency > 0 {
		cfg.Concurrency = flags.concurrency
	}
	if flags.timeout > 0 {
		cfg.Timeout = flags.timeout
	}
	if flags.userAgent != "" {
		cfg.UserAgent = flags.userAgent
	}

	in, err := os.Open(flags.input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	entries, err := linkcheck.ReadEntries(in)
	_ = in.Close()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Checking %d links...\n", len(entries))

	results, err := linkcheck.New(cfg, rt.logger.Named("linkcheck")).Check(cmd.Context(), entries)
	if err != nil {
		return err
	}
	for i, r := range results {
		if r.Broken() {
			fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] BROKEN: %s -> %s (%s)\n", i+1, len(results), r.Company, r.URL, r.Detail())
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] OK\n", i+1, len(results))
	}

	out, err := os.Create(flags.output)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	n, err := linkcheck.WriteReport(out, results)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close report: %w", cerr)
	}
	if err != nil {
		return err
	}
	rt.logger.Info("link check finished", zap.Int("checked", len(results)), zap.Int("broken", n))
	fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d broken links. Saved to %s\n", n, flags.output)
	return nil
}
