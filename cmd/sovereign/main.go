package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/cli"
	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/discretize"
	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/equilibrium"
	"github.com/ucfbrd/sovereign-risk-disaster/cmd/sovereign/internal/paths"
	"github.com/ucfbrd/sovereign-risk-disaster/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	env := &cli.Env{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "sovereign: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(env *cli.Env) *cobra.Command {
	root := &cobra.Command{
		Use:   "sovereign",
		Short: "Sovereign default model with disaster risk",
		Long: `sovereign discretizes an AR(1) income process with a disaster shift,
solves the sovereign's default and borrowing problem with risk-neutral
lenders, and simulates paths of income, debt and default.

Every command writes one JSON object to stdout and logs to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			env.Setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			env.Close()
		},
	}
	root.PersistentFlags().StringVarP(&env.ConfigPath, "config", "c", "", "YAML config path (or set "+config.EnvPath+")")
	root.PersistentFlags().BoolVarP(&env.Verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		discretize.Command(env),
		equilibrium.Command(env),
		paths.Command(env),
	)
	return root
}
