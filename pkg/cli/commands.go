package cli

import (
	"fmt"
	"os"

	urfave "github.com/urfave/cli/v2"
)

var (
	exploreCmd = &urfave.Command{
		Name:    "explore",
		Aliases: []string{"x"},
		Usage:   "Write the exploratory summary and figures for the measurement CSV",
		Action:  cmdExplore,
	}

	tuneCmd = &urfave.Command{
		Name:    "tune",
		Aliases: []string{"t"},
		Usage:   "Cross-validate every model family over its parameter grid and rank them",
		Action:  cmdTune,
	}

	evaluateCmd = &urfave.Command{
		Name:    "evaluate",
		Aliases: []string{"e"},
		Usage:   "Refit the best tuned model and score it once on the held-out partition",
		Action:  cmdEvaluate,
	}

	reportCmd = &urfave.Command{
		Name:    "report",
		Aliases: []string{"r"},
		Usage:   "Render the comparison table from the latest stored tuning run",
		Action:  cmdReport,
	}
)

func cmdExplore(c *urfave.Context) error {
	ac := getConfig(c)
	if err := ac.Study.Explore(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "exploration artifacts written to %s\n", ac.Config.Output.Dir)
	return nil
}

func cmdTune(c *urfave.Context) error {
	comparison, err := getConfig(c).Study.Tune(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, comparison.String())
	return nil
}

func cmdEvaluate(c *urfave.Context) error {
	ev, err := getConfig(c).Study.Evaluate(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, ev.String())
	return nil
}

func cmdReport(c *urfave.Context) error {
	comparison, err := getConfig(c).Study.Report(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, comparison.String())
	return nil
}
