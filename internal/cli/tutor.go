package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	pkgio "github.com/matzehuels/ercanvas/pkg/io"
	"github.com/matzehuels/ercanvas/pkg/tutor"
)

// withTutor loads config, opens the cache and runs fn with a text-service
// client. The cache is closed afterwards.
func (c *CLI) withTutor(ctx context.Context, fn func(tutor.Service) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ch, err := c.newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer ch.Close()
	return fn(c.newTutor(cfg, ch))
}

// ask runs one text-service call behind a spinner and translates failures
// into the user-facing wording.
func ask[T any](ctx context.Context, msg string, call func(context.Context) (T, error)) (T, error) {
	spinner := newSpinnerWithContext(ctx, msg)
	spinner.Start()
	out, err := call(ctx)
	spinner.Stop()
	if err != nil {
		loggerFromContext(ctx).Debug("text service failed", "err", err)
		var zero T
		return zero, errors.New(tutor.UserMessage(err))
	}
	return out, nil
}

// scenarioCommand creates the "scenario" command.
func (c *CLI) scenarioCommand() *cobra.Command {
	var difficulty, modelPath string

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Generate a case study to model",
		Long: `Generate a case study describing a business to model.

With --model the case study is written into that model file, which is
created when missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := tutor.ParseDifficulty(difficulty)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withTutor(ctx, func(svc tutor.Service) error {
				text, err := ask(ctx, "Writing case study...", func(ctx context.Context) (string, error) {
					return svc.GenerateScenario(ctx, d)
				})
				if err != nil {
					return err
				}
				if modelPath == "" {
					fmt.Println(text)
					return nil
				}
				m := diagram.Model{}
				if _, statErr := os.Stat(modelPath); statErr == nil {
					if m, err = pkgio.ImportModel(modelPath); err != nil {
						return err
					}
				}
				m.CaseStudy = text
				if err := pkgio.ExportModel(modelPath, m); err != nil {
					return err
				}
				printSuccess("Case study written")
				printFile(modelPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", string(tutor.Basic), "basic, intermediate or advanced")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "model file to store the case study in")
	_ = cmd.RegisterFlagCompletionFunc("difficulty", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, d := range tutor.Difficulties() {
			out = append(out, string(d))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// evaluateCommand creates the "evaluate" command.
func (c *CLI) evaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <model.json>",
		Short: "Score a model against its case study",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readModel(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withTutor(ctx, func(svc tutor.Service) error {
				ev, err := ask(ctx, "Evaluating model...", func(ctx context.Context) (tutor.Evaluation, error) {
					return svc.EvaluateModel(ctx, m)
				})
				if err != nil {
					return err
				}
				printEvaluation(ev)
				return nil
			})
		},
	}
}

// sqlCommand creates the "sql" command.
func (c *CLI) sqlCommand() *cobra.Command {
	var dialect, output string

	cmd := &cobra.Command{
		Use:   "sql <model.json>",
		Short: "Generate CREATE TABLE statements for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := tutor.ParseDialect(dialect)
			if err != nil {
				return err
			}
			m, err := readModel(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withTutor(ctx, func(svc tutor.Service) error {
				sql, err := ask(ctx, "Generating "+d.DisplayName()+" DDL...", func(ctx context.Context) (string, error) {
					return svc.GenerateSQL(ctx, m, d)
				})
				if err != nil {
					return err
				}
				if output == "" {
					fmt.Println(sql)
					return nil
				}
				if err := os.WriteFile(output, []byte(sql+"\n"), 0o644); err != nil {
					return err
				}
				printSuccess("Generated %s DDL", d.DisplayName())
				printFile(output)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", string(tutor.MySQL), "mysql or postgres")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the DDL to a file")
	return cmd
}

// hintCommand creates the "hint" command.
func (c *CLI) hintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hint <model.json>",
		Short: "Ask for the next modeling step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readModel(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return c.withTutor(ctx, func(svc tutor.Service) error {
				hint, err := ask(ctx, "Thinking...", func(ctx context.Context) (string, error) {
					return svc.GuidedHint(ctx, m)
				})
				if err != nil {
					return err
				}
				printInfo("%s", hint)
				return nil
			})
		},
	}
}
