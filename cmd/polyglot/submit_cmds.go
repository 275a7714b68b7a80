package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"polyglot/internal/client/api"
	"polyglot/internal/client/submission"
	"polyglot/internal/delivery/tui"
	"polyglot/internal/domain/feedback"
)

func (c *CLI) submitCommand() *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "submit [text...]",
		Short: "Analyze and save one piece of feedback",
		Long:  "Analyzes the text (language, English translation, sentiment) and saves it. Reads stdin when no text is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" && !c.isTerminal() {
				data, err := io.ReadAll(c.in)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			names, err := c.productNames(cmd.Context(), client)
			if err != nil {
				return err
			}
			if product == "" {
				if product, err = c.chooseProduct(names); err != nil {
					return err
				}
			}

			orchestrator := submission.New(client, submission.Options{
				Timeout:   c.timeout,
				Publisher: c.bus,
				OnPhase: func(p submission.Phase) {
					if p != submission.PhaseIdle {
						fmt.Fprintln(c.errOut, gray(p.String()+"..."))
					}
				},
			})
			orchestrator.SetProducts(names)

			record, err := orchestrator.Submit(cmd.Context(), text, product)
			if err != nil {
				return err
			}
			c.printf("%s saved feedback #%d\n", green("✓"), record.ID)
			c.printf("  language:    %s\n", record.Language)
			c.printf("  translation: %s\n", record.TranslatedText)
			c.printf("  sentiment:   %s\n", sentimentLabel(record.Sentiment))
			return nil
		},
	}
	cmd.Flags().StringVarP(&product, "product", "p", "", "product the feedback is about")
	return cmd
}

func (c *CLI) formCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "form",
		Short: "Open the interactive feedback form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.isTerminal() {
				return errors.New("the form needs an interactive terminal; use `polyglot submit` instead")
			}
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			names, err := c.productNames(cmd.Context(), client)
			if err != nil {
				return err
			}

			notifications, unsubscribe := c.bus.Subscribe()
			defer unsubscribe()
			phases := make(chan submission.Phase, 8)
			orchestrator := submission.New(client, submission.Options{
				Timeout:   c.timeout,
				Publisher: c.bus,
				OnPhase:   tui.PhaseFeed(phases),
			})
			orchestrator.SetProducts(names)

			return tui.Run(cmd.Context(), tui.Config{
				Submitter:     orchestrator,
				Products:      names,
				Phases:        phases,
				Notifications: notifications,
			})
		},
	}
}

func (c *CLI) productNames(ctx context.Context, client *api.Client) ([]string, error) {
	products, err := client.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names, nil
}

// chooseProduct asks on a terminal and otherwise only succeeds when there is
// exactly one product to pick.
func (c *CLI) chooseProduct(names []string) (string, error) {
	switch {
	case len(names) == 0:
		return "", errors.New("no products are configured; ask an admin to add one")
	case len(names) == 1:
		return names[0], nil
	case !c.isTerminal():
		return "", fmt.Errorf("--product is required (one of: %s)", strings.Join(names, ", "))
	}
	selector := promptui.Select{
		Label: "Product",
		Items: names,
		Size:  min(len(names), 10),
	}
	_, choice, err := selector.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return "", &submission.CancelledError{Reason: submission.CancelUser}
	}
	if err != nil {
		return "", fmt.Errorf("select product: %w", err)
	}
	return choice, nil
}

func sentimentLabel(s feedback.Sentiment) string {
	switch s {
	case feedback.SentimentPositive:
		return green(string(s))
	case feedback.SentimentNegative:
		return red(string(s))
	default:
		return yellow(string(s))
	}
}
