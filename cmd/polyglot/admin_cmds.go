package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"polyglot/internal/client/api"
	"polyglot/internal/domain/feedback"
)

type filterFlags struct {
	product   string
	language  string
	sentiment string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.product, "product", "", "only this product ("+feedback.UnspecifiedProduct+" for none)")
	cmd.Flags().StringVar(&f.language, "language", "", "only this detected language")
	cmd.Flags().StringVar(&f.sentiment, "sentiment", "", "only positive, negative or neutral")
}

func (f filterFlags) filter() (feedback.Filter, error) {
	filter := feedback.Filter{Product: f.product, Language: f.language}
	if f.sentiment != "" {
		sentiment, err := feedback.ParseSentiment(f.sentiment)
		if err != nil {
			return feedback.Filter{}, err
		}
		filter.Sentiment = sentiment
	}
	return filter, nil
}

func (c *CLI) feedbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "feedback",
		Aliases: []string{"fb"},
		Short:   "Review and delete stored feedback (admin)",
	}
	cmd.AddCommand(c.feedbackListCommand(), c.feedbackDeleteCommand(), c.feedbackPurgeCommand())
	return cmd
}

func (c *CLI) feedbackListCommand() *cobra.Command {
	var (
		filters     filterFlags
		skip, limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feedback, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			page, err := client.ListFeedback(cmd.Context(), api.ListOptions{Filter: filter, Skip: skip, Limit: limit})
			if err != nil {
				return err
			}
			if len(page.Items) == 0 {
				c.printf("No feedback matches (total %d).\n", page.Total)
				return nil
			}

			table := markdownTable{header: []string{"ID", "Created", "Product", "Language", "Sentiment", "Original", "Translation"}}
			for _, r := range page.Items {
				table.add(
					strconv.FormatInt(r.ID, 10),
					r.CreatedAt.Local().Format(time.DateTime),
					r.Product,
					r.Language,
					string(r.Sentiment),
					r.OriginalText,
					r.TranslatedText,
				)
			}
			heading := fmt.Sprintf("## Feedback %d-%d of %d\n\n", page.Skip+1, page.Skip+len(page.Items), page.Total)
			c.renderMarkdown(heading + table.String())
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().IntVar(&skip, "skip", 0, "records to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "records per page (1-1000)")
	return cmd
}

func (c *CLI) feedbackDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete feedback by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			if len(ids) == 1 {
				if err := client.DeleteFeedback(cmd.Context(), ids[0]); err != nil {
					return err
				}
				c.printf("%s deleted #%d\n", green("✓"), ids[0])
				return nil
			}
			result, err := client.BulkDeleteFeedback(cmd.Context(), ids)
			if err != nil {
				return err
			}
			c.printf("%s deleted %d of %d\n", green("✓"), result.Deleted, len(ids))
			if missing := missingIDs(ids, result.IDs); len(missing) > 0 {
				c.printf("%s not found: %s\n", yellow("!"), joinIDs(missing))
			}
			return nil
		},
	}
}

func (c *CLI) feedbackPurgeCommand() *cobra.Command {
	var (
		filters filterFlags
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every record matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			deleted, err := client.DeleteMatching(cmd.Context(), filter)
			if err != nil {
				return err
			}
			c.printf("%s deleted %d records\n", green("✓"), deleted)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func (c *CLI) statsCommand() *cobra.Command {
	var filters filterFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the sentiment breakdown (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			client, err := c.apiClient()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context(), filter)
			if err != nil {
				return err
			}
			table := markdownTable{header: []string{"Sentiment", "Count", "Share"}}
			for _, s := range feedback.Sentiments {
				table.add(string(s), strconv.Itoa(stats.Counts[s]), fmt.Sprintf("%.2f%%", stats.Percentages[s]))
			}
			c.renderMarkdown(fmt.Sprintf("## Sentiment across %d records\n\n%s", stats.Total, table))
			return nil
		},
	}
	filters.register(cmd)
	return cmd
}

func (c *CLI) productsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage feedback products",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List products",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := c.apiClient()
				if err != nil {
					return err
				}
				products, err := client.ListProducts(cmd.Context())
				if err != nil {
					return err
				}
				table := markdownTable{header: []string{"ID", "Name", "Created"}}
				for _, p := range products {
					table.add(strconv.FormatInt(p.ID, 10), p.Name, p.CreatedAt.Local().Format(time.DateOnly))
				}
				c.renderMarkdown(table.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a product (admin)",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := c.apiClient()
				if err != nil {
					return err
				}
				product, err := client.CreateProduct(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				c.printf("%s added %s (#%d)\n", green("✓"), bold(product.Name), product.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a product (admin); existing feedback keeps its product name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				client, err := c.apiClient()
				if err != nil {
					return err
				}
				if err := client.DeleteProduct(cmd.Context(), ids[0]); err != nil {
					return err
				}
				c.printf("%s removed product #%d\n", green("✓"), ids[0])
				return nil
			},
		},
	)
	return cmd
}

func (c *CLI) modelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect or switch the analysis model (admin)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List models offered by the provider",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := c.apiClient()
				if err != nil {
					return err
				}
				models, err := client.ListModels(cmd.Context())
				if err != nil {
					return err
				}
				current, err := client.CurrentModel(cmd.Context())
				if err != nil {
					return err
				}
				table := markdownTable{header: []string{"", "Name", "Display name"}}
				for _, m := range models {
					marker := ""
					if m.Name == current {
						marker = "*"
					}
					table.add(marker, m.Name, m.DisplayName)
				}
				c.renderMarkdown(table.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "current",
			Short: "Show the model used for analysis",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := c.apiClient()
				if err != nil {
					return err
				}
				current, err := client.CurrentModel(cmd.Context())
				if err != nil {
					return err
				}
				c.printf("%s\n", current)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <name>",
			Short: "Switch the analysis model",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := c.apiClient()
				if err != nil {
					return err
				}
				current, err := client.SetCurrentModel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				c.printf("%s analysis model is now %s\n", green("✓"), bold(current))
				return nil
			},
		},
	)
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func missingIDs(requested, deleted []int64) []int64 {
	seen := make(map[int64]struct{}, len(deleted))
	for _, id := range deleted {
		seen[id] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
