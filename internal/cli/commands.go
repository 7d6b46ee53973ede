package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

type pendingResult struct {
	MailID  string `json:"mail_id" yaml:"mail_id"`
	Pending int    `json:"pending" yaml:"pending"`
}

func NewEnqueueCommand() *cobra.Command {
	var (
		mailID    string
		users     []string
		addresses []string
		chunk     int
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Split a mail job into queue items",
		Example: `  usermailctl enqueue --mail 42 --users 1,2,3
  usermailctl enqueue --mail 42 --address jane@example.com:Jane`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			req := domain.MailJobRequest{
				MailContentID: mailID,
				UserIDs:       users,
				RawRecipients: parseAddresses(addresses),
				ChunkSize:     chunk,
			}

			b, err := rt.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			job, err := b.Schedule(cmd.Context(), req)
			if err != nil {
				return err
			}

			return writeOutput(rt.Writer(), rt.OutputFormat(), job, func(tw *tabwriter.Writer) {
				_, _ = fmt.Fprintln(tw, "BATCH\tMAIL\tITEMS\tRECIPIENTS\tCREATED")
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					job.BatchID, job.MailContentID, job.Items, job.Recipients, job.CreatedAt.Format(time.RFC3339))
			})
		},
	}

	cmd.Flags().StringVar(&mailID, "mail", "", "Mail content id")
	cmd.Flags().StringSliceVar(&users, "users", nil, "Comma-separated user ids")
	cmd.Flags().StringArrayVar(&addresses, "address", nil, "Raw recipient as email[:Display Name] (repeatable)")
	cmd.Flags().IntVar(&chunk, "chunk", 0, "Override the chunk size for this job")
	_ = cmd.MarkFlagRequired("mail")

	return cmd
}

func NewPendingCommand() *cobra.Command {
	var mailID string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Count queue rows that reference a mail content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			b, err := rt.backend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := b.Pending(cmd.Context(), mailID)
			if err != nil {
				return err
			}

			res := pendingResult{MailID: mailID, Pending: n}
			return writeOutput(rt.Writer(), rt.OutputFormat(), res, func(tw *tabwriter.Writer) {
				_, _ = fmt.Fprintln(tw, "MAIL\tPENDING")
				_, _ = fmt.Fprintf(tw, "%s\t%d\n", res.MailID, res.Pending)
			})
		},
	}

	cmd.Flags().StringVar(&mailID, "mail", "", "Mail content id")
	_ = cmd.MarkFlagRequired("mail")

	return cmd
}

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.migrate == nil {
				return fmt.Errorf("migrations not configured")
			}
			if err := rt.migrate(rt.opts.DatabaseURL, rt.opts.MigrationsPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "migrations applied")
			return nil
		},
	}
}

// parseAddresses splits "email[:Display Name]" values.
func parseAddresses(values []string) []domain.RawRecipient {
	out := make([]domain.RawRecipient, 0, len(values))
	for _, v := range values {
		email, name, _ := strings.Cut(v, ":")
		out = append(out, domain.RawRecipient{
			Email:       strings.TrimSpace(email),
			DisplayName: strings.TrimSpace(name),
		})
	}
	return out
}
