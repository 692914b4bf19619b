package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"parkadmin/app/internal/client"
	"parkadmin/app/internal/listing"
	applog "parkadmin/app/internal/log"
	"parkadmin/app/internal/workflow"
)

const defaultAPI = "http://localhost:8080/api/v1"

var resources = []string{"highlights", "press-release", "subscribers", "categories"}

type globalOptions struct {
	api     string
	token   string
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Manage park content from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.api, "api", envOr("PARKADMIN_API", defaultAPI), "API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("PARKADMIN_TOKEN"), "Google ID token sent as bearer credential")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every API request")

	root.AddCommand(
		newListCommand(opts),
		newNextSeqCommand(opts),
		newDeleteCommand(opts),
	)

	return root
}

func (o *globalOptions) logger() *logrus.Logger {
	if !o.verbose {
		return applog.Discard()
	}
	logger, err := applog.NewLogger(logrus.DebugLevel.String())
	if err != nil {
		return applog.Discard()
	}
	logger.SetOutput(os.Stderr)
	return logger
}

func (o *globalOptions) client() (*client.Client, error) {
	return client.New(o.api, client.WithToken(o.token), client.WithLogger(o.logger()))
}

type listOptions struct {
	search   string
	status   string
	category string
	from     string
	to       string
	period   string
	sort     string
	order    string
	start    int
	limit    int
	local    bool
}

func newListCommand(global *globalOptions) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List records of a collection",
		Long: "List records of a collection. Filters run on the server unless --local is set, " +
			"in which case the whole collection is fetched and filtered here.",
		Args: resourceArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := global.client()
			if err != nil {
				return err
			}

			resource := args[0]
			var (
				records []client.Record
				total   int
			)
			if opts.local {
				page, err := c.List(cmd.Context(), resource, nil)
				if err != nil {
					return err
				}
				records, total = opts.applyLocally(resource, page.Records)
			} else {
				page, err := c.List(cmd.Context(), resource, opts.query())
				if err != nil {
					return err
				}
				records, total = page.Records, page.Total
			}

			renderRecords(cmd.OutOrStdout(), records)
			fmt.Fprintf(cmd.OutOrStdout(), "showing %d of %d\n", len(records), total)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.search, "query", "q", "", "search text")
	flags.StringVar(&opts.status, "status", "", "status filter (highlights)")
	flags.StringVar(&opts.category, "category", "", "category id filter (highlights)")
	flags.StringVar(&opts.from, "from", "", "start date, inclusive")
	flags.StringVar(&opts.to, "to", "", "end date, inclusive")
	flags.StringVar(&opts.period, "period", "", "day, week or month")
	flags.StringVar(&opts.sort, "sort", "", "sort field (seq, title, date, createdAt, updatedAt)")
	flags.StringVar(&opts.order, "order", "", "asc or desc")
	flags.IntVar(&opts.start, "start", 0, "index of the first row")
	flags.IntVar(&opts.limit, "limit", 25, "maximum rows to show, 0 for all")
	flags.BoolVar(&opts.local, "local", false, "filter and sort on this machine")

	return cmd
}

func (o *listOptions) query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			q.Set(key, value)
		}
	}
	set("q", o.search)
	set("status", o.status)
	set("category", o.category)
	set("start_date", o.from)
	set("end_date", o.to)
	set("period", o.period)
	set("_sort", o.sort)
	set("_order", o.order)
	q.Set("_start", strconv.Itoa(o.start))
	if o.limit > 0 {
		q.Set("_end", strconv.Itoa(o.start+o.limit))
	}
	return q
}

func (o *listOptions) applyLocally(resource string, records []client.Record) ([]client.Record, int) {
	view := func(r client.Record) listing.Row { return r.Row(resource) }

	filtered := listing.Filter(records, view, listing.Criteria{
		Search:    o.search,
		StartDate: o.from,
		EndDate:   o.to,
		Status:    o.status,
		Category:  o.category,
		Period:    listing.ParsePeriod(o.period),
	})
	sorted := listing.SortBy(filtered, view, listing.ParseSort(o.sort, o.order))

	window := listing.Window{Start: o.start}
	if o.limit > 0 {
		window.End = o.start + o.limit
	}
	return listing.Page(sorted, window), len(filtered)
}

func newNextSeqCommand(global *globalOptions) *cobra.Command {
	var (
		fromServer bool
		existing   int64
	)

	cmd := &cobra.Command{
		Use:   "next-seq <resource>",
		Short: "Show the sequence number the next record would get",
		Args:  resourceArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := global.client()
			if err != nil {
				return err
			}

			resource := args[0]
			if fromServer {
				seq, err := c.NextSeq(cmd.Context(), resource)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), seq)
				return nil
			}

			mode := client.ModeCreate
			if existing > 0 {
				mode = client.ModeEdit
			}

			resolver := client.NewSequenceResolver(c, resource, mode, existing)
			seq, err := resolver.Wait(cmd.Context())
			if err != nil {
				return eris.Wrap(err, "sequence number unavailable")
			}
			fmt.Fprintln(cmd.OutOrStdout(), seq)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromServer, "server", false, "ask the server's allocator instead of reading the latest record")
	cmd.Flags().Int64Var(&existing, "existing", 0, "seq of a record being edited")

	return cmd
}

func newDeleteCommand(global *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <resource> <id>...",
		Short: "Delete one or more records after confirmation",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return eris.New("expected a resource and at least one id")
			}
			return resourceArg(cmd, args[:1])
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := global.client()
			if err != nil {
				return err
			}

			resource, ids := args[0], args[1:]
			out := cmd.OutOrStdout()

			flow, err := workflow.NewDeleteFlow(workflow.DeleterFunc(func(ctx context.Context, ids []string) (workflow.Outcome, error) {
				result, err := c.DeleteMany(ctx, resource, ids)
				if err != nil {
					return workflow.Outcome{}, err
				}
				return workflow.Outcome{
					Message:  result.Message,
					Deleted:  result.Deleted,
					Missing:  result.Missing,
					Warnings: result.Warnings,
				}, nil
			}), workflow.WithLogger(global.logger()))
			if err != nil {
				return err
			}

			description := fmt.Sprintf("%d %s record(s): %s", len(ids), resource, strings.Join(ids, ", "))
			if err := flow.Request(ids, description); err != nil {
				return err
			}

			if !yes && !confirm(cmd.InOrStdin(), out, "Delete "+description+"?") {
				if err := flow.Cancel(); err != nil {
					return err
				}
				fmt.Fprintln(out, "cancelled")
				return nil
			}

			outcome, err := flow.Confirm(cmd.Context())
			if err != nil {
				message := flow.Message()
				_ = flow.Dismiss()
				return eris.New(message)
			}

			color.New(color.FgGreen).Fprintln(out, outcome.Message)
			for _, id := range outcome.Missing {
				color.New(color.FgYellow).Fprintf(out, "not found: %s\n", id)
			}
			for _, warning := range outcome.Warnings {
				color.New(color.FgYellow).Fprintf(out, "warning: %s\n", warning)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func renderRecords(out io.Writer, records []client.Record) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Seq", "ID", "Label", "Date", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, r := range records {
		seq := ""
		if r.Seq > 0 {
			seq = strconv.FormatInt(r.Seq, 10)
		}
		table.Append([]string{seq, r.ID, r.Label(), r.Date, r.Status})
	}

	table.Render()
}

func resourceArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return eris.Errorf("expected one resource, one of %s", strings.Join(resources, ", "))
	}
	for _, r := range resources {
		if args[0] == r {
			return nil
		}
	}
	return eris.Errorf("unknown resource %q, expected one of %s", args[0], strings.Join(resources, ", "))
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
