package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"delegate/api/internal/app"
	"delegate/api/internal/digest"
	"delegate/api/internal/filter"
	"delegate/api/internal/snapshot"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "explorer",
		Short: "List registered DAOs with live space data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *app.Service) error {
				return printJSON(os.Stdout, svc.Explorer(cmd.Context()))
			})
		},
	})

	var (
		status   string
		days     int
		query    string
		page     int
		pageSize int
	)
	daoCmd := &cobra.Command{
		Use:   "dao KEY",
		Short: "Show a DAO dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *app.Service) error {
				d, err := svc.Dashboard(cmd.Context(), args[0], digest.DashboardQuery{Criteria: filter.Criteria{
					Status:   status,
					AgeDays:  days,
					Search:   query,
					Page:     page,
					PageSize: pageSize,
				}})
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, d)
			})
		},
	}
	daoCmd.Flags().StringVarP(&status, "status", "s", "", "Proposal state (active, closed, pending, all)")
	daoCmd.Flags().IntVarP(&days, "days", "d", 0, "Only proposals started within this many days")
	daoCmd.Flags().StringVarP(&query, "query", "q", "", "Search title and body")
	daoCmd.Flags().IntVar(&page, "page", 1, "Page number")
	daoCmd.Flags().IntVar(&pageSize, "page-size", filter.DefaultPageSize, "Page size")
	rootCmd.AddCommand(daoCmd)

	var (
		daoFilter string
		format    string
		archive   bool
	)
	digestCmd := &cobra.Command{
		Use:   "digest TAB",
		Short: "Render a digest tab (updates, proposals, global)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := digest.WeeklyFilters{DAO: daoFilter}
			return withService(cmd.Context(), func(svc *app.Service) error {
				if format == "" {
					d, err := svc.Digest(cmd.Context(), args[0], filters)
					if err != nil {
						return err
					}
					return printJSON(os.Stdout, d)
				}
				res, err := svc.ExportDigest(cmd.Context(), args[0], filters, format, archive)
				if err != nil {
					return err
				}
				if res.Key != "" {
					fmt.Fprintf(os.Stderr, "archived as %s\n", res.Key)
				}
				_, err = os.Stdout.Write(res.Data)
				return err
			})
		},
	}
	digestCmd.Flags().StringVar(&daoFilter, "dao", "", "Limit to one DAO")
	digestCmd.Flags().StringVarP(&format, "format", "f", "", "Export as markdown, html or pdf instead of JSON")
	digestCmd.Flags().BoolVar(&archive, "archive", false, "Upload the export to the report archive")
	rootCmd.AddCommand(digestCmd)

	var title, body, id string
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise a proposal text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" && body == "" {
				return fmt.Errorf("--title or --body required")
			}
			return withService(cmd.Context(), func(svc *app.Service) error {
				out, err := svc.Summarize(cmd.Context(), app.SummaryInput{
					Proposal: &snapshot.Proposal{ID: id, Title: title, Body: body},
				})
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, out)
			})
		},
	}
	summaryCmd.Flags().StringVar(&id, "id", "cli", "Proposal id")
	summaryCmd.Flags().StringVarP(&title, "title", "t", "", "Proposal title")
	summaryCmd.Flags().StringVarP(&body, "body", "b", "", "Proposal body")
	rootCmd.AddCommand(summaryCmd)
}
