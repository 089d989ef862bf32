package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/tenantstore"
	"github.com/xraph/tenantstore/provider"
)

func newPingCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withProvider(cmd, func(ctx context.Context, pr *provider.Provider) error {
				if err := pr.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
}

func newCountCmd(g *globalFlags) *cobra.Command {
	var q string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count documents matching a query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.scope()
			if err != nil {
				return err
			}
			query, err := parseDoc("query", q)
			if err != nil {
				return err
			}
			return g.withProvider(cmd, func(ctx context.Context, pr *provider.Provider) error {
				res, err := pr.Count(ctx, provider.CountParams{Scope: s, Query: query})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Count)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&q, "query", "q", "", "filter as extended JSON")
	return cmd
}

func newFindCmd(g *globalFlags) *cobra.Command {
	var (
		q, proj, sort string
		page, limit   int64
		withCursor    bool
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Print one page of documents as extended JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.scope()
			if err != nil {
				return err
			}
			query, err := parseDoc("query", q)
			if err != nil {
				return err
			}
			projection, err := parseDoc("projection", proj)
			if err != nil {
				return err
			}
			return g.withProvider(cmd, func(ctx context.Context, pr *provider.Provider) error {
				res, err := pr.Find(ctx, provider.FindParams{
					Scope:         s,
					Query:         query,
					Projection:    projection,
					Page:          page,
					Limit:         limit,
					Sort:          parseSort(sort),
					IncludeCursor: withCursor,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if err := writeDocs(out, res.Records); err != nil {
					return err
				}
				if res.Cursor != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "page %d, %d per page, %d total\n",
						res.Cursor.CurrentPage, res.Cursor.PerPage, res.Cursor.TotalRecords)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q, "query", "q", "", "filter as extended JSON")
	f.StringVarP(&proj, "projection", "p", "", "projection as extended JSON")
	f.StringVarP(&sort, "sort", "s", "", "sort fields, e.g. name,-createdAt (default: newest first)")
	f.Int64Var(&page, "page", provider.DefaultPage, "page number, starting at 1")
	f.Int64VarP(&limit, "limit", "l", provider.DefaultLimit, "documents per page")
	f.BoolVar(&withCursor, "cursor", false, "report paging totals on stderr")
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		q, proj, sort, columns, output string
		limit                          int64
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Stream matching documents as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.scope()
			if err != nil {
				return err
			}
			query, err := parseDoc("query", q)
			if err != nil {
				return err
			}
			projection, err := parseDoc("projection", proj)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			return g.withProvider(cmd, func(ctx context.Context, pr *provider.Provider) error {
				st, err := pr.FindAsStream(ctx, provider.StreamParams{
					Scope:      s,
					Query:      query,
					Projection: projection,
					Sort:       parseSort(sort),
					Limit:      limit,
					Columns:    splitList(columns),
				})
				if err != nil {
					return err
				}
				n, err := st.WriteCSV(ctx, w)
				if err != nil {
					return err
				}
				if g.verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes\n", n)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q, "query", "q", "", "filter as extended JSON")
	f.StringVarP(&proj, "projection", "p", "", "projection as extended JSON")
	f.StringVarP(&sort, "sort", "s", "", "sort fields, e.g. name,-createdAt")
	f.StringVar(&columns, "columns", "", "comma-separated CSV columns (default: fields of the first record)")
	f.Int64VarP(&limit, "limit", "l", -1, "maximum records, -1 for all")
	f.StringVarP(&output, "output", "o", "-", "output file")
	return cmd
}

func newAggregateCmd(g *globalFlags) *cobra.Command {
	var pipeline string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Run an aggregation pipeline and print the results",
		Example: `  tenantstore aggregate -t acme -c providers \
    --pipeline '[{"$group": {"_id": "$category", "total": {"$sum": "$count"}}}]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.scope()
			if err != nil {
				return err
			}
			p, err := parsePipeline(pipeline)
			if err != nil {
				return err
			}
			return g.withProvider(cmd, func(ctx context.Context, pr *provider.Provider) error {
				docs, err := pr.Aggregate(ctx, provider.AggregateParams{Scope: s, Pipeline: p})
				if err != nil {
					return err
				}
				return writeDocs(cmd.OutOrStdout(), docs)
			})
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "pipeline as an extended JSON array")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

// parsePipeline decodes an extended JSON array of stages.
func parsePipeline(s string) (bson.A, error) {
	var wrapper struct {
		Pipeline bson.A `bson:"pipeline"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"pipeline":`+s+`}`), false, &wrapper); err != nil {
		return nil, fmt.Errorf("--pipeline: %w", err)
	}
	return wrapper.Pipeline, nil
}

func writeDocs(w io.Writer, docs []tenantstore.Document) error {
	for _, d := range docs {
		b, err := bson.MarshalExtJSON(d, false, false)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}
