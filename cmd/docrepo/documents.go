package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgo/docrepo/internal/docstore"
	"github.com/forgo/docrepo/internal/model"
	"github.com/forgo/docrepo/internal/repository"
)

func documents(s *session, collection string) *repository.DocumentRepository[map[string]any] {
	return repository.NewDocumentRepository[map[string]any](s.store, collection, repository.StateMap)
}

func newGetCmd(c *cli) *cobra.Command {
	var stateOnly bool
	cmd := &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Print one document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id := args[0], args[1]
			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				repo := documents(s, collection)
				if stateOnly {
					state, err := repo.NeedDocumentState(ctx, id)
					if err != nil {
						return err
					}
					var out any
					if state != nil {
						out = *state
					}
					return render(cmd.OutOrStdout(), c.output, out)
				}
				doc, err := repo.NeedDocument(ctx, id)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), c.output, model.DocumentResponse{ID: id, Document: doc})
			})
		},
	}
	cmd.Flags().BoolVar(&stateOnly, "state", false, "print only the decoded state member")
	return cmd
}

// noLimit is the --limit default, meaning every match.
const noLimit = -1

// queryFlags are the filter and pagination flags shared by find and count.
type queryFlags struct {
	filter string
	skip   int
	limit  int
	order  string
	sel    string
}

func (q *queryFlags) parseFilter() (docstore.Filter, error) {
	return docstore.ParseFilter([]byte(q.filter))
}

func (q *queryFlags) options() ([]docstore.FindOption, error) {
	opts, err := docstore.ParseOrder(q.order)
	if err != nil {
		return nil, err
	}
	if q.skip != 0 {
		opts = append(opts, docstore.Skip(q.skip))
	}
	switch {
	case q.limit == noLimit:
	case q.limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative, got %d", docstore.ErrInvalidQuery, q.limit)
	default:
		opts = append(opts, docstore.Limit(q.limit))
	}
	return opts, nil
}

func newFindCmd(c *cli) *cobra.Command {
	var (
		q      queryFlags
		states bool
	)
	cmd := &cobra.Command{
		Use:   "find <collection>",
		Short: "Query documents",
		Long: `Print the documents of a collection that match --filter.

Without --order, documents are ordered by id. --select projects each
document onto "path" or "path:alias" items, and --states prints the
decodable "state" members instead of whole documents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := q.parseFilter()
			if err != nil {
				return err
			}
			opts, err := q.options()
			if err != nil {
				return err
			}
			if states && q.sel != "" {
				return errors.New("--states and --select cannot be combined")
			}

			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				repo := documents(s, args[0])
				switch {
				case states:
					found, err := repo.FindDocumentStates(ctx, filter, opts...)
					if err != nil {
						return err
					}
					out := make([]map[string]any, 0, len(found))
					for _, st := range found {
						out = append(out, *st)
					}
					return render(cmd.OutOrStdout(), c.output, out)
				case q.sel != "":
					sel, err := docstore.ParseSelect(q.sel)
					if err != nil {
						return err
					}
					docs, err := docstore.Collect(repo.FindPartialDocuments(ctx, sel, filter, opts...))
					if err != nil {
						return err
					}
					return render(cmd.OutOrStdout(), c.output, docs)
				default:
					docs, err := docstore.Collect(repo.FindDocuments(ctx, filter, opts...))
					if err != nil {
						return err
					}
					return render(cmd.OutOrStdout(), c.output, docs)
				}
			})
		},
	}
	cmd.Flags().StringVar(&q.filter, "filter", "", "JSON filter (default: every document)")
	cmd.Flags().IntVar(&q.skip, "skip", 0, "skip the first n matches")
	cmd.Flags().IntVar(&q.limit, "limit", noLimit, "return at most n documents (default: no limit)")
	cmd.Flags().StringVar(&q.order, "order", "", `sort fields, "-field" for descending, comma separated`)
	cmd.Flags().StringVar(&q.sel, "select", "", `projection, "path" or "path:alias", comma separated`)
	cmd.Flags().BoolVar(&states, "states", false, "print decoded state members")
	return cmd
}

func newCountCmd(c *cli) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count matching documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := q.parseFilter()
			if err != nil {
				return err
			}
			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				n, err := s.store.CountDocs(ctx, args[0], filter)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), c.output, map[string]int{"count": n})
			})
		},
	}
	cmd.Flags().StringVar(&q.filter, "filter", "", "JSON filter (default: every document)")
	return cmd
}

func newPutCmd(c *cli) *cobra.Command {
	var (
		body    string
		replace bool
		create  bool
	)
	cmd := &cobra.Command{
		Use:   "put <collection> [id] --doc JSON",
		Short: "Write a document",
		Long: `Write a document given as a JSON object.

By default the body is merged into an existing document, or stored as a new
one (upsert). --replace overwrites an existing document and fails when it is
missing; --create fails when the id is taken. Without an id a new one is
generated and the document is created.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if replace && create {
				return errors.New("--replace and --create cannot be combined")
			}
			var doc docstore.Document
			if err := json.Unmarshal([]byte(body), &doc); err != nil || doc == nil {
				return errors.New("--doc must be a JSON object")
			}
			collection := args[0]
			id := ""
			if len(args) == 2 {
				id = args[1]
			}
			if id == "" {
				id = docstore.NewID()
				create = true
			}
			if errs := model.ValidateDocumentID(id); len(errs) > 0 {
				return fmt.Errorf("invalid id %q: %s", id, errs[0].Message)
			}

			doc["id"] = id

			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				repo := documents(s, collection)
				var err error
				switch {
				case create:
					if err = repo.DontNeedDocument(ctx, id); err == nil {
						err = s.store.AddDoc(ctx, collection, id, doc)
					}
				case replace:
					if _, err = repo.NeedDocument(ctx, id); err == nil {
						err = s.store.ReplaceDoc(ctx, collection, id, doc)
					}
				default:
					err = s.store.UpsertDoc(ctx, collection, id, doc)
				}
				if err != nil {
					return err
				}
				stored, err := repo.NeedDocument(ctx, id)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), c.output, model.DocumentResponse{ID: id, Document: stored})
			})
		},
	}
	cmd.Flags().StringVar(&body, "doc", "", "document body as a JSON object")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite an existing document")
	cmd.Flags().BoolVar(&create, "create", false, "fail if the document exists")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	var missingOK bool
	cmd := &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id := args[0], args[1]
			return c.withStore(cmd, func(ctx context.Context, s *session) error {
				if _, err := documents(s, collection).NeedDocument(ctx, id); err != nil {
					if missingOK && errors.Is(err, repository.ErrNotFound) {
						return nil
					}
					return err
				}
				if err := s.store.DeleteDoc(ctx, collection, id); err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), c.output, map[string]string{"deleted": id})
			})
		},
	}
	cmd.Flags().BoolVar(&missingOK, "missing-ok", false, "succeed when the document does not exist")
	return cmd
}
