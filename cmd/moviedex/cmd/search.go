package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/moviedex/internal/domain"
	"github.com/kailas-cloud/moviedex/internal/domain/search/query"
	"github.com/kailas-cloud/moviedex/internal/domain/search/result"
	searchuc "github.com/kailas-cloud/moviedex/internal/usecase/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	size     int
	from     int
	maxGaps  int
	fields   []string
	mode     string
	params   []string
	maxField string
	maxValue float64
}

// Search kinds accepted as the first argument.
const (
	kindAll       = "all"
	kindMatch     = "match"
	kindPhrase    = "phrase"
	kindPrefix    = "prefix"
	kindIntervals = "intervals"
	kindMulti     = "multi"
	kindTemplate  = "template"
)

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <kind> [field] [text]",
		Short: "Run one query and print the hits as JSON",
		Long: `Run one query against the index and print the hits as JSON.

Kinds:
  all                          every movie
  match|phrase|prefix <field> <text>
  intervals <field> <text>     terms in order, at most --max-gaps apart
  multi <text> --fields a,b    best field of several
  template <id> --param k=v    stored mustache template

Examples:
  moviedex search all --size 5
  moviedex search prefix title Toy
  moviedex search match title toy --max-field movieId --max-value 10
  moviedex search multi drama --fields title,genres
  moviedex search template query-script --param field=title --param value=toy`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, err := connectElastic(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			svc := searchuc.New(engine, a.logger).WithDefaultSize(a.cfg.Search.DefaultSize)

			var page result.Page
			if args[0] == kindTemplate {
				t, err := templateFromArgs(args[1:], opts.params)
				if err != nil {
					return err
				}
				page, err = svc.ByTemplate(ctx, a.cfg.Index.Name, t)
				if err != nil {
					return err
				}
			} else {
				req, err := requestFromArgs(args, opts)
				if err != nil {
					return err
				}
				page, err = svc.Search(ctx, a.cfg.Index.Name, req)
				if err != nil {
					return err
				}
			}
			return printPage(cmd, page)
		},
	}

	cmd.Flags().IntVarP(&opts.size, "size", "n", 0, "Maximum number of hits (default search.default_size)")
	cmd.Flags().IntVar(&opts.from, "from", 0, "Offset of the first hit")
	cmd.Flags().IntVar(&opts.maxGaps, "max-gaps", searchuc.DefaultIntervalGaps, "Allowed gap for intervals")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "Fields for multi")
	cmd.Flags().StringVar(&opts.mode, "mode", string(query.BestFields), "multi_match type for multi")
	cmd.Flags().StringArrayVar(&opts.params, "param", nil, "Template parameter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.maxField, "max-field", "", "Numeric field bounded by --max-value")
	cmd.Flags().Float64Var(&opts.maxValue, "max-value", 0, "Upper bound (inclusive) for --max-field")

	return cmd
}

// requestFromArgs maps positional arguments and flags to a query request.
func requestFromArgs(args []string, opts searchOptions) (query.Request, error) {
	var q query.Intent
	kind, rest := args[0], args[1:]
	switch kind {
	case kindAll:
		q = query.MatchAll{}
	case kindMulti:
		if len(rest) == 0 {
			return query.Request{}, fmt.Errorf("multi: text is required")
		}
		q = query.MultiMatch{Fields: opts.fields, Text: strings.Join(rest, " "), Type: query.MultiMatchType(opts.mode)}
	case kindMatch, kindPhrase, kindPrefix, kindIntervals:
		if len(rest) < 2 {
			return query.Request{}, fmt.Errorf("%s: field and text are required", kind)
		}
		field, text := rest[0], strings.Join(rest[1:], " ")
		switch kind {
		case kindMatch:
			q = query.Match{Field: field, Text: text}
		case kindPhrase:
			q = query.Phrase{Field: field, Text: text}
		case kindPrefix:
			q = query.PhrasePrefix{Field: field, Prefix: text}
		default:
			q = query.Intervals{Field: field, Pattern: text, MaxGaps: opts.maxGaps, Ordered: true}
		}
	default:
		return query.Request{}, fmt.Errorf("unknown search kind %q", kind)
	}

	if opts.maxField != "" {
		q = query.Bool{Must: []query.Intent{
			q, query.Range{Field: opts.maxField, Comparator: query.LTE, Bound: opts.maxValue},
		}}
	}
	return query.Request{Query: q, Size: opts.size, From: opts.from}, nil
}

func templateFromArgs(rest, params []string) (query.Template, error) {
	if len(rest) != 1 {
		return query.Template{}, fmt.Errorf("template: exactly one template id is required")
	}
	t := query.Template{ID: rest[0], Params: make(map[string]any, len(params))}
	for _, p := range params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return query.Template{}, fmt.Errorf("template: param %q must be key=value", p)
		}
		t.Params[k] = v
	}
	return t, nil
}

type hitJSON struct {
	ID    string       `json:"id"`
	Score float64      `json:"score"`
	Movie domain.Movie `json:"movie"`
}

func printPage(cmd *cobra.Command, page result.Page) error {
	out := struct {
		Total int       `json:"total"`
		Hits  []hitJSON `json:"hits"`
	}{Total: page.Total, Hits: make([]hitJSON, len(page.Results))}
	for i := range page.Results {
		r := &page.Results[i]
		out.Hits[i] = hitJSON{ID: r.ID(), Score: r.Score(), Movie: r.Movie()}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
