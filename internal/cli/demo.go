package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/statekit/statekit"
	"github.com/statekit/statekit/sqlitestore"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Config       string
	Database     string
	Host         string
	PollInterval time.Duration
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the scripted state container demo",
		Long: `Run a scripted tour of the state container: action dispatch, remote
queries with cache hits and forced refetches, polling, and persistence.

With --db the state tree survives across runs (re-run to see hydration).

Example:
  statekit demo
  statekit demo --db ./demo.db --poll 500ms --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML demo config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for persistence")
	cmd.Flags().StringVar(&opts.Host, "host", "", "external upstream base URL (default: built-in sample server)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll", 0, "polling interval for the polling segment (0 disables)")

	return cmd
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg := &DemoConfig{PollTicks: 3}
	if opts.Config != "" {
		loaded, err := LoadDemoConfig(opts.Config)
		if err != nil {
			return err
		}
		cfg = loaded
		if cfg.PollTicks == 0 {
			cfg.PollTicks = 3
		}
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.PollInterval > 0 {
		cfg.PollInterval = Duration(opts.PollInterval)
	}
	pollEvery := time.Duration(cfg.PollInterval)

	host := cfg.Host
	if host == "" {
		upstream, err := startSampleServer()
		if err != nil {
			return fmt.Errorf("start sample upstream: %w", err)
		}
		defer upstream.Close()
		host = upstream.URL()
		fmt.Fprintf(out, "sample upstream listening at %s\n", host)
	}

	var storage statekit.Storage
	if cfg.Database != "" {
		db, err := sqlitestore.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		storage = db
	} else {
		storage = statekit.NewMemoryStorage()
	}

	st, err := statekit.New(statekit.WithStorage(storage, "demo"))
	if err != nil {
		return err
	}

	if err := st.Use(
		statekit.Slice{Name: "counter", Initial: map[string]any{"count": 0}},
		statekit.Slice{Name: "products", Initial: map[string]any{}},
	); err != nil {
		return err
	}

	watch, err := st.Watch(func(c statekit.Change) {
		fmt.Fprintf(out, "  change: slice=%s tag=%s version=%d\n", c.Type, c.TagType, c.Version)
	}, "counter", "products")
	if err != nil {
		return err
	}
	defer st.RemoveListener(watch)

	creators, err := st.RegisterAction(statekit.ActionSet{
		Type: "counter",
		Reducers: map[string]statekit.Reducer{
			"increment": func(slice, payload any) (any, error) {
				cur, _ := slice.(map[string]any)
				next := make(map[string]any, len(cur))
				for k, v := range cur {
					next[k] = v
				}
				next["count"] = asNumber(next["count"]) + asNumber(payload)
				return next, nil
			},
		},
	})
	if err != nil {
		return err
	}

	queries, err := st.RegisterQuery(statekit.QuerySet{
		Type: "products",
		Host: host,
		Endpoints: map[string]statekit.EndpointFunc{
			"all": func(any) statekit.Endpoint {
				return statekit.Endpoint{Query: "/products/all", TagType: "all"}
			},
			"byID": func(payload any) statekit.Endpoint {
				id := int(asNumber(payload))
				return statekit.Endpoint{
					Query:      fmt.Sprintf("/products/%d", id),
					TagType:    "current",
					CacheLogic: map[string]any{"id": id},
				}
			},
			"broken": func(any) statekit.Endpoint {
				return statekit.Endpoint{Query: "/fail", TagType: "broken"}
			},
		},
	})
	if err != nil {
		return err
	}
	useIncrement := creators["UseIncrement"]
	useAll, useByID, useBroken := queries["UseAll"], queries["UseByID"], queries["UseBroken"]

	fmt.Fprintln(out, "dispatching two increments")
	for _, delta := range []int{1, 2} {
		if err := st.Dispatch("counter", useIncrement(delta)); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "fetching product list")
	if _, err := useAll(ctx, nil, statekit.QueryOptions{}); err != nil {
		return err
	}

	fmt.Fprintln(out, "fetching product 1 (network)")
	if _, err := useByID(ctx, 1, statekit.QueryOptions{}); err != nil {
		return err
	}

	fmt.Fprintln(out, "fetching product 1 again (cache hit, no network)")
	if _, err := useByID(ctx, 1, statekit.QueryOptions{}); err != nil {
		return err
	}

	fmt.Fprintln(out, "forcing a refetch of product 1")
	handle, err := useByID(ctx, 1, statekit.QueryOptions{Force: true})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "refetching through the handle")
	if err := handle.Refetch(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "listening on product 2")
	listen, err := st.Listen(ctx, func(ctx context.Context) error {
		_, err := useByID(ctx, 2, statekit.QueryOptions{})
		return err
	}, statekit.ListenCallbacks{
		OnLoading: func() { fmt.Fprintln(out, "  loading...") },
		OnError:   func() { fmt.Fprintln(out, "  query delivered no data") },
		OnSuccess: func(state any) { fmt.Fprintf(out, "  query delivered: %v\n", state) },
	})
	if err != nil {
		return err
	}
	defer listen.Stop()

	fmt.Fprintln(out, "hitting the failing endpoint")
	if _, err := useBroken(ctx, nil, statekit.QueryOptions{}); err != nil {
		fmt.Fprintf(out, "  got expected error: %v\n", err)
	}

	if pollEvery > 0 {
		fmt.Fprintf(out, "polling product list every %s for %d ticks\n", pollEvery, cfg.PollTicks)
		poll, err := useAll(ctx, nil, statekit.QueryOptions{PollInterval: pollEvery})
		if err != nil {
			return err
		}
		time.Sleep(time.Duration(cfg.PollTicks) * pollEvery)
		poll.Poller.Stop()
		fmt.Fprintln(out, "poller stopped")
	}

	printState(out, st)
	return nil
}

// printState dumps the final state tree as indented JSON.
func printState(out io.Writer, st *statekit.Store) {
	state := st.Select(func(state map[string]any) any { return state })
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "final state unprintable: %v\n", err)
		return
	}
	fmt.Fprintf(out, "final state (version %d):\n%s\n", st.Version(), raw)
}

// asNumber coerces the numeric types that show up in demo payloads and
// JSON-hydrated state.
func asNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
