package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/webhook"
	"github.com/xenking/storefront-checkout/internal/notify"
	"github.com/xenking/storefront-checkout/internal/processor/stripe"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

const (
	bloomFPR     = 0.001
	maxEventSize = 1 << 20
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Manage processed payment events",
	}

	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Replay exported Stripe events into the order ledger",
		Long: `Replay exported Stripe events into the order ledger.

Reads every *.jsonl.gz file in --dir (one event JSON object per line), drops
event ids seen in earlier lines or files, and runs the rest through the same
dispatcher as the webhook route, oldest first. Events already processed by
the API are skipped by the shared event log.

Examples:
  storefront-admin events backfill --dir exports --database-url postgres://...
  storefront-admin events backfill --dir exports --dry-run`,
		Args: cobra.NoArgs,
		RunE: runBackfill,
	}
	backfill.Flags().String("dir", "exports", "Directory with *.jsonl.gz event exports")
	backfill.Flags().String("database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	backfill.Flags().Bool("dry-run", false, "Parse and deduplicate only")
	backfill.Flags().BoolP("verbose", "v", false, "Log every dispatched event")

	cmd.AddCommand(backfill)
	return cmd
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var (
		dir, _         = cmd.Flags().GetString("dir")
		databaseURL, _ = cmd.Flags().GetString("database-url")
		dryRun, _      = cmd.Flags().GetBool("dry-run")
		verbose, _     = cmd.Flags().GetBool("verbose")
	)

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list exports")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dir)
	}
	sort.Strings(files)

	slog.Info("reading exports", slog.Int("files", len(files)))
	events, stats, err := collectEvents(ctx, files)
	if err != nil {
		return err
	}
	slog.Info("exports read",
		slog.Int("lines", stats.Lines),
		slog.Int("malformed", stats.Malformed),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("events", len(events)),
	)
	if dryRun {
		return nil
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	dispatcher, err := webhook.NewDispatcher(webhook.Deps{
		Verifier:      exportVerifier{},
		Events:        postgres.NewEventRepository(pool),
		Orders:        order.NewService(postgres.NewOrderRepository(pool)),
		Notifier:      notify.Log{},
		MeterProvider: metricnoop.NewMeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}

	if verbose {
		lg, err := zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "create logger")
		}
		defer func() { _ = lg.Sync() }()
		ctx = zctx.Base(ctx, lg)
	}

	res := replay(ctx, dispatcher, events)
	slog.Info("backfill finished",
		slog.Int("processed", res.Processed),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("ignored", res.Ignored),
		slog.Int("failed", res.Failed),
	)
	if res.Failed > 0 {
		return errors.Errorf("%d events failed, rerun to retry them", res.Failed)
	}
	return nil
}

// exportVerifier rejects signed deliveries. Exported events come from the
// authenticated API and are passed to Process directly.
type exportVerifier struct{}

func (exportVerifier) Verify([]byte, string) (*webhook.Envelope, error) {
	return nil, errors.New("exports are not signed")
}

type collectStats struct {
	Lines      int
	Malformed  int
	Duplicates int
}

// collectEvents parses files concurrently and merges them in file order,
// keeping the first occurrence of every event id. The result is sorted by
// creation time.
func collectEvents(ctx context.Context, files []string) ([]webhook.Envelope, collectStats, error) {
	perFile := make([][]webhook.Envelope, len(files))
	lines := make([]int, len(files))
	malformed := make([]int, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			return streamGzFile(ctx, f, func(line []byte) {
				lines[i]++
				env, err := stripe.ParseEvent(line)
				if err != nil {
					malformed[i]++
					slog.Warn("skipping malformed event",
						slog.String("file", filepath.Base(f)),
						slog.Int("line", lines[i]),
						slog.String("error", err.Error()),
					)
					return
				}
				perFile[i] = append(perFile[i], *env)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, collectStats{}, err
	}

	var stats collectStats
	for i := range files {
		stats.Lines += lines[i]
		stats.Malformed += malformed[i]
	}

	all := slices.Concat(perFile...)
	candidates := duplicateCandidates(all)
	seen := make(map[string]struct{}, len(candidates))
	out := make([]webhook.Envelope, 0, len(all))
	for _, env := range all {
		if _, ok := candidates[env.ID]; ok {
			if _, dup := seen[env.ID]; dup {
				stats.Duplicates++
				continue
			}
			seen[env.ID] = struct{}{}
		}
		out = append(out, env)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out, stats, nil
}

// duplicateCandidates returns the ids that may occur more than once: every
// id the filter had already seen when it came up again. Real duplicates are
// always included; false positives are settled by the exact pass, which
// only has to track the candidates instead of every id.
func duplicateCandidates(events []webhook.Envelope) map[string]struct{} {
	filter := bloom.NewWithEstimates(uint(max(len(events), 1)), bloomFPR)
	candidates := make(map[string]struct{})
	for _, env := range events {
		if filter.TestOrAddString(env.ID) {
			candidates[env.ID] = struct{}{}
		}
	}
	return candidates
}

// processor runs an authenticated event.
type processor interface {
	Process(ctx context.Context, env webhook.Envelope) (webhook.Ack, error)
}

type replayResult struct {
	Processed  int
	Duplicates int
	Ignored    int
	Failed     int
}

// replay processes events one by one so that later events of an intent see
// the effects of earlier ones. Failures are logged and counted.
func replay(ctx context.Context, p processor, events []webhook.Envelope) replayResult {
	var res replayResult
	for i, env := range events {
		if ctx.Err() != nil {
			res.Failed += len(events) - i
			break
		}
		ack, err := p.Process(ctx, env)
		switch {
		case err != nil:
			res.Failed++
			slog.Error("event failed",
				slog.String("event", env.ID),
				slog.String("type", env.Type),
				slog.String("error", err.Error()),
			)
		case ack.Duplicate:
			res.Duplicates++
		case ack.Ignored:
			res.Ignored++
		default:
			res.Processed++
		}
	}
	return res
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty
// line. The line is only valid during the call.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxEventSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fn(line)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
