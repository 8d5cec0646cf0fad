// Command menu-ingest bulk-imports menu items from gzip-compressed JSON
// Lines exports. Items a vendor already offers under the same name are
// skipped, so an export can be replayed.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
	"github.com/xenking/dormdash/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000
	maxLineBytes  = 1 << 20
	recordBuffer  = 1_024
)

// record is one line of an export file.
type record struct {
	VendorID    string          `json:"vendorId"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	IsVeg       bool            `json:"isVeg"`
	IsAvailable *bool           `json:"isAvailable"`
	PrepTime    int             `json:"prepTime"`

	file string
	line int
}

func (r record) input() vendor.MenuInput {
	available := r.IsAvailable == nil || *r.IsAvailable
	return vendor.MenuInput{
		Name:        r.Name,
		Price:       r.Price,
		Description: r.Description,
		Category:    r.Category,
		IsVeg:       r.IsVeg,
		IsAvailable: available,
		PrepTime:    r.PrepTime,
	}
}

func itemKey(vendorID, name string) string {
	return vendorID + "\x00" + strings.ToLower(strings.TrimSpace(name))
}

// nameIndex answers exact name lookups behind the bloom filter.
type nameIndex interface {
	HasName(ctx context.Context, vendorID, name string) (bool, error)
}

type itemCreator interface {
	CreateItem(ctx context.Context, vendorID string, in vendor.MenuInput) (*vendor.MenuItem, error)
}

type stats struct {
	read       int
	inserted   int
	duplicates int
	invalid    int
	unknown    int
}

// importer owns the bloom filter; only the consume goroutine touches it.
type importer struct {
	vendors map[string]bool
	seen    *bloom.BloomFilter
	names   nameIndex
	items   itemCreator
	stats   stats
}

func main() {
	var (
		dataDir     string
		databaseURL string
		capacity    uint
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz menu exports")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "capacity", 1_000_000, "expected number of distinct menu items, sizes the bloom filter")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, capacity); err != nil {
		slog.Error("menu ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("menu ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, capacity uint) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	vendorRepo := postgres.NewVendorRepository(pool)
	menuRepo := postgres.NewMenuRepository(pool)

	vendors, err := vendorRepo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list vendors")
	}
	known := make(map[string]bool, len(vendors))
	for _, v := range vendors {
		known[v.ID] = true
	}

	slog.Info("priming bloom filter", slog.Uint64("capacity", uint64(capacity)))

	seen := bloom.NewWithEstimates(capacity, bloomFPR)
	var existing int
	if err := menuRepo.EachName(ctx, func(vendorID, name string) {
		seen.AddString(itemKey(vendorID, name))
		existing++
	}); err != nil {
		return errors.Wrap(err, "prime bloom filter")
	}

	slog.Info("bloom filter primed", slog.Int("existing_items", existing), slog.Int("files", len(files)))

	imp := &importer{
		vendors: known,
		seen:    seen,
		names:   menuRepo,
		items:   vendor.NewService(vendorRepo, menuRepo, nil),
	}
	if err := imp.ingest(ctx, files); err != nil {
		return err
	}

	slog.Info("menu ingest summary",
		slog.Int("read", imp.stats.read),
		slog.Int("inserted", imp.stats.inserted),
		slog.Int("duplicates", imp.stats.duplicates),
		slog.Int("invalid", imp.stats.invalid),
		slog.Int("unknown_vendor", imp.stats.unknown),
	)
	return nil
}

// ingest decodes every file concurrently and feeds one writer.
func (imp *importer) ingest(ctx context.Context, files []string) error {
	g, ctx := errgroup.WithContext(ctx)
	records := make(chan record, recordBuffer)

	var readers sync.WaitGroup
	for _, f := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			return readFile(ctx, f, records)
		})
	}
	g.Go(func() error {
		readers.Wait()
		close(records)
		return nil
	})
	g.Go(func() error {
		return imp.consume(ctx, records)
	})

	return g.Wait()
}

func (imp *importer) consume(ctx context.Context, records <-chan record) error {
	for rec := range records {
		imp.stats.read++
		if imp.stats.read%progressEvery == 0 {
			slog.Info("ingest progress",
				slog.Int("read", imp.stats.read),
				slog.Int("inserted", imp.stats.inserted),
			)
		}

		if !imp.vendors[rec.VendorID] {
			imp.stats.unknown++
			continue
		}

		key := itemKey(rec.VendorID, rec.Name)
		// A bloom miss proves the item is new; a hit needs the exact check.
		if imp.seen.TestString(key) {
			exists, err := imp.names.HasName(ctx, rec.VendorID, strings.TrimSpace(rec.Name))
			if err != nil {
				return err
			}
			if exists {
				imp.stats.duplicates++
				continue
			}
		}

		if _, err := imp.items.CreateItem(ctx, rec.VendorID, rec.input()); err != nil {
			if validation.IsValidation(err) {
				imp.stats.invalid++
				slog.Warn("invalid menu item",
					slog.String("file", rec.file),
					slog.Int("line", rec.line),
					slog.String("error", err.Error()),
				)
				continue
			}
			return errors.Wrapf(err, "insert %s:%d", rec.file, rec.line)
		}
		imp.seen.AddString(key)
		imp.stats.inserted++
	}
	return ctx.Err()
}

// readFile decodes path line by line and sends each record to out.
// Malformed lines are logged and skipped.
func readFile(ctx context.Context, path string, out chan<- record) error {
	name := filepath.Base(path)
	line := 0
	return streamGzFile(ctx, path, func(raw []byte) error {
		line++
		if len(strings.TrimSpace(string(raw))) == 0 {
			return nil
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			slog.Warn("malformed line", slog.String("file", name), slog.Int("line", line), slog.String("error", err.Error()))
			return nil
		}
		rec.file, rec.line = name, line

		select {
		case out <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
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
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
