package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/stitchbag/internal/domain/catalog"
)

const maxLineSize = 1 << 20

// Stats counts upserted records per kind.
type Stats map[catalog.Kind]int

// Total returns the number of upserted records.
func (s Stats) Total() int {
	var n int
	for _, c := range s {
		n += c
	}
	return n
}

// Files decodes every file concurrently and upserts the records through w
// from a single goroutine. Fabric colors are written after everything else
// so that their fabric exists regardless of file order.
func Files(ctx context.Context, w catalog.Writer, paths []string) (Stats, error) {
	g, ctx := errgroup.WithContext(ctx)
	records := make(chan Record, 256)

	decoders, dctx := errgroup.WithContext(ctx)
	for _, path := range paths {
		decoders.Go(func() error {
			return decodeFile(dctx, path, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return decoders.Wait()
	})

	stats := make(Stats)
	g.Go(func() error {
		var colors []Record
		for rec := range records {
			if rec.Kind == catalog.KindFabricColor {
				colors = append(colors, rec)
				continue
			}
			if err := apply(ctx, w, rec, stats); err != nil {
				return err
			}
		}
		for _, rec := range colors {
			if err := apply(ctx, w, rec, stats); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func apply(ctx context.Context, w catalog.Writer, rec Record, stats Stats) error {
	if err := rec.Apply(ctx, w); err != nil {
		return errors.Wrapf(err, "upsert %s %s", rec.Kind, rec.ID())
	}
	stats[rec.Kind]++
	return nil
}

func decodeFile(ctx context.Context, path string, out chan<- Record) error {
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

	n, err := Stream(ctx, gz, out)
	if err != nil {
		return errors.Wrap(err, path)
	}
	zctx.From(ctx).Info("Feed decoded", zap.String("file", path), zap.Int("records", n))
	return nil
}

// Stream decodes JSON lines from r and sends the records to out. Blank
// lines are skipped. It returns the number of records sent.
func Stream(ctx context.Context, r io.Reader, out chan<- Record) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var sent, line int
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := Decode(b)
		if err != nil {
			return sent, errors.Wrapf(err, "line %d", line)
		}
		select {
		case out <- rec:
			sent++
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return sent, errors.Wrap(err, "scan")
	}
	return sent, nil
}
