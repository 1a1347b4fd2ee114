package replay

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/okian/fightlog/internal/adapters/output/ndjson"
	service "github.com/okian/fightlog/internal/app"
	"github.com/okian/fightlog/internal/config"
	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/internal/domain/spells"
	"github.com/okian/fightlog/internal/domain/tracker"
	"github.com/okian/fightlog/pkg/logger"
)

// Run replays the NDJSON stream at cfg.EventsPath through a fresh service,
// times out whatever is still active at the end and returns every finished
// record in emission order.
func Run(ctx context.Context, cfg RunConfig, l logger.Logger) (Summary, error) {
	if l == nil {
		l = logger.OrDiscard("replay")
	}
	started := time.Now()
	var sum Summary

	var engineOpts []tracker.Option
	if cfg.SpellsPath != "" {
		catalog, err := spells.LoadFile(cfg.SpellsPath)
		if err != nil {
			return sum, err
		}
		engineOpts = append(engineOpts, tracker.WithSpellLookup(catalog))
	}

	opts := []service.Option{
		service.WithLogger(l),
		service.WithEngineOptions(engineOpts...),
		service.WithFinishedHook(func(rec encounter.Record) { sum.Records = append(sum.Records, rec) }),
	}
	if cfg.OutPath != "" {
		sink, err := ndjson.New(cfg.OutPath)
		if err != nil {
			return sum, err
		}
		opts = append(opts, service.WithSink(sink))
	}
	svc := service.New(opts...)

	if cfg.TemplatesPath != "" {
		loader, err := config.NewTemplateLoader(cfg.TemplatesPath, config.WithTemplateLogger(l))
		if err == nil {
			err = svc.SetRaidTemplates(ctx, loader.Templates())
		}
		if err != nil {
			_ = svc.Stop(ctx)
			return sum, err
		}
	}

	f, err := os.Open(cfg.EventsPath)
	if err != nil {
		_ = svc.Stop(ctx)
		return sum, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	err = Scan(f, func(ev model.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		svc.HandleEvent(ctx, ev)
		sum.Events++
		return nil
	})
	if stopErr := svc.Stop(context.WithoutCancel(ctx)); err == nil {
		err = stopErr
	}
	sum.Duration = time.Since(started)
	l.Info(ctx, "replay finished",
		logger.Int("events", sum.Events),
		logger.Int("records", len(sum.Records)),
		logger.Duration("duration", sum.Duration),
	)
	return sum, err
}

// PrintSummary writes one row per finished record.
func PrintSummary(w io.Writer, sum Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADVERSARY\tZONE\tSTATUS\tSCOPE\tDURATION\tDAMAGE\tPARTICIPANTS")
	for _, rec := range sum.Records {
		name := ""
		if rec.Adversary != nil {
			name = rec.Adversary.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			shortID(rec.ID), name, rec.Zone, rec.Status, rec.PartyScope,
			rec.UpdatedAt.Sub(rec.StartedAt), rec.TotalDamage(), len(rec.Participants))
	}
	fmt.Fprintf(tw, "\n%d events, %d encounters in %s\n", sum.Events, len(sum.Records), sum.Duration.Round(time.Millisecond))
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
