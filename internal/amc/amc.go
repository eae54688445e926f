// Package amc is the antimicrobial-consumption collaborator triggered
// after successful surveillance imports. It pulls prescription and
// admission feeds from the hospital system and computes defined daily
// dose (DDD) utilization against a static ATC reference table.
package amc

import (
	"context"
	"log/slog"

	"github.com/intellisoft-ke/findams/internal/batch"
)

// Trigger is notified after each successfully recorded batch.
type Trigger interface {
	RunCompleted(ctx context.Context, summary batch.Summary)
}

// Disabled is the no-op Trigger used when no consumption feed is
// configured.
type Disabled struct{}

func (Disabled) RunCompleted(context.Context, batch.Summary) {}

// Collector computes DDD utilization from the prescriptions feed after
// every completed batch. Feed or reference failures are logged only;
// consumption is advisory and never affects surveillance imports.
type Collector struct {
	feed *FeedClient
	ref  *Reference
	log  *slog.Logger
}

// NewCollector wires a Collector.
func NewCollector(feed *FeedClient, ref *Reference, log *slog.Logger) *Collector {
	return &Collector{feed: feed, ref: ref, log: log}
}

// RunCompleted fetches current prescriptions and logs per-prescription
// DDD utilization.
func (c *Collector) RunCompleted(ctx context.Context, summary batch.Summary) {
	prescriptions, err := c.feed.AntibioticPrescriptions(ctx, FeedQuery{})
	if err != nil {
		c.log.Error("consumption feed unavailable", "batch", summary.BatchNo, "error", err)
		return
	}

	for _, p := range prescriptions {
		u, err := Utilization(p, c.ref)
		if err != nil {
			c.log.Warn("ddd utilization not computable",
				"atc_code", p.AtcCode,
				"error", err)
			continue
		}
		c.log.Info("ddd utilization",
			"batch", summary.BatchNo,
			"atc_code", p.AtcCode,
			"dose", p.Dose,
			"ddd", u.DDD,
			"utilization", u.Value)
	}

	if admissions, err := c.feed.DailyAdmissions(ctx, FeedQuery{}); err != nil {
		c.log.Warn("admissions feed unavailable", "batch", summary.BatchNo, "error", err)
	} else {
		c.log.Info("daily admissions fetched", "batch", summary.BatchNo, "patients", len(admissions.Patients))
	}
}
