package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// BuildMessage is the payload of a graph build job.
type BuildMessage struct {
	TenantID string `json:"tenant_id"`
	Force    bool   `json:"force"`
}

// Locker serializes work on a key. *leaselock.Client implements it.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// SnapshotWriter stores the exported graph of a tenant.
type SnapshotWriter func(ctx context.Context, snapshot *common.Snapshot) error

// BuildHandler runs graph build jobs.
//
// Summarize and Snapshot are optional follow-up steps. Their failures are
// logged and do not fail the job, since the graph itself is already built.
type BuildHandler struct {
	Graph   *graph.GraphClient
	Locks   Locker
	LockTTL time.Duration

	Summarize *graph.SummarizeParams
	Snapshot  SnapshotWriter
}

// ParseBuildMessage decodes and validates a build job payload.
func ParseBuildMessage(msg string) (*BuildMessage, error) {
	data := new(BuildMessage)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return nil, fmt.Errorf("failed to decode build message: %w", err)
	}
	if data.TenantID == "" {
		return nil, graph.ErrTenantRequired
	}
	return data, nil
}

// ProcessBuildMessage builds the graph of the tenant named in msg while
// holding the tenant's build lease. Builds of the same tenant wait for each
// other; builds of different tenants run independently.
func (h *BuildHandler) ProcessBuildMessage(ctx context.Context, msg string) error {
	data, err := ParseBuildMessage(msg)
	if err != nil {
		return err
	}

	ttl := h.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	logger.Debug("[Queue] Acquiring build lease", "tenant_id", data.TenantID)
	return h.Locks.WithLease(ctx, leaselock.GraphBuildKey(data.TenantID), leaselock.Options{
		TTL:         ttl,
		Wait:        true,
		TokenPrefix: fmt.Sprintf("graph-build/%s/", data.TenantID),
	}, func(ctx context.Context) error {
		res, err := h.Graph.Build(ctx, data.TenantID, data.Force)
		if err != nil {
			if errors.Is(context.Cause(ctx), leaselock.ErrLost) {
				logger.Warn("[Queue] Build lease lost", "tenant_id", data.TenantID)
			}
			return fmt.Errorf("failed to build graph: %w", err)
		}

		if h.Summarize != nil && res.Communities > 0 {
			if _, err := h.Graph.SummarizeCommunities(ctx, data.TenantID, *h.Summarize); err != nil {
				logger.Warn("[Queue] Community summaries failed", "tenant_id", data.TenantID, "err", err)
			}
		}

		if h.Snapshot != nil {
			snapshot, err := h.Graph.Snapshot(ctx, data.TenantID)
			if err != nil {
				logger.Warn("[Queue] Failed to read snapshot", "tenant_id", data.TenantID, "err", err)
				return nil
			}
			if err := h.Snapshot(ctx, snapshot); err != nil {
				logger.Warn("[Queue] Failed to store snapshot", "tenant_id", data.TenantID, "err", err)
			}
		}

		return nil
	})
}

// EnqueueBuild publishes a build job for the worker.
func EnqueueBuild(ch *amqp091.Channel, msg BuildMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return PublishFIFO(ch, BuildQueue, data)
}
