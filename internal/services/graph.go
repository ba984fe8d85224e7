package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/pkg/models"
)

// ErrGraphUnavailable is returned when the variety graph is disabled, its
// circuit breaker is open, or Neo4j fails.
var ErrGraphUnavailable = errors.New("variety graph unavailable")

const defaultRelatedLimit = 10

type graphRunner func(ctx context.Context, mode neo4j.AccessMode, work neo4j.ManagedTransactionWork) (any, error)

// GraphService keeps a Wine-[:MADE_FROM]->Variety graph in Neo4j and answers
// "which wines share a grape with this one". Every call goes through a
// circuit breaker so a struggling Neo4j does not hold up catalog imports.
type GraphService struct {
	run     graphRunner
	breaker *gobreaker.CircuitBreaker[any]
	metrics *MetricsCollector
	logger  *logrus.Logger
}

// NewGraphService returns a disabled service when driver is nil.
func NewGraphService(driver neo4j.DriverWithContext, cfg config.Neo4jConfig, metrics *MetricsCollector, logger *logrus.Logger) *GraphService {
	s := &GraphService{
		metrics: metrics,
		logger:  logger,
	}
	if driver == nil {
		return s
	}

	s.run = func(ctx context.Context, mode neo4j.AccessMode, work neo4j.ManagedTransactionWork) (any, error) {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
		defer session.Close(ctx)

		if mode == neo4j.AccessModeRead {
			return session.ExecuteRead(ctx, work)
		}
		return session.ExecuteWrite(ctx, work)
	}
	s.breaker = newGraphBreaker(cfg, logger)
	return s
}

func newGraphBreaker(cfg config.Neo4jConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "neo4j",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

func (s *GraphService) Enabled() bool {
	return s != nil && s.run != nil
}

func (s *GraphService) execute(ctx context.Context, op string, mode neo4j.AccessMode, work neo4j.ManagedTransactionWork) (any, error) {
	if !s.Enabled() {
		return nil, ErrGraphUnavailable
	}

	result, err := s.breaker.Execute(func() (any, error) {
		return s.run(ctx, mode, work)
	})
	if s.metrics != nil {
		s.metrics.RecordGraphRequest(op, err)
	}
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w: %w", op, ErrGraphUnavailable, err)
	}
	return result, nil
}

// SyncWines merges the wines and their varieties into the graph. It is a
// no-op when the graph is disabled.
func (s *GraphService) SyncWines(ctx context.Context, wines []models.Wine) error {
	if !s.Enabled() || len(wines) == 0 {
		return nil
	}

	cypher := `
		UNWIND $wines AS row
		MERGE (w:Wine {id: row.id})
		SET w.name = row.name, w.wine_type = row.wine_type
		WITH w, row
		UNWIND range(0, size(row.varieties) - 1) AS i
		MERGE (v:Variety {name: row.varieties[i]})
		MERGE (w)-[r:MADE_FROM]->(v)
		SET r.primary = (i = 0)`

	rows := make([]map[string]any, 0, len(wines))
	for _, wine := range wines {
		varieties := wine.Varieties()
		rows = append(rows, map[string]any{
			"id":        wine.ID,
			"name":      wine.Name,
			"wine_type": wine.TypeOrOther(),
			"varieties": varieties,
		})
	}

	_, err := s.execute(ctx, "sync", neo4j.AccessModeWrite, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"wines": rows})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.WithField("wines", len(wines)).Debug("Synchronised wines into variety graph")
	return nil
}

// Clear removes every wine from the graph. Variety nodes are kept.
func (s *GraphService) Clear(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	_, err := s.execute(ctx, "clear", neo4j.AccessModeWrite, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (w:Wine) DETACH DELETE w`, nil)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// RelatedWines returns wines sharing at least one variety with wineID, most
// shared varieties first, then by id.
func (s *GraphService) RelatedWines(ctx context.Context, wineID int64, limit int) ([]models.RelatedWine, error) {
	if limit <= 0 {
		limit = defaultRelatedLimit
	}

	cypher := `
		MATCH (w:Wine {id: $id})-[:MADE_FROM]->(v:Variety)<-[:MADE_FROM]-(other:Wine)
		WHERE other.id <> w.id
		WITH other, collect(DISTINCT v.name) AS shared
		RETURN other.id AS id, other.name AS name, other.wine_type AS wine_type, shared
		ORDER BY size(shared) DESC, other.id ASC
		LIMIT $limit`

	result, err := s.execute(ctx, "related", neo4j.AccessModeRead, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, cypher, map[string]any{
			"id":    wineID,
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}

		related := []models.RelatedWine{}
		for records.Next(ctx) {
			record := records.Record()
			id, _ := record.Get("id")
			name, _ := record.Get("name")
			wineType, _ := record.Get("wine_type")
			shared, _ := record.Get("shared")

			rw := models.RelatedWine{
				SharedVarieties: []string{},
			}
			rw.ID, _ = id.(int64)
			rw.Name, _ = name.(string)
			rw.WineType, _ = wineType.(string)
			if list, ok := shared.([]any); ok {
				for _, v := range list {
					if str, ok := v.(string); ok {
						rw.SharedVarieties = append(rw.SharedVarieties, str)
					}
				}
			}
			related = append(related, rw)
		}
		return related, records.Err()
	})
	if err != nil {
		return nil, err
	}

	return result.([]models.RelatedWine), nil
}
