package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// Adapter searches a knowledge graph over the Neo4j full-text index and
// maps matched nodes to evidence. The graph is read-only for retrieval.
type Adapter struct {
	driver   neo4j.DriverWithContext
	database string
}

const searchCypher = `
CALL db.index.fulltext.queryNodes('evidence_text', $query) YIELD node, score
RETURN node.title AS title, node.text AS text, node.url AS url, score
ORDER BY score DESC
LIMIT $limit`

func New(uri, user, password, database string) (*Adapter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Adapter{driver: driver, database: database}, nil
}

func (a *Adapter) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}

func (a *Adapter) Channel() domain.Channel { return domain.ChannelKG }

func (a *Adapter) Search(ctx context.Context, text string, topK int) ([]domain.Evidence, error) {
	if topK <= 0 {
		topK = 5
	}
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: a.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	records, err := session.Run(ctx, searchCypher, map[string]any{
		"query": text,
		"limit": topK,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j fulltext search: %w", err)
	}

	out := make([]domain.Evidence, 0, topK)
	for records.Next(ctx) {
		record := records.Record()
		out = append(out, domain.Evidence{
			Title:     stringValue(record, "title"),
			Text:      stringValue(record, "text"),
			SourceURL: stringValue(record, "url"),
			Channel:   domain.ChannelKG,
			RawScore:  floatValue(record, "score"),
		})
	}
	if err := records.Err(); err != nil {
		return nil, fmt.Errorf("neo4j result stream: %w", err)
	}
	return out, nil
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func floatValue(record *neo4j.Record, key string) float64 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0
	}
	f, _ := v.(float64)
	return f
}
