package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"
)

// Link inserts a directed edge. Unlike the original, which conflates a
// duplicate edge and a missing endpoint into one IntegrityError-driven nil
// result, this pre-checks both endpoints so the two failure modes are
// distinguishable (not_found vs duplicate).
func (db *DB) Link(ctx context.Context, source, target int64, relation model.LinkRelation, metadata map[string]any) (int64, bool, error) {
	metaJSON, _ := json.Marshal(metadata)
	if metadata == nil {
		metaJSON = []byte("{}")
	}

	var id int64
	var duplicate bool
	err := db.withTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&memoryRow{}).Where("id = ?", source).Count(&count).Error; err != nil {
			return storereg.StorageError{Op: "link", Err: err}
		}
		if count == 0 {
			return storereg.NotFoundError{Resource: "memory", ID: source}
		}
		count = 0
		if err := tx.Model(&memoryRow{}).Where("id = ?", target).Count(&count).Error; err != nil {
			return storereg.StorageError{Op: "link", Err: err}
		}
		if count == 0 {
			return storereg.NotFoundError{Resource: "memory", ID: target}
		}

		var existing linkRow
		if err := tx.Where("source_id = ? AND target_id = ? AND relation = ?", source, target, string(relation)).Take(&existing).Error; err == nil {
			duplicate = true
			id = existing.ID
			return nil
		}

		row := linkRow{
			SourceID:  source,
			TargetID:  target,
			Relation:  string(relation),
			Metadata:  string(metaJSON),
			CreatedAt: formatTime(time.Now()),
		}
		if err := tx.Create(&row).Error; err != nil {
			return storereg.StorageError{Op: "link", Err: err}
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, duplicate, nil
}

// Unlink deletes an edge by id.
func (db *DB) Unlink(ctx context.Context, linkID int64) (bool, error) {
	var removed bool
	err := db.withTx(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ?", linkID).Delete(&linkRow{})
		if res.Error != nil {
			return storereg.StorageError{Op: "unlink", Err: res.Error}
		}
		removed = res.RowsAffected > 0
		return nil
	})
	return removed, err
}

// Links lists edges touching memoryID, grounded on get_links: one query per
// direction unioned together, each ordered by created_at desc independently
// (not globally re-sorted) — matching the original's behavior exactly.
func (db *DB) Links(ctx context.Context, memoryID int64, direction model.Direction, relation model.LinkRelation) ([]model.LinkedMemory, error) {
	var out []model.LinkedMemory

	if direction == model.DirOutgoing || direction == model.DirBoth || direction == "" {
		rows, err := db.queryLinks(ctx, "source_id = ?", memoryID, relation, true)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	if direction == model.DirIncoming || direction == model.DirBoth || direction == "" {
		rows, err := db.queryLinks(ctx, "target_id = ?", memoryID, relation, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (db *DB) queryLinks(ctx context.Context, whereCol string, memoryID int64, relation model.LinkRelation, outgoing bool) ([]model.LinkedMemory, error) {
	q := db.gorm.WithContext(ctx).Where(whereCol, memoryID)
	if relation != "" {
		q = q.Where("relation = ?", string(relation))
	}
	var rows []linkRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, storereg.StorageError{Op: "links", Err: err}
	}

	out := make([]model.LinkedMemory, 0, len(rows))
	for _, r := range rows {
		otherID := r.TargetID
		if !outgoing {
			otherID = r.SourceID
		}
		var other memoryRow
		if err := db.gorm.WithContext(ctx).Where("id = ?", otherID).Take(&other).Error; err != nil {
			continue
		}
		var meta map[string]any
		_ = json.Unmarshal([]byte(r.Metadata), &meta)
		out = append(out, model.LinkedMemory{
			Link: model.Link{
				ID:        r.ID,
				SourceID:  r.SourceID,
				TargetID:  r.TargetID,
				Relation:  model.LinkRelation(r.Relation),
				Metadata:  meta,
				CreatedAt: parseTime(r.CreatedAt),
			},
			OtherID:     otherID,
			OtherType:   model.MemoryType(other.MemoryType),
			OtherImpt:   other.Importance,
			OtherExtent: other.Content,
		})
	}
	return out, nil
}

const graphMaxDepth = 5

// Graph performs an undirected BFS over the directed edge table starting at
// root, grounded on get_graph: max_depth clamped to 5, visited-set plus
// seen-edges-set to avoid double-counting, FIFO queue, node content
// truncated to 200 characters.
func (db *DB) Graph(ctx context.Context, root int64, maxDepth int, relation model.LinkRelation) (model.Graph, error) {
	if maxDepth > graphMaxDepth || maxDepth <= 0 {
		maxDepth = graphMaxDepth
	}

	type queued struct {
		id    int64
		depth int
	}
	queue := []queued{{root, 0}}
	visited := map[int64]bool{}
	seenEdges := map[int64]bool{}

	var graph model.Graph

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.id] {
			continue
		}

		var row memoryRow
		if err := db.gorm.WithContext(ctx).Where("id = ? AND "+notExpiredPredicate, cur.id).Take(&row).Error; err != nil {
			continue
		}
		visited[cur.id] = true

		content := row.Content
		if runes := []rune(content); len(runes) > 200 {
			content = string(runes[:200])
		}
		graph.Nodes = append(graph.Nodes, model.GraphNode{
			ID:         cur.id,
			Content:    content,
			MemoryType: model.MemoryType(row.MemoryType),
			Importance: row.Importance,
			Depth:      cur.depth,
		})

		if cur.depth >= maxDepth {
			continue
		}

		linked, err := db.Links(ctx, cur.id, model.DirBoth, relation)
		if err != nil {
			continue
		}
		for _, lm := range linked {
			if seenEdges[lm.Link.ID] {
				continue
			}
			seenEdges[lm.Link.ID] = true
			graph.Edges = append(graph.Edges, model.GraphEdge{
				ID:       lm.Link.ID,
				SourceID: lm.Link.SourceID,
				TargetID: lm.Link.TargetID,
				Relation: lm.Link.Relation,
			})
			if !visited[lm.OtherID] {
				queue = append(queue, queued{lm.OtherID, cur.depth + 1})
			}
		}
	}

	return graph, nil
}
