package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// parseTime tries a handful of layouts before giving up to "now", mirroring
// the defensive fallback in the original's _parse_dt (rows written by an
// older schema revision may carry a slightly different timestamp shape).
func parseTime(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339, sqliteTimeLayout, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func rowToMemory(r memoryRow) model.Memory {
	var tags []string
	_ = json.Unmarshal([]byte(r.Tags), &tags)
	meta := map[string]any{}
	_ = json.Unmarshal([]byte(r.Metadata), &meta)

	m := model.Memory{
		ID:          r.ID,
		Content:     r.Content,
		ContentHash: r.ContentHash,
		MemoryType:  model.MemoryType(r.MemoryType),
		Importance:  r.Importance,
		Namespace:   r.Namespace,
		Tags:        tags,
		Metadata:    meta,
		Embedding:   decodeEmbedding(r.Embedding),
		DecayScore:  r.DecayScore,
		CreatedAt:   parseTime(r.CreatedAt),
		AccessedAt:  parseTime(r.AccessedAt),
		AccessCount: r.AccessCount,
	}
	if r.ExpiresAt != nil && *r.ExpiresAt != "" {
		t := parseTime(*r.ExpiresAt)
		m.ExpiresAt = &t
	}
	return m
}

// Store inserts a new memory, or on content_hash collision bumps the
// existing row's access_count/accessed_at and raises importance to the max
// of the two, mirroring the original's try-INSERT/catch-IntegrityError/UPDATE
// upsert.
func (db *DB) Store(ctx context.Context, m model.Memory) (int64, bool, error) {
	hash := contentHash(m.Content)
	tagsJSON, _ := json.Marshal(m.Tags)
	if m.Tags == nil {
		tagsJSON = []byte("[]")
	}
	metaJSON, _ := json.Marshal(m.Metadata)
	if m.Metadata == nil {
		metaJSON = []byte("{}")
	}

	var duplicate bool
	var id int64

	err := db.withTx(ctx, func(tx *gorm.DB) error {
		var existing memoryRow
		found := tx.Where("content_hash = ?", hash).Take(&existing).Error == nil
		if found {
			duplicate = true
			id = existing.ID
			newImportance := existing.Importance
			if m.Importance > newImportance {
				newImportance = m.Importance
			}
			return tx.Model(&memoryRow{}).Where("id = ?", existing.ID).Updates(map[string]any{
				"access_count": existing.AccessCount + 1,
				"accessed_at":  formatTime(time.Now()),
				"importance":   newImportance,
			}).Error
		}

		row := memoryRow{
			Content:     m.Content,
			MemoryType:  string(m.MemoryType),
			Importance:  m.Importance,
			Namespace:   m.Namespace,
			Tags:        string(tagsJSON),
			Metadata:    string(metaJSON),
			ContentHash: hash,
			DecayScore:  1.0,
			CreatedAt:   formatTime(time.Now()),
			AccessedAt:  formatTime(time.Now()),
		}
		if len(m.Embedding) > 0 {
			row.Embedding = encodeEmbedding(m.Embedding)
		}
		if m.ExpiresAt != nil {
			s := formatTime(*m.ExpiresAt)
			row.ExpiresAt = &s
		}
		if err := tx.Create(&row).Error; err != nil {
			return storereg.StorageError{Op: "store", Err: err}
		}
		id = row.ID
		if err := db.upsertVector(tx, id, m.Embedding); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return id, duplicate, nil
}

// Get fetches a memory by id and, as a side effect, bumps its access_count
// and accessed_at: reads count as access.
func (db *DB) Get(ctx context.Context, id int64) (model.Memory, error) {
	var row memoryRow
	var m model.Memory
	err := db.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND "+notExpiredPredicate, id).Take(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return storereg.NotFoundError{Resource: "memory", ID: id}
			}
			return storereg.StorageError{Op: "get", Err: err}
		}
		m = rowToMemory(row)
		return tx.Model(&memoryRow{}).Where("id = ?", id).Updates(map[string]any{
			"access_count": row.AccessCount + 1,
			"accessed_at":  formatTime(time.Now()),
		}).Error
	})
	if err != nil {
		return model.Memory{}, err
	}
	m.AccessCount++
	m.AccessedAt = time.Now().UTC()
	return m, nil
}

// Update patches the named fields only; unnamed fields are left as-is.
// A content change recomputes content_hash.
func (db *DB) Update(ctx context.Context, id int64, patch storereg.UpdateFields) error {
	return db.withTx(ctx, func(tx *gorm.DB) error {
		var existing memoryRow
		if err := tx.Where("id = ?", id).Take(&existing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return storereg.NotFoundError{Resource: "memory", ID: id}
			}
			return storereg.StorageError{Op: "update", Err: err}
		}

		updates := map[string]any{}
		if patch.Content != nil {
			updates["content"] = *patch.Content
			updates["content_hash"] = contentHash(*patch.Content)
		}
		if patch.MemoryType != nil {
			updates["memory_type"] = string(*patch.MemoryType)
		}
		if patch.Importance != nil {
			updates["importance"] = *patch.Importance
		}
		if patch.Namespace != nil {
			updates["namespace"] = *patch.Namespace
		}
		if patch.TagsSet {
			tagsJSON, _ := json.Marshal(patch.Tags)
			updates["tags"] = string(tagsJSON)
		}
		if patch.MetaSet {
			metaJSON, _ := json.Marshal(patch.Metadata)
			updates["metadata"] = string(metaJSON)
		}
		if patch.DecayScore != nil {
			updates["decay_score"] = *patch.DecayScore
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&memoryRow{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return storereg.StorageError{Op: "update", Err: err}
		}
		return nil
	})
}

// Delete hard-deletes a memory row; the FTS sync trigger removes the
// shadow index entry and cascading FKs remove any memory_links rows.
func (db *DB) Delete(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&memoryRow{})
		if res.Error != nil {
			return storereg.StorageError{Op: "delete", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return storereg.NotFoundError{Resource: "memory", ID: id}
		}
		return tx.Exec("DELETE FROM memories_vec WHERE memory_id = ?", id).Error
	})
}

// List returns memories matching filter, newest-accessed-first within
// importance band.
func (db *DB) List(ctx context.Context, filter model.ListFilter) ([]model.Memory, error) {
	q := db.gorm.WithContext(ctx).Where(notExpiredPredicate)
	if filter.Namespace != "" {
		q = q.Where("namespace = ?", filter.Namespace)
	}
	if filter.MemoryType != "" {
		q = q.Where("memory_type = ?", string(filter.MemoryType))
	}
	if filter.MinImportance > 0 {
		q = q.Where("importance >= ?", filter.MinImportance)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows []memoryRow
	if err := q.Order("importance DESC, accessed_at DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error; err != nil {
		return nil, storereg.StorageError{Op: "list", Err: err}
	}
	out := make([]model.Memory, len(rows))
	for i, r := range rows {
		out[i] = rowToMemory(r)
	}
	return out, nil
}

// SearchText runs an FTS5 MATCH query, falling back to a LIKE scan if FTS5
// itself errors, grounded on sqlite_backend.search_text's
// OperationalError fallback.
func (db *DB) SearchText(ctx context.Context, query, namespace string, limit int) ([]model.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	match, ok := sanitizeFTSQuery(query, 10)
	if !ok {
		return nil, nil
	}

	type ftsRow struct {
		memoryRow
		Rank float64
	}
	var rows []ftsRow
	q := db.gorm.WithContext(ctx).Table("memories").
		Joins("JOIN memories_fts ON memories_fts.rowid = memories.id").
		Select("memories.*, memories_fts.rank as rank").
		Where("memories_fts MATCH ? AND "+notExpiredPredicate, match)
	if namespace != "" {
		q = q.Where("memories.namespace = ?", namespace)
	}
	err := q.Order("rank, importance DESC").Limit(limit).Find(&rows).Error
	if err == nil {
		out := make([]model.SearchResult, len(rows))
		for i, r := range rows {
			out[i] = model.SearchResult{
				Memory:    rowToMemory(r.memoryRow),
				Score:     math.Abs(r.Rank),
				MatchType: model.MatchFTS,
			}
		}
		return out, nil
	}

	// FTS5 query failed outright (bad tokenizer state, corrupted shadow
	// tables) — degrade to a LIKE scan on the first word, same as the
	// original's except-OperationalError branch.
	word, ok := firstWord(query)
	if !ok {
		return nil, nil
	}
	like := db.gorm.WithContext(ctx).Where("content LIKE ? AND "+notExpiredPredicate, "%"+word+"%")
	if namespace != "" {
		like = like.Where("namespace = ?", namespace)
	}
	var fallback []memoryRow
	if err := like.Order("importance DESC").Limit(limit).Find(&fallback).Error; err != nil {
		return nil, storereg.StorageError{Op: "search_text", Err: err}
	}
	out := make([]model.SearchResult, len(fallback))
	for i, r := range fallback {
		out[i] = model.SearchResult{Memory: rowToMemory(r), Score: 0.0, MatchType: model.MatchLike}
	}
	return out, nil
}

// vecHit is one row of a memories_vec KNN query.
type vecHit struct {
	MemoryID int64
	Distance float64
}

// SearchVector runs the query embedding through the memories_vec vec0 index
// via its MATCH/k KNN operator, then resolves the returned memory_ids back
// against the memories table to apply the namespace and expiry filters
// vec0 itself has no column for.
//
// vec0 carries no namespace partition, so a plain "k = limit" KNN query
// could return zero rows after namespace filtering on a busy multi-namespace
// store. Oversample k and trim to limit once filtered, same tradeoff the
// original's per-namespace linear scan sidesteps by scanning everything.
func (db *DB) SearchVector(ctx context.Context, vector []float32, namespace string, limit int) ([]model.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	k := limit * 5
	if k < 50 {
		k = 50
	}
	if k > 500 {
		k = 500
	}

	var hits []vecHit
	err := db.gorm.WithContext(ctx).Raw(
		`SELECT memory_id, distance FROM memories_vec WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		encodeEmbedding(vector), k,
	).Scan(&hits).Error
	if err != nil {
		return nil, storereg.StorageError{Op: "search_vector", Err: err}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(hits))
	distanceByID := make(map[int64]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.MemoryID
		distanceByID[h.MemoryID] = h.Distance
	}

	q := db.gorm.WithContext(ctx).Where(notExpiredPredicate+" AND id IN ?", ids)
	if namespace != "" {
		q = q.Where("namespace = ?", namespace)
	}
	var rows []memoryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, storereg.StorageError{Op: "search_vector", Err: err}
	}

	results := make([]model.SearchResult, 0, len(rows))
	for _, r := range rows {
		dist, ok := distanceByID[r.ID]
		if !ok {
			continue
		}
		// memories_vec uses cosine distance (1 - cosine similarity), so
		// similarity is the complement. No clamping is applied; cosine
		// similarity already lies in [-1, 1].
		results = append(results, model.SearchResult{Memory: rowToMemory(r), Score: 1 - dist, MatchType: model.MatchSemantic})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetPriority returns the highest-priority memories for namespace, widening
// unconditionally to also include the "default" namespace — confirmed
// against the original's get_priority_memories, which applies this widening
// with no tenant distinction.
func (db *DB) GetPriority(ctx context.Context, namespace string, limit, minImportance int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	q := db.gorm.WithContext(ctx).Where(notExpiredPredicate+" AND importance >= ?", minImportance)
	if namespace != "" {
		q = q.Where("(namespace = ? OR namespace = 'default')", namespace)
	}
	var rows []memoryRow
	if err := q.Order("importance DESC, access_count DESC, accessed_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, storereg.StorageError{Op: "get_priority", Err: err}
	}
	out := make([]model.Memory, len(rows))
	for i, r := range rows {
		out[i] = rowToMemory(r)
	}
	return out, nil
}

// Stats summarizes a namespace's store.
func (db *DB) Stats(ctx context.Context, namespace string) (model.Stats, error) {
	var stats model.Stats
	stats.ByType = map[model.MemoryType]int{}

	q := db.gorm.WithContext(ctx).Model(&memoryRow{})
	if namespace != "" {
		q = q.Where("namespace = ?", namespace)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return stats, storereg.StorageError{Op: "stats", Err: err}
	}
	stats.TotalMemories = int(total)

	type typeCount struct {
		MemoryType string
		Count      int
	}
	var byType []typeCount
	tq := db.gorm.WithContext(ctx).Model(&memoryRow{}).Select("memory_type, COUNT(*) as count").Group("memory_type")
	if namespace != "" {
		tq = tq.Where("namespace = ?", namespace)
	}
	if err := tq.Find(&byType).Error; err != nil {
		return stats, storereg.StorageError{Op: "stats", Err: err}
	}
	for _, t := range byType {
		stats.ByType[model.MemoryType(t.MemoryType)] = t.Count
	}

	var avg float64
	aq := db.gorm.WithContext(ctx).Model(&memoryRow{}).Select("COALESCE(AVG(importance), 0)")
	if namespace != "" {
		aq = aq.Where("namespace = ?", namespace)
	}
	aq.Scan(&avg)
	stats.AverageImportance = math.Round(avg*100) / 100

	var withEmb int64
	eq := db.gorm.WithContext(ctx).Model(&memoryRow{}).Where("embedding IS NOT NULL")
	if namespace != "" {
		eq = eq.Where("namespace = ?", namespace)
	}
	eq.Count(&withEmb)
	stats.WithEmbeddingCount = int(withEmb)

	if db.path != "" && db.path != ":memory:" {
		if fi, ferr := os.Stat(db.path); ferr == nil {
			stats.StorageBytes = fi.Size()
		}
	}

	return stats, nil
}

// Analytics aggregates growth, tag frequency, namespace spread and type
// distribution for the analytics surface.
func (db *DB) Analytics(ctx context.Context, namespace string) (model.Analytics, error) {
	a := model.Analytics{
		GrowthByDay:      map[string]int{},
		TopTags:          map[string]int{},
		NamespaceCounts:  map[string]int{},
		TypeDistribution: map[model.MemoryType]int{},
	}

	base := db.gorm.WithContext(ctx).Model(&memoryRow{})
	if namespace != "" {
		base = base.Where("namespace = ?", namespace)
	}

	var total int64
	base.Count(&total)
	a.TotalMemories = int(total)

	type dayCount struct {
		Day   string
		Count int
	}
	var days []dayCount
	dq := db.gorm.WithContext(ctx).Model(&memoryRow{}).
		Select("DATE(created_at) as day, COUNT(*) as count").
		Where("created_at >= datetime('now', '-90 days')").
		Group("DATE(created_at)")
	if namespace != "" {
		dq = dq.Where("namespace = ?", namespace)
	}
	dq.Find(&days)
	for _, d := range days {
		a.GrowthByDay[d.Day] = d.Count
	}

	type tagCount struct {
		Tag   string
		Count int
	}
	var tags []tagCount
	tagQ := db.gorm.WithContext(ctx).Table("memories, json_each(memories.tags)").
		Select("json_each.value as tag, COUNT(*) as count").
		Group("json_each.value").Order("count DESC").Limit(20)
	if namespace != "" {
		tagQ = tagQ.Where("memories.namespace = ?", namespace)
	}
	tagQ.Find(&tags)
	for _, t := range tags {
		a.TopTags[t.Tag] = t.Count
	}

	type nsCount struct {
		Namespace string
		Count     int
	}
	var nsRows []nsCount
	db.gorm.WithContext(ctx).Model(&memoryRow{}).Select("namespace, COUNT(*) as count").Group("namespace").Find(&nsRows)
	for _, n := range nsRows {
		a.NamespaceCounts[n.Namespace] = n.Count
	}

	type typeRow struct {
		MemoryType string
		Count      int
	}
	var typeRows []typeRow
	typeQ := db.gorm.WithContext(ctx).Model(&memoryRow{}).Select("memory_type, COUNT(*) as count").Group("memory_type")
	if namespace != "" {
		typeQ = typeQ.Where("namespace = ?", namespace)
	}
	typeQ.Find(&typeRows)
	for _, t := range typeRows {
		a.TypeDistribution[model.MemoryType(t.MemoryType)] = t.Count
	}

	return a, nil
}

// Decay recomputes and persists decay_score for one memory, grounded on
// engram.core.decay.compute_decay.
func (db *DB) Decay(ctx context.Context, id int64) (float64, error) {
	var score float64
	err := db.withTx(ctx, func(tx *gorm.DB) error {
		var row memoryRow
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return storereg.NotFoundError{Resource: "memory", ID: id}
			}
			return storereg.StorageError{Op: "decay", Err: err}
		}
		score = computeDecay(parseTime(row.AccessedAt), row.Importance, row.AccessCount, 0.01, time.Now())
		return tx.Model(&memoryRow{}).Where("id = ?", id).Update("decay_score", score).Error
	})
	return score, err
}

// computeDecay mirrors engram.core.decay.compute_decay exactly: importance
// and access count both slow the decay rate, and the result is an
// exponential falloff over hours-since-last-access.
func computeDecay(lastAccessed time.Time, importance, accessCount int, rate float64, now time.Time) float64 {
	if importance < 1 {
		importance = 1
	}
	importanceFactor := 1.0 / float64(importance)
	accessFactor := 1.0 / (1.0 + math.Log1p(float64(accessCount)))
	effectiveRate := rate * importanceFactor * accessFactor
	hoursSince := now.Sub(lastAccessed).Hours()
	if hoursSince < 0 {
		hoursSince = 0
	}
	return math.Exp(-effectiveRate * hoursSince)
}

// CleanupExpired hard-deletes every memory past its expires_at.
func (db *DB) CleanupExpired(ctx context.Context, namespace string) (int, error) {
	var count int
	err := db.withTx(ctx, func(tx *gorm.DB) error {
		q := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", formatTime(time.Now()))
		if namespace != "" {
			q = q.Where("namespace = ?", namespace)
		}
		res := q.Delete(&memoryRow{})
		if res.Error != nil {
			return storereg.StorageError{Op: "cleanup_expired", Err: res.Error}
		}
		count = int(res.RowsAffected)
		return nil
	})
	return count, err
}

// Prune deletes memories older than days with importance below minImportance,
// a retention op not present in the original.
func (db *DB) Prune(ctx context.Context, days int, minImportance int, namespace string) (int, error) {
	var count int
	err := db.withTx(ctx, func(tx *gorm.DB) error {
		q := tx.Where("created_at <= datetime('now', ?) AND importance < ?", fmt.Sprintf("-%d days", days), minImportance)
		if namespace != "" {
			q = q.Where("namespace = ?", namespace)
		}
		res := q.Delete(&memoryRow{})
		if res.Error != nil {
			return storereg.StorageError{Op: "prune", Err: res.Error}
		}
		count = int(res.RowsAffected)
		return nil
	})
	return count, err
}

// ListWithoutEmbeddings returns memories awaiting backfill, for the
// /v1/backfill-embeddings handler.
func (db *DB) ListWithoutEmbeddings(ctx context.Context, namespace string, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	q := db.gorm.WithContext(ctx).Where("embedding IS NULL AND " + notExpiredPredicate)
	if namespace != "" {
		q = q.Where("namespace = ?", namespace)
	}
	var rows []memoryRow
	if err := q.Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, storereg.StorageError{Op: "list_without_embeddings", Err: err}
	}
	out := make([]model.Memory, len(rows))
	for i, r := range rows {
		out[i] = rowToMemory(r)
	}
	return out, nil
}

// UpdateEmbedding writes a computed vector back onto an existing memory.
func (db *DB) UpdateEmbedding(ctx context.Context, id int64, vector []float32) error {
	return db.withTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&memoryRow{}).Where("id = ?", id).Update("embedding", encodeEmbedding(vector))
		if res.Error != nil {
			return storereg.StorageError{Op: "update_embedding", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return storereg.NotFoundError{Resource: "memory", ID: id}
		}
		return db.upsertVector(tx, id, vector)
	})
}

// upsertVector keeps the vec0 index table in sync with memories.embedding,
// the persisted source of truth.
func (db *DB) upsertVector(tx *gorm.DB, id int64, vector []float32) error {
	if len(vector) == 0 {
		return nil
	}
	if err := tx.Exec("DELETE FROM memories_vec WHERE memory_id = ?", id).Error; err != nil {
		return storereg.StorageError{Op: "vector_index", Err: err}
	}
	blob := encodeEmbedding(vector)
	if err := tx.Exec("INSERT INTO memories_vec (memory_id, embedding) VALUES (?, ?)", id, blob).Error; err != nil {
		return storereg.StorageError{Op: "vector_index", Err: err}
	}
	return nil
}
