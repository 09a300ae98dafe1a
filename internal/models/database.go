package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Watch history operations

// UpsertWatchHistory inserts a watch record or merges it into the
// existing row for the same (title, user). LastPlayedDate only moves
// forward; play count and favorite are overwritten when supplied.
func (db *Database) UpsertWatchHistory(entry *WatchHistory) error {
	var existing []*WatchHistory
	err := db.store.Find(&existing,
		bolthold.Where("Title").Eq(entry.Title).
			And("WatchedBy").Eq(entry.WatchedBy))
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		entry.CreatedAt = time.Now()
		entry.UpdatedAt = time.Now()
		return db.store.Insert(bolthold.NextSequence(), entry)
	}

	row := existing[0]
	if entry.LastPlayedDate != "" && entry.LastPlayedDate > row.LastPlayedDate {
		row.LastPlayedDate = entry.LastPlayedDate
	}
	if entry.PlayCount != nil {
		row.PlayCount = entry.PlayCount
	}
	if entry.IsFavorite != nil {
		row.IsFavorite = entry.IsFavorite
	}
	row.MediaID = entry.MediaID
	row.MediaType = entry.MediaType
	row.Source = entry.Source
	row.UpdatedAt = time.Now()
	return db.store.Update(row.ID, row)
}

// GetWatchHistory retrieves watch history rows, newest first. A limit of
// 0 means no limit. When unprocessedOnly is set, only rows not yet fed
// through a recommendation cycle are returned.
func (db *Database) GetWatchHistory(limit int, unprocessedOnly bool) ([]*WatchHistory, error) {
	var rows []*WatchHistory
	var query *bolthold.Query
	if unprocessedOnly {
		query = bolthold.Where("Processed").Eq(false)
	}

	err := db.store.Find(&rows, query)
	if err != nil {
		return nil, err
	}

	sortWatchHistory(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// GetWatchHistoryRange retrieves rows whose UpdatedAt falls within the
// given range. Zero times disable that bound.
func (db *Database) GetWatchHistoryRange(start, end time.Time) ([]*WatchHistory, error) {
	var rows []*WatchHistory
	err := db.store.Find(&rows, nil)
	if err != nil {
		return nil, err
	}

	filtered := rows[:0]
	for _, row := range rows {
		if !start.IsZero() && row.UpdatedAt.Before(start) {
			continue
		}
		if !end.IsZero() && row.UpdatedAt.After(end) {
			continue
		}
		filtered = append(filtered, row)
	}
	sortWatchHistory(filtered)
	return filtered, nil
}

func sortWatchHistory(rows []*WatchHistory) {
	// Most recently played first; rows without a date sink to the end
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LastPlayedDate > rows[j].LastPlayedDate
	})
}

// GetWatchHistoryByID retrieves a single watch history row
func (db *Database) GetWatchHistoryByID(id uint64) (*WatchHistory, error) {
	var row WatchHistory
	if err := db.store.Get(id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkWatchHistoryProcessed flags a row as consumed by a cycle
func (db *Database) MarkWatchHistoryProcessed(id uint64, processed bool) error {
	row, err := db.GetWatchHistoryByID(id)
	if err != nil {
		return err
	}
	row.Processed = processed
	row.UpdatedAt = time.Now()
	return db.store.Update(row.ID, row)
}

// DeleteWatchHistoryItem deletes a single watch history row
func (db *Database) DeleteWatchHistoryItem(id uint64) error {
	return db.store.Delete(id, &WatchHistory{})
}

// DeleteAllWatchHistory removes every watch history row and reports how
// many were deleted
func (db *Database) DeleteAllWatchHistory() (int, error) {
	rows, err := db.GetWatchHistory(0, false)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := db.store.Delete(row.ID, &WatchHistory{}); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// WatchHistoryTitles returns the distinct titles present in history
func (db *Database) WatchHistoryTitles() ([]string, error) {
	rows, err := db.GetWatchHistory(0, false)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var titles []string
	for _, row := range rows {
		if row.Title == "" || seen[row.Title] {
			continue
		}
		seen[row.Title] = true
		titles = append(titles, row.Title)
	}
	return titles, nil
}

// Suggestion operations

// CreateSuggestion creates a new suggestion record
func (db *Database) CreateSuggestion(s *Suggestion) error {
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), s)
}

// UpdateSuggestion updates an existing suggestion record
func (db *Database) UpdateSuggestion(s *Suggestion) error {
	s.UpdatedAt = time.Now()
	return db.store.Update(s.ID, s)
}

// GetSuggestionByID retrieves a suggestion by ID
func (db *Database) GetSuggestionByID(id uint64) (*Suggestion, error) {
	var s Suggestion
	if err := db.store.Get(id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSuggestionByTitle retrieves the first suggestion with this title
func (db *Database) GetSuggestionByTitle(title string) (*Suggestion, error) {
	var out []*Suggestion
	err := db.store.Find(&out, bolthold.Where("Title").Eq(title))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, bolthold.ErrNotFound
	}
	return out[0], nil
}

// GetActiveSuggestions retrieves all non-ignored suggestions
func (db *Database) GetActiveSuggestions() ([]*Suggestion, error) {
	var out []*Suggestion
	err := db.store.Find(&out, bolthold.Where("Ignore").Eq(false))
	return out, err
}

// GetIgnoredSuggestions retrieves all ignored suggestions
func (db *Database) GetIgnoredSuggestions() ([]*Suggestion, error) {
	var out []*Suggestion
	err := db.store.Find(&out, bolthold.Where("Ignore").Eq(true))
	return out, err
}

// IgnoredSuggestionTitles returns titles the user has ignored, for
// exclusion from future prompts
func (db *Database) IgnoredSuggestionTitles() ([]string, error) {
	rows, err := db.GetIgnoredSuggestions()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Title != "" {
			titles = append(titles, row.Title)
		}
	}
	return titles, nil
}

// SetSuggestionIgnore updates the ignore flag on a suggestion
func (db *Database) SetSuggestionIgnore(id uint64, ignore bool) error {
	s, err := db.GetSuggestionByID(id)
	if err != nil {
		return err
	}
	s.Ignore = ignore
	s.UpdatedAt = time.Now()
	return db.store.Update(s.ID, s)
}

// ToggleSuggestionIgnore flips the ignore flag on a suggestion
func (db *Database) ToggleSuggestionIgnore(id uint64) error {
	s, err := db.GetSuggestionByID(id)
	if err != nil {
		return err
	}
	return db.SetSuggestionIgnore(id, !s.Ignore)
}

// DeleteSuggestion deletes a suggestion by ID
func (db *Database) DeleteSuggestion(id uint64) error {
	return db.store.Delete(id, &Suggestion{})
}

// UniqueSuggestionValues returns the distinct values of one suggestion
// field. Comma-delimited values are split into their parts.
func (db *Database) UniqueSuggestionValues(field string) ([]string, error) {
	var out []*Suggestion
	if err := db.store.Find(&out, nil); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var values []string
	add := func(raw string) {
		for _, part := range strings.Split(raw, ",") {
			v := strings.TrimSpace(part)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
	}

	for _, s := range out {
		switch field {
		case "title":
			add(s.Title)
		case "source_title":
			add(s.SourceTitle)
		case "media_type":
			add(string(s.MediaType))
		case "provider":
			add(s.Provider)
		case "request_status":
			add(string(s.RequestStatus))
		default:
			return nil, fmt.Errorf("unknown suggestion field: %s", field)
		}
	}
	return values, nil
}

// Search operations

// CreateSearch creates a new saved search
func (db *Database) CreateSearch(s *Search) error {
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), s)
}

// UpdateSearch updates an existing saved search
func (db *Database) UpdateSearch(s *Search) error {
	s.UpdatedAt = time.Now()
	return db.store.Update(s.ID, s)
}

// GetSearchByID retrieves a saved search by ID
func (db *Database) GetSearchByID(id uint64) (*Search, error) {
	var s Search
	if err := db.store.Get(id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSearches retrieves the most recently updated saved searches
func (db *Database) GetSearches(limit int) ([]*Search, error) {
	var out []*Search
	if err := db.store.Find(&out, nil); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateSearchRunDate stamps the last run time of a saved search
func (db *Database) UpdateSearchRunDate(id uint64, ranAt time.Time) error {
	s, err := db.GetSearchByID(id)
	if err != nil {
		return err
	}
	s.LastRunAt = &ranAt
	s.UpdatedAt = time.Now()
	return db.store.Update(s.ID, s)
}

// DeleteSearch removes a saved search together with its schedule and
// usage statistics
func (db *Database) DeleteSearch(id uint64) error {
	if err := db.store.Delete(id, &Search{}); err != nil {
		return err
	}
	if err := db.DeleteScheduleBySearchID(id); err != nil && err != bolthold.ErrNotFound {
		return err
	}
	var stats []*SearchStat
	if err := db.store.Find(&stats, bolthold.Where("SearchID").Eq(id)); err != nil {
		return err
	}
	for _, stat := range stats {
		if err := db.store.Delete(stat.ID, &SearchStat{}); err != nil {
			return err
		}
	}
	return nil
}

// Search stat operations

// AddSearchStat records token usage for one run of a search
func (db *Database) AddSearchStat(stat *SearchStat) error {
	stat.CreatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), stat)
}

// GetSearchStats retrieves all stats for a search, oldest first
func (db *Database) GetSearchStats(searchID uint64) ([]*SearchStat, error) {
	var out []*SearchStat
	err := db.store.Find(&out, bolthold.Where("SearchID").Eq(searchID))
	return out, err
}

// SummarizeSearchStats aggregates token usage over a date range. Zero
// times disable that bound.
func (db *Database) SummarizeSearchStats(start, end time.Time) (*StatSummary, error) {
	var out []*SearchStat
	if err := db.store.Find(&out, nil); err != nil {
		return nil, err
	}

	summary := &StatSummary{}
	for _, stat := range out {
		if !start.IsZero() && stat.CreatedAt.Before(start) {
			continue
		}
		if !end.IsZero() && stat.CreatedAt.After(end) {
			continue
		}
		summary.TotalPromptTokens += stat.PromptTokens
		summary.TotalCandidateTokens += stat.CandidateTokens
		summary.TotalThoughtTokens += stat.ThoughtTokens
		summary.TotalTokens += stat.TotalTokens
	}
	return summary, nil
}

// Schedule operations

// CreateSchedule creates a new schedule row
func (db *Database) CreateSchedule(s *Schedule) error {
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), s)
}

// UpdateSchedule updates an existing schedule row
func (db *Database) UpdateSchedule(s *Schedule) error {
	s.UpdatedAt = time.Now()
	return db.store.Update(s.ID, s)
}

// GetScheduleByID retrieves a schedule row by its primary key
func (db *Database) GetScheduleByID(id uint64) (*Schedule, error) {
	var s Schedule
	if err := db.store.Get(id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetScheduleByJobID retrieves a schedule row by its job ID
func (db *Database) GetScheduleByJobID(jobID string) (*Schedule, error) {
	var out []*Schedule
	err := db.store.Find(&out, bolthold.Where("JobID").Eq(jobID))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, bolthold.ErrNotFound
	}
	return out[0], nil
}

// GetScheduleBySearchID retrieves the schedule bound to a saved search
func (db *Database) GetScheduleBySearchID(searchID uint64) (*Schedule, error) {
	var out []*Schedule
	if err := db.store.Find(&out, nil); err != nil {
		return nil, err
	}
	for _, s := range out {
		if s.SearchID != nil && *s.SearchID == searchID {
			return s, nil
		}
	}
	return nil, bolthold.ErrNotFound
}

// GetEnabledSchedules retrieves all enabled schedule rows
func (db *Database) GetEnabledSchedules() ([]*Schedule, error) {
	var out []*Schedule
	err := db.store.Find(&out, bolthold.Where("Enabled").Eq(true))
	return out, err
}

// GetAllSchedules retrieves every schedule row
func (db *Database) GetAllSchedules() ([]*Schedule, error) {
	var out []*Schedule
	err := db.store.Find(&out, nil)
	return out, err
}

// DeleteSchedule deletes a schedule row by ID
func (db *Database) DeleteSchedule(id uint64) error {
	return db.store.Delete(id, &Schedule{})
}

// DeleteScheduleBySearchID deletes the schedule bound to a saved search
func (db *Database) DeleteScheduleBySearchID(searchID uint64) error {
	s, err := db.GetScheduleBySearchID(searchID)
	if err != nil {
		return err
	}
	return db.store.Delete(s.ID, &Schedule{})
}

// Setting operations

// GetSetting retrieves a setting by group and name
func (db *Database) GetSetting(group, name string) (*Setting, error) {
	var out []*Setting
	err := db.store.Find(&out, bolthold.Where("Group").Eq(group))
	if err != nil {
		return nil, err
	}
	for _, s := range out {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, bolthold.ErrNotFound
}

// UpsertSetting creates or updates a setting row
func (db *Database) UpsertSetting(setting *Setting) error {
	existing, err := db.GetSetting(setting.Group, setting.Name)
	if err == bolthold.ErrNotFound {
		setting.CreatedAt = time.Now()
		setting.UpdatedAt = time.Now()
		return db.store.Insert(bolthold.NextSequence(), setting)
	}
	if err != nil {
		return err
	}
	existing.Value = setting.Value
	existing.Type = setting.Type
	existing.Description = setting.Description
	existing.UpdatedAt = time.Now()
	return db.store.Update(existing.ID, existing)
}

// GetSettingsByGroup retrieves all settings rows in a group
func (db *Database) GetSettingsByGroup(group string) ([]*Setting, error) {
	var out []*Setting
	err := db.store.Find(&out, bolthold.Where("Group").Eq(group))
	return out, err
}

// GetAllSettings retrieves every settings row
func (db *Database) GetAllSettings() ([]*Setting, error) {
	var out []*Setting
	err := db.store.Find(&out, nil)
	return out, err
}
