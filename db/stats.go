package db

import "context"

// StatusCount: количество заявок в одном статусе.
type StatusCount struct {
	Status string `db:"status_name" json:"status"`
	Count  int64  `db:"count" json:"count"`
}

// TypeCount: количество заявок по типу оборудования.
type TypeCount struct {
	EquipmentType string `db:"equipment_type" json:"equipmentType"`
	Count         int64  `db:"count" json:"count"`
}

// ProblemStat: сводка по характеру неисправности (грубая классификация по ключевым словам).
type ProblemStat struct {
	ProblemType string  `db:"problem_type" json:"problemType"`
	Count       int64   `db:"count" json:"count"`
	Percentage  float64 `json:"percentage"`
}

// Statistics: агрегированная сводка для менеджера.
type Statistics struct {
	TotalRequests      int64         `json:"totalRequests"`
	CompletedRequests  int64         `json:"completedRequests"`
	InProcess          int64         `json:"inProcess"`
	AvgDays            float64       `json:"avgDays"`
	StatusDistribution []StatusCount `json:"statusDistribution"`
	TypeDistribution   []TypeCount   `json:"typeDistribution"`
	ProblemStats       []ProblemStat `json:"problemStats"`
}

// GetStatistics собирает сводную статистику по всем заявкам.
func (s *Storage) GetStatistics(ctx context.Context) (*Statistics, error) {
	st := &Statistics{}

	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status_name IN ('Ready', 'Completed') THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status_name = 'In Progress' THEN 1 ELSE 0 END), 0),
               COALESCE(AVG(CASE WHEN days_in_process > 0 THEN days_in_process END), 0)
        FROM vw_requests_full`).
		Scan(&st.TotalRequests, &st.CompletedRequests, &st.InProcess, &st.AvgDays)
	if err != nil {
		return nil, err
	}

	st.StatusDistribution = []StatusCount{}
	err = s.db.SelectContext(ctx, &st.StatusDistribution, `
        SELECT status_name, COUNT(*) AS count
        FROM vw_requests_full GROUP BY status_name ORDER BY status_name`)
	if err != nil {
		return nil, err
	}

	st.TypeDistribution = []TypeCount{}
	err = s.db.SelectContext(ctx, &st.TypeDistribution, `
        SELECT equipment_type, COUNT(*) AS count
        FROM vw_requests_full GROUP BY equipment_type ORDER BY equipment_type`)
	if err != nil {
		return nil, err
	}

	st.ProblemStats = []ProblemStat{}
	err = s.db.SelectContext(ctx, &st.ProblemStats, `
        SELECT CASE
                   WHEN LOWER(problem_description) LIKE '%not work%' OR LOWER(problem_description) LIKE '%stopped%' THEN 'Not working'
                   WHEN LOWER(problem_description) LIKE '%cool%' OR LOWER(problem_description) LIKE '%freez%' THEN 'Cooling problems'
                   WHEN LOWER(problem_description) LIKE '%noise%' OR LOWER(problem_description) LIKE '%hum%' THEN 'Noise or vibration'
                   WHEN LOWER(problem_description) LIKE '%turn on%' OR LOWER(problem_description) LIKE '%start%' THEN 'Power-on problems'
                   ELSE 'Other'
               END AS problem_type,
               COUNT(*) AS count
        FROM vw_requests_full GROUP BY problem_type ORDER BY count DESC`)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range st.ProblemStats {
		total += p.Count
	}
	if total > 0 {
		for i := range st.ProblemStats {
			st.ProblemStats[i].Percentage = float64(st.ProblemStats[i].Count) / float64(total) * 100
		}
	}
	return st, nil
}

// GetMastersStatistics возвращает нагрузку и результаты по каждому мастеру.
func (s *Storage) GetMastersStatistics(ctx context.Context) ([]MasterStats, error) {
	stats := []MasterStats{}
	err := s.db.SelectContext(ctx, &stats,
		`SELECT * FROM vw_masters_statistics ORDER BY total_requests DESC, master_name`)
	return stats, err
}

// CountUsers возвращает количество пользователей.
func (s *Storage) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, err
}

// CountRequests возвращает количество заявок.
func (s *Storage) CountRequests(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM repair_requests`)
	return n, err
}

// CountComments возвращает количество комментариев.
func (s *Storage) CountComments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM comments`)
	return n, err
}

// TableNames возвращает имена таблиц хранилища (для сервисной команды stats).
func (s *Storage) TableNames(ctx context.Context) ([]string, error) {
	names := []string{}
	err := s.db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	return names, err
}
