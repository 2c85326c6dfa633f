package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"repairdesk/db"
)

// Info: заголовок JSON-выгрузки.
type Info struct {
	ExportedAt string `json:"exportedAt"`
	Users      int    `json:"users"`
	Requests   int    `json:"requests"`
	Comments   int    `json:"comments"`
}

// Dump: полная JSON-выгрузка хранилища.
type Dump struct {
	ExportInfo      Info                `json:"export_info"`
	Users           []db.User           `json:"users"`
	Requests        []db.RequestView    `json:"requests"`
	Comments        []db.CommentView    `json:"comments"`
	EquipmentTypes  []db.EquipmentType  `json:"equipmentTypes"`
	EquipmentModels []db.EquipmentModel `json:"equipmentModels"`
	Statistics      *db.Statistics      `json:"statistics"`
}

// JSON пишет полную выгрузку хранилища в файл path.
func JSON(ctx context.Context, store *db.Storage, path string) error {
	dump, err := collect(ctx, store)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func collect(ctx context.Context, store *db.Storage) (*Dump, error) {
	users, err := store.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	requests, err := store.ListRequests(ctx, db.RequestFilter{})
	if err != nil {
		return nil, fmt.Errorf("export requests: %w", err)
	}
	comments, err := store.ListComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("export comments: %w", err)
	}
	types, err := store.ListEquipmentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("export equipment types: %w", err)
	}
	models, err := store.ListEquipmentModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("export equipment models: %w", err)
	}
	stats, err := store.GetStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("export statistics: %w", err)
	}

	return &Dump{
		ExportInfo: Info{
			ExportedAt: time.Now().Format(db.DateTimeLayout),
			Users:      len(users),
			Requests:   len(requests),
			Comments:   len(comments),
		},
		Users:           users,
		Requests:        requests,
		Comments:        comments,
		EquipmentTypes:  types,
		EquipmentModels: models,
		Statistics:      stats,
	}, nil
}

// csvColumns: порядок колонок плоской проекции заявки. Необязательные
// колонки попадают в заголовок, только если значение есть хотя бы
// в одной строке.
var csvColumns = []struct {
	name     string
	optional bool
	value    func(r *db.RequestView) (string, bool)
}{
	{"request_id", false, func(r *db.RequestView) (string, bool) { return strconv.FormatInt(r.ID, 10), true }},
	{"request_number", false, func(r *db.RequestView) (string, bool) { return r.RequestNumber, true }},
	{"start_date", false, func(r *db.RequestView) (string, bool) { return r.StartDate, true }},
	{"equipment_type", false, func(r *db.RequestView) (string, bool) { return r.EquipmentType, true }},
	{"equipment_model", false, func(r *db.RequestView) (string, bool) { return r.EquipmentModel, true }},
	{"problem_description", false, func(r *db.RequestView) (string, bool) { return r.ProblemDescription, true }},
	{"status_name", false, func(r *db.RequestView) (string, bool) { return r.StatusName, true }},
	{"client_name", false, func(r *db.RequestView) (string, bool) { return r.ClientName, true }},
	{"client_phone", false, func(r *db.RequestView) (string, bool) { return r.ClientPhone, true }},
	{"master_name", true, func(r *db.RequestView) (string, bool) { return deref(r.MasterName) }},
	{"completion_date", true, func(r *db.RequestView) (string, bool) { return deref(r.CompletionDate) }},
	{"days_in_process", true, func(r *db.RequestView) (string, bool) {
		if r.DaysInProcess == nil {
			return "", false
		}
		return strconv.FormatInt(*r.DaysInProcess, 10), true
	}},
	{"repair_parts", true, func(r *db.RequestView) (string, bool) { return deref(r.RepairParts) }},
	{"has_comment", false, func(r *db.RequestView) (string, bool) { return strconv.FormatBool(r.HasComment), true }},
	{"priority", false, func(r *db.RequestView) (string, bool) { return strconv.Itoa(r.Priority), true }},
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

// CSV пишет плоскую проекцию заявок в файл path. Файл начинается с BOM,
// чтобы табличные редакторы распознавали UTF-8.
func CSV(ctx context.Context, store *db.Storage, path string) error {
	requests, err := store.ListRequests(ctx, db.RequestFilter{})
	if err != nil {
		return fmt.Errorf("export requests: %w", err)
	}

	present := make(map[string]bool, len(csvColumns))
	for i := range requests {
		for _, col := range csvColumns {
			if _, ok := col.value(&requests[i]); ok {
				present[col.name] = true
			}
		}
	}

	var header []string
	for _, col := range csvColumns {
		if !col.optional || present[col.name] {
			header = append(header, col.name)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range requests {
		record := make([]string, 0, len(header))
		for _, col := range csvColumns {
			if col.optional && !present[col.name] {
				continue
			}
			v, _ := col.value(&requests[i])
			record = append(record, v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
