package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"repairdesk/db"
)

// Row: одна строка источника: имя колонки → значение ячейки.
type Row map[string]string

// Table: прямоугольный набор строк с именованными колонками.
// Первый лист книги, первая строка: заголовки.
type Table struct {
	Columns []string
	Rows    []Row
}

// LoadXLSX читает первый лист файла .xlsx в Table.
func LoadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return &Table{}, nil
	}

	t := &Table{}
	for _, h := range raw[0] {
		t.Columns = append(t.Columns, strings.TrimSpace(h))
	}
	for _, cells := range raw[1:] {
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			if col == "" {
				continue
			}
			if i < len(cells) {
				row[col] = strings.TrimSpace(cells[i])
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// String возвращает значение колонки или def, если ячейка пуста.
func (r Row) String(col, def string) string {
	if v := r[col]; v != "" {
		return v
	}
	return def
}

// Int64 возвращает целое значение колонки.
func (r Row) Int64(col string) (int64, error) {
	v := r[col]
	if v == "" {
		return 0, fmt.Errorf("column %s is empty", col)
	}
	// Excel отдаёт целые как "12" или "12.0".
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int64(f), nil
	}
	return 0, fmt.Errorf("column %s: not a number: %q", col, v)
}

// OptionalInt64: как Int64, но пустая ячейка даёт nil.
func (r Row) OptionalInt64(col string) (*int64, error) {
	if r[col] == "" {
		return nil, nil
	}
	n, err := r.Int64(col)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// OptionalString: nil для пустой ячейки.
func (r Row) OptionalString(col string) *string {
	if v := r[col]; v != "" {
		return &v
	}
	return nil
}

// dateLayouts: форматы, в которых исходные книги отдают даты.
var dateLayouts = []string{
	db.DateTimeLayout,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"01-02-06",
	"01-02-06 15:04",
	"1/2/06 15:04",
	time.RFC3339,
}

// NormalizeDate приводит значение ячейки к каноническому виду
// "2006-01-02 15:04:05". Пустая или нечитаемая ячейка: второй результат false.
func NormalizeDate(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.Format(db.DateTimeLayout), true
		}
	}
	// Числовая дата Excel (дней от 1899-12-30).
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 {
		if ts, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return ts.Format(db.DateTimeLayout), true
		}
	}
	return "", false
}

// UserRecord: типизированная строка файла пользователей.
type UserRecord struct {
	ExternalID int64
	Login      string
	Password   string
	FullName   string
	Phone      string
	Role       string
}

// RequestRecord: типизированная строка файла заявок.
type RequestRecord struct {
	ExternalID     int64
	StartDate      string
	EquipmentType  string
	EquipmentModel string
	Problem        string
	Status         string
	CompletionDate *string
	RepairParts    *string
	MasterID       *int64
	ClientID       int64
}

// CommentRecord: типизированная строка файла комментариев.
type CommentRecord struct {
	ExternalID *int64
	RequestID  int64
	MasterID   int64
	Message    string
}

// ParseUser собирает UserRecord из строки источника. idx: номер строки
// данных (с нуля), участвует в значениях по умолчанию и сообщениях об ошибках.
func ParseUser(row Row, idx int) (UserRecord, error) {
	id, err := row.Int64("userID")
	if err != nil {
		return UserRecord{}, fmt.Errorf("row %d: %w", idx, err)
	}
	return UserRecord{
		ExternalID: id,
		Login:      row.String("login", fmt.Sprintf("user%d", idx+1)),
		Password:   row.String("password", "changeme"),
		FullName:   row.String("fio", ""),
		Phone:      row.String("phone", ""),
		Role:       row.String("type", db.RoleClient),
	}, nil
}

// ParseRequest собирает RequestRecord из строки источника.
func ParseRequest(row Row, idx int) (RequestRecord, error) {
	id, err := row.Int64("requestID")
	if err != nil {
		return RequestRecord{}, fmt.Errorf("row %d: %w", idx, err)
	}
	clientID, err := row.Int64("clientID")
	if err != nil {
		return RequestRecord{}, fmt.Errorf("row %d: %w", idx, err)
	}
	masterID, err := row.OptionalInt64("masterID")
	if err != nil {
		return RequestRecord{}, fmt.Errorf("row %d: %w", idx, err)
	}

	start, ok := NormalizeDate(row["startDate"])
	if !ok {
		start = time.Now().Format(db.DateTimeLayout)
	}
	rec := RequestRecord{
		ExternalID:     id,
		StartDate:      start,
		EquipmentType:  row.String("homeTechType", "Unknown"),
		EquipmentModel: row.String("homeTechModel", "Unknown"),
		Problem:        row.String("problemDescryption", ""),
		Status:         row.String("requestStatus", db.StatusNew),
		RepairParts:    row.OptionalString("repairParts"),
		MasterID:       masterID,
		ClientID:       clientID,
	}
	if done, ok := NormalizeDate(row["completionDate"]); ok {
		rec.CompletionDate = &done
	}
	return rec, nil
}

// ParseComment собирает CommentRecord из строки источника.
func ParseComment(row Row, idx int) (CommentRecord, error) {
	requestID, err := row.Int64("requestID")
	if err != nil {
		return CommentRecord{}, fmt.Errorf("row %d: %w", idx, err)
	}
	masterID, err := row.Int64("masterID")
	if err != nil {
		return CommentRecord{}, fmt.Errorf("row %d: %w", idx, err)
	}
	externalID, err := row.OptionalInt64("commentID")
	if err != nil {
		return CommentRecord{}, fmt.Errorf("row %d: %w", idx, err)
	}
	return CommentRecord{
		ExternalID: externalID,
		RequestID:  requestID,
		MasterID:   masterID,
		Message:    row.String("message", ""),
	}, nil
}
