package db

import "fmt"

// Роли пользователей (закрытый словарь, заполняется при инициализации).
const (
	RoleManager  = "Manager"
	RoleMaster   = "Master"
	RoleOperator = "Operator"
	RoleClient   = "Client"
)

// Статусы заявок (закрытый словарь, заполняется при инициализации).
const (
	StatusNew        = "New"
	StatusInProgress = "In Progress"
	StatusReady      = "Ready"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

// DateTimeLayout: каноническое строковое представление дат во всей системе.
const DateTimeLayout = "2006-01-02 15:04:05"

// RequestNumber выводит человекочитаемый номер заявки из внутреннего id.
func RequestNumber(id int64) string {
	return fmt.Sprintf("REQ-%06d", id)
}

// Сущность Пользователя
type User struct {
	ID           int64   `db:"user_id" json:"id"`
	ExternalID   *int64  `db:"external_id" json:"externalId,omitempty"`
	FullName     string  `db:"full_name" json:"fullName"`
	Phone        string  `db:"phone" json:"phone"`
	Login        string  `db:"login" json:"login"`
	PasswordHash string  `db:"password_hash" json:"-"`
	UserTypeID   int64   `db:"user_type_id" json:"userTypeId"`
	Role         string  `db:"role" json:"role"`
	IsActive     bool    `db:"is_active" json:"isActive"`
	CreatedAt    string  `db:"created_at" json:"createdAt"`
	LastLogin    *string `db:"last_login" json:"lastLogin,omitempty"`
}

// Сущность Типа оборудования
type EquipmentType struct {
	ID        int64  `db:"equipment_type_id" json:"id"`
	TypeName  string `db:"type_name" json:"typeName"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

// Сущность Модели оборудования (всегда принадлежит одному типу)
type EquipmentModel struct {
	ID              int64  `db:"equipment_model_id" json:"id"`
	ModelName       string `db:"model_name" json:"modelName"`
	EquipmentTypeID int64  `db:"equipment_type_id" json:"equipmentTypeId"`
	CreatedAt       string `db:"created_at" json:"createdAt"`
}

// Сущность Статуса заявки
type RequestStatus struct {
	ID         int64  `db:"status_id" json:"id"`
	StatusName string `db:"status_name" json:"statusName"`
	IsActive   bool   `db:"is_active" json:"isActive"`
}

// Сущность Заявки на ремонт
type RepairRequest struct {
	ID                 int64   `db:"request_id" json:"id"`
	ExternalID         *int64  `db:"external_id" json:"externalId,omitempty"`
	RequestNumber      string  `db:"request_number" json:"requestNumber"`
	StartDate          string  `db:"start_date" json:"startDate"`
	EquipmentTypeID    int64   `db:"equipment_type_id" json:"equipmentTypeId"`
	EquipmentModelID   int64   `db:"equipment_model_id" json:"equipmentModelId"`
	ProblemDescription string  `db:"problem_description" json:"problemDescription"`
	StatusID           int64   `db:"status_id" json:"statusId"`
	CompletionDate     *string `db:"completion_date" json:"completionDate,omitempty"`
	DaysInProcess      *int64  `db:"days_in_process" json:"daysInProcess,omitempty"`
	RepairParts        *string `db:"repair_parts" json:"repairParts,omitempty"`
	HasComment         bool    `db:"has_comment" json:"hasComment"`
	MasterID           *int64  `db:"master_id" json:"masterId,omitempty"`
	ClientID           int64   `db:"client_id" json:"clientId"`
	Priority           int     `db:"priority" json:"priority"`
	CreatedAt          string  `db:"created_at" json:"createdAt"`
	UpdatedAt          string  `db:"updated_at" json:"updatedAt"`
}

// Сущность Комментария (только добавление, без правок и удаления)
type Comment struct {
	ID        int64  `db:"comment_id" json:"id"`
	Message   string `db:"message" json:"message"`
	MasterID  int64  `db:"master_id" json:"masterId"`
	RequestID int64  `db:"request_id" json:"requestId"`
	CreatedAt string `db:"created_at" json:"createdAt"`
}

// Запись истории смены статуса (append-only)
type StatusHistory struct {
	ID        int64   `db:"history_id" json:"id"`
	RequestID int64   `db:"request_id" json:"requestId"`
	OldStatus *string `db:"old_status" json:"oldStatus,omitempty"`
	NewStatus string  `db:"new_status" json:"newStatus"`
	ChangedBy string  `db:"changed_by" json:"changedBy"`
	ChangedAt string  `db:"changed_at" json:"changedAt"`
	Note      *string `db:"note" json:"note,omitempty"`
}

// RequestView: денормализованная проекция заявки (vw_requests_full).
type RequestView struct {
	ID                 int64   `db:"request_id" json:"id"`
	RequestNumber      string  `db:"request_number" json:"requestNumber"`
	StartDate          string  `db:"start_date" json:"startDate"`
	EquipmentType      string  `db:"equipment_type" json:"equipmentType"`
	EquipmentModel     string  `db:"equipment_model" json:"equipmentModel"`
	ProblemDescription string  `db:"problem_description" json:"problemDescription"`
	StatusName         string  `db:"status_name" json:"statusName"`
	ClientID           int64   `db:"client_id" json:"clientId"`
	ClientName         string  `db:"client_name" json:"clientName"`
	ClientPhone        string  `db:"client_phone" json:"clientPhone"`
	MasterID           *int64  `db:"master_id" json:"masterId,omitempty"`
	MasterName         *string `db:"master_name" json:"masterName,omitempty"`
	CompletionDate     *string `db:"completion_date" json:"completionDate,omitempty"`
	DaysInProcess      *int64  `db:"days_in_process" json:"daysInProcess,omitempty"`
	RepairParts        *string `db:"repair_parts" json:"repairParts,omitempty"`
	HasComment         bool    `db:"has_comment" json:"hasComment"`
	Priority           int     `db:"priority" json:"priority"`
	CreatedAt          string  `db:"created_at" json:"createdAt"`
}

// CommentView: денормализованная проекция комментария (vw_comments_full).
type CommentView struct {
	ID            int64  `db:"comment_id" json:"id"`
	Message       string `db:"message" json:"message"`
	MasterName    string `db:"master_name" json:"masterName"`
	RequestID     int64  `db:"request_id" json:"requestId"`
	RequestNumber string `db:"request_number" json:"requestNumber"`
	CreatedAt     string `db:"created_at" json:"createdAt"`
}

// MasterStats: строка статистики по мастеру (vw_masters_statistics).
type MasterStats struct {
	UserID            int64    `db:"user_id" json:"userId"`
	MasterName        string   `db:"master_name" json:"masterName"`
	TotalRequests     int64    `db:"total_requests" json:"totalRequests"`
	InProgressCount   int64    `db:"in_progress_count" json:"inProgressCount"`
	CompletedCount    int64    `db:"completed_count" json:"completedCount"`
	ReadyCount        int64    `db:"ready_count" json:"readyCount"`
	AvgCompletionDays *float64 `db:"avg_completion_days" json:"avgCompletionDays,omitempty"`
}
