package handlers

import (
	"context"

	"repairdesk/db"
)

type StorageInterface interface {
	Authenticate(ctx context.Context, login, password string) (*db.User, error)

	ListRequests(ctx context.Context, f db.RequestFilter) ([]db.RequestView, error)
	SearchRequests(ctx context.Context, q string) ([]db.RequestView, error)
	GetRequestView(ctx context.Context, id int64) (*db.RequestView, error)
	CreateRequest(ctx context.Context, p db.CreateRequestParams) (*db.RepairRequest, error)
	AssignMaster(ctx context.Context, requestID, masterID int64, changedBy string) error
	UpdateStatus(ctx context.Context, requestID int64, statusName, changedBy string) error
	ListStatusHistory(ctx context.Context, requestID int64) ([]db.StatusHistory, error)

	ListComments(ctx context.Context) ([]db.CommentView, error)
	ListCommentsForRequest(ctx context.Context, requestID int64) ([]db.CommentView, error)
	AddComment(ctx context.Context, requestID, masterID int64, message string, repairParts *string) (*db.Comment, error)
	TemplateComments(ctx context.Context) ([]string, error)

	GetStatistics(ctx context.Context) (*db.Statistics, error)
	GetMastersStatistics(ctx context.Context) ([]db.MasterStats, error)
}
