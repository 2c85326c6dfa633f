package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// GetOrCreateEquipment находит или заводит пару тип/модель оборудования.
// Таксономия пополняется по мере появления новых комбинаций и никогда не чистится.
func (s *Storage) GetOrCreateEquipment(ctx context.Context, typeName, modelName string) (typeID, modelID int64, err error) {
	return GetOrCreateEquipmentTx(ctx, s.db, typeName, modelName)
}

// GetOrCreateEquipmentTx: вариант для вызова внутри транзакции импорта.
func GetOrCreateEquipmentTx(ctx context.Context, q sqlx.ExtContext, typeName, modelName string) (typeID, modelID int64, err error) {
	err = sqlx.GetContext(ctx, q, &typeID,
		`SELECT equipment_type_id FROM equipment_types WHERE type_name = ?`, typeName)
	if errors.Is(err, sql.ErrNoRows) {
		err = sqlx.GetContext(ctx, q, &typeID,
			`INSERT INTO equipment_types (type_name) VALUES (?) RETURNING equipment_type_id`, typeName)
	}
	if err != nil {
		return 0, 0, err
	}

	err = sqlx.GetContext(ctx, q, &modelID,
		`SELECT equipment_model_id FROM equipment_models WHERE model_name = ? AND equipment_type_id = ?`,
		modelName, typeID)
	if errors.Is(err, sql.ErrNoRows) {
		err = sqlx.GetContext(ctx, q, &modelID,
			`INSERT INTO equipment_models (model_name, equipment_type_id) VALUES (?, ?) RETURNING equipment_model_id`,
			modelName, typeID)
	}
	if err != nil {
		return 0, 0, err
	}
	return typeID, modelID, nil
}

// ListEquipmentTypes возвращает все типы оборудования.
func (s *Storage) ListEquipmentTypes(ctx context.Context) ([]EquipmentType, error) {
	types := []EquipmentType{}
	err := s.db.SelectContext(ctx, &types,
		`SELECT equipment_type_id, type_name, created_at FROM equipment_types ORDER BY type_name`)
	return types, err
}

// ListEquipmentModels возвращает все модели с привязкой к типам.
func (s *Storage) ListEquipmentModels(ctx context.Context) ([]EquipmentModel, error) {
	models := []EquipmentModel{}
	err := s.db.SelectContext(ctx, &models,
		`SELECT equipment_model_id, model_name, equipment_type_id, created_at
         FROM equipment_models ORDER BY model_name`)
	return models, err
}
