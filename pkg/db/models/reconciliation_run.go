package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// ReconciliationRun is the bookkeeping record of one balance sweep.
type ReconciliationRun struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status             enums.ReconRunStatus `gorm:"column:status;type:recon_run_status_enum;not null;default:'running'"`
	WalletsChecked     int                  `gorm:"column:wallets_checked;not null;default:0"`
	DiscrepanciesFound int                  `gorm:"column:discrepancies_found;not null;default:0"`
	StartedAt          time.Time            `gorm:"column:started_at;autoCreateTime"`
	FinishedAt         *time.Time           `gorm:"column:finished_at"`
	LastError          *string              `gorm:"column:last_error"`
}
