package repository

import (
	"github.com/amirphl/measurement-reporting/models"
	"gorm.io/gorm"
)

// SourceRepositoryImpl implements SourceRepository
type SourceRepositoryImpl struct {
	*BaseRepository[models.Source]
}

func NewSourceRepository(db *gorm.DB) SourceRepository {
	return &SourceRepositoryImpl{BaseRepository: NewBaseRepository[models.Source](db)}
}

// TriggerRepositoryImpl implements TriggerRepository
type TriggerRepositoryImpl struct {
	*BaseRepository[models.Trigger]
}

func NewTriggerRepository(db *gorm.DB) TriggerRepository {
	return &TriggerRepositoryImpl{BaseRepository: NewBaseRepository[models.Trigger](db)}
}
