package common

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Unit is the registry projection of a hotel property / business unit. The
// registry itself is an external collaborator, this service only needs
// existence, currency and manager lookups.
type Unit struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UnitCode  string    `json:"unit_code" gorm:"index:unit_code,unique"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	ManagerID uint      `json:"manager_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleAssignment mirrors the user service's role membership per unit,
// read-only here.
type RoleAssignment struct {
	ID     uint   `json:"id" gorm:"primarykey"`
	UnitID uint   `json:"unit_id" gorm:"index:role_unit_user,unique"`
	UserID uint   `json:"user_id" gorm:"index:role_unit_user,unique"`
	Role   string `json:"role" gorm:"index:role_unit_user,unique"`
}

type UnitRegistry interface {
	Unit(ctx context.Context, unitID uint) (*Unit, error)
}

// RoleDirectory answers "who currently holds this role in this unit". The
// workflow resolver snapshots its answers at resolution time. Lookups run on
// the caller's transaction so the snapshot shares its isolation, a nil tx
// falls back to the service's own connection.
type RoleDirectory interface {
	UsersWithRole(ctx context.Context, tx *gorm.DB, unitID uint, role string) ([]uint, error)
}

type unitServiceImpl struct {
	db *gorm.DB
}

// Unit implements UnitRegistry.
func (u *unitServiceImpl) Unit(ctx context.Context, unitID uint) (*Unit, error) {
	var unit Unit

	err := u.db.WithContext(ctx).
		Model(&Unit{}).
		Where("id = ?", unitID).
		Find(&unit).
		Error
	if err != nil {
		return nil, err
	}

	if unit.ID == 0 {
		return nil, fmt.Errorf("unit %d not found", unitID)
	}

	return &unit, nil
}

// UsersWithRole implements RoleDirectory.
func (u *unitServiceImpl) UsersWithRole(ctx context.Context, tx *gorm.DB, unitID uint, role string) ([]uint, error) {
	db := tx
	if db == nil {
		db = u.db
	}

	userIDs := []uint{}

	err := db.WithContext(ctx).
		Model(&RoleAssignment{}).
		Where("unit_id = ?", unitID).
		Where("role = ?", role).
		Order("user_id").
		Pluck("user_id", &userIDs).
		Error

	return userIDs, err
}

type UnitService interface {
	UnitRegistry
	RoleDirectory
}

func NewUnitService(db *gorm.DB) UnitService {
	return &unitServiceImpl{
		db: db,
	}
}
