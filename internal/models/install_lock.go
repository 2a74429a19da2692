package models

// InstallLockID is the primary key of the only install lock row.
const InstallLockID = 1

// InstallLockModel is a single seeded row. First-admin creation locks it so
// concurrent setups run one after the other.
type InstallLockModel struct {
	ID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (InstallLockModel) TableName() string { return "install_locks" }
