package scope

import "gorm.io/gorm"

func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}

// LimitTo caps a listing query. Non-positive values fall back to a sane
// page size instead of returning everything.
func LimitTo(n int) func(*gorm.DB) *gorm.DB {
	if n <= 0 {
		n = 20
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}
