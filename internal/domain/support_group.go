package domain

import "time"

// SupportGroup is a technician group covering one floor of a building.
type SupportGroup struct {
	ID            int64
	Name          string
	Building      string
	Floor         int
	ParentGroupID *int64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SameBuilding reports whether both groups sit in the same building.
func (g *SupportGroup) SameBuilding(other *SupportGroup) bool {
	if g == nil || other == nil {
		return false
	}
	return g.Building == other.Building
}
