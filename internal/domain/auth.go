package domain

// SubjectType differentiates human callers from trusted internal services.
type SubjectType string

const (
	SubjectTypeUser    SubjectType = "USER"
	SubjectTypeService SubjectType = "SERVICE"
)
