// Package validator builds request validation out of small rules.
//
//	err := validator.Apply(
//		validator.Required("title", req.Title),
//		validator.MaxLen("title", req.Title, 200),
//		validator.Positive("total_size", req.TotalSize),
//	)
//
// Apply returns nil or a ValidationErrors value listing every failed rule;
// callers render it field by field.
package validator
