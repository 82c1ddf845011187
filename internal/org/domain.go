// Package org exposes the organizational user hierarchy consumed by the
// fund-flow core. Users are collaborator-owned data; this package only reads
// them to answer superior/subordinate questions.
package org

// User is the collaborator-supplied identity record. ParentID points at the
// user's direct superior in the funding chain.
type User struct {
	ID       int64
	Name     string
	Role     string
	ParentID *int64
}

// MaxHierarchyDepth bounds ancestor traversal. Chains deeper than this are
// treated as data corruption rather than followed.
const MaxHierarchyDepth = 16
