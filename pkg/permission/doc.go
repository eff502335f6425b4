// Package permission holds the tenant-agnostic permission catalog and the
// role authorizer built on it.
//
// The catalog is the only global table of the system: it is read through an
// isolation.GlobalTable whitelisted under TableName, so it can be listed
// without a tenant scope. Roles grant catalog keys directly or through
// inheritance, and a grant may end in a wildcard segment:
//
//	owner:  "*"
//	editor: "videos.*", "uploads.write"
//	viewer: "videos.read"
package permission
