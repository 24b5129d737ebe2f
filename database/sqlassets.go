package sqlassets

import _ "embed"

// MainSQL creates the agency registry and the super-admin copy of the identity tables.
//
//go:embed schema/main/main.sql
var MainSQL string

// TenantSQL creates the identity tables of a single agency database. The optional user
// columns (last_sign_in_at, is_active) are not part of it; persistence.EnsureOptionalColumns adds them.
//
//go:embed schema/tenant/identity.sql
var TenantSQL string
