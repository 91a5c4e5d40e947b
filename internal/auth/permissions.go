package auth

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Tech portal permissions.
const (
	PermManageRFQs       = "manageRFQs"
	PermManageQuotations = "manageQuotations"
	PermManageVendors    = "manageVendors"
	PermManageCustomers  = "manageCustomers"
	PermManageRoles      = "manageRoles"
	PermViewReports      = "viewReports"
)

// Vendor and customer portal permissions.
const (
	PermViewRFQs           = "viewRFQs"
	PermSubmitQuotations   = "submitQuotations"
	PermManageBanking      = "manageBanking"
	PermManageShipping     = "manageShipping"
	PermManageTeam         = "manageTeam"
	PermViewQuotations     = "viewQuotations"
	PermUploadPaymentProof = "uploadPaymentProof"
	PermSelectShipping     = "selectShipping"
)

// Shared by several portals.
const (
	PermApprovePayments = "approvePayments"
	PermExportData      = "exportData"
)

// PortalPermissions is the permission vocabulary of each portal.
var PortalPermissions = map[string][]string{
	"tech": {
		PermManageRFQs, PermManageQuotations, PermApprovePayments, PermManageVendors,
		PermManageCustomers, PermManageRoles, PermViewReports, PermExportData,
	},
	"vendor": {
		PermViewRFQs, PermSubmitQuotations, PermManageBanking, PermApprovePayments,
		PermManageShipping, PermExportData, PermManageTeam,
	},
	"customer": {
		PermViewRFQs, PermViewQuotations, PermUploadPaymentProof, PermSelectShipping, PermExportData,
	},
}

// IsPortalPermission reports whether perm belongs to the portal's vocabulary.
func IsPortalPermission(portal, perm string) bool {
	for _, p := range PortalPermissions[portal] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermCache caches portal/role → permission flags for fast middleware lookups.
type PermCache struct {
	sync.RWMutex
	data    map[string]map[string]bool // "portal/role" → permission → granted
	updated time.Time
}

// NewPermCache creates a new empty permission cache.
func NewPermCache() *PermCache {
	return &PermCache{
		data: make(map[string]map[string]bool),
	}
}

func cacheKey(portal, role string) string { return portal + "/" + role }

// Refresh loads all role_permissions into the in-memory cache.
func (pc *PermCache) Refresh(db *sql.DB) error {
	rows, err := db.Query("SELECT portal, role, permission FROM role_permissions WHERE granted = 1")
	if err != nil {
		return err
	}
	defer rows.Close()

	data := make(map[string]map[string]bool)
	for rows.Next() {
		var portal, role, perm string
		if err := rows.Scan(&portal, &role, &perm); err != nil {
			continue
		}
		k := cacheKey(portal, role)
		if data[k] == nil {
			data[k] = make(map[string]bool)
		}
		data[k][perm] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	pc.Lock()
	pc.data = data
	pc.updated = time.Now()
	pc.Unlock()
	return nil
}

// HasPermission checks whether a portal role holds a permission.
func (pc *PermCache) HasPermission(portal, role, perm string) bool {
	pc.RLock()
	defer pc.RUnlock()
	return pc.data[cacheKey(portal, role)][perm]
}

// GetRolePermissions returns the granted permissions of a role, sorted.
func (pc *PermCache) GetRolePermissions(portal, role string) []string {
	pc.RLock()
	defer pc.RUnlock()
	var perms []string
	for p := range pc.data[cacheKey(portal, role)] {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// InitPermissionsTable seeds default roles when role_permissions is empty
// and loads the cache.
func InitPermissionsTable(db *sql.DB, pc *PermCache) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM role_permissions").Scan(&count); err != nil {
		return fmt.Errorf("count role_permissions: %w", err)
	}
	if count == 0 {
		if err := SeedDefaultPermissions(db); err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}
	}
	return pc.Refresh(db)
}

// SeedDefaultPermissions gives each portal an "admin" role holding its whole
// vocabulary, plus a "viewer" role on the vendor and customer portals.
func SeedDefaultPermissions(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO role_permissions (portal, role, permission, granted) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for portal, perms := range PortalPermissions {
		for _, p := range perms {
			if _, err := stmt.Exec(portal, "admin", p, 1); err != nil {
				return err
			}
		}
	}
	for _, portal := range []string{"vendor", "customer"} {
		for _, p := range PortalPermissions[portal] {
			granted := 0
			if p == PermViewRFQs || p == PermViewQuotations {
				granted = 1
			}
			if _, err := stmt.Exec(portal, "viewer", p, granted); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// MapAPIPathToPermission maps a portal API path + method to the permission
// it needs. rest is the path after /api/v1/{portal}/. Returns "" when the
// route needs no permission beyond authentication.
func MapAPIPathToPermission(portal, rest, method string) string {
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	last := parts[len(parts)-1]

	if last == "export" {
		return PermExportData
	}

	switch parts[0] {
	case "roles":
		return PermManageRoles
	case "rfq":
		if portal == "tech" {
			return PermManageRFQs
		}
		return PermViewRFQs
	case "quotation":
		switch {
		case portal == "tech":
			return PermManageQuotations
		case method == "POST":
			return PermSubmitQuotations
		case portal == "customer":
			return PermViewQuotations
		}
		return PermViewRFQs
	case "banking-details":
		switch portal {
		case "tech":
			return PermManageQuotations
		case "customer":
			return PermViewQuotations
		}
		return PermManageBanking
	case "payment-proof":
		switch last {
		case "approve":
			return PermApprovePayments
		case "shipping-option":
			return PermSelectShipping
		case "vendor-shipping":
			return PermManageShipping
		}
		if method == "POST" {
			return PermUploadPaymentProof
		}
		switch portal {
		case "tech":
			return PermManageQuotations
		case "customer":
			return PermViewQuotations
		}
		return PermViewRFQs
	}
	return ""
}
