package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"seaprocure/internal/auth"
	"seaprocure/internal/models"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "Harbour-Pilot-42"

// DemoUsers are created by Seed, one admin per portal.
var DemoUsers = []struct {
	Username, DisplayName, Portal string
}{
	{"tech1", "Fleet Technical Superintendent", models.PortalTech},
	{"vendor1", "Marine Spares Trading", models.PortalVendor},
	{"customer1", "Blue Anchor Shipping", models.PortalCustomer},
}

// DemoRFQ is the RFQ created by Seed.
var DemoRFQ = models.RFQ{
	ID:         "RFQ-1001",
	RFQNumber:  "RFQ-1001",
	Title:      "Main engine spares",
	Vessel:     "MV Northern Star",
	SupplyPort: "Singapore",
	Brand:      "MAN B&W",
	Model:      "6S50MC-C",
	Category:   "Engine",
	Status:     models.RFQStatusSent,
	Metadata: models.RFQMetadata{Items: []models.RFQItem{
		{Description: "Fuel injection valve", Quantity: 4, Unit: "pcs", PartNumber: "FIV-220"},
		{Description: "Exhaust valve spindle", Quantity: 2, Unit: "pcs", PartNumber: "EVS-118"},
	}},
}

// Seed inserts demo users and RFQ-1001 when missing. Safe to call repeatedly.
func Seed(db *sql.DB, logger *slog.Logger) error {
	return SeedWithPassword(db, logger, DemoPassword)
}

// SeedWithPassword is Seed with a chosen password for the demo users. The
// password must pass the strength check; existing users keep theirs.
func SeedWithPassword(db *sql.DB, logger *slog.Logger, password string) error {
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return fmt.Errorf("demo password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	for _, u := range DemoUsers {
		res, err := db.Exec(`INSERT OR IGNORE INTO users (username, password_hash, display_name, portal, role)
			VALUES (?, ?, ?, ?, 'admin')`, u.Username, hash, u.DisplayName, u.Portal)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logger.Info("seeded user", "username", u.Username, "portal", u.Portal)
		}
	}

	if _, err := InsertRFQ(db, DemoRFQ, "tech1"); err != nil {
		return fmt.Errorf("seed %s: %w", DemoRFQ.ID, err)
	}
	return nil
}

// InsertRFQ stores rfq unless its id or number already exists, and reports
// whether a row was written.
func InsertRFQ(db *sql.DB, rfq models.RFQ, createdBy string) (bool, error) {
	items, err := json.Marshal(rfq.Metadata.Items)
	if err != nil {
		return false, err
	}
	now := Now()
	res, err := db.Exec(`INSERT OR IGNORE INTO rfqs
		(id, rfq_number, title, vessel, supply_port, brand, model, category, items, status, due_date, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rfq.ID, rfq.RFQNumber, rfq.Title, rfq.Vessel, rfq.SupplyPort, rfq.Brand, rfq.Model, rfq.Category,
		string(items), rfq.Status, rfq.DueDate, createdBy, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
