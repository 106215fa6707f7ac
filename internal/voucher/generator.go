// Package voucher renders settlement vouchers: one xlsx per payment batch,
// listing the settled claims for the finance record. Read-only over
// committed data; no workflow invariants live here.
package voucher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

const sheetName = "Voucher"

// Config holds voucher generation configuration
type Config struct {
	OutputDir   string
	CompanyName string
}

// Generator renders payment vouchers as xlsx files
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates a new voucher generator and ensures the output
// directory exists
func NewGenerator(cfg Config, logger *zap.Logger) (*Generator, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create voucher output directory: %w", err)
	}
	return &Generator{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Generate writes the voucher for a settled payment and returns the file path.
// claims are the payment's linked claims, already loaded by the caller.
func (g *Generator) Generate(payment *models.Payment, claims []*models.Claim) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create voucher sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to remove default sheet: %w", err)
	}

	set := func(cell string, value interface{}) {
		// SetCellValue only fails on invalid coordinates, which are all
		// fixed strings here.
		_ = f.SetCellValue(sheetName, cell, value)
	}

	set("A1", g.cfg.CompanyName)
	set("A2", "Payment Voucher")
	set("A3", "Voucher No.")
	set("B3", fmt.Sprintf("PV-%06d", payment.ID))
	set("A4", "Payee")
	set("B4", payment.Payee)
	set("A5", "Payment Date")
	set("B5", payment.PaymentDate.Format("2006-01-02"))

	set("A7", "Claim ID")
	set("B7", "Type")
	set("C7", "Description")
	set("D7", "Amount")

	row := 8
	for _, claim := range claims {
		set(fmt.Sprintf("A%d", row), claim.ID)
		set(fmt.Sprintf("B%d", row), claim.Type)
		set(fmt.Sprintf("C%d", row), claim.Description)
		set(fmt.Sprintf("D%d", row), claim.Amount)
		row++
	}

	set(fmt.Sprintf("C%d", row), "Total")
	set(fmt.Sprintf("D%d", row), payment.Amount)

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "C", "C", 40)
	_ = f.SetColWidth(sheetName, "D", "D", 14)

	path := filepath.Join(g.cfg.OutputDir, fmt.Sprintf("voucher_payment_%d.xlsx", payment.ID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save voucher: %w", err)
	}

	g.logger.Info("Voucher generated",
		zap.Int64("payment_id", payment.ID),
		zap.String("path", path))
	return path, nil
}
