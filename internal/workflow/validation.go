package workflow

import (
	"fmt"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
	"github.com/cando-yeh/reimbursement-sub001/pkg/utils"
)

// validateForSubmission enforces the rules that gate every transition out of
// draft. vendor is the resolved payee vendor, nil when the claim has no
// vendor reference.
func validateForSubmission(claim *models.Claim, vendor *models.Vendor) error {
	if claim.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidationFailed)
	}
	if claim.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidationFailed)
	}
	if claim.Payee == "" {
		return fmt.Errorf("%w: payee is required", ErrValidationFailed)
	}

	switch claim.Type {
	case models.ClaimTypeEmployee, models.ClaimTypeVendor, models.ClaimTypeService, models.ClaimTypePayment:
	default:
		return fmt.Errorf("%w: unknown claim type %q", ErrValidationFailed, claim.Type)
	}

	if claim.IsMultiItem() {
		if len(claim.Items) == 0 {
			return fmt.Errorf("%w: at least one item is required", ErrValidationFailed)
		}
		var sum int64
		for _, item := range claim.Items {
			if item.Amount <= 0 {
				return fmt.Errorf("%w: item amounts must be positive", ErrValidationFailed)
			}
			sum += item.Amount
		}
		if sum != claim.Amount {
			return fmt.Errorf("%w: amount %d does not equal item sum %d", ErrValidationFailed, claim.Amount, sum)
		}
	}

	if claim.Type == models.ClaimTypeEmployee {
		for i, item := range claim.Items {
			if item.ReceiptURL != "" {
				continue
			}
			if !item.NoReceipt {
				return fmt.Errorf("%w: item %d needs a receipt or the no-receipt flag", ErrValidationFailed, i+1)
			}
			if claim.NoReceiptReason == "" {
				return fmt.Errorf("%w: a reason is required when items have no receipt", ErrValidationFailed)
			}
		}
	}

	// Floating-account vendors carry no fixed bank details, so the claim
	// must supply them.
	if claim.Type == models.ClaimTypePayment && vendor != nil && vendor.IsFloatingAccount {
		if claim.BankCode == "" || claim.BankAccount == "" {
			return fmt.Errorf("%w: bank code and account are required for a floating-account vendor", ErrValidationFailed)
		}
		if err := utils.ValidateBankCode(claim.BankCode); err != nil {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		if err := utils.ValidateBankAccount(claim.BankAccount); err != nil {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
	}

	return nil
}
