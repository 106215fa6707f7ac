package vendors

import (
	"context"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

// ListMerged is the read-time projection consumers list vendors through:
// committed vendor rows merged with pending add requests (shown as
// provisional entries) and annotated with any in-flight update/delete.
// Nothing here is stored; the projection is recomputed per read.
func (e *Engine) ListMerged(ctx context.Context) ([]*models.VendorView, error) {
	committed, err := e.vendors.ListVendors()
	if err != nil {
		return nil, err
	}
	pending, err := e.vendors.ListRequests(models.RequestPending)
	if err != nil {
		return nil, err
	}

	pendingByVendor := make(map[int64]*models.VendorRequest)
	var pendingAdds []*models.VendorRequest
	for _, req := range pending {
		if req.VendorID != nil {
			pendingByVendor[*req.VendorID] = req
		} else if req.Type == models.VendorRequestAdd {
			pendingAdds = append(pendingAdds, req)
		}
	}

	views := make([]*models.VendorView, 0, len(committed)+len(pendingAdds))
	for _, vendor := range committed {
		view := &models.VendorView{Vendor: *vendor}
		if req, ok := pendingByVendor[vendor.ID]; ok {
			view.Pending = true
			view.PendingType = req.Type
			view.RequestID = req.ID
		}
		views = append(views, view)
	}

	for _, req := range pendingAdds {
		if req.Data == nil {
			continue
		}
		views = append(views, &models.VendorView{
			Vendor: models.Vendor{
				Name:              req.Data.Name,
				ServiceContent:    req.Data.ServiceContent,
				BankCode:          req.Data.BankCode,
				BankAccount:       req.Data.BankAccount,
				IsFloatingAccount: req.Data.IsFloatingAccount,
			},
			Pending:     true,
			PendingType: models.VendorRequestAdd,
			RequestID:   req.ID,
		})
	}

	return views, nil
}
