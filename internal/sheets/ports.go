package sheets

import (
	"context"

	"billrecords/internal/core"
)

// SnapshotWriter replaces the exported copy of the ledger with bills.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, bills []core.Bill) error
}
