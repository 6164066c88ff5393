package models

import "fmt"

// ScanExtensions are probed in priority order when resolving a project's
// primary scan image. The capture app historically wrote any of the three.
var ScanExtensions = []string{".jpg", ".jpeg", ".png"}

// ScanAssetKey returns the storage key of a project's scan image for a given
// extension.
func ScanAssetKey(projectID, ext string) string {
	return projectID + ext
}

// BillAssetKey returns the storage key of the seq-th bill image attached to a
// project. Bills are append-only, so (projectID, count) is enough for a
// client and server to agree on which bills are new.
func BillAssetKey(projectID string, seq int) string {
	return fmt.Sprintf("%s_bill_%03d.jpg", projectID, seq)
}
