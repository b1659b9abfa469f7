package hierarchy

// Notification texts shown to the user for each mutation outcome.
const (
	msgCreated        = "Concept created successfully"
	msgCreateFailed   = "Failed to create concept"
	msgUpdated        = "Concept updated successfully"
	msgUpdateFailed   = "Failed to update concept"
	msgStatusFailed   = "Failed to update concept status"
	msgBulkFailed     = "Failed to update concepts"
	msgReparented     = "Concept hierarchy updated"
	msgReparentFailed = "Failed to update concept hierarchy"
	msgMoved          = "Concept moved"
	msgMoveFailed     = "Failed to move concept"
	msgReordered      = "Concepts reordered"
	msgReorderFailed  = "Failed to reorder concepts"
	msgDeleted        = "Concept deleted successfully"
	msgDeleteFailed   = "Failed to delete concept"
	msgHasChildren    = "Cannot delete concept with child concepts. Please reassign or delete children first."
)
