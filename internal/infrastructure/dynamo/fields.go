package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable           = "enable"
	fieldUpdatedAt        = "updated_at"
	fieldStatus           = "status"
	fieldOrganizationID   = "organization_id"
	fieldRole             = "role"
	fieldIsActive         = "is_active"
	fieldCurrentViews     = "current_views"
	fieldMaxViews         = "max_views"
	fieldCurrentDownloads = "current_downloads"
	fieldMaxDownloads     = "max_downloads"
	fieldAttemptsLeft     = "attempts_left"
	fieldCode             = "code"
	fieldAccepted         = "accepted"
	fieldDeliveriesUsed   = "deliveries_used"
	fieldStorageUsed      = "storage_used"
)

// transactional writes are capped by DynamoDB; batch writes by 25 requests.
const (
	maxTransactItems = 100
	maxBatchWrite    = 25
)
