package client

// Risk Modeler API paths. Placeholders are filled with fmt.Sprintf.
const (
	PathWorkflows      = "/riskmodeler/v1/workflows"
	PathWorkflowByID   = "/riskmodeler/v1/workflows/%d"
	PathCreateBucket   = "/riskmodeler/v1/storage"
	PathCreateMapping  = "/riskmodeler/v1/imports/createmapping/%s"
	PathExecuteImport  = "/riskmodeler/v1/imports"
	PathExposures      = "/platform/riskdata/v1/exposures"
	PathExposureByID   = "/platform/riskdata/v1/exposures/%d"
	PathPortfolios     = "/platform/riskdata/v1/exposures/%d/portfolios"
	PathPortfolioAccts = "/platform/riskdata/v1/exposures/%d/portfolios/%d/accounts"
	PathGeohazJobs     = "/platform/geohaz/v1/jobs"
	PathGeohazJobByID  = "/platform/geohaz/v1/jobs/%d"
)

// Headers sent with every request.
const (
	HeaderAuthorization   = "Authorization"
	HeaderResourceGroupID = "x-rms-resource-group-id"
	HeaderLocation        = "Location"
)
