package dto

// GeoSalesQuery is the query of both geo report routes. Months is parsed
// leniently, like the sync window.
type GeoSalesQuery struct {
	Months string `form:"months"`
}

// GeoCityPath binds the UF path parameter of the city report
type GeoCityPath struct {
	UF string `uri:"uf" binding:"required,brazil_uf"`
}
